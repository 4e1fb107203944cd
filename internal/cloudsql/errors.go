package cloudsql

import (
	"net/http"

	"github.com/juju/errors"
	"google.golang.org/api/googleapi"
)

// Error kinds reported for failed remote calls.
const (
	KindUnauthorized = "unauthorized"
	KindNotFound     = "not_found"
	KindConflict     = "conflict"
	KindRemote       = "remote"
)

// authorisationFailureCodes signify authorisation difficulties.
var authorisationFailureCodes = map[int]bool{
	http.StatusUnauthorized:      true,
	http.StatusPaymentRequired:   true,
	http.StatusForbidden:         true,
	http.StatusProxyAuthRequired: true,
}

func apiError(err error) (*googleapi.Error, bool) {
	var gErr *googleapi.Error
	if err == nil || !errors.As(err, &gErr) {
		return nil, false
	}
	return gErr, true
}

// IsAuthorisationFailure determines if the given error has an authorisation failure.
func IsAuthorisationFailure(err error) bool {
	gErr, ok := apiError(err)
	return ok && authorisationFailureCodes[gErr.Code]
}

// IsNotFound reports if given error is of 'not found' type.
func IsNotFound(err error) bool {
	if gErr, ok := apiError(err); ok {
		return gErr.Code == http.StatusNotFound
	}
	return errors.Is(err, errors.NotFound)
}

// IsConflict reports whether the remote side refused because of existing state,
// such as an instance already running an operation.
func IsConflict(err error) bool {
	gErr, ok := apiError(err)
	return ok && gErr.Code == http.StatusConflict
}

// Kind classifies err for logs and responses. It does not drive retries.
func Kind(err error) string {
	switch {
	case IsAuthorisationFailure(err):
		return KindUnauthorized
	case IsNotFound(err):
		return KindNotFound
	case IsConflict(err):
		return KindConflict
	default:
		return KindRemote
	}
}

// StatusCode returns the HTTP status of a remote error, or 0.
func StatusCode(err error) int {
	if gErr, ok := apiError(err); ok {
		return gErr.Code
	}
	return 0
}
