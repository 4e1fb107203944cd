package cloudsql

import (
	"context"
	"net/http"
	"time"

	"github.com/juju/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sqlapi "google.golang.org/api/sqladmin/v1beta4"
)

// Scopes are the OAuth scopes requested from application default credentials.
var Scopes = []string{sqlapi.SqlserviceAdminScope}

// Config holds connection settings for the Cloud SQL Admin API.
type Config struct {
	// Endpoint overrides the API base URL, e.g. for an emulator.
	Endpoint string
	// HTTPClient carries requests; a client with a 60s timeout is used when nil.
	HTTPClient *http.Client
}

// Client submits export jobs to the Cloud SQL Admin API. It is built once at
// process start and is safe for concurrent use.
//
// The underlying service does not authenticate on its own: every call carries
// the credential handed to it, which the caller obtains through Credential.
type Client struct {
	svc    *sqlapi.Service
	tokens oauth2.TokenSource
}

// Connect looks up application default credentials and opens a client.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	creds, err := google.FindDefaultCredentials(ctx, Scopes...)
	if err != nil {
		return nil, errors.Annotate(err, "finding application default credentials")
	}
	return NewClient(ctx, creds.TokenSource, cfg)
}

// NewClient opens a client that draws credentials from tokens.
func NewClient(ctx context.Context, tokens oauth2.TokenSource, cfg Config) (*Client, error) {
	if tokens == nil {
		return nil, errors.NotValidf("nil token source")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := sqlapi.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Annotate(err, "creating sqladmin service")
	}
	return &Client{svc: svc, tokens: oauth2.ReuseTokenSource(nil, tokens)}, nil
}

// Credential returns a short-lived bearer token for the service identity.
func (c *Client) Credential(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, errors.Annotate(err, "obtaining credential")
	}
	if !tok.Valid() {
		return nil, errors.NotValidf("credential")
	}
	return tok, nil
}

// Export asks Cloud SQL to export instance to the URI in ec. It returns as
// soon as the request is acknowledged; the export itself runs remotely.
func (c *Client) Export(ctx context.Context, cred *oauth2.Token, project, instance string, ec *sqlapi.ExportContext) (*sqlapi.Operation, error) {
	call := c.svc.Instances.Export(project, instance, &sqlapi.InstancesExportRequest{ExportContext: ec})
	authorize(call.Header(), cred)
	op, err := call.Context(ctx).Do()
	if err != nil {
		return nil, errors.Annotatef(err, "exporting instance %q of project %q", instance, project)
	}
	return op, nil
}

// Operation fetches the current state of an operation.
func (c *Client) Operation(ctx context.Context, cred *oauth2.Token, project, name string) (*sqlapi.Operation, error) {
	call := c.svc.Operations.Get(project, name)
	authorize(call.Header(), cred)
	op, err := call.Context(ctx).Do()
	if err != nil {
		return nil, errors.Annotatef(err, "getting operation %q", name)
	}
	return op, nil
}

func authorize(h http.Header, cred *oauth2.Token) {
	if cred == nil {
		return
	}
	h.Set("Authorization", cred.Type()+" "+cred.AccessToken)
}
