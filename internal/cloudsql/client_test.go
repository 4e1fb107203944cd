package cloudsql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	sqlapi "google.golang.org/api/sqladmin/v1beta4"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   sqlapi.InstancesExportRequest
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-123"})
	c, err := NewClient(context.Background(), ts, Config{Endpoint: srv.URL + "/", HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c, srv
}

func TestExportSendsExportContext(t *testing.T) {
	var got recorded
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got.method, got.path, got.auth = r.Method, r.URL.Path, r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"kind":"sql#operation","name":"op-1","status":"PENDING","operationType":"EXPORT","targetId":"inst1","targetProject":"proj1"}`))
	})
	ctx := context.Background()
	cred, err := c.Credential(ctx)
	require.NoError(t, err)

	ec := &sqlapi.ExportContext{Kind: "sql#exportContext", FileType: "SQL", Uri: "gs://buck1/backups/backup-x.gz"}
	op, err := c.Export(ctx, cred, "proj1", "inst1", ec)
	require.NoError(t, err)
	require.Equal(t, "op-1", op.Name)
	require.Equal(t, "PENDING", op.Status)

	require.Equal(t, http.MethodPost, got.method)
	require.True(t, strings.HasSuffix(got.path, "/projects/proj1/instances/inst1/export"), got.path)
	require.Equal(t, "Bearer tok-123", got.auth)
	require.NotNil(t, got.body.ExportContext)
	require.Equal(t, "sql#exportContext", got.body.ExportContext.Kind)
	require.Equal(t, "SQL", got.body.ExportContext.FileType)
	require.Equal(t, ec.Uri, got.body.ExportContext.Uri)
	require.Empty(t, got.body.ExportContext.Databases)
}

func TestExportRemoteRejection(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"The client is not authorized to make this request.","errors":[{"reason":"notAuthorized"}]}}`))
	})
	_, err := c.Export(context.Background(), &oauth2.Token{AccessToken: "x"}, "proj1", "inst1", &sqlapi.ExportContext{})
	require.Error(t, err)
	require.True(t, IsAuthorisationFailure(err))
	require.Equal(t, KindUnauthorized, Kind(err))
	require.Equal(t, http.StatusForbidden, StatusCode(err))
	require.Contains(t, err.Error(), `exporting instance "inst1"`)
}

func TestOperation(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/projects/proj1/operations/op-1") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"op-1","status":"DONE"}`))
	})
	op, err := c.Operation(context.Background(), &oauth2.Token{AccessToken: "x"}, "proj1", "op-1")
	require.NoError(t, err)
	require.Equal(t, "DONE", op.Status)

	_, err = c.Operation(context.Background(), &oauth2.Token{AccessToken: "x"}, "proj1", "missing")
	require.True(t, IsNotFound(err))
	require.Equal(t, KindNotFound, Kind(err))
}

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) { return nil, errors.New("metadata server unreachable") }

func TestCredentialFailure(t *testing.T) {
	c, err := NewClient(context.Background(), failingSource{}, Config{Endpoint: "http://127.0.0.1:0/"})
	require.NoError(t, err)
	_, err = c.Credential(context.Background())
	require.ErrorContains(t, err, "obtaining credential")
}

func TestNewClientRequiresTokens(t *testing.T) {
	_, err := NewClient(context.Background(), nil, Config{})
	require.True(t, errors.Is(err, errors.NotValid))
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&googleapi.Error{Code: 401}, KindUnauthorized},
		{errors.Annotate(&googleapi.Error{Code: 404}, "wrapped"), KindNotFound},
		{&googleapi.Error{Code: 409}, KindConflict},
		{&googleapi.Error{Code: 400}, KindRemote},
		{errors.New("dial tcp: refused"), KindRemote},
	}
	for _, c := range cases {
		if got := Kind(c.err); got != c.want {
			t.Fatalf("Kind(%v)=%q want %q", c.err, got, c.want)
		}
	}
}
