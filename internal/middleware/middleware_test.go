package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/arencloud/sqlexport/internal/logging"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	return rw
}

func TestRecovererCatchesPanic(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(Recoverer(logging.NewWithCore(core)))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })
	rw := serve(r, httptest.NewRequest("GET", "/boom", nil))
	if rw.Code != 500 {
		t.Fatalf("expected 500, got %d", rw.Code)
	}
	if rw.Body.String() != "internal error" {
		t.Fatalf("unexpected body %q", rw.Body.String())
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatalf("panic was not logged")
	}
}

func TestRequireToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	r := gin.New()
	r.Use(RequireToken(string(hash)))
	r.POST("/", func(c *gin.Context) { c.String(200, "ok") })

	cases := []struct {
		header string
		want   int
	}{
		{"", 401},
		{"Bearer wrong", 401},
		{"Basic s3cret", 401},
		{"Bearer s3cret", 200},
	}
	for _, c := range cases {
		req := httptest.NewRequest("POST", "/", nil)
		if c.header != "" {
			req.Header.Set("Authorization", c.header)
		}
		if rw := serve(r, req); rw.Code != c.want {
			t.Fatalf("Authorization %q: got %d want %d", c.header, rw.Code, c.want)
		}
	}
}

func TestRequireTokenDisabled(t *testing.T) {
	r := gin.New()
	r.Use(RequireToken(""))
	r.POST("/", func(c *gin.Context) { c.String(200, "ok") })
	if rw := serve(r, httptest.NewRequest("POST", "/", nil)); rw.Code != 200 {
		t.Fatalf("expected pass-through, got %d", rw.Code)
	}
}
