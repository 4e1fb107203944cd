package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/juju/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/oauth2"
	sqlapi "google.golang.org/api/sqladmin/v1beta4"

	"github.com/arencloud/sqlexport/internal/config"
	"github.com/arencloud/sqlexport/internal/logging"
	"github.com/arencloud/sqlexport/internal/middleware"
	"github.com/arencloud/sqlexport/internal/models"
	"github.com/arencloud/sqlexport/internal/version"
)

// Exporter is the administrative API the handler talks to.
type Exporter interface {
	Credential(ctx context.Context) (*oauth2.Token, error)
	Export(ctx context.Context, cred *oauth2.Token, project, instance string, ec *sqlapi.ExportContext) (*sqlapi.Operation, error)
	Operation(ctx context.Context, cred *oauth2.Token, project, name string) (*sqlapi.Operation, error)
}

// Ledger records submissions. Optional.
type Ledger interface {
	Record(ctx context.Context, s *models.ExportSubmission) error
	Recent(ctx context.Context, limit int) ([]models.ExportSubmission, error)
}

// ArtifactStater looks up the exported object. Optional.
type ArtifactStater interface {
	Stat(ctx context.Context, uri string) (*models.Artifact, error)
}

// Deps are the collaborators built once at process start.
type Deps struct {
	Exporter  Exporter
	Clock     clock.Clock
	Ledger    Ledger
	Artifacts ArtifactStater
}

func Router(cfg *config.Config, logger logging.Logger, deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(requestid.New())
	var access ginzap.ZapLogger = logger.Zap()
	if cfg.LogRedact {
		access = routeOnlyLogger{z: logger.Zap()}
	}
	r.Use(ginzap.GinzapWithConfig(access, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health"},
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{
				zap.String("requestId", requestid.Get(c)),
				zap.String("route", c.FullPath()),
			}
		},
	}))
	r.Use(middleware.Recoverer(logger))

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"name": version.Name, "version": version.Version})
	})

	h := newExportHandler(cfg, logger, deps)
	g := r.Group("/", middleware.RequireToken(cfg.TriggerTokenHash))
	// the trigger accepts any method, like the function it replaces
	g.Any("/", h.trigger)
	g.POST("/export", h.trigger)
	g.GET("/operations/:project/:name", h.operation)
	g.GET("/exports", h.recent)
	g.GET("/logs/level", logsGetLevel)
	g.PUT("/logs/level", logsSetLevel(logger))
	return r
}

// routeOnlyLogger writes access log entries keyed by the route template, so
// identifiers carried in the request path or query stay out of the logs.
type routeOnlyLogger struct{ z *zap.Logger }

func (l routeOnlyLogger) Info(msg string, fields ...zap.Field) {
	route, fields := routeOnly(fields)
	l.z.Info(route, fields...)
}

func (l routeOnlyLogger) Error(msg string, fields ...zap.Field) {
	_, fields = routeOnly(fields)
	l.z.Error(msg, fields...)
}

func routeOnly(fields []zap.Field) (string, []zap.Field) {
	route := "unmatched"
	for _, f := range fields {
		if f.Key == "route" && f.String != "" {
			route = f.String
		}
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		switch f.Key {
		case "path":
			f = zap.String("path", route)
		case "query":
			continue
		}
		out = append(out, f)
	}
	return route, out
}
