package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/clock"

	"github.com/arencloud/sqlexport/internal/api"
	"github.com/arencloud/sqlexport/internal/cloudsql"
	"github.com/arencloud/sqlexport/internal/config"
	"github.com/arencloud/sqlexport/internal/db"
	"github.com/arencloud/sqlexport/internal/gcs"
	"github.com/arencloud/sqlexport/internal/logging"
	"github.com/arencloud/sqlexport/internal/version"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)
	defer logger.Sync()
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	admin, err := cloudsql.Connect(ctx, cloudsql.Config{Endpoint: cfg.SQLAdminEndpoint})
	if err != nil {
		logger.Fatal("failed to connect to cloud sql admin api", "error", err)
	}
	deps := api.Deps{Exporter: admin, Clock: clock.WallClock}

	ledger, err := db.Open(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open ledger", "error", err)
	}
	if ledger != nil {
		defer ledger.Close()
		deps.Ledger = ledger
	}

	if cfg.ArtifactCheck() {
		artifacts, err := gcs.New(gcs.Config{Endpoint: cfg.GCSEndpoint, AccessKey: cfg.GCSAccessKey, Secret: cfg.GCSSecret})
		if err != nil {
			logger.Fatal("failed to init artifact checker", "error", err)
		}
		deps.Artifacts = artifacts
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HttpPort,
		Handler:           api.Router(cfg, logger, deps),
		ReadHeaderTimeout: 15 * time.Second,
		// waiting for an export can take minutes; the platform enforces its own deadline
		WriteTimeout:   0,
		MaxHeaderBytes: 1 << 20, // 1MB headers
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("server starting",
		"addr", srv.Addr,
		"version", version.Version,
		"folderStrategy", cfg.FolderStrategy,
		"responseFormat", cfg.ResponseFormat,
		"wait", cfg.Wait,
		"ledger", cfg.LedgerDriver != "",
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", "error", err)
	}
	logger.Info("server stopped")
}
