package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/arencloud/sqlexport/internal/config"
	"github.com/arencloud/sqlexport/internal/logging"
	"github.com/arencloud/sqlexport/internal/models"
)

// Ledger is an append-only record of export submissions. It is an audit
// trail only; nothing reads it back to decide whether to export.
type Ledger struct {
	db *gorm.DB
}

// Open connects the ledger configured in cfg. It returns nil, nil when no
// ledger driver is configured.
func Open(cfg *config.Config, logger logging.Logger) (*Ledger, error) {
	var dialector gorm.Dialector
	switch strings.TrimSpace(cfg.LedgerDriver) {
	case "":
		return nil, nil
	case "postgres", "postgresql":
		if cfg.LedgerDsn == "" {
			return nil, errors.NotValidf("postgres ledger without DATABASE_URL/DB_DSN")
		}
		dialector = postgres.Open(cfg.LedgerDsn)
		logger.Info("ledger connect", "driver", "postgres")
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.LedgerPath), 0o755); err != nil {
			return nil, errors.Trace(err)
		}
		dialector = sqlite.Open(cfg.LedgerPath)
		logger.Info("ledger connect", "driver", "sqlite", "path", cfg.LedgerPath)
	default:
		return nil, errors.NotSupportedf("ledger driver %q", cfg.LedgerDriver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(logger, gormLevel())})
	if err != nil {
		return nil, errors.Annotate(err, "opening ledger")
	}
	if err := gdb.AutoMigrate(&models.ExportSubmission{}); err != nil {
		return nil, errors.Annotate(err, "migrating ledger")
	}
	return &Ledger{db: gdb}, nil
}

// gormLevel maps our log level onto gorm's so SQL traces only show at debug.
func gormLevel() gormlogger.LogLevel {
	switch logging.GetLevel() {
	case "debug":
		return gormlogger.Info
	case "error", "fatal":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

// Record stores one submission.
func (l *Ledger) Record(ctx context.Context, s *models.ExportSubmission) error {
	return errors.Annotate(l.db.WithContext(ctx).Create(s).Error, "recording export submission")
}

// Recent returns up to limit submissions, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]models.ExportSubmission, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	var rows []models.ExportSubmission
	err := l.db.WithContext(ctx).Order("created_at desc").Order("id desc").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, errors.Annotate(err, "listing export submissions")
	}
	return rows, nil
}

// Close releases the underlying connection pool.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return errors.Trace(err)
	}
	return sqlDB.Close()
}
