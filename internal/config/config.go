package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Folder strategies for the export destination.
const (
	FolderMonthly = "monthly" // <subdirectory>/<Month><Year>/
	FolderFixed   = "fixed"   // <FixedFolder>/
)

// Response formats.
const (
	ResponseJSON   = "json"
	ResponseLegacy = "legacy"
)

type Config struct {
	Env      string
	HttpPort string

	FolderStrategy    string
	FixedFolder       string
	AlwaysOKOnFailure bool   // answer 200 even when the export was rejected
	ResponseFormat    string // json|legacy
	StrictValidation  bool
	LogRedact         bool
	SQLAdminEndpoint  string // empty uses the public Cloud SQL Admin API
	TriggerTokenHash  string // bcrypt hash; empty disables the token gate

	Wait         bool
	WaitTimeout  time.Duration
	PollInterval time.Duration

	LedgerDriver string // sqlite|postgres; empty disables the ledger
	LedgerPath   string // used when LedgerDriver=sqlite
	LedgerDsn    string // used when LedgerDriver=postgres

	GCSEndpoint  string
	GCSAccessKey string
	GCSSecret    string
}

func Load() *Config {
	cfg := &Config{
		Env:               getEnv("APP_ENV", "dev"),
		HttpPort:          getEnv("PORT", getEnv("HTTP_PORT", "8080")),
		FolderStrategy:    strings.ToLower(getEnv("FOLDER_STRATEGY", FolderMonthly)),
		FixedFolder:       getEnv("FIXED_FOLDER", "backups"),
		AlwaysOKOnFailure: getBool("ALWAYS_200_ON_FAILURE", false),
		ResponseFormat:    strings.ToLower(getEnv("RESPONSE_FORMAT", ResponseJSON)),
		StrictValidation:  getBool("STRICT_VALIDATION", false),
		LogRedact:         getBool("LOG_REDACT", false),
		SQLAdminEndpoint:  getEnv("SQLADMIN_ENDPOINT", ""),
		TriggerTokenHash:  getEnv("TRIGGER_TOKEN_HASH", ""),
		Wait:              getBool("EXPORT_WAIT", false),
		WaitTimeout:       getDuration("EXPORT_WAIT_TIMEOUT", 10*time.Minute),
		PollInterval:      getDuration("EXPORT_POLL_INTERVAL", 5*time.Second),
		LedgerDriver:      strings.ToLower(getEnv("LEDGER_DRIVER", "")),
		LedgerPath:        getEnv("LEDGER_PATH", "data/exports.db"),
		LedgerDsn:         getEnv("DATABASE_URL", getEnv("DB_DSN", "")),
		GCSEndpoint:       getEnv("GCS_ENDPOINT", "https://storage.googleapis.com"),
		GCSAccessKey:      getEnv("GCS_HMAC_ACCESS_KEY", ""),
		GCSSecret:         getEnv("GCS_HMAC_SECRET", ""),
	}
	if cfg.FolderStrategy != FolderFixed {
		cfg.FolderStrategy = FolderMonthly
	}
	if cfg.ResponseFormat != ResponseLegacy {
		cfg.ResponseFormat = ResponseJSON
	}
	return cfg
}

// ArtifactCheck reports whether HMAC keys for the GCS XML API are configured.
func (c *Config) ArtifactCheck() bool {
	return c.GCSAccessKey != "" && c.GCSSecret != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
