// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Blob backend names accepted in BLOB_BACKEND.
const (
	BackendFilesystem = "fs"
	BackendS3         = "s3"
	BackendGCS        = "gcs"
	BackendAzure      = "azure"
)

// BlobConfig selects and configures the content-addressable store backend.
type BlobConfig struct {
	Backend string // fs (default), s3, gcs, azure
	Prefix  string // object key prefix for cloud backends (default "blobs")

	// Filesystem
	Root string // blob root directory (default "refinery_blobs")

	// S3 (or any S3-compatible endpoint)
	S3KeyID    string
	S3Secret   string
	S3Region   string
	S3Bucket   string
	S3Endpoint string

	// GCS
	GCSBucket  string
	GCSKeyFile string

	// Azure Blob Storage
	AzureAccountName string
	AzureAccountKey  string
	AzureContainer   string
}

// Validate checks that the selected backend has its required settings.
func (b *BlobConfig) Validate() error {
	switch b.Backend {
	case BackendFilesystem:
		return nil
	case BackendS3:
		if b.S3KeyID == "" || b.S3Secret == "" || b.S3Region == "" || b.S3Bucket == "" {
			return fmt.Errorf("s3 backend requires S3_KEY_ID, S3_SECRET, S3_REGION, and S3_BUCKET")
		}
	case BackendGCS:
		if b.GCSBucket == "" {
			return fmt.Errorf("gcs backend requires GCS_BUCKET")
		}
	case BackendAzure:
		if b.AzureAccountName == "" || b.AzureAccountKey == "" || b.AzureContainer == "" {
			return fmt.Errorf("azure backend requires AZURE_ACCOUNT_NAME, AZURE_ACCOUNT_KEY, and AZURE_CONTAINER")
		}
	default:
		return fmt.Errorf("unknown blob backend %q: must be fs, s3, gcs, or azure", b.Backend)
	}
	return nil
}

// Config holds the configuration for the HTTP server and the engine.
type Config struct {
	MetaDBPath string // path to the SQLite metadata file
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// Blob holds content-addressable store backend selection.
	Blob BlobConfig

	// Engine tuning.
	PreviewSampleRows int     // preview sample size (default 1000)
	LossWarnThreshold float64 // drop_missing estimated-loss warning threshold (default 0.5)
	StoreAttempts     int     // blob retry attempts on storage unavailability (default 3)
	StoreBackoff      time.Duration

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins (default: ["*"])

	// Retention
	SweepSchedule  string        // cron spec for the retention sweeper (default "@hourly")
	JobRetention   time.Duration // terminal apply job retention (default 168h)
	AuditRetention time.Duration // audit entry retention (default 720h; 0 disables)

	// Warnings collects non-fatal warnings generated during loading. They
	// are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables and applies
// defaults. A filesystem blob backend works with no configuration at all.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		MetaDBPath: os.Getenv("META_DB_PATH"),
		ListenAddr: os.Getenv("LISTEN_ADDR"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
		Env:        os.Getenv("ENV"),
		Blob: BlobConfig{
			Backend:          strings.ToLower(os.Getenv("BLOB_BACKEND")),
			Prefix:           os.Getenv("BLOB_PREFIX"),
			Root:             os.Getenv("BLOB_ROOT"),
			S3KeyID:          os.Getenv("S3_KEY_ID"),
			S3Secret:         os.Getenv("S3_SECRET"),
			S3Region:         os.Getenv("S3_REGION"),
			S3Bucket:         os.Getenv("S3_BUCKET"),
			S3Endpoint:       os.Getenv("S3_ENDPOINT"),
			GCSBucket:        os.Getenv("GCS_BUCKET"),
			GCSKeyFile:       os.Getenv("GCS_KEY_FILE"),
			AzureAccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
			AzureAccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),
			AzureContainer:   os.Getenv("AZURE_CONTAINER"),
		},
		SweepSchedule: os.Getenv("SWEEP_SCHEDULE"),
	}

	if v := os.Getenv("PREVIEW_SAMPLE_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PreviewSampleRows = n
		}
	}
	if v := os.Getenv("LOSS_WARN_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 1 {
			return nil, fmt.Errorf("LOSS_WARN_THRESHOLD must be a float in (0, 1], got %q", v)
		}
		cfg.LossWarnThreshold = f
	}
	if v := os.Getenv("STORE_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.StoreAttempts = n
		}
	}
	if v := os.Getenv("STORE_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StoreBackoff = d
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}
	if v := os.Getenv("JOB_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.JobRetention = d
		}
	}
	if v := os.Getenv("AUDIT_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AuditRetention = d
		}
	}

	// Defaults
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "refinery_meta.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Blob.Backend == "" {
		cfg.Blob.Backend = BackendFilesystem
	}
	if cfg.Blob.Root == "" {
		cfg.Blob.Root = "refinery_blobs"
	}
	if cfg.PreviewSampleRows == 0 {
		cfg.PreviewSampleRows = 1000
	}
	if cfg.LossWarnThreshold == 0 {
		cfg.LossWarnThreshold = 0.5
	}
	if cfg.StoreAttempts == 0 {
		cfg.StoreAttempts = 3
	}
	if cfg.StoreBackoff == 0 {
		cfg.StoreBackoff = 500 * time.Millisecond
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "@hourly"
	}
	if cfg.JobRetention == 0 {
		cfg.JobRetention = 7 * 24 * time.Hour
	}
	if cfg.AuditRetention == 0 {
		cfg.AuditRetention = 30 * 24 * time.Hour
	}

	if err := cfg.Blob.Validate(); err != nil {
		return nil, err
	}

	if cfg.Blob.Backend == BackendFilesystem && cfg.IsProduction() {
		cfg.Warnings = append(cfg.Warnings, "filesystem blob backend in production — blobs are not replicated")
	}
	if cfg.IsProduction() && len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
		return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. Lines must be KEY=VALUE; comments (#) and blanks are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Real environment variables take precedence.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
