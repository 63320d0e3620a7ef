package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("META_DB_PATH", "")
	t.Setenv("BLOB_BACKEND", "")
	t.Setenv("LOSS_WARN_THRESHOLD", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "refinery_meta.sqlite", cfg.MetaDBPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, BackendFilesystem, cfg.Blob.Backend)
	assert.Equal(t, "refinery_blobs", cfg.Blob.Root)
	assert.Equal(t, 1000, cfg.PreviewSampleRows)
	assert.InDelta(t, 0.5, cfg.LossWarnThreshold, 1e-9)
	assert.Equal(t, 3, cfg.StoreAttempts)
	assert.Equal(t, "@hourly", cfg.SweepSchedule)
	assert.Equal(t, 7*24*time.Hour, cfg.JobRetention)
}

func TestLoadFromEnv_S3Backend(t *testing.T) {
	t.Setenv("BLOB_BACKEND", "s3")
	t.Setenv("S3_KEY_ID", "testkey")
	t.Setenv("S3_SECRET", "testsecret")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_BUCKET", "test-bucket")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendS3, cfg.Blob.Backend)
	assert.Equal(t, "test-bucket", cfg.Blob.S3Bucket)
	assert.Equal(t, "http://localhost:9000", cfg.Blob.S3Endpoint)
}

func TestLoadFromEnv_IncompleteS3Fails(t *testing.T) {
	t.Setenv("BLOB_BACKEND", "s3")
	t.Setenv("S3_KEY_ID", "testkey")
	t.Setenv("S3_SECRET", "")
	t.Setenv("S3_REGION", "")
	t.Setenv("S3_BUCKET", "")

	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnv_UnknownBackendFails(t *testing.T) {
	t.Setenv("BLOB_BACKEND", "tape")
	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnv_ThresholdValidation(t *testing.T) {
	t.Setenv("LOSS_WARN_THRESHOLD", "1.5")
	_, err := LoadFromEnv()
	require.Error(t, err)

	t.Setenv("LOSS_WARN_THRESHOLD", "0.25")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.InDelta(t, 0.25, cfg.LossWarnThreshold, 1e-9)
}

func TestLoadFromEnv_ProductionCORSWildcardFails(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	_, err := LoadFromEnv()
	require.Error(t, err)

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSAllowedOrigins)
}

func TestSlogLevel(t *testing.T) {
	for input, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"WARNING": slog.LevelWarn,
	} {
		cfg := &Config{LogLevel: input}
		assert.Equal(t, want, cfg.SlogLevel(), "level %q", input)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nBLOB_ROOT=/data/blobs\nLOG_LEVEL=\"debug\"\n\nNOT_A_PAIR\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("BLOB_ROOT", "")
	t.Setenv("LOG_LEVEL", "warn") // real env wins

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "/data/blobs", os.Getenv("BLOB_ROOT"))
	assert.Equal(t, "warn", os.Getenv("LOG_LEVEL"))

	// Missing file is not an error.
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
