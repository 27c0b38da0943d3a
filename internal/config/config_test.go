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

// clearEnv unsets every variable LoadFromEnv reads so tests are hermetic.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LISTEN_ADDR", "LOG_LEVEL", "ENV", "META_DB_PATH",
		"BLOB_BACKEND", "BLOB_FS_PATH",
		"S3_ENDPOINT", "S3_REGION", "S3_KEY_ID", "S3_SECRET", "S3_BUCKET", "S3_PREFIX",
		"AZURE_ACCOUNT_NAME", "AZURE_ACCOUNT_KEY", "AZURE_CONTAINER",
		"GCS_BUCKET", "GCS_KEY_FILE",
		"SOURCE_BASE_URL", "SOURCE_ACCOUNT_ID", "SOURCE_API_TOKEN",
		"SOURCE_RPS", "SOURCE_BURST", "SOURCE_TIMEOUT",
		"EXPORT_PAGE_SIZE", "EXPORT_WORKER_POOL", "EXPORT_MAX_ATTEMPTS", "EXPORT_SCHEDULE",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SOURCE_BASE_URL", "https://bi.example.com/api")
	t.Setenv("SOURCE_ACCOUNT_ID", "acct-1")
}

func TestLoadFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "bi_atlas_meta.sqlite", cfg.MetaDBPath)
	assert.Equal(t, "fs", cfg.Blob.Backend)
	assert.Equal(t, "blob-data", cfg.Blob.FSPath)
	assert.NotEmpty(t, cfg.Warnings, "defaulted fs path should be surfaced")

	assert.Equal(t, float64(5), cfg.Source.RPS)
	assert.Equal(t, 10, cfg.Source.Burst)
	assert.Equal(t, 30*time.Second, cfg.Source.Timeout)

	assert.Equal(t, 100, cfg.Export.PageSize)
	assert.Equal(t, 3, cfg.Export.WorkerPool)
	assert.Equal(t, 5, cfg.Export.MaxAttempts)
	assert.Empty(t, cfg.Export.Schedule)

	assert.Equal(t, float64(100), cfg.RateLimitRPS)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("EXPORT_PAGE_SIZE", "50")
	t.Setenv("EXPORT_SCHEDULE", "0 3 * * *")
	t.Setenv("SOURCE_RPS", "2.5")
	t.Setenv("SOURCE_TIMEOUT", "10s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Export.PageSize)
	assert.Equal(t, "0 3 * * *", cfg.Export.Schedule)
	assert.Equal(t, 2.5, cfg.Source.RPS)
	assert.Equal(t, 10*time.Second, cfg.Source.Timeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoadFromEnvRequiresSource(t *testing.T) {
	clearEnv(t)

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCE_BASE_URL")

	t.Setenv("SOURCE_BASE_URL", "https://bi.example.com/api")
	_, err = LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCE_ACCOUNT_ID")
}

func TestLoadFromEnvS3BackendValidation(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("BLOB_BACKEND", "s3")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET")

	t.Setenv("S3_REGION", "eu-west-1")
	t.Setenv("S3_KEY_ID", "key")
	t.Setenv("S3_SECRET", "secret")
	t.Setenv("S3_BUCKET", "atlas-blobs")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.Blob.Backend)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnvUnknownBackend(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("BLOB_BACKEND", "tape")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown blob backend")
}

func TestLoadFromEnvProductionGuards(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("ENV", "production")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCE_API_TOKEN")

	t.Setenv("SOURCE_API_TOKEN", "tok")
	_, err = LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CORS")

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://atlas.example.com")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.in}
		assert.Equal(t, tt.want, cfg.SlogLevel(), "level %q", tt.in)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"# comment\n"+
			"SOURCE_BASE_URL=https://from-file.example.com\n"+
			"SOURCE_ACCOUNT_ID=\"quoted-acct\"\n"+
			"LOG_LEVEL='debug'\n"+
			"malformed line\n",
	), 0o644))

	// A preexisting env var wins over the file.
	t.Setenv("SOURCE_BASE_URL", "https://from-env.example.com")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "https://from-env.example.com", os.Getenv("SOURCE_BASE_URL"))
	assert.Equal(t, "quoted-acct", os.Getenv("SOURCE_ACCOUNT_ID"))
	assert.Equal(t, "debug", os.Getenv("LOG_LEVEL"))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}
