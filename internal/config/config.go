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

// BlobConfig selects and parameterizes the blob store backend.
type BlobConfig struct {
	Backend string // "fs" (default), "s3", "azure", "gcs"

	FSPath string // fs backend root directory

	S3Endpoint string // optional; empty for AWS default endpoints
	S3Region   string
	S3KeyID    string
	S3Secret   string
	S3Bucket   string
	S3Prefix   string

	AzureAccountName string
	AzureAccountKey  string
	AzureContainer   string

	GCSBucket  string
	GCSKeyFile string
}

// Validate checks that the selected backend has its required fields.
func (b *BlobConfig) Validate() error {
	switch b.Backend {
	case "fs":
		if b.FSPath == "" {
			return fmt.Errorf("BLOB_FS_PATH is required for the fs backend")
		}
	case "s3":
		if b.S3Region == "" || b.S3KeyID == "" || b.S3Secret == "" || b.S3Bucket == "" {
			return fmt.Errorf("S3_REGION, S3_KEY_ID, S3_SECRET, and S3_BUCKET are required for the s3 backend")
		}
	case "azure":
		if b.AzureAccountName == "" || b.AzureAccountKey == "" || b.AzureContainer == "" {
			return fmt.Errorf("AZURE_ACCOUNT_NAME, AZURE_ACCOUNT_KEY, and AZURE_CONTAINER are required for the azure backend")
		}
	case "gcs":
		if b.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown blob backend %q (must be fs, s3, azure, or gcs)", b.Backend)
	}
	return nil
}

// SourceConfig holds the BI provider API connection settings.
type SourceConfig struct {
	BaseURL   string  // provider API base URL
	AccountID string  // provider account / tenant id
	APIToken  string  // bearer token for the provider API
	RPS       float64 // client-side sustained request rate (default 5)
	Burst     int     // client-side burst (default 10)
	Timeout   time.Duration
}

// Validate checks that the provider connection is configured.
func (s *SourceConfig) Validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("SOURCE_BASE_URL is required")
	}
	if s.AccountID == "" {
		return fmt.Errorf("SOURCE_ACCOUNT_ID is required")
	}
	return nil
}

// ExportConfig holds export pipeline tuning knobs.
type ExportConfig struct {
	PageSize    int    // listing page size (default 100)
	WorkerPool  int    // per-type enrichment concurrency (default 3)
	MaxAttempts int    // page fetch attempts before giving up (default 5)
	Schedule    string // cron expression for scheduled full exports; empty disables
}

// Config holds the full configuration for the bi-atlas server.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // debug, info, warn, error (default "info")
	Env        string // "development" (default) or "production"
	MetaDBPath string // path to the field-metadata SQLite file

	Blob   BlobConfig
	Source SourceConfig
	Export ExportConfig

	// API rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins (default: ["*"])

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
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

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr: os.Getenv("LISTEN_ADDR"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
		Env:        os.Getenv("ENV"),
		MetaDBPath: os.Getenv("META_DB_PATH"),
		Blob: BlobConfig{
			Backend:          os.Getenv("BLOB_BACKEND"),
			FSPath:           os.Getenv("BLOB_FS_PATH"),
			S3Endpoint:       os.Getenv("S3_ENDPOINT"),
			S3Region:         os.Getenv("S3_REGION"),
			S3KeyID:          os.Getenv("S3_KEY_ID"),
			S3Secret:         os.Getenv("S3_SECRET"),
			S3Bucket:         os.Getenv("S3_BUCKET"),
			S3Prefix:         os.Getenv("S3_PREFIX"),
			AzureAccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
			AzureAccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),
			AzureContainer:   os.Getenv("AZURE_CONTAINER"),
			GCSBucket:        os.Getenv("GCS_BUCKET"),
			GCSKeyFile:       os.Getenv("GCS_KEY_FILE"),
		},
		Source: SourceConfig{
			BaseURL:   os.Getenv("SOURCE_BASE_URL"),
			AccountID: os.Getenv("SOURCE_ACCOUNT_ID"),
			APIToken:  os.Getenv("SOURCE_API_TOKEN"),
		},
		Export: ExportConfig{
			Schedule: os.Getenv("EXPORT_SCHEDULE"),
		},
	}

	if v := os.Getenv("SOURCE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Source.RPS = f
		}
	}
	if v := os.Getenv("SOURCE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Source.Burst = n
		}
	}
	if v := os.Getenv("SOURCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Source.Timeout = d
		}
	}
	if v := os.Getenv("EXPORT_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Export.PageSize = n
		}
	}
	if v := os.Getenv("EXPORT_WORKER_POOL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Export.WorkerPool = n
		}
	}
	if v := os.Getenv("EXPORT_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Export.MaxAttempts = n
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

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "bi_atlas_meta.sqlite"
	}
	if cfg.Blob.Backend == "" {
		cfg.Blob.Backend = "fs"
	}
	if cfg.Blob.Backend == "fs" && cfg.Blob.FSPath == "" {
		cfg.Blob.FSPath = "blob-data"
		cfg.Warnings = append(cfg.Warnings, "BLOB_FS_PATH not set — using ./blob-data")
	}
	if cfg.Source.RPS == 0 {
		cfg.Source.RPS = 5
	}
	if cfg.Source.Burst == 0 {
		cfg.Source.Burst = 10
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = 30 * time.Second
	}
	if cfg.Export.PageSize == 0 {
		cfg.Export.PageSize = 100
	}
	if cfg.Export.WorkerPool == 0 {
		cfg.Export.WorkerPool = 3
	}
	if cfg.Export.MaxAttempts == 0 {
		cfg.Export.MaxAttempts = 5
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

	if err := cfg.Blob.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Source.Validate(); err != nil {
		return nil, err
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.Source.APIToken == "" {
			return nil, fmt.Errorf("SOURCE_API_TOKEN must be set in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

// LoadDotEnv reads KEY=VALUE pairs from the given file into the process
// environment. Existing environment variables take precedence. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
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
		// Env vars take precedence over .env entries.
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
