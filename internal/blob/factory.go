package blob

import (
	"context"
	"fmt"

	"bi-atlas/internal/config"
	"bi-atlas/internal/domain"
)

// NewFromConfig creates the blob store backend selected by configuration.
func NewFromConfig(ctx context.Context, cfg *config.BlobConfig) (domain.BlobStore, error) {
	switch cfg.Backend {
	case "fs":
		return NewFSStore(cfg.FSPath)
	case "s3":
		return NewS3Store(S3Options{
			Endpoint: cfg.S3Endpoint,
			Region:   cfg.S3Region,
			KeyID:    cfg.S3KeyID,
			Secret:   cfg.S3Secret,
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
		})
	case "azure":
		return NewAzureStore(AzureOptions{
			AccountName: cfg.AzureAccountName,
			AccountKey:  cfg.AzureAccountKey,
			Container:   cfg.AzureContainer,
		})
	case "gcs":
		return NewGCSStore(ctx, GCSOptions{
			Bucket:      cfg.GCSBucket,
			KeyFilePath: cfg.GCSKeyFile,
		})
	default:
		return nil, fmt.Errorf("unsupported blob backend %q", cfg.Backend)
	}
}
