package domain

import (
	"context"
	"time"
)

// ObjectInfo describes one stored blob returned from a prefix listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// BlobStore is the durable key/value object store the pipeline writes to.
// Keys are hierarchical strings; all writes are whole-object overwrites.
// Get returns a NotFoundError for missing keys.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// AssetSummary is one item from a provider listing page.
type AssetSummary struct {
	ID            string    `json:"id"`
	ARN           string    `json:"arn,omitempty"`
	Name          string    `json:"name"`
	Type          AssetType `json:"type"`
	LastUpdated   time.Time `json:"lastUpdated"`
	ImportMode    string    `json:"importMode,omitempty"`    // datasets
	SourceKind    string    `json:"sourceKind,omitempty"`    // datasources
	LastPublished time.Time `json:"lastPublished,omitempty"` // dashboards
}

// SummaryPage is one page of listing results with an optional continuation.
type SummaryPage struct {
	Items     []AssetSummary
	NextToken string
}

// AssetLister lists one asset type's remote catalog page by page. Provider
// quirks (the legacy datasource path) hide behind this interface.
type AssetLister interface {
	AssetType() AssetType
	ListPage(ctx context.Context, nextToken string, pageSize int) (*SummaryPage, error)
}

// AssetSource is the provider API surface the processors consume: per-type
// listing plus detail and enrichment fetches. All calls are subject to rate
// limiting; implementations must return ThrottlingError or
// ServiceUnavailableError for transient failures so callers can branch.
type AssetSource interface {
	Lister(t AssetType) AssetLister
	GetAsset(ctx context.Context, t AssetType, id string) (*Asset, error)
	GetPermissions(ctx context.Context, t AssetType, id string) ([]Permission, error)
	GetTags(ctx context.Context, t AssetType, id string) ([]Tag, error)
}

// FieldMetadataRepository stores operator-supplied field documentation,
// keyed by (dataset id, field name).
type FieldMetadataRepository interface {
	Get(ctx context.Context, datasetID, fieldName string) (*FieldMetadata, error)
	Upsert(ctx context.Context, meta *FieldMetadata) (*FieldMetadata, error)
	Delete(ctx context.Context, datasetID, fieldName string) error
	List(ctx context.Context) ([]FieldMetadata, error)
}
