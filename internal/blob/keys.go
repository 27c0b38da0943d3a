// Package blob provides the durable object-store backends for the export
// pipeline: filesystem, S3-compatible, Azure Blob, and GCS, selected by
// configuration. All backends satisfy domain.BlobStore with whole-object
// overwrite semantics.
package blob

import (
	"context"
	"encoding/json"
	"fmt"

	"bi-atlas/internal/domain"
)

// Key conventions used by the pipeline.
const (
	SessionPrefix = "sessions/"
	AssetsPrefix  = "assets/"
	IndexKey      = "assets/index/master-index.json"
	CatalogKey    = "catalog/data-catalog.json"
)

// SessionKey returns the blob key for one export session record.
func SessionKey(sessionID string) string {
	return SessionPrefix + sessionID + ".json"
}

// AssetKey returns the blob key for one persisted asset.
func AssetKey(t domain.AssetType, assetID string) string {
	return fmt.Sprintf("%s%s/%s.json", AssetsPrefix, t, assetID)
}

// AssetPrefix returns the listing prefix for one asset type.
func AssetPrefix(t domain.AssetType) string {
	return fmt.Sprintf("%s%s/", AssetsPrefix, t)
}

// GetJSON fetches a blob and unmarshals it into v.
func GetJSON(ctx context.Context, store domain.BlobStore, key string, v interface{}) error {
	data, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// PutJSON marshals v and writes it as a whole-object overwrite.
func PutJSON(ctx context.Context, store domain.BlobStore, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Put(ctx, key, data)
}
