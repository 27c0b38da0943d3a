// Package assets provides the persistence layer for exported BI assets on
// top of the blob store: one JSON blob per asset at a type-partitioned key.
package assets

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"bi-atlas/internal/blob"
	"bi-atlas/internal/domain"
)

// Load concurrency bounds. Types with large asset counts load with the lower
// bound to cap peak memory.
const (
	loadConcurrency      = 6
	loadConcurrencyLarge = 3
	largeTypeThreshold   = 500
)

// Repository reads and writes per-asset blobs.
type Repository struct {
	store domain.BlobStore
}

// NewRepository creates an asset repository over the given blob store.
func NewRepository(store domain.BlobStore) *Repository {
	return &Repository{store: store}
}

// Get loads one asset blob.
func (r *Repository) Get(ctx context.Context, t domain.AssetType, id string) (*domain.Asset, error) {
	var asset domain.Asset
	if err := blob.GetJSON(ctx, r.store, blob.AssetKey(t, id), &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// Save persists one asset as a whole-object overwrite.
func (r *Repository) Save(ctx context.Context, asset *domain.Asset) error {
	if asset.ID == "" {
		return domain.ErrValidation("asset id is required")
	}
	return blob.PutJSON(ctx, r.store, blob.AssetKey(asset.Type, asset.ID), asset)
}

// ListObjects returns the stored object infos for one asset type.
func (r *Repository) ListObjects(ctx context.Context, t domain.AssetType) ([]domain.ObjectInfo, error) {
	return r.store.List(ctx, blob.AssetPrefix(t))
}

// LoadType loads every persisted asset of one type with bounded concurrency.
// Unreadable blobs are skipped rather than failing the whole load; the
// returned slice preserves listing order.
func (r *Repository) LoadType(ctx context.Context, t domain.AssetType) ([]*domain.Asset, error) {
	objects, err := r.ListObjects(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("list %s blobs: %w", t, err)
	}

	limit := loadConcurrency
	if len(objects) > largeTypeThreshold {
		limit = loadConcurrencyLarge
	}

	loaded := make([]*domain.Asset, len(objects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, obj := range objects {
		g.Go(func() error {
			var asset domain.Asset
			if err := blob.GetJSON(gctx, r.store, obj.Key, &asset); err != nil {
				return nil // skip unreadable blob
			}
			if asset.SizeBytes == 0 {
				asset.SizeBytes = obj.Size
			}
			loaded[i] = &asset
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*domain.Asset, 0, len(loaded))
	for _, a := range loaded {
		if a != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

// LoadAll loads every persisted asset across all four types, keyed by type.
func (r *Repository) LoadAll(ctx context.Context) (map[domain.AssetType][]*domain.Asset, error) {
	out := make(map[domain.AssetType][]*domain.Asset, len(domain.AllAssetTypes))
	for _, t := range domain.AllAssetTypes {
		loaded, err := r.LoadType(ctx, t)
		if err != nil {
			return nil, err
		}
		out[t] = loaded
	}
	return out, nil
}
