package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bi-atlas/internal/assets"
	"bi-atlas/internal/blob"
	"bi-atlas/internal/domain"
)

// IndexBuilder flattens every persisted asset blob into one consolidated
// index document so read endpoints never re-list the blob store.
type IndexBuilder struct {
	store  domain.BlobStore
	repo   *assets.Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewIndexBuilder creates an index builder over the given blob store.
func NewIndexBuilder(store domain.BlobStore, repo *assets.Repository, logger *slog.Logger) *IndexBuilder {
	return &IndexBuilder{
		store:  store,
		repo:   repo,
		logger: logger.With("component", "index"),
		now:    time.Now,
	}
}

// Get returns the persisted index, rebuilding it when none exists yet.
func (b *IndexBuilder) Get(ctx context.Context) (*domain.AssetIndex, error) {
	var ix domain.AssetIndex
	err := blob.GetJSON(ctx, b.store, blob.IndexKey, &ix)
	if err == nil {
		return &ix, nil
	}
	if !domain.IsNotFound(err) {
		return nil, fmt.Errorf("load index: %w", err)
	}
	return b.Rebuild(ctx)
}

// Rebuild loads every persisted asset for all four types and writes a fresh
// consolidated index. Always a full rebuild, safe to re-run at any time.
func (b *IndexBuilder) Rebuild(ctx context.Context) (*domain.AssetIndex, error) {
	start := b.now()

	loaded, err := b.repo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}

	ix := &domain.AssetIndex{
		GeneratedAt: b.now(),
		Assets:      make(map[domain.AssetType][]domain.AssetIndexEntry, len(domain.AllAssetTypes)),
	}
	for _, t := range domain.AllAssetTypes {
		typed := loaded[t]
		entries := make([]domain.AssetIndexEntry, 0, len(typed))
		for _, a := range typed {
			entries = append(entries, indexEntry(a))
		}
		ix.Assets[t] = entries
	}

	if err := blob.PutJSON(ctx, b.store, blob.IndexKey, ix); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}

	b.logger.Info("asset index rebuilt",
		"assets", ix.Count(),
		"duration", b.now().Sub(start).Round(time.Millisecond),
	)
	return ix, nil
}

// indexEntry projects one asset onto its denormalized index row.
func indexEntry(a *domain.Asset) domain.AssetIndexEntry {
	e := domain.AssetIndexEntry{
		ID:           a.ID,
		Name:         a.Name,
		Type:         a.Type,
		SizeBytes:    a.SizeBytes,
		LastExported: a.LastExported,
		LastModified: a.LastModified,
		Tags:         a.Tags,
		Permissions:  a.Permissions,
	}
	if a.Dataset != nil {
		e.ImportMode = a.Dataset.ImportMode
	}
	if a.Datasource != nil {
		e.DatasourceKind = a.Datasource.Kind
	}
	return e
}
