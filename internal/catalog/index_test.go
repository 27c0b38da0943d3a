package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bi-atlas/internal/assets"
	"bi-atlas/internal/blob"
	"bi-atlas/internal/domain"
	"bi-atlas/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedAssets(t *testing.T, repo *assets.Repository, list ...*domain.Asset) {
	t.Helper()
	for _, a := range list {
		require.NoError(t, repo.Save(context.Background(), a))
	}
}

func TestIndexRebuildProjectsAllTypes(t *testing.T) {
	store := testutil.NewMemoryStore()
	repo := assets.NewRepository(store)
	seedAssets(t, repo,
		&domain.Asset{
			ID: "dash-1", Name: "Sales Overview", Type: domain.AssetTypeDashboard,
			LastModified: time.Now(),
			Dashboard:    &domain.DashboardDefinition{},
		},
		&domain.Asset{
			ID: "ds-1", Name: "Sales", Type: domain.AssetTypeDataset,
			Dataset: &domain.DatasetDefinition{ImportMode: domain.ImportModeDirectQuery},
		},
		&domain.Asset{
			ID: "src-1", Name: "Warehouse", Type: domain.AssetTypeDatasource,
			Datasource: &domain.DatasourceDefinition{Kind: "postgresql"},
		},
	)

	b := NewIndexBuilder(store, repo, testLogger())
	ix, err := b.Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, ix.Count())
	require.Len(t, ix.Assets[domain.AssetTypeDataset], 1)
	assert.Equal(t, domain.ImportModeDirectQuery, ix.Assets[domain.AssetTypeDataset][0].ImportMode)
	require.Len(t, ix.Assets[domain.AssetTypeDatasource], 1)
	assert.Equal(t, "postgresql", ix.Assets[domain.AssetTypeDatasource][0].DatasourceKind)
	assert.Empty(t, ix.Assets[domain.AssetTypeAnalysis])

	// The rebuild replaces the persisted index blob.
	var persisted domain.AssetIndex
	require.NoError(t, blob.GetJSON(context.Background(), store, blob.IndexKey, &persisted))
	assert.Equal(t, 3, persisted.Count())
}

func TestIndexGetRebuildsWhenMissing(t *testing.T) {
	store := testutil.NewMemoryStore()
	repo := assets.NewRepository(store)
	seedAssets(t, repo, &domain.Asset{
		ID: "an-1", Name: "Churn", Type: domain.AssetTypeAnalysis,
		Analysis: &domain.AnalysisDefinition{},
	})

	b := NewIndexBuilder(store, repo, testLogger())
	ix, err := b.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Count())
}

func TestIndexGetPrefersPersisted(t *testing.T) {
	store := testutil.NewMemoryStore()
	repo := assets.NewRepository(store)

	stale := &domain.AssetIndex{
		GeneratedAt: time.Now().Add(-time.Hour),
		Assets: map[domain.AssetType][]domain.AssetIndexEntry{
			domain.AssetTypeDashboard: {{ID: "dash-old", Type: domain.AssetTypeDashboard}},
		},
	}
	require.NoError(t, blob.PutJSON(context.Background(), store, blob.IndexKey, stale))

	// A newer asset exists but Get must not rebuild on its own.
	seedAssets(t, repo, &domain.Asset{
		ID: "dash-new", Name: "New", Type: domain.AssetTypeDashboard,
		Dashboard: &domain.DashboardDefinition{},
	})

	b := NewIndexBuilder(store, repo, testLogger())
	ix, err := b.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, ix.Assets[domain.AssetTypeDashboard], 1)
	assert.Equal(t, "dash-old", ix.Assets[domain.AssetTypeDashboard][0].ID)
}
