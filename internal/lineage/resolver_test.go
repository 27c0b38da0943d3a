package lineage

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bi-atlas/internal/assets"
	"bi-atlas/internal/domain"
	"bi-atlas/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedChain persists Dash1 -> An1 -> Ds1 -> Src1.
func seedChain(t *testing.T, repo *assets.Repository) {
	t.Helper()
	ctx := context.Background()
	for _, a := range []*domain.Asset{
		{
			ID: "src-1", Name: "Warehouse", Type: domain.AssetTypeDatasource,
			Datasource: &domain.DatasourceDefinition{Kind: "postgresql"},
		},
		{
			ID: "ds-1", Name: "Sales", Type: domain.AssetTypeDataset,
			Dataset: &domain.DatasetDefinition{
				PhysicalTables: []domain.PhysicalTable{{
					ID: "tbl-1", Kind: domain.TableKindRelational,
					DatasourceARN: "arn:qs:datasource/src-1",
				}},
			},
		},
		{
			ID: "an-1", Name: "Sales Deep Dive", Type: domain.AssetTypeAnalysis,
			Analysis: &domain.AnalysisDefinition{
				DatasetRefs: []domain.DatasetRef{{ARN: "arn:qs:dataset/ds-1"}},
			},
		},
		{
			ID: "dash-1", Name: "Sales Overview", Type: domain.AssetTypeDashboard,
			Dashboard: &domain.DashboardDefinition{
				SourceAnalysisARN: "arn:qs:analysis/an-1",
				DatasetRefs:       []domain.DatasetRef{{DatasetID: "ds-1"}},
			},
		},
	} {
		require.NoError(t, repo.Save(ctx, a))
	}
}

func relTargets(lin *domain.AssetLineage, rel domain.RelationshipType) []string {
	var out []string
	for _, r := range lin.Relationships {
		if r.Type == rel {
			out = append(out, r.TargetID)
		}
	}
	return out
}

func TestResolveAllDirectAndTransitiveEdges(t *testing.T) {
	repo := assets.NewRepository(testutil.NewMemoryStore())
	seedChain(t, repo)

	all, err := NewResolver(repo, testLogger()).ResolveAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 4)

	dash := all["dash-1"]
	require.NotNil(t, dash)
	// Direct edges to the source analysis and dataset, plus the transitive
	// edge straight to the datasource.
	assert.ElementsMatch(t, []string{"an-1", "ds-1", "src-1"}, relTargets(dash, domain.RelationshipUses))

	src := all["src-1"]
	require.NotNil(t, src)
	assert.ElementsMatch(t, []string{"ds-1", "an-1", "dash-1"}, relTargets(src, domain.RelationshipUsedBy))
	assert.Empty(t, relTargets(src, domain.RelationshipUses))

	an := all["an-1"]
	assert.ElementsMatch(t, []string{"ds-1", "src-1"}, relTargets(an, domain.RelationshipUses))
	assert.ElementsMatch(t, []string{"dash-1"}, relTargets(an, domain.RelationshipUsedBy))
}

func TestResolveEdgesAreSymmetric(t *testing.T) {
	repo := assets.NewRepository(testutil.NewMemoryStore())
	seedChain(t, repo)

	all, err := NewResolver(repo, testLogger()).ResolveAll(context.Background())
	require.NoError(t, err)

	for id, node := range all {
		for _, rel := range node.Relationships {
			peer := all[rel.TargetID]
			require.NotNil(t, peer, "edge target %s must be a node", rel.TargetID)
			inverse := domain.RelationshipUsedBy
			if rel.Type == domain.RelationshipUsedBy {
				inverse = domain.RelationshipUses
			}
			assert.Contains(t, relTargets(peer, inverse), id,
				"%s %s %s must have an inverse edge", id, rel.Type, rel.TargetID)
		}
	}
}

func TestResolveDeduplicatesRepeatedReferences(t *testing.T) {
	repo := assets.NewRepository(testutil.NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &domain.Asset{
		ID: "ds-1", Name: "Sales", Type: domain.AssetTypeDataset,
		Dataset: &domain.DatasetDefinition{},
	}))
	// Two visuals referencing the same dataset produce duplicate refs.
	require.NoError(t, repo.Save(ctx, &domain.Asset{
		ID: "an-1", Name: "Churn", Type: domain.AssetTypeAnalysis,
		Analysis: &domain.AnalysisDefinition{
			DatasetRefs: []domain.DatasetRef{
				{Identifier: "a", DatasetID: "ds-1"},
				{Identifier: "b", DatasetID: "ds-1"},
			},
		},
	}))

	all, err := NewResolver(repo, testLogger()).ResolveAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"ds-1"}, relTargets(all["an-1"], domain.RelationshipUses))
	assert.Equal(t, []string{"an-1"}, relTargets(all["ds-1"], domain.RelationshipUsedBy))
}

func TestResolveSkipsDanglingReferences(t *testing.T) {
	repo := assets.NewRepository(testutil.NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &domain.Asset{
		ID: "dash-1", Name: "Orphan", Type: domain.AssetTypeDashboard,
		Dashboard: &domain.DashboardDefinition{
			SourceAnalysisARN: "arn:qs:analysis/deleted-analysis",
			DatasetRefs:       []domain.DatasetRef{{DatasetID: "deleted-dataset"}},
		},
	}))

	all, err := NewResolver(repo, testLogger()).ResolveAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Empty(t, all["dash-1"].Relationships)
}

func TestResolveSingleAsset(t *testing.T) {
	repo := assets.NewRepository(testutil.NewMemoryStore())
	seedChain(t, repo)
	r := NewResolver(repo, testLogger())

	lin, err := r.Resolve(context.Background(), "ds-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AssetTypeDataset, lin.AssetType)
	assert.ElementsMatch(t, []string{"src-1"}, relTargets(lin, domain.RelationshipUses))
	assert.ElementsMatch(t, []string{"an-1", "dash-1"}, relTargets(lin, domain.RelationshipUsedBy))

	_, err = r.Resolve(context.Background(), "nope")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}
