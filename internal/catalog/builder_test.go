package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bi-atlas/internal/assets"
	"bi-atlas/internal/blob"
	"bi-atlas/internal/domain"
	"bi-atlas/internal/testutil"
)

func newTestBuilder(store *testutil.MemoryStore) (*Builder, *assets.Repository, *testutil.MockFieldMetadataRepo) {
	repo := assets.NewRepository(store)
	index := NewIndexBuilder(store, repo, testLogger())
	meta := testutil.NewMockFieldMetadataRepo()
	return NewBuilder(store, repo, index, meta, testLogger()), repo, meta
}

// salesDataset declares revenue/region/qty columns plus a "total" calculated
// field referencing two of them, backed by a postgres relational table.
func salesDataset() *domain.Asset {
	return &domain.Asset{
		ID: "ds-1", Name: "Sales", Type: domain.AssetTypeDataset,
		LastModified: time.Now(),
		Dataset: &domain.DatasetDefinition{
			ImportMode: domain.ImportModeMemory,
			PhysicalTables: []domain.PhysicalTable{{
				ID:            "tbl-1",
				Kind:          domain.TableKindRelational,
				DatasourceARN: "arn:qs:datasource/warehouse-postgres",
			}},
			OutputColumns: []domain.Column{
				{Name: "revenue", DataType: "DECIMAL"},
				{Name: "region", DataType: "STRING"},
				{Name: "qty", DataType: "INTEGER"},
			},
			CalculatedFields: []domain.CalculatedField{
				{Name: "total", Expression: "{revenue} * {qty}", DataType: "DECIMAL"},
			},
		},
	}
}

func salesAnalysis() *domain.Asset {
	return &domain.Asset{
		ID: "an-1", Name: "Sales Deep Dive", Type: domain.AssetTypeAnalysis,
		LastModified: time.Now(),
		Analysis: &domain.AnalysisDefinition{
			DatasetRefs:  []domain.DatasetRef{{Identifier: "sales", ARN: "arn:qs:dataset/ds-1"}},
			VisualFields: []domain.FieldRef{{FieldName: "revenue", DatasetIdentifier: "sales"}},
		},
	}
}

func salesDashboard() *domain.Asset {
	return &domain.Asset{
		ID: "dash-1", Name: "Sales Overview", Type: domain.AssetTypeDashboard,
		LastModified: time.Now(),
		Dashboard: &domain.DashboardDefinition{
			DatasetRefs:  []domain.DatasetRef{{DatasetID: "ds-1"}},
			VisualFields: []domain.FieldRef{{FieldName: "revenue", DatasetIdentifier: "ds-1"}},
		},
	}
}

func findField(t *testing.T, fields []domain.CatalogField, name string) *domain.CatalogField {
	t.Helper()
	for i := range fields {
		if fields[i].Name == name {
			return &fields[i]
		}
	}
	t.Fatalf("field %q not in catalog", name)
	return nil
}

func TestRebuildMergesFieldAcrossSources(t *testing.T) {
	store := testutil.NewMemoryStore()
	b, repo, _ := newTestBuilder(store)
	seedAssets(t, repo, salesDataset(), salesAnalysis(), salesDashboard())

	cat, err := b.Rebuild(context.Background())
	require.NoError(t, err)

	revenue := findField(t, cat.Fields, "revenue")
	require.Len(t, revenue.Sources, 3)
	assert.Equal(t, 2, revenue.UsageCount, "dataset definitions are not usage")
	assert.Equal(t, "DECIMAL", revenue.DataType)

	require.NotNil(t, revenue.Lineage)
	assert.Equal(t, "ds-1", revenue.Lineage.DatasetID)
	assert.Equal(t, "postgres", revenue.Lineage.DatasourceType)
	assert.Equal(t, []string{"an-1"}, revenue.Lineage.AnalysisIDs)
	assert.Equal(t, []string{"dash-1"}, revenue.Lineage.DashboardIDs)

	// Consumer sources resolved the dataset alias onto ds-1 attributes.
	for _, src := range revenue.Sources {
		assert.Equal(t, "ds-1", src.DatasetID)
		assert.Equal(t, domain.ImportModeMemory, src.ImportMode)
	}

	assert.Equal(t, 1, cat.TotalDatasets)
	assert.Equal(t, cat.TotalFields, len(cat.Fields))
	assert.Equal(t, cat.TotalCalculated, len(cat.CalculatedFields))
}

func TestRebuildMarksFieldsReferencedByExpressions(t *testing.T) {
	store := testutil.NewMemoryStore()
	b, repo, _ := newTestBuilder(store)
	seedAssets(t, repo, salesDataset())

	cat, err := b.Rebuild(context.Background())
	require.NoError(t, err)

	for _, name := range []string{"revenue", "qty"} {
		f := findField(t, cat.Fields, name)
		require.NotEmpty(t, f.Sources)
		assert.True(t, f.Sources[0].UsedInCalculatedField, "%s is referenced by the total expression", name)
	}
	region := findField(t, cat.Fields, "region")
	assert.False(t, region.Sources[0].UsedInCalculatedField)
}

func TestRebuildPlainAndCalculatedSameNameCollapse(t *testing.T) {
	store := testutil.NewMemoryStore()
	b, repo, _ := newTestBuilder(store)

	ds := salesDataset()
	an := salesAnalysis()
	// The analysis redefines "region" as a calculated field over the same
	// physical column name.
	an.Analysis.CalculatedFields = []domain.CalculatedField{
		{Name: "region", DatasetIdentifier: "sales", Expression: "toUpper({region})"},
	}
	seedAssets(t, repo, ds, an)

	cat, err := b.Rebuild(context.Background())
	require.NoError(t, err)

	region := findField(t, cat.CalculatedFields, "region")
	assert.True(t, region.IsCalculated)
	assert.Equal(t, "toUpper({region})", region.Expression)
	assert.Len(t, region.Sources, 2)
	for _, f := range cat.Fields {
		assert.NotEqual(t, "region", f.Name, "merged field must not appear twice")
	}
}

func TestRebuildRanksExpressionVariantsBySourceCount(t *testing.T) {
	store := testutil.NewMemoryStore()
	b, repo, _ := newTestBuilder(store)

	ds2 := salesDataset()
	ds2.ID = "ds-2"
	ds2.Name = "Sales EU"

	an1 := salesAnalysis()
	an1.Analysis.CalculatedFields = []domain.CalculatedField{
		{Name: "margin", DatasetIdentifier: "sales", Expression: "{revenue} - {cost}"},
	}
	an2 := salesAnalysis()
	an2.ID = "an-2"
	an2.Analysis.CalculatedFields = an1.Analysis.CalculatedFields

	dash := salesDashboard()
	dash.Dashboard.DatasetRefs = []domain.DatasetRef{{DatasetID: "ds-2"}}
	dash.Dashboard.VisualFields = nil
	dash.Dashboard.CalculatedFields = []domain.CalculatedField{
		{Name: "margin", DatasetIdentifier: "ds-2", Expression: "{revenue} * 0.4"},
	}
	seedAssets(t, repo, salesDataset(), ds2, an1, an2, dash)

	cat, err := b.Rebuild(context.Background())
	require.NoError(t, err)

	margin := findField(t, cat.CalculatedFields, "margin")
	assert.True(t, margin.HasVariants)
	require.Len(t, margin.Variants, 2)
	assert.Equal(t, "{revenue} - {cost}", margin.Expression, "majority expression wins")
	assert.Equal(t, margin.Expression, margin.Variants[0].Expression)
	assert.Len(t, margin.Variants[0].Sources, 2)
	assert.Len(t, margin.Variants[1].Sources, 1)
	assert.Equal(t, 3, margin.UsageCount)
}

func TestRebuildIsIdempotent(t *testing.T) {
	store := testutil.NewMemoryStore()
	b, repo, _ := newTestBuilder(store)
	seedAssets(t, repo, salesDataset(), salesAnalysis())

	first, err := b.Rebuild(context.Background())
	require.NoError(t, err)
	second, err := b.Rebuild(context.Background())
	require.NoError(t, err)

	require.Equal(t, len(first.Fields), len(second.Fields))
	for i := range first.Fields {
		assert.Equal(t, first.Fields[i].ID, second.Fields[i].ID, "field ids must survive rebuilds")
		assert.Equal(t, first.Fields[i].Name, second.Fields[i].Name)
	}
}

func TestGetReturnsCachedCatalog(t *testing.T) {
	store := testutil.NewMemoryStore()
	b, repo, _ := newTestBuilder(store)
	seedAssets(t, repo, salesDataset())

	_, err := b.Rebuild(context.Background())
	require.NoError(t, err)

	// A new dataset appears but Get serves the cached document.
	ds2 := salesDataset()
	ds2.ID = "ds-2"
	ds2.Dataset.OutputColumns = []domain.Column{{Name: "forecast", DataType: "DECIMAL"}}
	ds2.Dataset.CalculatedFields = nil
	seedAssets(t, repo, ds2)

	cached, err := b.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cached.TotalDatasets)

	rebuilt, err := b.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rebuilt.TotalDatasets)
	findField(t, rebuilt.Fields, "forecast")
}

func TestRebuildEmptyIndexNotCached(t *testing.T) {
	store := testutil.NewMemoryStore()
	b, _, _ := newTestBuilder(store)

	cat, err := b.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cat.Fields)
	assert.Empty(t, cat.CalculatedFields)

	var persisted domain.DataCatalog
	err = blob.GetJSON(context.Background(), store, blob.CatalogKey, &persisted)
	assert.True(t, domain.IsNotFound(err), "empty catalog must not be cached")
}

func TestRebuildAttachesFieldMetadata(t *testing.T) {
	store := testutil.NewMemoryStore()
	b, repo, meta := newTestBuilder(store)
	seedAssets(t, repo, salesDataset())

	_, err := meta.Upsert(context.Background(), &domain.FieldMetadata{
		DatasetID:      "ds-1",
		FieldName:      "revenue",
		Description:    "Gross revenue before returns",
		Classification: "internal",
	})
	require.NoError(t, err)

	cat, err := b.Rebuild(context.Background())
	require.NoError(t, err)

	revenue := findField(t, cat.Fields, "revenue")
	require.NotNil(t, revenue.Metadata)
	assert.Equal(t, "Gross revenue before returns", revenue.Metadata.Description)

	region := findField(t, cat.Fields, "region")
	assert.Nil(t, region.Metadata)
}

func TestDatasourceTypeFor(t *testing.T) {
	tests := []struct {
		name string
		def  *domain.DatasetDefinition
		want string
	}{
		{
			"no physical tables",
			&domain.DatasetDefinition{},
			"uploaded file",
		},
		{
			"object storage",
			&domain.DatasetDefinition{PhysicalTables: []domain.PhysicalTable{{Kind: domain.TableKindObjectStorage}}},
			"S3",
		},
		{
			"custom sql",
			&domain.DatasetDefinition{PhysicalTables: []domain.PhysicalTable{{Kind: domain.TableKindCustomSQL}}},
			"custom SQL",
		},
		{
			"relational with known engine",
			&domain.DatasetDefinition{PhysicalTables: []domain.PhysicalTable{{
				Kind: domain.TableKindRelational, DatasourceARN: "arn:qs:datasource/Snowflake-prod",
			}}},
			"snowflake",
		},
		{
			"relational unknown engine",
			&domain.DatasetDefinition{PhysicalTables: []domain.PhysicalTable{{
				Kind: domain.TableKindRelational, DatasourceARN: "arn:qs:datasource/legacy",
			}}},
			"relational database",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, datasourceTypeFor(tt.def))
		})
	}
}
