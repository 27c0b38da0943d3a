package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bi-atlas/internal/db"
	"bi-atlas/internal/domain"
)

func newTestRepo(t *testing.T) *FieldMetadataRepo {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meta.sqlite")
	writeDB, readDB, err := db.OpenSQLitePair(path, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = readDB.Close()
		_ = writeDB.Close()
	})
	require.NoError(t, db.RunMigrations(writeDB))
	return NewFieldMetadataRepo(writeDB, readDB)
}

func TestFieldMetadataUpsertAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	stored, err := repo.Upsert(ctx, &domain.FieldMetadata{
		DatasetID:      "ds-1",
		FieldName:      "revenue",
		Description:    "Gross revenue before returns",
		Classification: "internal",
		Tags:           []string{"finance", "core"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ds-1", stored.DatasetID)
	assert.Equal(t, []string{"finance", "core"}, stored.Tags)
	assert.False(t, stored.UpdatedAt.IsZero())

	got, err := repo.Get(ctx, "ds-1", "revenue")
	require.NoError(t, err)
	assert.Equal(t, "Gross revenue before returns", got.Description)
	assert.Equal(t, "internal", got.Classification)
}

func TestFieldMetadataUpsertOverwrites(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, &domain.FieldMetadata{
		DatasetID: "ds-1", FieldName: "revenue", Description: "v1",
	})
	require.NoError(t, err)

	updated, err := repo.Upsert(ctx, &domain.FieldMetadata{
		DatasetID: "ds-1", FieldName: "revenue",
		Description: "v2", Classification: "confidential",
		UpdatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Description)
	assert.Equal(t, "confidential", updated.Classification)
	assert.Equal(t, 2026, updated.UpdatedAt.Year())

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFieldMetadataUpsertValidation(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Upsert(context.Background(), &domain.FieldMetadata{FieldName: "revenue"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = repo.Upsert(context.Background(), &domain.FieldMetadata{DatasetID: "ds-1"})
	require.ErrorAs(t, err, &verr)
}

func TestFieldMetadataNilTagsStoredAsEmptyList(t *testing.T) {
	repo := newTestRepo(t)

	stored, err := repo.Upsert(context.Background(), &domain.FieldMetadata{
		DatasetID: "ds-1", FieldName: "region",
	})
	require.NoError(t, err)
	assert.NotNil(t, stored)
	assert.Empty(t, stored.Tags)
}

func TestFieldMetadataGetMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), "ds-1", "ghost")
	assert.True(t, domain.IsNotFound(err))
}

func TestFieldMetadataDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, &domain.FieldMetadata{DatasetID: "ds-1", FieldName: "revenue"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "ds-1", "revenue"))
	_, err = repo.Get(ctx, "ds-1", "revenue")
	assert.True(t, domain.IsNotFound(err))

	err = repo.Delete(ctx, "ds-1", "revenue")
	assert.True(t, domain.IsNotFound(err))
}

func TestFieldMetadataListOrdered(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, pair := range [][2]string{
		{"ds-2", "alpha"},
		{"ds-1", "zeta"},
		{"ds-1", "alpha"},
	} {
		_, err := repo.Upsert(ctx, &domain.FieldMetadata{DatasetID: pair[0], FieldName: pair[1]})
		require.NoError(t, err)
	}

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ds-1", all[0].DatasetID)
	assert.Equal(t, "alpha", all[0].FieldName)
	assert.Equal(t, "zeta", all[1].FieldName)
	assert.Equal(t, "ds-2", all[2].DatasetID)
}
