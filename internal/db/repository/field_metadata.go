// Package repository implements domain repositories over the SQLite
// field-metadata store.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bi-atlas/internal/domain"
)

// FieldMetadataRepo stores operator-supplied field documentation keyed by
// (dataset id, field name). Writes go through the single-connection write
// pool; reads use the read pool.
type FieldMetadataRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewFieldMetadataRepo creates a repository over the given SQLite pools.
func NewFieldMetadataRepo(writeDB, readDB *sql.DB) *FieldMetadataRepo {
	return &FieldMetadataRepo{writeDB: writeDB, readDB: readDB}
}

var _ domain.FieldMetadataRepository = (*FieldMetadataRepo)(nil)

func (r *FieldMetadataRepo) Get(ctx context.Context, datasetID, fieldName string) (*domain.FieldMetadata, error) {
	row := r.readDB.QueryRowContext(ctx, `
		SELECT dataset_id, field_name, description, classification, tags, updated_at
		FROM field_metadata
		WHERE dataset_id = ? AND field_name = ?`,
		datasetID, fieldName,
	)
	meta, err := scanFieldMetadata(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return meta, nil
}

func (r *FieldMetadataRepo) Upsert(ctx context.Context, meta *domain.FieldMetadata) (*domain.FieldMetadata, error) {
	if meta.DatasetID == "" || meta.FieldName == "" {
		return nil, domain.ErrValidation("dataset id and field name are required")
	}

	tags, err := json.Marshal(meta.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	if meta.Tags == nil {
		tags = []byte("[]")
	}
	updatedAt := meta.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = r.writeDB.ExecContext(ctx, `
		INSERT INTO field_metadata (dataset_id, field_name, description, classification, tags, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (dataset_id, field_name) DO UPDATE SET
			description    = excluded.description,
			classification = excluded.classification,
			tags           = excluded.tags,
			updated_at     = excluded.updated_at`,
		meta.DatasetID, meta.FieldName, meta.Description, meta.Classification, string(tags), updatedAt,
	)
	if err != nil {
		return nil, mapDBError(err)
	}

	return r.Get(ctx, meta.DatasetID, meta.FieldName)
}

func (r *FieldMetadataRepo) Delete(ctx context.Context, datasetID, fieldName string) error {
	res, err := r.writeDB.ExecContext(ctx, `
		DELETE FROM field_metadata
		WHERE dataset_id = ? AND field_name = ?`,
		datasetID, fieldName,
	)
	if err != nil {
		return mapDBError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound("field metadata %s/%s not found", datasetID, fieldName)
	}
	return nil
}

func (r *FieldMetadataRepo) List(ctx context.Context) ([]domain.FieldMetadata, error) {
	rows, err := r.readDB.QueryContext(ctx, `
		SELECT dataset_id, field_name, description, classification, tags, updated_at
		FROM field_metadata
		ORDER BY dataset_id, field_name`)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close()

	var out []domain.FieldMetadata
	for rows.Next() {
		meta, err := scanFieldMetadata(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *meta)
	}
	return out, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFieldMetadata(s scanner) (*domain.FieldMetadata, error) {
	var meta domain.FieldMetadata
	var tags string
	if err := s.Scan(&meta.DatasetID, &meta.FieldName, &meta.Description, &meta.Classification, &tags, &meta.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &meta.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return &meta, nil
}

func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Message: "resource not found"}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &domain.ConflictError{Message: "resource already exists"}
	}
	return err
}
