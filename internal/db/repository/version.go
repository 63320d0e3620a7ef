package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"refinery/internal/domain"
)

// VersionRepo persists immutable dataset versions in SQLite.
type VersionRepo struct {
	db *sql.DB
}

var _ domain.VersionRepository = (*VersionRepo)(nil)

// NewVersionRepo creates a version repository.
func NewVersionRepo(db *sql.DB) *VersionRepo {
	return &VersionRepo{db: db}
}

const versionColumns = `id, dataset_id, content_hash, parent_version_id, row_count, column_count, schema_json, created_by, created_at`

func scanVersion(row interface{ Scan(...any) error }) (*domain.DatasetVersion, error) {
	var v domain.DatasetVersion
	var parent sql.NullString
	var schemaJSON string
	if err := row.Scan(&v.ID, &v.DatasetID, &v.ContentHash, &parent, &v.RowCount, &v.ColumnCount, &schemaJSON, &v.CreatedBy, &v.CreatedAt); err != nil {
		return nil, mapDBError(err)
	}
	v.ParentVersionID = strPtr(parent)
	var s domain.Schema
	if err := json.Unmarshal([]byte(schemaJSON), &s); err != nil {
		return nil, fmt.Errorf("decode schema for version %s: %w", v.ID, err)
	}
	v.Schema = &s
	return &v, nil
}

// Create inserts a new version row.
func (r *VersionRepo) Create(ctx context.Context, v *domain.DatasetVersion) (*domain.DatasetVersion, error) {
	schemaJSON, err := json.Marshal(v.Schema)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	v.CreatedAt = now()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO dataset_versions (id, dataset_id, content_hash, parent_version_id, row_count, column_count, schema_json, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.DatasetID, v.ContentHash, nullStrPtr(v.ParentVersionID), v.RowCount, v.ColumnCount, string(schemaJSON), v.CreatedBy, v.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return v, nil
}

// GetByID returns the version with the given id.
func (r *VersionRepo) GetByID(ctx context.Context, id string) (*domain.DatasetVersion, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM dataset_versions WHERE id = ?`, id)
	return scanVersion(row)
}

// ListByDataset returns a page of versions for a dataset, newest first.
func (r *VersionRepo) ListByDataset(ctx context.Context, datasetID string, page domain.PageRequest) ([]domain.DatasetVersion, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dataset_versions WHERE dataset_id = ?`, datasetID).Scan(&total); err != nil {
		return nil, 0, mapDBError(err)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+versionColumns+` FROM dataset_versions
		WHERE dataset_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		datasetID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, mapDBError(err)
	}
	defer rows.Close()

	var out []domain.DatasetVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *v)
	}
	return out, total, mapDBError(rows.Err())
}

// FindByContentHash returns an existing version of the dataset with the
// given content hash, or NotFound. Used for dedup on no-op applies.
func (r *VersionRepo) FindByContentHash(ctx context.Context, datasetID, hash string) (*domain.DatasetVersion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+` FROM dataset_versions
		WHERE dataset_id = ? AND content_hash = ?
		ORDER BY created_at ASC, id ASC LIMIT 1`, datasetID, hash)
	return scanVersion(row)
}

// CountByContentHash reports how many versions reference the given blob.
func (r *VersionRepo) CountByContentHash(ctx context.Context, hash string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dataset_versions WHERE content_hash = ?`, hash).Scan(&n)
	return n, mapDBError(err)
}
