package repository

import (
	"context"
	"database/sql"

	"refinery/internal/domain"
)

// DatasetRepo persists datasets in SQLite.
type DatasetRepo struct {
	db *sql.DB
}

var _ domain.DatasetRepository = (*DatasetRepo)(nil)

// NewDatasetRepo creates a dataset repository.
func NewDatasetRepo(db *sql.DB) *DatasetRepo {
	return &DatasetRepo{db: db}
}

const datasetColumns = `id, name, description, head_version_id, created_by, created_at, updated_at`

func scanDataset(row interface{ Scan(...any) error }) (*domain.Dataset, error) {
	var d domain.Dataset
	var head sql.NullString
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &head, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, mapDBError(err)
	}
	d.HeadVersionID = strPtr(head)
	return &d, nil
}

// Create inserts a new dataset.
func (r *DatasetRepo) Create(ctx context.Context, d *domain.Dataset) (*domain.Dataset, error) {
	ts := now()
	d.CreatedAt = ts
	d.UpdatedAt = ts
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO datasets (id, name, description, head_version_id, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Description, nullStrPtr(d.HeadVersionID), d.CreatedBy, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return d, nil
}

// GetByID returns the dataset with the given id.
func (r *DatasetRepo) GetByID(ctx context.Context, id string) (*domain.Dataset, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE id = ?`, id)
	return scanDataset(row)
}

// GetByName returns the dataset with the given unique name.
func (r *DatasetRepo) GetByName(ctx context.Context, name string) (*domain.Dataset, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE name = ?`, name)
	return scanDataset(row)
}

// List returns a page of datasets ordered by name.
func (r *DatasetRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Dataset, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM datasets`).Scan(&total); err != nil {
		return nil, 0, mapDBError(err)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+datasetColumns+` FROM datasets
		ORDER BY name LIMIT ? OFFSET ?`, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, mapDBError(err)
	}
	defer rows.Close()

	var out []domain.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, mapDBError(rows.Err())
}

// UpdateHead moves the dataset's head pointer to a new version.
func (r *DatasetRepo) UpdateHead(ctx context.Context, id, headVersionID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE datasets SET head_version_id = ?, updated_at = ? WHERE id = ?`,
		headVersionID, now(), id)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Message: "dataset not found: " + id}
	}
	return nil
}
