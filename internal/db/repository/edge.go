package repository

import (
	"context"
	"database/sql"
	"fmt"

	"refinery/internal/domain"
)

// EdgeRepo persists transformation configs, the edges of the lineage DAG.
type EdgeRepo struct {
	db *sql.DB
}

var _ domain.EdgeRepository = (*EdgeRepo)(nil)

// NewEdgeRepo creates a lineage edge repository.
func NewEdgeRepo(db *sql.DB) *EdgeRepo {
	return &EdgeRepo{db: db}
}

const edgeColumns = `id, dataset_id, source_version_id, result_version_id, steps_json, validation_report_id, applied_by, applied_at`

func scanEdge(row interface{ Scan(...any) error }) (*domain.TransformationConfig, error) {
	var c domain.TransformationConfig
	var stepsJSON string
	if err := row.Scan(&c.ID, &c.DatasetID, &c.SourceVersionID, &c.ResultVersionID, &stepsJSON, &c.ValidationReportID, &c.AppliedBy, &c.AppliedAt); err != nil {
		return nil, mapDBError(err)
	}
	steps, err := domain.DecodeSteps(stepsJSON)
	if err != nil {
		return nil, fmt.Errorf("decode steps for config %s: %w", c.ID, err)
	}
	c.Steps = steps
	return &c, nil
}

// Create inserts a lineage edge. The UNIQUE constraint on result_version_id
// guarantees at most one inbound edge per version.
func (r *EdgeRepo) Create(ctx context.Context, c *domain.TransformationConfig) (*domain.TransformationConfig, error) {
	stepsJSON, err := domain.EncodeSteps(c.Steps)
	if err != nil {
		return nil, fmt.Errorf("encode steps: %w", err)
	}
	c.AppliedAt = now()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transformation_configs (id, dataset_id, source_version_id, result_version_id, steps_json, validation_report_id, applied_by, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.DatasetID, c.SourceVersionID, c.ResultVersionID, stepsJSON, c.ValidationReportID, c.AppliedBy, c.AppliedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return c, nil
}

// GetByResultVersion returns the single inbound edge of a version, or
// NotFound for roots.
func (r *EdgeRepo) GetByResultVersion(ctx context.Context, resultVersionID string) (*domain.TransformationConfig, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+edgeColumns+` FROM transformation_configs WHERE result_version_id = ?`, resultVersionID)
	return scanEdge(row)
}

// ListBySourceVersion returns all outbound edges of a version.
func (r *EdgeRepo) ListBySourceVersion(ctx context.Context, sourceVersionID string) ([]domain.TransformationConfig, error) {
	return r.list(ctx, `SELECT `+edgeColumns+` FROM transformation_configs WHERE source_version_id = ? ORDER BY applied_at ASC, id ASC`, sourceVersionID)
}

// ListByDataset returns every edge in a dataset's lineage graph.
func (r *EdgeRepo) ListByDataset(ctx context.Context, datasetID string) ([]domain.TransformationConfig, error) {
	return r.list(ctx, `SELECT `+edgeColumns+` FROM transformation_configs WHERE dataset_id = ? ORDER BY applied_at ASC, id ASC`, datasetID)
}

func (r *EdgeRepo) list(ctx context.Context, query string, args ...any) ([]domain.TransformationConfig, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close()

	var out []domain.TransformationConfig
	for rows.Next() {
		c, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, mapDBError(rows.Err())
}
