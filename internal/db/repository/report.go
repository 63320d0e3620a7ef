package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"refinery/internal/domain"
)

// ReportRepo persists validation reports in SQLite.
type ReportRepo struct {
	db *sql.DB
}

var _ domain.ReportRepository = (*ReportRepo)(nil)

// NewReportRepo creates a validation report repository.
func NewReportRepo(db *sql.DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// Create inserts a report. Assigns an id if the report has none.
func (r *ReportRepo) Create(ctx context.Context, report *domain.ValidationReport) (*domain.ValidationReport, error) {
	findings := report.Findings
	if findings == nil {
		findings = []domain.Finding{}
	}
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		return nil, fmt.Errorf("encode findings: %w", err)
	}
	if report.ID == "" {
		report.ID = domain.NewID()
	}
	report.CreatedAt = now()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO validation_reports (id, status, findings_json, created_at)
		VALUES (?, ?, ?, ?)`,
		report.ID, string(report.Status), string(findingsJSON), report.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return report, nil
}

// GetByID returns the report with the given id.
func (r *ReportRepo) GetByID(ctx context.Context, id string) (*domain.ValidationReport, error) {
	var report domain.ValidationReport
	var status, findingsJSON string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, status, findings_json, created_at FROM validation_reports WHERE id = ?`, id).
		Scan(&report.ID, &status, &findingsJSON, &report.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	report.Status = domain.ReportStatus(status)
	if err := json.Unmarshal([]byte(findingsJSON), &report.Findings); err != nil {
		return nil, fmt.Errorf("decode findings for report %s: %w", id, err)
	}
	return &report, nil
}
