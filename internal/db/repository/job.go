package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"refinery/internal/domain"
)

// ApplyJobRepo persists async apply job state in SQLite. Status
// transitions go through the Mark* methods so that timestamps and terminal
// state stay consistent.
type ApplyJobRepo struct {
	db *sql.DB
}

var _ domain.ApplyJobRepository = (*ApplyJobRepo)(nil)

// NewApplyJobRepo creates an apply job repository.
func NewApplyJobRepo(db *sql.DB) *ApplyJobRepo {
	return &ApplyJobRepo{db: db}
}

const jobColumns = `id, dataset_id, request_id, steps_json, status, attempt, result_version_id, report_id, error_message, created_by, created_at, started_at, completed_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (*domain.ApplyJob, error) {
	var j domain.ApplyJob
	var stepsJSON, status string
	var resultVersion, reportID, errMsg sql.NullString
	var started, completed sql.NullTime
	if err := row.Scan(&j.ID, &j.DatasetID, &j.RequestID, &stepsJSON, &status, &j.Attempt,
		&resultVersion, &reportID, &errMsg, &j.CreatedBy, &j.CreatedAt, &started, &completed, &j.UpdatedAt); err != nil {
		return nil, mapDBError(err)
	}
	j.Status = domain.ApplyJobStatus(status)
	j.ResultVersionID = strPtr(resultVersion)
	j.ReportID = strPtr(reportID)
	j.ErrorMessage = strPtr(errMsg)
	j.StartedAt = timePtr(started)
	j.CompletedAt = timePtr(completed)
	steps, err := domain.DecodeSteps(stepsJSON)
	if err != nil {
		return nil, fmt.Errorf("decode steps for job %s: %w", j.ID, err)
	}
	j.Steps = steps
	return &j, nil
}

// Create inserts a queued job. The unique (dataset_id, request_id) index
// makes duplicate submissions surface as ConflictError.
func (r *ApplyJobRepo) Create(ctx context.Context, j *domain.ApplyJob) (*domain.ApplyJob, error) {
	stepsJSON, err := domain.EncodeSteps(j.Steps)
	if err != nil {
		return nil, fmt.Errorf("encode steps: %w", err)
	}
	ts := now()
	j.CreatedAt = ts
	j.UpdatedAt = ts
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO apply_jobs (id, dataset_id, request_id, steps_json, status, attempt, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.DatasetID, j.RequestID, stepsJSON, string(j.Status), j.Attempt, j.CreatedBy, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return j, nil
}

// GetByID returns the job with the given id.
func (r *ApplyJobRepo) GetByID(ctx context.Context, id string) (*domain.ApplyJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM apply_jobs WHERE id = ?`, id)
	return scanJob(row)
}

// GetByRequestID returns the job submitted for a dataset with the given
// idempotency request id.
func (r *ApplyJobRepo) GetByRequestID(ctx context.Context, datasetID, requestID string) (*domain.ApplyJob, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM apply_jobs WHERE dataset_id = ? AND request_id = ?`,
		datasetID, requestID)
	return scanJob(row)
}

// ListByDataset returns a page of jobs for a dataset, newest first.
func (r *ApplyJobRepo) ListByDataset(ctx context.Context, datasetID string, page domain.PageRequest) ([]domain.ApplyJob, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM apply_jobs WHERE dataset_id = ?`, datasetID).Scan(&total); err != nil {
		return nil, 0, mapDBError(err)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM apply_jobs
		WHERE dataset_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		datasetID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, mapDBError(err)
	}
	defer rows.Close()

	var out []domain.ApplyJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *j)
	}
	return out, total, mapDBError(rows.Err())
}

// MarkRunning transitions a queued job to RUNNING, or bumps the attempt
// counter of an already-running job on retry. A terminal job (e.g.
// canceled before the worker picked it up) is left untouched and NotFound
// is returned.
func (r *ApplyJobRepo) MarkRunning(ctx context.Context, id string, attempt int) error {
	ts := now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE apply_jobs SET status = ?, attempt = ?, started_at = COALESCE(started_at, ?), updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(domain.ApplyJobStatusRunning), attempt, ts, ts, id,
		string(domain.ApplyJobStatusQueued), string(domain.ApplyJobStatusRunning))
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Message: "queued job not found: " + id}
	}
	return nil
}

// MarkSucceeded records a successful apply.
func (r *ApplyJobRepo) MarkSucceeded(ctx context.Context, id, resultVersionID, reportID string) error {
	return r.finish(ctx, id, domain.ApplyJobStatusSucceeded, nullStr(resultVersionID), nullStr(reportID), sql.NullString{})
}

// MarkFailed records a failed apply with its error message. The report id
// is present when validation produced a report before rejection.
func (r *ApplyJobRepo) MarkFailed(ctx context.Context, id string, errMsg string, reportID *string) error {
	return r.finish(ctx, id, domain.ApplyJobStatusFailed, sql.NullString{}, nullStrPtr(reportID), nullStr(errMsg))
}

// MarkCanceled transitions a non-terminal job to CANCELED.
func (r *ApplyJobRepo) MarkCanceled(ctx context.Context, id string) error {
	ts := now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE apply_jobs SET status = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(domain.ApplyJobStatusCanceled), ts, ts, id,
		string(domain.ApplyJobStatusQueued), string(domain.ApplyJobStatusRunning))
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Message: "active job not found: " + id}
	}
	return nil
}

func (r *ApplyJobRepo) finish(ctx context.Context, id string, status domain.ApplyJobStatus, resultVersion, reportID, errMsg sql.NullString) error {
	ts := now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE apply_jobs SET status = ?, result_version_id = ?, report_id = ?, error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ?`,
		string(status), resultVersion, reportID, errMsg, ts, ts, id)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Message: "job not found: " + id}
	}
	return nil
}

// PurgeTerminalOlderThan deletes terminal jobs completed before the cutoff
// and returns how many rows were removed.
func (r *ApplyJobRepo) PurgeTerminalOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM apply_jobs
		WHERE status IN (?, ?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		string(domain.ApplyJobStatusSucceeded), string(domain.ApplyJobStatusFailed), string(domain.ApplyJobStatusCanceled), before)
	if err != nil {
		return 0, mapDBError(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
