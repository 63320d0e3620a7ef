package repository

import (
	"context"
	"database/sql"
	"time"

	"refinery/internal/domain"
)

// AuditRepo persists the governance audit trail in SQLite.
type AuditRepo struct {
	db *sql.DB
}

var _ domain.AuditRepository = (*AuditRepo)(nil)

// NewAuditRepo creates an audit repository.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Insert appends an audit entry. Assigns an id if the entry has none.
func (r *AuditRepo) Insert(ctx context.Context, e *domain.AuditEntry) error {
	if e.ID == "" {
		e.ID = domain.NewID()
	}
	e.CreatedAt = now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, principal_name, action, dataset_id, detail, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.PrincipalName, e.Action, nullStrPtr(e.DatasetID), e.Detail, e.Status, e.CreatedAt)
	return mapDBError(err)
}

// List returns a page of audit entries, newest first.
func (r *AuditRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.AuditEntry, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&total); err != nil {
		return nil, 0, mapDBError(err)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, principal_name, action, dataset_id, detail, status, created_at
		FROM audit_log
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, mapDBError(err)
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var datasetID sql.NullString
		if err := rows.Scan(&e.ID, &e.PrincipalName, &e.Action, &datasetID, &e.Detail, &e.Status, &e.CreatedAt); err != nil {
			return nil, 0, mapDBError(err)
		}
		e.DatasetID = strPtr(datasetID)
		out = append(out, e)
	}
	return out, total, mapDBError(rows.Err())
}

// PurgeOlderThan deletes entries created before the cutoff.
func (r *AuditRepo) PurgeOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < ?`, before)
	if err != nil {
		return 0, mapDBError(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
