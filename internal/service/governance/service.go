// Package governance provides the audit trail and retention sweeping.
package governance

import (
	"context"

	"refinery/internal/domain"
)

// AuditService exposes the governance audit trail.
type AuditService struct {
	audit domain.AuditRepository
}

// NewAuditService creates an audit service.
func NewAuditService(audit domain.AuditRepository) *AuditService {
	return &AuditService{audit: audit}
}

// List returns a page of audit entries, newest first.
func (s *AuditService) List(ctx context.Context, page domain.PageRequest) ([]domain.AuditEntry, int64, error) {
	return s.audit.List(ctx, page)
}
