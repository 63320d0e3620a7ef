package domain

import "time"

// AuditEntry records a mutating operation for the governance trail.
type AuditEntry struct {
	ID            string
	PrincipalName string
	Action        string
	DatasetID     *string
	Detail        string
	Status        string // "success" or "error"
	CreatedAt     time.Time
}
