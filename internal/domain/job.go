package domain

import "time"

// ApplyJobStatus represents the lifecycle state of an async apply job.
type ApplyJobStatus string

// Apply job lifecycle statuses.
const (
	ApplyJobStatusQueued    ApplyJobStatus = "QUEUED"
	ApplyJobStatusRunning   ApplyJobStatus = "RUNNING"
	ApplyJobStatusSucceeded ApplyJobStatus = "SUCCEEDED"
	ApplyJobStatusFailed    ApplyJobStatus = "FAILED"
	ApplyJobStatusCanceled  ApplyJobStatus = "CANCELED"
)

// Terminal reports whether the status is final.
func (s ApplyJobStatus) Terminal() bool {
	return s == ApplyJobStatusSucceeded || s == ApplyJobStatusFailed || s == ApplyJobStatusCanceled
}

// ApplyJob stores durable state for an asynchronous applyTransformation.
// Callers poll it by id; cancellation releases the dataset lock and leaves
// the head unchanged.
type ApplyJob struct {
	ID              string
	DatasetID       string
	RequestID       string
	Steps           []Step
	Status          ApplyJobStatus
	Attempt         int
	ResultVersionID *string
	ReportID        *string
	ErrorMessage    *string
	CreatedBy       string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	UpdatedAt       time.Time
}
