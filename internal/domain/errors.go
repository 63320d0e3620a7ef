// Package domain defines core types, interfaces, and errors for the
// transformation and dataset versioning engine.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input (malformed request, bad parameters).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ValidationRejectedError indicates a transformation step sequence was
// rejected by the validation engine. The attached report carries the
// per-step findings; callers must fix the sequence and resubmit — it is
// never retried automatically.
type ValidationRejectedError struct {
	Report *ValidationReport
}

func (e *ValidationRejectedError) Error() string {
	if e.Report == nil || len(e.Report.Findings) == 0 {
		return "transformation rejected by validation"
	}
	f := e.Report.Findings[0]
	return fmt.Sprintf("transformation rejected at step %d: %s", f.StepIndex, f.Message)
}

// ExecutionError indicates a transformation failed mid-execution. The
// dataset head is untouched when this is returned; the failure is treated
// as a defect and logged.
type ExecutionError struct {
	StepIndex int
	Message   string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed at step %d: %s", e.StepIndex, e.Message)
}

// StorageUnavailableError indicates the blob backend or metadata store is
// unreachable. Retried with bounded backoff at the service boundary before
// being surfaced.
type StorageUnavailableError struct {
	Message string
	Cause   error
}

func (e *StorageUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("storage unavailable: %s: %v", e.Message, e.Cause)
	}
	return "storage unavailable: " + e.Message
}

func (e *StorageUnavailableError) Unwrap() error { return e.Cause }

// ConcurrentWriteError indicates another apply already holds the
// per-dataset write lock. Callers should retry later; the in-flight
// operation is not affected.
type ConcurrentWriteError struct {
	DatasetID string
}

func (e *ConcurrentWriteError) Error() string {
	return fmt.Sprintf("dataset %s has an apply in flight", e.DatasetID)
}

// LineageCorruptionError indicates a cycle or dangling parent reference in
// the lineage graph. This must never occur by construction; it is logged
// for investigation and never repaired automatically.
type LineageCorruptionError struct {
	VersionID string
	Message   string
}

func (e *LineageCorruptionError) Error() string {
	return fmt.Sprintf("lineage corruption at version %s: %s", e.VersionID, e.Message)
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrStorageUnavailable wraps a backend error as a StorageUnavailableError.
func ErrStorageUnavailable(cause error, format string, args ...interface{}) *StorageUnavailableError {
	return &StorageUnavailableError{Message: fmt.Sprintf(format, args...), Cause: cause}
}
