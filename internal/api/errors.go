package api

import (
	"errors"
	"net/http"

	"refinery/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
// Rejected validations are 422: the request was well-formed, the step
// sequence is semantically unprocessable against the target schema.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	var conflict *domain.ConflictError
	var rejected *domain.ValidationRejectedError
	var concurrent *domain.ConcurrentWriteError
	var unavailable *domain.StorageUnavailableError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &rejected):
		return http.StatusUnprocessableEntity
	case errors.As(err, &conflict), errors.As(err, &concurrent):
		return http.StatusConflict
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	default:
		// ExecutionError and LineageCorruptionError are server-side
		// defects and deliberately map to 500.
		return http.StatusInternalServerError
	}
}
