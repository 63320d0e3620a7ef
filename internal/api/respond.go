package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"refinery/internal/domain"
	"refinery/internal/middleware"
)

// apiError is the error body shape for every non-2xx response.
type apiError struct {
	Code    int                      `json:"code"`
	Message string                   `json:"message"`
	Report  *domain.ValidationReport `json:"report,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders a domain error. Validation rejections carry their
// report so callers see the per-step findings without a second request.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromDomainError(err)
	body := apiError{Code: status, Message: err.Error()}

	var rejected *domain.ValidationRejectedError
	if errors.As(err, &rejected) {
		body.Report = rejected.Report
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"error", err)
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.ErrValidation("decode request body: %v", err)
	}
	return nil
}

func pageFromQuery(r *http.Request) domain.PageRequest {
	page := domain.PageRequest{PageToken: r.URL.Query().Get("page_token")}
	if v := r.URL.Query().Get("max_results"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.MaxResults = n
		}
	}
	return page
}
