package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"refinery/internal/middleware"
)

func (s *Server) handleGetApplyJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.versioning.GetApplyJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobToAPI(job))
}

func (s *Server) handleCancelApplyJob(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	jobID := chi.URLParam(r, "id")
	if err := s.versioning.CancelApply(r.Context(), principal, jobID); err != nil {
		s.writeError(w, r, err)
		return
	}
	job, err := s.versioning.GetApplyJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobToAPI(job))
}
