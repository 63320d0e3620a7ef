package api

import (
	"net/http"

	"refinery/internal/domain"
)

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	entries, total, err := s.audit.List(r.Context(), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listToAPI(entries, page, total, func(e *domain.AuditEntry) auditEntryDTO {
		return auditEntryToAPI(*e)
	}))
}
