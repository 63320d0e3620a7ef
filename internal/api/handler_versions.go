package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.versioning.GetVersion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versionToAPI(v))
}

// handleGetVersionData streams the materialized canonical CSV bytes.
func (s *Server) handleGetVersionData(w http.ResponseWriter, r *http.Request) {
	data, err := s.versioning.GetMaterializedDataset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleGetVersionSchema(w http.ResponseWriter, r *http.Request) {
	v, err := s.versioning.GetVersion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v.Schema)
}

func (s *Server) handleGetLineage(w http.ResponseWriter, r *http.Request) {
	entries, err := s.lineage.Ancestors(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lineage": lineageToAPI(entries)})
}

func (s *Server) handleGetDescendants(w http.ResponseWriter, r *http.Request) {
	entries, err := s.lineage.Descendants(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"descendants": lineageToAPI(entries)})
}

func (s *Server) handleCompareVersions(w http.ResponseWriter, r *http.Request) {
	diff, err := s.lineage.Diff(r.Context(), chi.URLParam(r, "a"), chi.URLParam(r, "b"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}
