package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"refinery/internal/domain"
	"refinery/internal/middleware"
)

type createDatasetRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Data carries the raw CSV payload, header row included.
	Data string `json:"data"`
}

type createDatasetResponse struct {
	Dataset datasetDTO `json:"dataset"`
	Version versionDTO `json:"version"`
}

func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var req createDatasetRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	principal := middleware.PrincipalFromContext(r.Context())
	ds, root, err := s.versioning.CreateInitialVersion(r.Context(), principal, domain.CreateDatasetRequest{
		Name:        req.Name,
		Description: req.Description,
		Data:        []byte(req.Data),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createDatasetResponse{
		Dataset: datasetToAPI(ds),
		Version: versionToAPI(root),
	})
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	datasets, total, err := s.versioning.ListDatasets(r.Context(), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listToAPI(datasets, page, total, datasetToAPI))
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.versioning.GetDatasetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, datasetToAPI(ds))
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	ds, err := s.versioning.GetDatasetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page := pageFromQuery(r)
	versions, total, err := s.versioning.ListVersions(r.Context(), ds.ID, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listToAPI(versions, page, total, versionToAPI))
}

type stepsRequest struct {
	Steps []domain.Step `json:"steps"`
	// RequestID makes apply submissions idempotent. Optional; previews
	// ignore it.
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	ds, err := s.versioning.GetDatasetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req stepsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.versioning.PreviewTransformation(r.Context(), ds.ID, req.Steps)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, previewToAPI(res))
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	ds, err := s.versioning.GetDatasetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req stepsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	principal := middleware.PrincipalFromContext(r.Context())
	job, err := s.versioning.SubmitApply(r.Context(), principal, ds.ID, req.Steps, req.RequestID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobToAPI(job))
}
