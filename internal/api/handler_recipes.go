package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"refinery/internal/domain"
	"refinery/internal/middleware"
)

type saveRecipeRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Steps       []domain.Step `json:"steps"`
}

func (s *Server) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	var req saveRecipeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	principal := middleware.PrincipalFromContext(r.Context())
	rec, err := s.recipes.Save(r.Context(), principal, domain.SaveRecipeRequest{
		Name:        req.Name,
		Description: req.Description,
		Steps:       req.Steps,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recipeToAPI(rec))
}

func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	recipes, total, err := s.recipes.List(r.Context(), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listToAPI(recipes, page, total, recipeToAPI))
}

func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	rec, err := s.recipes.GetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipeToAPI(rec))
}

func (s *Server) handleUpdateRecipe(w http.ResponseWriter, r *http.Request) {
	var req saveRecipeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	principal := middleware.PrincipalFromContext(r.Context())
	rec, err := s.recipes.Update(r.Context(), principal, chi.URLParam(r, "name"), domain.SaveRecipeRequest{
		Description: req.Description,
		Steps:       req.Steps,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipeToAPI(rec))
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if err := s.recipes.Delete(r.Context(), principal, chi.URLParam(r, "name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type applyRecipeRequest struct {
	// Datasets names one or more targets. A single-element batch behaves
	// exactly like a one-dataset apply.
	Datasets []string `json:"datasets"`
}

func (s *Server) handleApplyRecipe(w http.ResponseWriter, r *http.Request) {
	var req applyRecipeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	principal := middleware.PrincipalFromContext(r.Context())
	results, err := s.recipes.ApplyBatch(r.Context(), principal, chi.URLParam(r, "name"), req.Datasets)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleExportRecipe(w http.ResponseWriter, r *http.Request) {
	out, err := s.recipes.ExportYAML(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) handleImportRecipe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.writeError(w, r, domain.ErrValidation("read request body: %v", err))
		return
	}
	principal := middleware.PrincipalFromContext(r.Context())
	rec, err := s.recipes.ImportYAML(r.Context(), principal, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recipeToAPI(rec))
}
