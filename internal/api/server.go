// Package api exposes the engine over HTTP: datasets, versions, lineage,
// previews, applies, recipes, and the audit trail.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"refinery/internal/middleware"
	"refinery/internal/service/governance"
	"refinery/internal/service/lineage"
	"refinery/internal/service/recipe"
	"refinery/internal/service/versioning"
)

// Server holds the services behind the HTTP API.
type Server struct {
	versioning *versioning.Service
	recipes    *recipe.Service
	lineage    *lineage.Service
	audit      *governance.AuditService
	logger     *slog.Logger
}

// NewServer creates the API server.
func NewServer(vs *versioning.Service, rs *recipe.Service, ls *lineage.Service, as *governance.AuditService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{versioning: vs, recipes: rs, lineage: ls, audit: as, logger: logger}
}

// RouterConfig holds router-level middleware settings.
type RouterConfig struct {
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
}

// Router builds the chi router with the full middleware stack and all
// routes mounted under /v1.
func (s *Server) Router(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	if cfg.RateLimitRPS > 0 {
		r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		}))
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.PrincipalHeader, "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Principal)

		r.Route("/datasets", func(r chi.Router) {
			r.Post("/", s.handleCreateDataset)
			r.Get("/", s.handleListDatasets)
			r.Get("/{name}", s.handleGetDataset)
			r.Get("/{name}/versions", s.handleListVersions)
			r.Post("/{name}/preview", s.handlePreview)
			r.Post("/{name}/apply", s.handleApply)
		})

		r.Route("/versions", func(r chi.Router) {
			r.Get("/{id}", s.handleGetVersion)
			r.Get("/{id}/data", s.handleGetVersionData)
			r.Get("/{id}/schema", s.handleGetVersionSchema)
			r.Get("/{id}/lineage", s.handleGetLineage)
			r.Get("/{id}/descendants", s.handleGetDescendants)
			r.Get("/{a}/compare/{b}", s.handleCompareVersions)
		})

		r.Route("/apply-jobs", func(r chi.Router) {
			r.Get("/{id}", s.handleGetApplyJob)
			r.Post("/{id}/cancel", s.handleCancelApplyJob)
		})

		r.Route("/recipes", func(r chi.Router) {
			r.Post("/", s.handleCreateRecipe)
			r.Get("/", s.handleListRecipes)
			r.Get("/{name}", s.handleGetRecipe)
			r.Put("/{name}", s.handleUpdateRecipe)
			r.Delete("/{name}", s.handleDeleteRecipe)
			r.Post("/{name}/apply", s.handleApplyRecipe)
			r.Get("/{name}/export", s.handleExportRecipe)
			r.Post("/import", s.handleImportRecipe)
		})

		r.Get("/audit", s.handleListAudit)
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
