// Package recipe manages named, dataset-independent step sequences and
// their application to datasets.
package recipe

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"refinery/internal/domain"
	"refinery/internal/service/versioning"
)

const defaultBatchConcurrency = 4

// Service manages recipes. Recipes store step shapes only; schema
// compatibility is checked against the target dataset at apply time, so a
// recipe saved against one dataset may be rejected by another.
type Service struct {
	recipes    domain.RecipeRepository
	audit      domain.AuditRepository
	versioning *versioning.Service
	logger     *slog.Logger

	batchConcurrency int
}

// NewService creates a recipe service delegating applies to the versioning
// orchestrator.
func NewService(recipes domain.RecipeRepository, audit domain.AuditRepository, vs *versioning.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		recipes:          recipes,
		audit:            audit,
		versioning:       vs,
		logger:           logger,
		batchConcurrency: defaultBatchConcurrency,
	}
}

// Save creates a new recipe.
func (s *Service) Save(ctx context.Context, principal string, req domain.SaveRecipeRequest) (*domain.Recipe, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rec, err := s.recipes.Create(ctx, &domain.Recipe{
		ID:          domain.NewID(),
		Name:        req.Name,
		Description: req.Description,
		Steps:       req.Steps,
		CreatedBy:   principal,
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, principal, "recipe.save", rec.Name, "success")
	return rec, nil
}

// Update replaces an existing recipe's description and steps by name.
func (s *Service) Update(ctx context.Context, principal, name string, req domain.SaveRecipeRequest) (*domain.Recipe, error) {
	req.Name = name
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rec, err := s.recipes.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	rec.Description = req.Description
	rec.Steps = req.Steps
	updated, err := s.recipes.Update(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, principal, "recipe.update", name, "success")
	return updated, nil
}

// Get returns a recipe by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Recipe, error) {
	return s.recipes.GetByID(ctx, id)
}

// GetByName returns a recipe by its unique name.
func (s *Service) GetByName(ctx context.Context, name string) (*domain.Recipe, error) {
	return s.recipes.GetByName(ctx, name)
}

// List returns a page of recipes.
func (s *Service) List(ctx context.Context, page domain.PageRequest) ([]domain.Recipe, int64, error) {
	return s.recipes.List(ctx, page)
}

// Delete removes a recipe by name. Lineage edges keep their own copy of
// the applied steps, so history stays reconstructible.
func (s *Service) Delete(ctx context.Context, principal, name string) error {
	rec, err := s.recipes.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if err := s.recipes.Delete(ctx, rec.ID); err != nil {
		return err
	}
	s.logAudit(ctx, principal, "recipe.delete", name, "success")
	return nil
}

// Apply applies a recipe to one dataset synchronously. Validation happens
// against the dataset's current head schema inside the apply.
func (s *Service) Apply(ctx context.Context, principal, recipeName, datasetName string) (*versioning.ApplyOutcome, error) {
	rec, err := s.recipes.GetByName(ctx, recipeName)
	if err != nil {
		return nil, err
	}
	ds, err := s.versioning.GetDatasetByName(ctx, datasetName)
	if err != nil {
		return nil, err
	}
	return s.versioning.ApplyTransformation(ctx, principal, ds.ID, rec.Steps)
}

// ApplyBatch fans a recipe out over several datasets with bounded
// concurrency. There is no cross-dataset atomicity: each entry succeeds or
// fails on its own and the result slice is ordered like the input.
func (s *Service) ApplyBatch(ctx context.Context, principal, recipeName string, datasetNames []string) ([]domain.RecipeApplyResult, error) {
	if _, err := s.recipes.GetByName(ctx, recipeName); err != nil {
		return nil, err
	}
	if len(datasetNames) == 0 {
		return nil, domain.ErrValidation("at least one dataset name is required")
	}

	results := make([]domain.RecipeApplyResult, len(datasetNames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)
	for i, name := range datasetNames {
		g.Go(func() error {
			results[i] = domain.RecipeApplyResult{DatasetName: name}
			outcome, err := s.Apply(gctx, principal, recipeName, name)
			if err != nil {
				results[i].Error = err.Error()
				s.logger.Warn("batch recipe apply failed", "recipe", recipeName, "dataset", name, "error", err)
				return nil
			}
			results[i].ResultVersionID = outcome.Version.ID
			results[i].Report = outcome.Report
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (s *Service) logAudit(ctx context.Context, principal, action, detail, status string) {
	if s.audit == nil {
		return
	}
	entry := &domain.AuditEntry{
		PrincipalName: principal,
		Action:        action,
		Detail:        detail,
		Status:        status,
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.logger.Error("audit insert failed", "action", action, "error", err)
	}
}
