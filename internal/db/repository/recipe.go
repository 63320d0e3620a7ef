package repository

import (
	"context"
	"database/sql"
	"fmt"

	"refinery/internal/domain"
)

// RecipeRepo persists named recipes in SQLite.
type RecipeRepo struct {
	db *sql.DB
}

var _ domain.RecipeRepository = (*RecipeRepo)(nil)

// NewRecipeRepo creates a recipe repository.
func NewRecipeRepo(db *sql.DB) *RecipeRepo {
	return &RecipeRepo{db: db}
}

const recipeColumns = `id, name, description, steps_json, created_by, created_at, updated_at`

func scanRecipe(row interface{ Scan(...any) error }) (*domain.Recipe, error) {
	var rec domain.Recipe
	var stepsJSON string
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Description, &stepsJSON, &rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, mapDBError(err)
	}
	steps, err := domain.DecodeSteps(stepsJSON)
	if err != nil {
		return nil, fmt.Errorf("decode steps for recipe %s: %w", rec.ID, err)
	}
	rec.Steps = steps
	return &rec, nil
}

// Create inserts a new recipe. Name collisions surface as ConflictError.
func (r *RecipeRepo) Create(ctx context.Context, rec *domain.Recipe) (*domain.Recipe, error) {
	stepsJSON, err := domain.EncodeSteps(rec.Steps)
	if err != nil {
		return nil, fmt.Errorf("encode steps: %w", err)
	}
	ts := now()
	rec.CreatedAt = ts
	rec.UpdatedAt = ts
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO recipes (id, name, description, steps_json, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Description, stepsJSON, rec.CreatedBy, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return rec, nil
}

// GetByID returns the recipe with the given id.
func (r *RecipeRepo) GetByID(ctx context.Context, id string) (*domain.Recipe, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = ?`, id)
	return scanRecipe(row)
}

// GetByName returns the recipe with the given unique name.
func (r *RecipeRepo) GetByName(ctx context.Context, name string) (*domain.Recipe, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE name = ?`, name)
	return scanRecipe(row)
}

// List returns a page of recipes ordered by name.
func (r *RecipeRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Recipe, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipes`).Scan(&total); err != nil {
		return nil, 0, mapDBError(err)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recipeColumns+` FROM recipes
		ORDER BY name LIMIT ? OFFSET ?`, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, mapDBError(err)
	}
	defer rows.Close()

	var out []domain.Recipe
	for rows.Next() {
		rec, err := scanRecipe(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *rec)
	}
	return out, total, mapDBError(rows.Err())
}

// Update replaces the recipe's description and steps.
func (r *RecipeRepo) Update(ctx context.Context, rec *domain.Recipe) (*domain.Recipe, error) {
	stepsJSON, err := domain.EncodeSteps(rec.Steps)
	if err != nil {
		return nil, fmt.Errorf("encode steps: %w", err)
	}
	rec.UpdatedAt = now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE recipes SET description = ?, steps_json = ?, updated_at = ? WHERE id = ?`,
		rec.Description, stepsJSON, rec.UpdatedAt, rec.ID)
	if err != nil {
		return nil, mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &domain.NotFoundError{Message: "recipe not found: " + rec.ID}
	}
	return rec, nil
}

// Delete removes the recipe. Prior applications keep their copied steps in
// the lineage edges, so deletion never breaks reconstructibility.
func (r *RecipeRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Message: "recipe not found: " + id}
	}
	return nil
}
