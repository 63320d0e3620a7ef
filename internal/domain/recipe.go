package domain

import "time"

// Recipe is a named, dataset-independent ordered step sequence. Recipes
// are validated against the target dataset's schema at application time,
// never at save time.
type Recipe struct {
	ID          string
	Name        string
	Description string
	Steps       []Step
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SaveRecipeRequest holds parameters for creating or replacing a recipe.
type SaveRecipeRequest struct {
	Name        string
	Description string
	Steps       []Step
}

// Validate checks that the request is well-formed. Only step parameter
// shape is checked here; schema compatibility is deferred to apply time.
func (r *SaveRecipeRequest) Validate() error {
	if r.Name == "" {
		return ErrValidation("name is required")
	}
	if len(r.Steps) == 0 {
		return ErrValidation("recipe must contain at least one step")
	}
	for i, s := range r.Steps {
		if err := s.Validate(); err != nil {
			return ErrValidation("step %d: %v", i, err)
		}
	}
	return nil
}

// RecipeApplyResult is the per-dataset outcome of a batch recipe
// application. Batches carry no cross-dataset atomicity: each entry
// succeeds or fails independently.
type RecipeApplyResult struct {
	DatasetName     string            `json:"dataset_name"`
	JobID           string            `json:"job_id,omitempty"`
	ResultVersionID string            `json:"result_version_id,omitempty"`
	Report          *ValidationReport `json:"report,omitempty"`
	Error           string            `json:"error,omitempty"`
}
