package recipe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"refinery/internal/blob"
	"refinery/internal/db"
	"refinery/internal/db/repository"
	"refinery/internal/domain"
	"refinery/internal/service/versioning"
	"refinery/internal/transform"
	"refinery/internal/validate"
)

const numericCSV = "age,income\n34,52000\n,48000\n41,\n29,61000\n"
const textCSV = "name,label\nalice,a\nbob,b\ncarol,a\n"

type fixture struct {
	recipes    *Service
	versioning *versioning.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	writeDB, _ := db.OpenTestSQLite(t)
	blobs, err := blob.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	executor := transform.NewExecutor(validate.NewEngine(validate.DefaultLossWarnThreshold))
	vs := versioning.NewService(versioning.Config{
		Datasets: repository.NewDatasetRepo(writeDB),
		Versions: repository.NewVersionRepo(writeDB),
		Edges:    repository.NewEdgeRepo(writeDB),
		Reports:  repository.NewReportRepo(writeDB),
		Jobs:     repository.NewApplyJobRepo(writeDB),
		Blobs:    blobs,
		Executor: executor,
	})
	return &fixture{
		recipes:    NewService(repository.NewRecipeRepo(writeDB), repository.NewAuditRepo(writeDB), vs, nil),
		versioning: vs,
	}
}

func (f *fixture) seedDataset(t *testing.T, name, csv string) {
	t.Helper()
	_, _, err := f.versioning.CreateInitialVersion(context.Background(), "tester", domain.CreateDatasetRequest{
		Name: name, Data: []byte(csv),
	})
	require.NoError(t, err)
}

var imputeScaleSteps = []domain.Step{
	{Kind: domain.StepImpute, Columns: []string{"age"}, Method: domain.ImputeMean},
	{Kind: domain.StepScale, Columns: []string{"age"}, Method: domain.ScaleMinMax},
}

func TestSave_RejectsMalformedSteps(t *testing.T) {
	f := newFixture(t)

	_, err := f.recipes.Save(context.Background(), "tester", domain.SaveRecipeRequest{
		Name:  "bad",
		Steps: []domain.Step{{Kind: domain.StepRenameColumn, Columns: []string{"a"}}}, // no new name
	})
	var invalid *domain.ValidationError
	require.ErrorAs(t, err, &invalid)
}

func TestSave_DoesNotCheckSchemas(t *testing.T) {
	f := newFixture(t)

	// No dataset exists at all; saving still succeeds because schema
	// compatibility is an apply-time concern.
	rec, err := f.recipes.Save(context.Background(), "tester", domain.SaveRecipeRequest{
		Name:  "prep",
		Steps: imputeScaleSteps,
	})
	require.NoError(t, err)
	require.Len(t, rec.Steps, 2)
}

func TestApply_ValidatesAgainstTargetSchema(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedDataset(t, "numeric", numericCSV)
	f.seedDataset(t, "text", textCSV)

	_, err := f.recipes.Save(ctx, "tester", domain.SaveRecipeRequest{Name: "prep", Steps: imputeScaleSteps})
	require.NoError(t, err)

	outcome, err := f.recipes.Apply(ctx, "tester", "prep", "numeric")
	require.NoError(t, err)
	require.NotNil(t, outcome.Version)

	// The same recipe is invalid against a dataset without the column.
	_, err = f.recipes.Apply(ctx, "tester", "prep", "text")
	var rejected *domain.ValidationRejectedError
	require.ErrorAs(t, err, &rejected)
}

func TestApplyBatch_PartialFailureIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedDataset(t, "numeric", numericCSV)
	f.seedDataset(t, "text", textCSV)

	_, err := f.recipes.Save(ctx, "tester", domain.SaveRecipeRequest{Name: "prep", Steps: imputeScaleSteps})
	require.NoError(t, err)

	results, err := f.recipes.ApplyBatch(ctx, "tester", "prep", []string{"numeric", "text", "missing"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.Equal(t, "numeric", results[0].DatasetName)
	require.Empty(t, results[0].Error)
	require.NotEmpty(t, results[0].ResultVersionID)

	require.Equal(t, "text", results[1].DatasetName)
	require.NotEmpty(t, results[1].Error)
	require.Empty(t, results[1].ResultVersionID)

	require.Equal(t, "missing", results[2].DatasetName)
	require.NotEmpty(t, results[2].Error)

	// The successful dataset committed; the failed ones did not move.
	ds, err := f.versioning.GetDatasetByName(ctx, "numeric")
	require.NoError(t, err)
	require.Equal(t, results[0].ResultVersionID, *ds.HeadVersionID)
}

func TestYAMLRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.recipes.Save(ctx, "tester", domain.SaveRecipeRequest{
		Name:        "prep",
		Description: "impute and scale",
		Steps: []domain.Step{
			{Kind: domain.StepImpute, Columns: []string{"age"}, Method: domain.ImputeConstant, Value: "0"},
			{Kind: domain.StepTypeCast, Columns: []string{"age"}, TargetType: domain.ColumnInt},
			{Kind: domain.StepRenameColumn, Columns: []string{"age"}, NewName: "years"},
		},
	})
	require.NoError(t, err)

	out, err := f.recipes.ExportYAML(ctx, "prep")
	require.NoError(t, err)
	require.Contains(t, string(out), "target_type: int")

	require.NoError(t, f.recipes.Delete(ctx, "tester", "prep"))

	imported, err := f.recipes.ImportYAML(ctx, "tester", out)
	require.NoError(t, err)
	require.Equal(t, "prep", imported.Name)
	require.Len(t, imported.Steps, 3)
	require.Equal(t, domain.ColumnInt, imported.Steps[1].TargetType)
	require.Equal(t, "years", imported.Steps[2].NewName)
}
