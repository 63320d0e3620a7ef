package lineage

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

const sampleCSV = "age,city,income\n34,berlin,52000\n,berlin,48000\n41,munich,\n29,hamburg,61000\n"

type fixture struct {
	lineage    *Service
	versioning *versioning.Service
	versions   *repository.VersionRepo
	edges      *repository.EdgeRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	writeDB, _ := db.OpenTestSQLite(t)
	blobs, err := blob.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	versions := repository.NewVersionRepo(writeDB)
	edges := repository.NewEdgeRepo(writeDB)
	executor := transform.NewExecutor(validate.NewEngine(validate.DefaultLossWarnThreshold))

	vs := versioning.NewService(versioning.Config{
		Datasets: repository.NewDatasetRepo(writeDB),
		Versions: versions,
		Edges:    edges,
		Reports:  repository.NewReportRepo(writeDB),
		Jobs:     repository.NewApplyJobRepo(writeDB),
		Blobs:    blobs,
		Executor: executor,
	})
	return &fixture{
		lineage:    NewService(versions, edges, blobs, executor),
		versioning: vs,
		versions:   versions,
		edges:      edges,
	}
}

// buildChain creates a dataset with root → v1 (drop_missing age) → v2
// (drop_columns income) and returns the three version ids in order.
func buildChain(t *testing.T, f *fixture) (datasetID string, chain [3]string) {
	t.Helper()
	ctx := context.Background()

	ds, root, err := f.versioning.CreateInitialVersion(ctx, "tester", domain.CreateDatasetRequest{
		Name: "churn", Data: []byte(sampleCSV),
	})
	require.NoError(t, err)

	o1, err := f.versioning.ApplyTransformation(ctx, "tester", ds.ID, []domain.Step{
		{Kind: domain.StepDropMissing, Columns: []string{"age"}},
	})
	require.NoError(t, err)
	o2, err := f.versioning.ApplyTransformation(ctx, "tester", ds.ID, []domain.Step{
		{Kind: domain.StepDropColumns, Columns: []string{"income"}},
	})
	require.NoError(t, err)

	return ds.ID, [3]string{root.ID, o1.Version.ID, o2.Version.ID}
}

func TestAncestors_RootFirstOrder(t *testing.T) {
	f := newFixture(t)
	_, chain := buildChain(t, f)

	entries, err := f.lineage.Ancestors(context.Background(), chain[2])
	require.NoError(t, err)
	require.Len(t, entries, 3)

	require.Equal(t, chain[0], entries[0].Version.ID)
	require.Nil(t, entries[0].Edge)
	require.Equal(t, chain[1], entries[1].Version.ID)
	require.NotNil(t, entries[1].Edge)
	require.Equal(t, domain.StepDropMissing, entries[1].Edge.Steps[0].Kind)
	require.Equal(t, chain[2], entries[2].Version.ID)
	require.Equal(t, domain.StepDropColumns, entries[2].Edge.Steps[0].Kind)
}

func TestAncestors_MissingInboundEdgeIsCorruption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	datasetID, chain := buildChain(t, f)

	// Forge a non-root version with no inbound edge.
	forged, err := f.versions.Create(ctx, &domain.DatasetVersion{
		ID:              domain.NewID(),
		DatasetID:       datasetID,
		ContentHash:     "hash-x",
		ParentVersionID: &chain[0],
		Schema:          &domain.Schema{},
		CreatedBy:       "tester",
	})
	require.NoError(t, err)

	_, err = f.lineage.Ancestors(ctx, forged.ID)
	var corrupt *domain.LineageCorruptionError
	require.ErrorAs(t, err, &corrupt)
}

func TestDescendants_BreadthFirst(t *testing.T) {
	f := newFixture(t)
	_, chain := buildChain(t, f)

	entries, err := f.lineage.Descendants(context.Background(), chain[0])
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, chain[1], entries[0].Version.ID)
	require.Equal(t, chain[2], entries[1].Version.ID)

	leaf, err := f.lineage.Descendants(context.Background(), chain[2])
	require.NoError(t, err)
	require.Empty(t, leaf)
}

func TestDiff_AncestorOnSameBranch(t *testing.T) {
	f := newFixture(t)
	_, chain := buildChain(t, f)

	diff, err := f.lineage.Diff(context.Background(), chain[0], chain[2])
	require.NoError(t, err)
	require.True(t, diff.Related)
	require.Equal(t, chain[0], diff.CommonAncestor)
	require.Len(t, diff.StepsBetween, 2)
	require.Equal(t, "down", diff.StepsBetween[0].Direction)
	require.Equal(t, "down", diff.StepsBetween[1].Direction)
	require.EqualValues(t, -1, diff.RowDelta)    // drop_missing removed one row
	require.Equal(t, -1, diff.ColumnDelta)       // drop_columns removed one column

	// Reversed comparison walks up instead.
	rev, err := f.lineage.Diff(context.Background(), chain[2], chain[0])
	require.NoError(t, err)
	require.True(t, rev.Related)
	require.Equal(t, "up", rev.StepsBetween[0].Direction)
	require.EqualValues(t, 1, rev.RowDelta)
}

func TestDiff_DifferentDatasetsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, chain := buildChain(t, f)

	_, other, err := f.versioning.CreateInitialVersion(ctx, "tester", domain.CreateDatasetRequest{
		Name: "sales", Data: []byte(sampleCSV),
	})
	require.NoError(t, err)

	_, err = f.lineage.Diff(ctx, chain[0], other.ID)
	var invalid *domain.ValidationError
	require.ErrorAs(t, err, &invalid)
}

func TestReplay_ReproducesContentHash(t *testing.T) {
	f := newFixture(t)
	_, chain := buildChain(t, f)

	require.NoError(t, f.lineage.Replay(context.Background(), chain[2]))
}
