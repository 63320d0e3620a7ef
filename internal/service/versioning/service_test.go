package versioning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"refinery/internal/blob"
	"refinery/internal/db"
	"refinery/internal/db/repository"
	"refinery/internal/domain"
	"refinery/internal/transform"
	"refinery/internal/validate"
)

const sampleCSV = "age,city,income\n34,berlin,52000\n,berlin,48000\n41,munich,\n29,hamburg,61000\n"

func newTestService(t *testing.T) *Service {
	t.Helper()
	writeDB, _ := db.OpenTestSQLite(t)
	blobs, err := blob.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	executor := transform.NewExecutor(validate.NewEngine(validate.DefaultLossWarnThreshold))
	return NewService(Config{
		Datasets: repository.NewDatasetRepo(writeDB),
		Versions: repository.NewVersionRepo(writeDB),
		Edges:    repository.NewEdgeRepo(writeDB),
		Reports:  repository.NewReportRepo(writeDB),
		Jobs:     repository.NewApplyJobRepo(writeDB),
		Audit:    repository.NewAuditRepo(writeDB),
		Blobs:    blobs,
		Executor: executor,
	})
}

func createDataset(t *testing.T, s *Service, name string) (*domain.Dataset, *domain.DatasetVersion) {
	t.Helper()
	ds, root, err := s.CreateInitialVersion(context.Background(), "tester", domain.CreateDatasetRequest{
		Name: name,
		Data: []byte(sampleCSV),
	})
	require.NoError(t, err)
	return ds, root
}

func TestCreateInitialVersion(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	ds, root := createDataset(t, s, "churn")
	require.NotNil(t, ds.HeadVersionID)
	require.Equal(t, root.ID, *ds.HeadVersionID)
	require.True(t, root.Root())
	require.EqualValues(t, 4, root.RowCount)
	require.Equal(t, 3, root.ColumnCount)

	data, err := s.GetMaterializedDataset(ctx, root.ID)
	require.NoError(t, err)
	require.Equal(t, root.ContentHash, domain.ContentHash(data))

	// Same name again conflicts.
	_, _, err = s.CreateInitialVersion(ctx, "tester", domain.CreateDatasetRequest{Name: "churn", Data: []byte(sampleCSV)})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestApplyTransformation_CommitsNewVersion(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	ds, root := createDataset(t, s, "churn")
	steps := []domain.Step{{Kind: domain.StepDropMissing, Columns: []string{"age"}}}

	outcome, err := s.ApplyTransformation(ctx, "tester", ds.ID, steps)
	require.NoError(t, err)
	require.False(t, outcome.Deduplicated)
	require.EqualValues(t, 4, outcome.RowsBefore)
	require.EqualValues(t, 3, outcome.RowsAfter)
	require.Equal(t, root.ID, *outcome.Version.ParentVersionID)

	got, err := s.GetDataset(ctx, ds.ID)
	require.NoError(t, err)
	require.Equal(t, outcome.Version.ID, *got.HeadVersionID)

	// The result blob is retrievable and matches the recorded hash.
	data, err := s.GetMaterializedDataset(ctx, outcome.Version.ID)
	require.NoError(t, err)
	require.Equal(t, outcome.Version.ContentHash, domain.ContentHash(data))
}

func TestApplyTransformation_RejectionLeavesHeadUntouched(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	ds, root := createDataset(t, s, "churn")

	// Scaling a string column is a structural rejection.
	_, err := s.ApplyTransformation(ctx, "tester", ds.ID, []domain.Step{
		{Kind: domain.StepScale, Columns: []string{"city"}, Method: domain.ScaleMinMax},
	})
	var rejected *domain.ValidationRejectedError
	require.ErrorAs(t, err, &rejected)
	require.True(t, rejected.Report.Rejected())

	got, err := s.GetDataset(ctx, ds.ID)
	require.NoError(t, err)
	require.Equal(t, root.ID, *got.HeadVersionID)

	versions, total, err := s.ListVersions(ctx, ds.ID, domain.PageRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, versions, 1)
}

func TestApplyTransformation_DedupReusesVersion(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	ds, root := createDataset(t, s, "churn")

	// Renaming a column back and forth is a no-op on the canonical bytes.
	outcome, err := s.ApplyTransformation(ctx, "tester", ds.ID, []domain.Step{
		{Kind: domain.StepRenameColumn, Columns: []string{"age"}, NewName: "years"},
		{Kind: domain.StepRenameColumn, Columns: []string{"years"}, NewName: "age"},
	})
	require.NoError(t, err)
	require.True(t, outcome.Deduplicated)
	require.Equal(t, root.ID, outcome.Version.ID)

	// No new version and no self-referencing edge.
	_, total, err := s.ListVersions(ctx, ds.ID, domain.PageRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestApplyTransformation_LockConflict(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	ds, _ := createDataset(t, s, "churn")

	require.True(t, s.locks.TryLock(ds.ID))
	defer s.locks.Unlock(ds.ID)

	_, err := s.ApplyTransformation(ctx, "tester", ds.ID, []domain.Step{
		{Kind: domain.StepDropMissing, Columns: []string{"age"}},
	})
	var concurrent *domain.ConcurrentWriteError
	require.ErrorAs(t, err, &concurrent)
}

func TestPreviewTransformation_DoesNotMutate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	ds, root := createDataset(t, s, "churn")

	res, err := s.PreviewTransformation(ctx, ds.ID, []domain.Step{
		{Kind: domain.StepDropMissing, Columns: []string{"age"}},
	})
	require.NoError(t, err)
	require.Nil(t, res.Bytes)
	require.NotNil(t, res.SampleBefore)
	require.NotNil(t, res.SampleAfter)
	require.EqualValues(t, 4, res.RowsBefore)
	require.EqualValues(t, 3, res.RowsAfter)

	got, err := s.GetDataset(ctx, ds.ID)
	require.NoError(t, err)
	require.Equal(t, root.ID, *got.HeadVersionID)

	_, total, err := s.ListVersions(ctx, ds.ID, domain.PageRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestSubmitApply_Lifecycle(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	ds, _ := createDataset(t, s, "churn")
	steps := []domain.Step{{Kind: domain.StepDropMissing, Columns: []string{"age"}}}

	job, err := s.SubmitApply(ctx, "tester", ds.ID, steps, "req-1")
	require.NoError(t, err)
	require.Equal(t, domain.ApplyJobStatusQueued, job.Status)

	// Resubmission with the same request id returns the same job.
	dup, err := s.SubmitApply(ctx, "tester", ds.ID, steps, "req-1")
	require.NoError(t, err)
	require.Equal(t, job.ID, dup.ID)

	final := waitForTerminal(t, s, job.ID)
	require.Equal(t, domain.ApplyJobStatusSucceeded, final.Status)
	require.NotNil(t, final.ResultVersionID)
	require.NotNil(t, final.ReportID)

	got, err := s.GetDataset(ctx, ds.ID)
	require.NoError(t, err)
	require.Equal(t, *final.ResultVersionID, *got.HeadVersionID)
}

func TestSubmitApply_RejectionFailsJob(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	ds, _ := createDataset(t, s, "churn")
	job, err := s.SubmitApply(ctx, "tester", ds.ID, []domain.Step{
		{Kind: domain.StepScale, Columns: []string{"city"}, Method: domain.ScaleMinMax},
	}, "req-1")
	require.NoError(t, err)

	final := waitForTerminal(t, s, job.ID)
	require.Equal(t, domain.ApplyJobStatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	require.NotNil(t, final.ReportID)
}

func TestCancelApply_QueuedJob(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	ds, _ := createDataset(t, s, "churn")

	// Create a queued job row directly so the worker never races the test.
	job, err := s.jobs.Create(ctx, &domain.ApplyJob{
		ID:        domain.NewID(),
		DatasetID: ds.ID,
		RequestID: "req-1",
		Steps:     []domain.Step{{Kind: domain.StepDropMissing}},
		Status:    domain.ApplyJobStatusQueued,
		CreatedBy: "tester",
	})
	require.NoError(t, err)

	require.NoError(t, s.CancelApply(ctx, "tester", job.ID))
	got, err := s.GetApplyJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ApplyJobStatusCanceled, got.Status)

	// Canceling a terminal job is a no-op.
	require.NoError(t, s.CancelApply(ctx, "tester", job.ID))
}

func waitForTerminal(t *testing.T, s *Service, jobID string) *domain.ApplyJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.GetApplyJob(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state", jobID)
	return nil
}
