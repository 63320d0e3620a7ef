package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"refinery/internal/db"
	"refinery/internal/domain"
)

func queueJob(t *testing.T, repo *ApplyJobRepo, datasetID, requestID string) *domain.ApplyJob {
	t.Helper()
	j, err := repo.Create(context.Background(), &domain.ApplyJob{
		ID:        domain.NewID(),
		DatasetID: datasetID,
		RequestID: requestID,
		Steps:     []domain.Step{{Kind: domain.StepDropMissing}},
		Status:    domain.ApplyJobStatusQueued,
		CreatedBy: "tester",
	})
	require.NoError(t, err)
	return j
}

func TestApplyJobRepo_Lifecycle(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	repo := NewApplyJobRepo(writeDB)
	ctx := context.Background()

	d := seedDataset(t, writeDB, "churn")
	j := queueJob(t, repo, d.ID, "req-1")

	require.NoError(t, repo.MarkRunning(ctx, j.ID, 1))
	got, err := repo.GetByID(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ApplyJobStatusRunning, got.Status)
	require.Equal(t, 1, got.Attempt)
	require.NotNil(t, got.StartedAt)
	require.Nil(t, got.CompletedAt)

	require.NoError(t, repo.MarkSucceeded(ctx, j.ID, "version-1", "report-1"))
	got, err = repo.GetByID(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ApplyJobStatusSucceeded, got.Status)
	require.True(t, got.Status.Terminal())
	require.Equal(t, "version-1", *got.ResultVersionID)
	require.Equal(t, "report-1", *got.ReportID)
	require.NotNil(t, got.CompletedAt)
}

func TestApplyJobRepo_RequestIDIdempotency(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	repo := NewApplyJobRepo(writeDB)
	ctx := context.Background()

	d := seedDataset(t, writeDB, "churn")
	j := queueJob(t, repo, d.ID, "req-1")

	_, err := repo.Create(ctx, &domain.ApplyJob{
		ID:        domain.NewID(),
		DatasetID: d.ID,
		RequestID: "req-1",
		Steps:     []domain.Step{{Kind: domain.StepDropMissing}},
		Status:    domain.ApplyJobStatusQueued,
		CreatedBy: "tester",
	})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)

	got, err := repo.GetByRequestID(ctx, d.ID, "req-1")
	require.NoError(t, err)
	require.Equal(t, j.ID, got.ID)
}

func TestApplyJobRepo_CancelBeforeRun(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	repo := NewApplyJobRepo(writeDB)
	ctx := context.Background()

	d := seedDataset(t, writeDB, "churn")
	j := queueJob(t, repo, d.ID, "req-1")

	require.NoError(t, repo.MarkCanceled(ctx, j.ID))

	// A canceled job must not start running.
	var nf *domain.NotFoundError
	require.ErrorAs(t, repo.MarkRunning(ctx, j.ID, 1), &nf)

	// Cancel is not idempotent on terminal jobs.
	require.ErrorAs(t, repo.MarkCanceled(ctx, j.ID), &nf)
}

func TestApplyJobRepo_MarkFailedKeepsReport(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	repo := NewApplyJobRepo(writeDB)
	ctx := context.Background()

	d := seedDataset(t, writeDB, "churn")
	j := queueJob(t, repo, d.ID, "req-1")
	require.NoError(t, repo.MarkRunning(ctx, j.ID, 1))

	reportID := "report-1"
	require.NoError(t, repo.MarkFailed(ctx, j.ID, "validation rejected", &reportID))

	got, err := repo.GetByID(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ApplyJobStatusFailed, got.Status)
	require.Equal(t, "validation rejected", *got.ErrorMessage)
	require.Equal(t, reportID, *got.ReportID)
	require.Nil(t, got.ResultVersionID)
}

func TestApplyJobRepo_PurgeTerminal(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	repo := NewApplyJobRepo(writeDB)
	ctx := context.Background()

	d := seedDataset(t, writeDB, "churn")
	done := queueJob(t, repo, d.ID, "req-1")
	require.NoError(t, repo.MarkRunning(ctx, done.ID, 1))
	require.NoError(t, repo.MarkSucceeded(ctx, done.ID, "version-1", "report-1"))

	active := queueJob(t, repo, d.ID, "req-2")

	n, err := repo.PurgeTerminalOlderThan(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = repo.GetByID(ctx, done.ID)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)

	// Non-terminal jobs survive regardless of age.
	_, err = repo.GetByID(ctx, active.ID)
	require.NoError(t, err)
}

func TestApplyJobRepo_ListByDataset(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	repo := NewApplyJobRepo(writeDB)
	ctx := context.Background()

	d := seedDataset(t, writeDB, "churn")
	other := seedDataset(t, writeDB, "sales")
	queueJob(t, repo, d.ID, "req-1")
	queueJob(t, repo, d.ID, "req-2")
	queueJob(t, repo, other.ID, "req-1")

	jobs, total, err := repo.ListByDataset(ctx, d.ID, domain.PageRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, jobs, 2)
}
