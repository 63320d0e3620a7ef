package governance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"refinery/internal/db"
	"refinery/internal/db/repository"
	"refinery/internal/domain"
)

func TestSweep_PurgesTerminalJobsAndAudit(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	ctx := context.Background()

	datasets := repository.NewDatasetRepo(writeDB)
	jobs := repository.NewApplyJobRepo(writeDB)
	audit := repository.NewAuditRepo(writeDB)

	ds, err := datasets.Create(ctx, &domain.Dataset{ID: domain.NewID(), Name: "churn", CreatedBy: "tester"})
	require.NoError(t, err)

	done, err := jobs.Create(ctx, &domain.ApplyJob{
		ID: domain.NewID(), DatasetID: ds.ID, RequestID: "req-1",
		Steps:  []domain.Step{{Kind: domain.StepDropMissing}},
		Status: domain.ApplyJobStatusQueued, CreatedBy: "tester",
	})
	require.NoError(t, err)
	require.NoError(t, jobs.MarkRunning(ctx, done.ID, 1))
	require.NoError(t, jobs.MarkSucceeded(ctx, done.ID, "v1", "r1"))

	active, err := jobs.Create(ctx, &domain.ApplyJob{
		ID: domain.NewID(), DatasetID: ds.ID, RequestID: "req-2",
		Steps:  []domain.Step{{Kind: domain.StepDropMissing}},
		Status: domain.ApplyJobStatusQueued, CreatedBy: "tester",
	})
	require.NoError(t, err)

	require.NoError(t, audit.Insert(ctx, &domain.AuditEntry{
		PrincipalName: "tester", Action: "dataset.create", Status: "success",
	}))

	// Tiny retention windows so everything terminal is already expired.
	sweeper := NewSweeper(jobs, audit, nil, "", time.Nanosecond, time.Nanosecond)
	time.Sleep(5 * time.Millisecond)
	sweeper.Sweep(ctx)

	_, err = jobs.GetByID(ctx, done.ID)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)

	_, err = jobs.GetByID(ctx, active.ID)
	require.NoError(t, err)

	_, total, err := audit.List(ctx, domain.PageRequest{})
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestSweep_ZeroRetentionDisablesPurge(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	ctx := context.Background()

	audit := repository.NewAuditRepo(writeDB)
	require.NoError(t, audit.Insert(ctx, &domain.AuditEntry{
		PrincipalName: "tester", Action: "dataset.create", Status: "success",
	}))

	sweeper := NewSweeper(repository.NewApplyJobRepo(writeDB), audit, nil, "", 0, 0)
	sweeper.Sweep(ctx)

	_, total, err := audit.List(ctx, domain.PageRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}
