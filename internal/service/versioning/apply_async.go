package versioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"refinery/internal/domain"
)

const defaultMaxAsyncAttempts = 3

// SubmitApply creates a durable apply job and starts background execution.
// Resubmitting with the same request id returns the existing job instead
// of queueing a duplicate.
func (s *Service) SubmitApply(ctx context.Context, principal, datasetID string, steps []domain.Step, requestID string) (*domain.ApplyJob, error) {
	if len(steps) == 0 {
		return nil, domain.ErrValidation("at least one step is required")
	}
	for i := range steps {
		if err := steps[i].Validate(); err != nil {
			return nil, domain.ErrValidation("step %d: %v", i, err)
		}
	}
	if _, err := s.datasets.GetByID(ctx, datasetID); err != nil {
		return nil, err
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	existing, err := s.jobs.GetByRequestID(ctx, datasetID, requestID)
	if err == nil {
		return existing, nil
	}
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		return nil, fmt.Errorf("lookup apply job by request id: %w", err)
	}

	job, err := s.jobs.Create(ctx, &domain.ApplyJob{
		ID:        domain.NewID(),
		DatasetID: datasetID,
		RequestID: requestID,
		Steps:     steps,
		Status:    domain.ApplyJobStatusQueued,
		CreatedBy: principal,
	})
	if err != nil {
		return nil, fmt.Errorf("create apply job: %w", err)
	}

	go s.runApplyJob(job.ID, principal, datasetID, steps)
	return job, nil
}

// GetApplyJob returns apply job state by id.
func (s *Service) GetApplyJob(ctx context.Context, jobID string) (*domain.ApplyJob, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// ListApplyJobs returns a page of a dataset's apply jobs.
func (s *Service) ListApplyJobs(ctx context.Context, datasetID string, page domain.PageRequest) ([]domain.ApplyJob, int64, error) {
	return s.jobs.ListByDataset(ctx, datasetID, page)
}

// CancelApply cancels a queued or running apply job. Canceling a terminal
// job is a no-op. Cancellation releases the dataset lock and leaves the
// head unchanged: nothing is mutated before the commit step.
func (s *Service) CancelApply(ctx context.Context, principal, jobID string) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	if cancelRaw, ok := s.jobCancels.Load(jobID); ok {
		if cancelFn, ok := cancelRaw.(context.CancelFunc); ok {
			cancelFn()
		}
	}

	if err := s.jobs.MarkCanceled(ctx, jobID); err != nil {
		// The worker may have finished between the status read and the
		// cancel write; that is not an error for the caller.
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil
		}
		return err
	}
	s.logAudit(ctx, principal, "transform.cancel", &job.DatasetID, "job "+jobID, "success")
	return nil
}

func (s *Service) runApplyJob(jobID, principal, datasetID string, steps []domain.Step) {
	ctx, cancel := context.WithCancel(context.Background())
	s.jobCancels.Store(jobID, cancel)
	defer s.jobCancels.Delete(jobID)
	defer cancel()

	attempt := 0
	for {
		attempt++
		if err := s.jobs.MarkRunning(ctx, jobID, attempt); err != nil {
			// Canceled before the worker picked it up.
			s.logger.Info("apply job did not start", "job_id", jobID, "error", err)
			return
		}

		outcome, err := s.ApplyTransformation(ctx, principal, datasetID, steps)
		if err == nil {
			_ = s.jobs.MarkSucceeded(context.Background(), jobID, outcome.Version.ID, outcome.Report.ID)
			s.logger.Info("apply job succeeded",
				"job_id", jobID,
				"dataset_id", datasetID,
				"version_id", outcome.Version.ID,
				"deduplicated", outcome.Deduplicated)
			return
		}

		if ctx.Err() == context.Canceled {
			_ = s.jobs.MarkCanceled(context.Background(), jobID)
			return
		}

		if attempt >= defaultMaxAsyncAttempts || !isRetryableApplyError(err) {
			reportID := rejectionReportID(err)
			_ = s.jobs.MarkFailed(context.Background(), jobID, err.Error(), reportID)
			s.logger.Warn("apply job failed", "job_id", jobID, "dataset_id", datasetID, "error", err)
			return
		}

		s.logger.Info("retrying apply job", "job_id", jobID, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			_ = s.jobs.MarkCanceled(context.Background(), jobID)
			return
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		}
	}
}

// isRetryableApplyError reports whether the async worker should retry.
// Lock contention and storage unavailability are transient; everything
// else (rejection, execution failure, bad input) is final.
func isRetryableApplyError(err error) bool {
	var concurrent *domain.ConcurrentWriteError
	var unavailable *domain.StorageUnavailableError
	return errors.As(err, &concurrent) || errors.As(err, &unavailable)
}

// rejectionReportID extracts the persisted report id from a validation
// rejection, if the error carries one.
func rejectionReportID(err error) *string {
	var rejected *domain.ValidationRejectedError
	if errors.As(err, &rejected) && rejected.Report != nil && rejected.Report.ID != "" {
		id := rejected.Report.ID
		return &id
	}
	return nil
}
