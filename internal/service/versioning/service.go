// Package versioning orchestrates dataset version creation: initial
// uploads, previews, and transformation applies with single-writer
// semantics per dataset.
package versioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"refinery/internal/domain"
	"refinery/internal/table"
	"refinery/internal/transform"
)

const defaultStoreAttempts = 3

// Service is the versioning orchestrator. All writes to a dataset's head
// and lineage go through it; a per-dataset try-lock enforces at most one
// in-flight apply per dataset.
type Service struct {
	datasets domain.DatasetRepository
	versions domain.VersionRepository
	edges    domain.EdgeRepository
	reports  domain.ReportRepository
	jobs     domain.ApplyJobRepository
	audit    domain.AuditRepository
	blobs    domain.BlobStore
	executor *transform.Executor
	logger   *slog.Logger

	locks      *datasetLocks
	jobCancels sync.Map // job id -> context.CancelFunc

	storeAttempts uint64
	storeBackoff  time.Duration
}

// Config holds versioning service construction parameters.
type Config struct {
	Datasets domain.DatasetRepository
	Versions domain.VersionRepository
	Edges    domain.EdgeRepository
	Reports  domain.ReportRepository
	Jobs     domain.ApplyJobRepository
	Audit    domain.AuditRepository
	Blobs    domain.BlobStore
	Executor *transform.Executor
	Logger   *slog.Logger

	// StoreAttempts bounds retries of blob operations on storage
	// unavailability. Zero means the default of 3.
	StoreAttempts int
	// StoreBackoff is the initial retry backoff. Zero means 500ms.
	StoreBackoff time.Duration
}

// NewService creates the versioning orchestrator.
func NewService(cfg Config) *Service {
	attempts := cfg.StoreAttempts
	if attempts <= 0 {
		attempts = defaultStoreAttempts
	}
	backoff := cfg.StoreBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		datasets:      cfg.Datasets,
		versions:      cfg.Versions,
		edges:         cfg.Edges,
		reports:       cfg.Reports,
		jobs:          cfg.Jobs,
		audit:         cfg.Audit,
		blobs:         cfg.Blobs,
		executor:      cfg.Executor,
		logger:        logger,
		locks:         newDatasetLocks(),
		storeAttempts: uint64(attempts),
		storeBackoff:  backoff,
	}
}

// ApplyOutcome is the result of a committed (or deduplicated) apply.
type ApplyOutcome struct {
	Version      *domain.DatasetVersion   `json:"version"`
	Report       *domain.ValidationReport `json:"report"`
	Deduplicated bool                     `json:"deduplicated"`
	RowsBefore   int64                    `json:"rows_before"`
	RowsAfter    int64                    `json:"rows_after"`
}

// CreateInitialVersion creates a dataset and its lineage root from an
// uploaded payload. The payload is canonicalized before hashing so that
// cosmetic CSV differences (quoting, CRLF) do not produce distinct blobs.
func (s *Service) CreateInitialVersion(ctx context.Context, principal string, req domain.CreateDatasetRequest) (*domain.Dataset, *domain.DatasetVersion, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	canonical, err := table.Canonicalize(req.Data)
	if err != nil {
		return nil, nil, domain.ErrValidation("parse dataset payload: %v", err)
	}
	schema, err := table.Probe(canonical)
	if err != nil {
		return nil, nil, domain.ErrValidation("probe dataset payload: %v", err)
	}

	hash, err := s.putBlob(ctx, canonical)
	if err != nil {
		s.logAudit(ctx, principal, "dataset.create", nil, req.Name, "error")
		return nil, nil, err
	}

	ds, err := s.datasets.Create(ctx, &domain.Dataset{
		ID:          domain.NewID(),
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   principal,
	})
	if err != nil {
		return nil, nil, err
	}

	root, err := s.versions.Create(ctx, &domain.DatasetVersion{
		ID:          domain.NewID(),
		DatasetID:   ds.ID,
		ContentHash: hash,
		RowCount:    schema.RowCount,
		ColumnCount: len(schema.Columns),
		Schema:      schema,
		CreatedBy:   principal,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := s.datasets.UpdateHead(ctx, ds.ID, root.ID); err != nil {
		return nil, nil, err
	}
	ds.HeadVersionID = &root.ID

	s.logAudit(ctx, principal, "dataset.create", &ds.ID, req.Name, "success")
	return ds, root, nil
}

// GetDataset returns a dataset by id.
func (s *Service) GetDataset(ctx context.Context, id string) (*domain.Dataset, error) {
	return s.datasets.GetByID(ctx, id)
}

// GetDatasetByName returns a dataset by its unique name.
func (s *Service) GetDatasetByName(ctx context.Context, name string) (*domain.Dataset, error) {
	return s.datasets.GetByName(ctx, name)
}

// ListDatasets returns a page of datasets.
func (s *Service) ListDatasets(ctx context.Context, page domain.PageRequest) ([]domain.Dataset, int64, error) {
	return s.datasets.List(ctx, page)
}

// GetVersion returns a version by id.
func (s *Service) GetVersion(ctx context.Context, id string) (*domain.DatasetVersion, error) {
	return s.versions.GetByID(ctx, id)
}

// ListVersions returns a page of a dataset's versions.
func (s *Service) ListVersions(ctx context.Context, datasetID string, page domain.PageRequest) ([]domain.DatasetVersion, int64, error) {
	return s.versions.ListByDataset(ctx, datasetID, page)
}

// GetMaterializedDataset returns the canonical bytes of a version.
func (s *Service) GetMaterializedDataset(ctx context.Context, versionID string) ([]byte, error) {
	v, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}
	return s.getBlob(ctx, v.ContentHash)
}

// PreviewTransformation runs the steps in preview mode against the
// dataset's current head. No lock is taken and nothing is written: a
// preview may run concurrently with an in-flight apply and always sees the
// head that was committed when it started.
func (s *Service) PreviewTransformation(ctx context.Context, datasetID string, steps []domain.Step) (*transform.Result, error) {
	head, data, err := s.loadHead(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	res, err := s.executor.Execute(ctx, data, steps, transform.ModePreview)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("preview executed",
		"dataset_id", datasetID,
		"head_version", head.ID,
		"steps", len(steps),
		"status", res.Report.Status)
	return res, nil
}

// ApplyTransformation is the synchronous apply core: lock, load head,
// validate+execute, store, commit version+edge+head, unlock. Any failure
// before the commit leaves head and lineage untouched. When the result
// bytes hash to an existing version of the dataset, that version is reused
// and no new edge is recorded.
func (s *Service) ApplyTransformation(ctx context.Context, principal, datasetID string, steps []domain.Step) (*ApplyOutcome, error) {
	if len(steps) == 0 {
		return nil, domain.ErrValidation("at least one step is required")
	}
	for i := range steps {
		if err := steps[i].Validate(); err != nil {
			return nil, domain.ErrValidation("step %d: %v", i, err)
		}
	}

	if !s.locks.TryLock(datasetID) {
		return nil, &domain.ConcurrentWriteError{DatasetID: datasetID}
	}
	defer s.locks.Unlock(datasetID)

	outcome, err := s.applyLocked(ctx, principal, datasetID, steps)
	status := "success"
	if err != nil {
		status = "error"
	}
	s.logAudit(ctx, principal, "transform.apply", &datasetID, fmt.Sprintf("%d steps", len(steps)), status)
	return outcome, err
}

func (s *Service) applyLocked(ctx context.Context, principal, datasetID string, steps []domain.Step) (*ApplyOutcome, error) {
	head, data, err := s.loadHead(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	res, err := s.executor.Execute(ctx, data, steps, transform.ModeFull)
	if err != nil {
		var rejected *domain.ValidationRejectedError
		if errors.As(err, &rejected) {
			// Persist the rejected report for the audit trail before
			// surfacing the rejection.
			if _, perr := s.reports.Create(ctx, rejected.Report); perr != nil {
				s.logger.Error("persist rejected report", "dataset_id", datasetID, "error", perr)
			}
		}
		return nil, err
	}

	hash, err := s.putBlob(ctx, res.Bytes)
	if err != nil {
		return nil, err
	}

	report, err := s.reports.Create(ctx, res.Report)
	if err != nil {
		return nil, err
	}

	outcome := &ApplyOutcome{
		Report:     report,
		RowsBefore: res.RowsBefore,
		RowsAfter:  res.RowsAfter,
	}

	// Dedup: identical content reuses the existing version id. No new
	// lineage edge is added, which keeps the graph acyclic for no-op step
	// sequences whose output equals their input.
	existing, err := s.versions.FindByContentHash(ctx, datasetID, hash)
	if err == nil {
		outcome.Version = existing
		outcome.Deduplicated = true
		if head.ID != existing.ID {
			if err := s.datasets.UpdateHead(ctx, datasetID, existing.ID); err != nil {
				return nil, err
			}
		}
		return outcome, nil
	}
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		return nil, err
	}

	version, err := s.versions.Create(ctx, &domain.DatasetVersion{
		ID:              domain.NewID(),
		DatasetID:       datasetID,
		ContentHash:     hash,
		ParentVersionID: &head.ID,
		RowCount:        res.Schema.RowCount,
		ColumnCount:     len(res.Schema.Columns),
		Schema:          res.Schema,
		CreatedBy:       principal,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.edges.Create(ctx, &domain.TransformationConfig{
		ID:                 domain.NewID(),
		DatasetID:          datasetID,
		SourceVersionID:    head.ID,
		ResultVersionID:    version.ID,
		Steps:              steps,
		ValidationReportID: report.ID,
		AppliedBy:          principal,
	}); err != nil {
		return nil, err
	}
	if err := s.datasets.UpdateHead(ctx, datasetID, version.ID); err != nil {
		return nil, err
	}

	outcome.Version = version
	return outcome, nil
}

func (s *Service) loadHead(ctx context.Context, datasetID string) (*domain.DatasetVersion, []byte, error) {
	ds, err := s.datasets.GetByID(ctx, datasetID)
	if err != nil {
		return nil, nil, err
	}
	if ds.HeadVersionID == nil {
		return nil, nil, domain.ErrNotFound("dataset %s has no versions", datasetID)
	}
	head, err := s.versions.GetByID(ctx, *ds.HeadVersionID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.getBlob(ctx, head.ContentHash)
	if err != nil {
		return nil, nil, err
	}
	return head, data, nil
}

// putBlob stores bytes with bounded exponential backoff on storage
// unavailability. Other errors fail immediately.
func (s *Service) putBlob(ctx context.Context, data []byte) (string, error) {
	var hash string
	err := retry.Do(ctx, retry.WithMaxRetries(s.storeAttempts, retry.NewExponential(s.storeBackoff)), func(ctx context.Context) error {
		var err error
		hash, err = s.blobs.Put(ctx, data)
		return retryStorage(err)
	})
	return hash, err
}

func (s *Service) getBlob(ctx context.Context, hash string) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, retry.WithMaxRetries(s.storeAttempts, retry.NewExponential(s.storeBackoff)), func(ctx context.Context) error {
		var err error
		data, err = s.blobs.Get(ctx, hash)
		return retryStorage(err)
	})
	return data, err
}

func retryStorage(err error) error {
	var unavailable *domain.StorageUnavailableError
	if errors.As(err, &unavailable) {
		return retry.RetryableError(err)
	}
	return err
}

// logAudit records a mutating operation best-effort. Audit failures are
// logged, never propagated.
func (s *Service) logAudit(ctx context.Context, principal, action string, datasetID *string, detail, status string) {
	if s.audit == nil {
		return
	}
	entry := &domain.AuditEntry{
		PrincipalName: principal,
		Action:        action,
		DatasetID:     datasetID,
		Detail:        detail,
		Status:        status,
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.logger.Error("audit insert failed", "action", action, "error", err)
	}
}
