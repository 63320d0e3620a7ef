package domain

import (
	"context"
	"time"
)

// BlobStore is the content-addressable store for materialized dataset
// bytes. Keys are lowercase hex SHA-256 digests of the canonical bytes.
// Put is idempotent: storing identical bytes twice returns the same hash
// and performs no duplicate write, including under concurrent callers.
// Backend failures surface as *StorageUnavailableError; partial writes are
// never visible.
type BlobStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, hash string) ([]byte, error)
	Exists(ctx context.Context, hash string) (bool, error)
}

// DatasetRepository persists datasets and their head pointers.
type DatasetRepository interface {
	Create(ctx context.Context, d *Dataset) (*Dataset, error)
	GetByID(ctx context.Context, id string) (*Dataset, error)
	GetByName(ctx context.Context, name string) (*Dataset, error)
	List(ctx context.Context, page PageRequest) ([]Dataset, int64, error)
	UpdateHead(ctx context.Context, id, headVersionID string) error
}

// VersionRepository persists immutable dataset versions.
type VersionRepository interface {
	Create(ctx context.Context, v *DatasetVersion) (*DatasetVersion, error)
	GetByID(ctx context.Context, id string) (*DatasetVersion, error)
	ListByDataset(ctx context.Context, datasetID string, page PageRequest) ([]DatasetVersion, int64, error)
	// FindByContentHash returns an existing version of the dataset with the
	// given content hash, for dedup on no-op transformations.
	FindByContentHash(ctx context.Context, datasetID, hash string) (*DatasetVersion, error)
	// CountByContentHash reports how many versions across all datasets
	// reference a blob, for retention decisions.
	CountByContentHash(ctx context.Context, hash string) (int64, error)
}

// EdgeRepository persists transformation configs, the lineage edges.
// Edges are indexed by result version id for O(1) ancestor lookup.
type EdgeRepository interface {
	Create(ctx context.Context, c *TransformationConfig) (*TransformationConfig, error)
	GetByResultVersion(ctx context.Context, resultVersionID string) (*TransformationConfig, error)
	ListBySourceVersion(ctx context.Context, sourceVersionID string) ([]TransformationConfig, error)
	ListByDataset(ctx context.Context, datasetID string) ([]TransformationConfig, error)
}

// ReportRepository persists validation reports as an audit trail.
type ReportRepository interface {
	Create(ctx context.Context, r *ValidationReport) (*ValidationReport, error)
	GetByID(ctx context.Context, id string) (*ValidationReport, error)
}

// RecipeRepository persists named, dataset-independent step sequences.
type RecipeRepository interface {
	Create(ctx context.Context, r *Recipe) (*Recipe, error)
	GetByID(ctx context.Context, id string) (*Recipe, error)
	GetByName(ctx context.Context, name string) (*Recipe, error)
	List(ctx context.Context, page PageRequest) ([]Recipe, int64, error)
	Update(ctx context.Context, r *Recipe) (*Recipe, error)
	Delete(ctx context.Context, id string) error
}

// ApplyJobRepository persists durable async apply job state.
type ApplyJobRepository interface {
	Create(ctx context.Context, j *ApplyJob) (*ApplyJob, error)
	GetByID(ctx context.Context, id string) (*ApplyJob, error)
	GetByRequestID(ctx context.Context, datasetID, requestID string) (*ApplyJob, error)
	ListByDataset(ctx context.Context, datasetID string, page PageRequest) ([]ApplyJob, int64, error)
	MarkRunning(ctx context.Context, id string, attempt int) error
	MarkSucceeded(ctx context.Context, id, resultVersionID, reportID string) error
	MarkFailed(ctx context.Context, id string, errMsg string, reportID *string) error
	MarkCanceled(ctx context.Context, id string) error
	PurgeTerminalOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// AuditRepository persists governance audit entries.
type AuditRepository interface {
	Insert(ctx context.Context, e *AuditEntry) error
	List(ctx context.Context, page PageRequest) ([]AuditEntry, int64, error)
	PurgeOlderThan(ctx context.Context, before time.Time) (int64, error)
}
