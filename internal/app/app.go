// Package app provides application-level wiring: it assembles
// repositories, the blob store, the transformation executor, and all
// services from the dependencies that main() provides.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"refinery/internal/blob"
	"refinery/internal/config"
	"refinery/internal/db/repository"
	"refinery/internal/domain"
	"refinery/internal/service/governance"
	"refinery/internal/service/lineage"
	"refinery/internal/service/recipe"
	"refinery/internal/service/versioning"
	"refinery/internal/transform"
	"refinery/internal/validate"
)

// Deps holds the external dependencies that main() must provide.
// These are things the app package cannot (or should not) create itself:
// database handles, config, and the logger.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// Services groups all service pointers that the API handler needs.
type Services struct {
	Versioning *versioning.Service
	Recipe     *recipe.Service
	Lineage    *lineage.Service
	Audit      *governance.AuditService
}

// App holds the fully-wired application.
type App struct {
	Services Services
	Blobs    domain.BlobStore
	Sweeper  *governance.Sweeper
}

// New wires all repositories, the blob store, and services from the
// provided deps.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg

	// Write-pool repositories for everything on a commit path.
	datasetRepo := repository.NewDatasetRepo(deps.WriteDB)
	versionRepo := repository.NewVersionRepo(deps.WriteDB)
	edgeRepo := repository.NewEdgeRepo(deps.WriteDB)
	reportRepo := repository.NewReportRepo(deps.WriteDB)
	jobRepo := repository.NewApplyJobRepo(deps.WriteDB)
	recipeRepo := repository.NewRecipeRepo(deps.WriteDB)
	auditRepo := repository.NewAuditRepo(deps.WriteDB)

	// Read-pool repositories for the read-only surfaces: lineage walks
	// and the audit listing never write, so they ride the concurrent
	// read pool.
	versionReadRepo := repository.NewVersionRepo(deps.ReadDB)
	edgeReadRepo := repository.NewEdgeRepo(deps.ReadDB)
	auditReadRepo := repository.NewAuditRepo(deps.ReadDB)

	blobs, err := newBlobStore(ctx, &cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}

	validator := validate.NewEngine(cfg.LossWarnThreshold)
	executor := transform.NewExecutor(validator,
		transform.WithSample(cfg.PreviewSampleRows, transform.DefaultSampleSeed))

	versioningSvc := versioning.NewService(versioning.Config{
		Datasets:      datasetRepo,
		Versions:      versionRepo,
		Edges:         edgeRepo,
		Reports:       reportRepo,
		Jobs:          jobRepo,
		Audit:         auditRepo,
		Blobs:         blobs,
		Executor:      executor,
		Logger:        deps.Logger.With("component", "versioning"),
		StoreAttempts: cfg.StoreAttempts,
		StoreBackoff:  cfg.StoreBackoff,
	})
	recipeSvc := recipe.NewService(recipeRepo, auditRepo, versioningSvc,
		deps.Logger.With("component", "recipe"))
	lineageSvc := lineage.NewService(versionReadRepo, edgeReadRepo, blobs, executor)
	auditSvc := governance.NewAuditService(auditReadRepo)

	sweeper := governance.NewSweeper(jobRepo, auditRepo,
		deps.Logger.With("component", "sweeper"),
		cfg.SweepSchedule, cfg.JobRetention, cfg.AuditRetention)

	return &App{
		Services: Services{
			Versioning: versioningSvc,
			Recipe:     recipeSvc,
			Lineage:    lineageSvc,
			Audit:      auditSvc,
		},
		Blobs:   blobs,
		Sweeper: sweeper,
	}, nil
}

// newBlobStore selects and constructs the content-addressable store
// backend from config. The config layer has already validated that the
// selected backend carries its required settings.
func newBlobStore(ctx context.Context, bc *config.BlobConfig) (domain.BlobStore, error) {
	switch bc.Backend {
	case config.BackendFilesystem:
		return blob.NewFilesystemStore(bc.Root)
	case config.BackendS3:
		return blob.NewS3Store(blob.S3Config{
			KeyID:    bc.S3KeyID,
			Secret:   bc.S3Secret,
			Region:   bc.S3Region,
			Bucket:   bc.S3Bucket,
			Endpoint: bc.S3Endpoint,
			Prefix:   bc.Prefix,
		})
	case config.BackendGCS:
		return blob.NewGCSStore(ctx, bc.GCSBucket, bc.Prefix, bc.GCSKeyFile)
	case config.BackendAzure:
		return blob.NewAzureStore(bc.AzureAccountName, bc.AzureAccountKey, bc.AzureContainer, bc.Prefix)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", bc.Backend)
	}
}
