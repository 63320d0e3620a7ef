package governance

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"refinery/internal/domain"
)

// Sweeper purges terminal apply jobs and old audit entries on a cron
// schedule. Version and blob garbage collection is deliberately not done
// here: versions are immutable history and their blobs may be shared.
type Sweeper struct {
	cron   *cron.Cron
	jobs   domain.ApplyJobRepository
	audit  domain.AuditRepository
	logger *slog.Logger

	schedule       string
	jobRetention   time.Duration
	auditRetention time.Duration
}

// NewSweeper creates a retention sweeper. Zero retention windows disable
// the corresponding purge.
func NewSweeper(jobs domain.ApplyJobRepository, audit domain.AuditRepository, logger *slog.Logger, schedule string, jobRetention, auditRetention time.Duration) *Sweeper {
	if schedule == "" {
		schedule = "@hourly"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		cron:           cron.New(),
		jobs:           jobs,
		audit:          audit,
		logger:         logger,
		schedule:       schedule,
		jobRetention:   jobRetention,
		auditRetention: auditRetention,
	}
}

// Start registers the sweep and starts the cron scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(context.Background())
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("retention sweeper started", "schedule", s.schedule)
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Sweeper) Stop() {
	s.cron.Stop()
	s.logger.Info("retention sweeper stopped")
}

// Sweep runs one purge pass. Exposed for manual triggering and tests.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	if s.jobRetention > 0 {
		n, err := s.jobs.PurgeTerminalOlderThan(ctx, now.Add(-s.jobRetention))
		if err != nil {
			s.logger.Warn("purge apply jobs failed", "error", err)
		} else if n > 0 {
			s.logger.Info("purged terminal apply jobs", "count", n)
		}
	}

	if s.auditRetention > 0 {
		n, err := s.audit.PurgeOlderThan(ctx, now.Add(-s.auditRetention))
		if err != nil {
			s.logger.Warn("purge audit entries failed", "error", err)
		} else if n > 0 {
			s.logger.Info("purged audit entries", "count", n)
		}
	}
}
