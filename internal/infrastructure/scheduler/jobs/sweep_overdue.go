// Package jobs contains implementations of scheduled jobs for the library
// service worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/schoolhub/library-service/internal/application/command"
	"github.com/schoolhub/library-service/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP OVERDUE JOB
// ══════════════════════════════════════════════════════════════════════════════

// Locker serializes a job across worker instances. Acquisition is
// best-effort: when the lock cannot be taken the run is skipped, and the
// next scheduled run picks up whatever the holder missed.
type Locker interface {
	TryLock(ctx context.Context, resource string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, resource string) error
}

// SweepOverdueJob flips active loans past their due date to overdue.
// The sweep itself is one idempotent database statement, so the job body
// is mostly plumbing: locking, retries on transient failures, stats.
type SweepOverdueJob struct {
	handler *command.SweepOverdueHandler
	retrier *retry.Retrier
	locker  Locker
	logger  *slog.Logger

	config SweepOverdueConfig

	lastRunStats atomic.Value // *SweepStats
}

// SweepOverdueConfig contains configuration for the sweep job.
type SweepOverdueConfig struct {
	// LockTTL bounds how long a crashed run can block the next one.
	LockTTL time.Duration

	// Timeout is the maximum duration for one sweep pass.
	Timeout time.Duration
}

// DefaultSweepOverdueConfig returns sensible defaults.
func DefaultSweepOverdueConfig() SweepOverdueConfig {
	return SweepOverdueConfig{
		LockTTL: 30 * time.Second,
		Timeout: 1 * time.Minute,
	}
}

// SweepStats contains statistics from a sweep run.
type SweepStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	MarkedCount int
	Skipped     bool
}

// NewSweepOverdueJob creates a new sweep job. Locker may be nil for
// single-instance deployments.
func NewSweepOverdueJob(
	handler *command.SweepOverdueHandler,
	locker Locker,
	logger *slog.Logger,
	config SweepOverdueConfig,
) *SweepOverdueJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &SweepOverdueJob{
		handler: handler,
		retrier: retry.DatabaseRetrier(),
		locker:  locker,
		logger:  logger,
		config:  config,
	}
}

// Name returns the job name.
func (j *SweepOverdueJob) Name() string {
	return "sweep_overdue"
}

// Description returns a human-readable description.
func (j *SweepOverdueJob) Description() string {
	return "Marks active loans past their due date as overdue"
}

// Run executes one sweep pass.
func (j *SweepOverdueJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &SweepStats{StartedAt: startedAt}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	if j.locker != nil {
		acquired, err := j.locker.TryLock(ctx, j.Name(), j.config.LockTTL)
		if err != nil {
			// Lock failures degrade to running unlocked: the sweep is
			// idempotent and a missed run is worse than a double run.
			j.logger.Warn("sweep lock unavailable, running unlocked", "error", err)
		} else if !acquired {
			j.logger.Info("sweep already running elsewhere, skipping")
			stats.Skipped = true
			stats.CompletedAt = time.Now()
			stats.Duration = stats.CompletedAt.Sub(startedAt)
			j.lastRunStats.Store(stats)
			return nil
		} else {
			defer func() {
				if err := j.locker.Unlock(context.Background(), j.Name()); err != nil {
					j.logger.Warn("failed to release sweep lock", "error", err)
				}
			}()
		}
	}

	var result *command.SweepOverdueResult
	err := j.retrier.Do(ctx, func(ctx context.Context) error {
		var handleErr error
		result, handleErr = j.handler.Handle(ctx, command.SweepOverdueCommand{})
		if handleErr != nil {
			return retry.Retryable(handleErr)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("overdue sweep failed: %w", err)
	}

	stats.MarkedCount = len(result.MarkedLoanIDs)
	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("overdue sweep completed",
		"marked_count", stats.MarkedCount,
		"duration", stats.Duration.String(),
	)

	return nil
}

// LastRunStats returns statistics from the last run.
func (j *SweepOverdueJob) LastRunStats() *SweepStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*SweepStats)
}
