package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/schoolhub/library-service/internal/application/query"
	"github.com/schoolhub/library-service/internal/domain/shared"
	"github.com/schoolhub/library-service/pkg/retry"
	"github.com/schoolhub/library-service/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH STATISTICS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshStatisticsJob warms the circulation statistics cache for the
// configured schools so dashboard reads rarely hit the database cold.
// Each school gets two reports warmed: all-time and current month.
type RefreshStatisticsJob struct {
	handler *query.LoanStatisticsHandler
	retrier *retry.Retrier
	logger  *slog.Logger

	config RefreshStatisticsConfig

	lastRunStats atomic.Value // *RefreshStats
}

// RefreshStatisticsConfig contains configuration for the refresh job.
type RefreshStatisticsConfig struct {
	// SchoolIDs are the schools whose reports get warmed.
	SchoolIDs []string

	// TopN is the ranking depth for warmed reports.
	TopN int

	// Timeout is the maximum duration for one refresh pass.
	Timeout time.Duration
}

// DefaultRefreshStatisticsConfig returns sensible defaults.
func DefaultRefreshStatisticsConfig() RefreshStatisticsConfig {
	return RefreshStatisticsConfig{
		TopN:    query.DefaultTopN,
		Timeout: 2 * time.Minute,
	}
}

// RefreshStats contains statistics from a refresh run.
type RefreshStats struct {
	StartedAt     time.Time
	CompletedAt   time.Time
	Duration      time.Duration
	SchoolsWarmed int
	ReportsWarmed int
	ReportsFailed int
	Errors        []error
}

// NewRefreshStatisticsJob creates a new refresh job.
func NewRefreshStatisticsJob(
	handler *query.LoanStatisticsHandler,
	logger *slog.Logger,
	config RefreshStatisticsConfig,
) *RefreshStatisticsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.TopN <= 0 {
		config.TopN = query.DefaultTopN
	}

	return &RefreshStatisticsJob{
		handler: handler,
		retrier: retry.CacheRetrier(),
		logger:  logger,
		config:  config,
	}
}

// Name returns the job name.
func (j *RefreshStatisticsJob) Name() string {
	return "refresh_statistics"
}

// Description returns a human-readable description.
func (j *RefreshStatisticsJob) Description() string {
	return "Warms the circulation statistics cache for configured schools"
}

// Run executes one refresh pass.
func (j *RefreshStatisticsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &RefreshStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	now := timeutil.Now()
	monthStart := timeutil.StartOfMonth(now)

	for _, schoolID := range j.config.SchoolIDs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		queries := []query.LoanStatisticsQuery{
			{SchoolID: schoolID, TopN: j.config.TopN},
			{SchoolID: schoolID, TopN: j.config.TopN, Period: shared.TimeRange{From: monthStart}},
		}

		for _, q := range queries {
			if err := j.warm(ctx, q); err != nil {
				stats.ReportsFailed++
				stats.Errors = append(stats.Errors, err)
				j.logger.Warn("failed to warm statistics",
					"school_id", schoolID,
					"error", err,
				)
				continue
			}
			stats.ReportsWarmed++
		}
		stats.SchoolsWarmed++
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("statistics refresh completed",
		"schools", stats.SchoolsWarmed,
		"reports_warmed", stats.ReportsWarmed,
		"reports_failed", stats.ReportsFailed,
		"duration", stats.Duration.String(),
	)

	if stats.ReportsFailed > 0 {
		return fmt.Errorf("refresh completed with %d failed reports", stats.ReportsFailed)
	}

	return nil
}

// warm computes one report through the query handler, which stores it in
// cache on the way out.
func (j *RefreshStatisticsJob) warm(ctx context.Context, q query.LoanStatisticsQuery) error {
	return j.retrier.Do(ctx, func(ctx context.Context) error {
		if _, err := j.handler.Handle(ctx, q); err != nil {
			return retry.Retryable(err)
		}
		return nil
	})
}

// LastRunStats returns statistics from the last run.
func (j *RefreshStatisticsJob) LastRunStats() *RefreshStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*RefreshStats)
}
