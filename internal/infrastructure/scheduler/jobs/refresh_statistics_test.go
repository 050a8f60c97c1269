package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/library-service/internal/application/query"
	"github.com/schoolhub/library-service/internal/domain/loan"
	"github.com/schoolhub/library-service/internal/domain/shared"
)

// refreshLoanRepo is a loan repository double for the statistics path.
type refreshLoanRepo struct {
	mu          sync.Mutex
	filters     []loan.StatisticsFilter
	failSchools map[string]error
}

func (r *refreshLoanRepo) Checkout(context.Context, *loan.Loan) error { return nil }
func (r *refreshLoanRepo) Return(context.Context, *loan.Loan) error   { return nil }
func (r *refreshLoanRepo) Renew(context.Context, *loan.Loan) error    { return nil }

func (r *refreshLoanRepo) GetByID(context.Context, string) (*loan.Loan, error) {
	return nil, shared.ErrLoanNotFound
}

func (r *refreshLoanRepo) List(context.Context, loan.ListFilter) ([]*loan.Loan, int, error) {
	return nil, 0, nil
}

func (r *refreshLoanRepo) CountActiveByMember(context.Context, string) (int, error) { return 0, nil }

func (r *refreshLoanRepo) MarkOverdue(context.Context, time.Time) ([]string, error) {
	return nil, nil
}

func (r *refreshLoanRepo) Statistics(_ context.Context, f loan.StatisticsFilter) (*loan.Statistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = append(r.filters, f)
	if err := r.failSchools[f.SchoolID]; err != nil {
		return nil, err
	}
	return loan.EmptyStatistics(), nil
}

func newRefreshJob(repo *refreshLoanRepo, schoolIDs ...string) *RefreshStatisticsJob {
	cfg := DefaultRefreshStatisticsConfig()
	cfg.SchoolIDs = schoolIDs
	handler := query.NewLoanStatisticsHandler(repo, nil)
	return NewRefreshStatisticsJob(handler, nil, cfg)
}

func TestRefreshStatisticsJob(t *testing.T) {
	repo := &refreshLoanRepo{}
	job := newRefreshJob(repo, "school1", "school2")

	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.SchoolsWarmed)
	assert.Equal(t, 4, stats.ReportsWarmed)
	assert.Equal(t, 0, stats.ReportsFailed)

	// Each school gets an all-time report and a current-month report.
	require.Len(t, repo.filters, 4)
	assert.Equal(t, "school1", repo.filters[0].SchoolID)
	assert.True(t, repo.filters[0].Period.From.IsZero())
	assert.Equal(t, "school1", repo.filters[1].SchoolID)
	assert.False(t, repo.filters[1].Period.From.IsZero())
	assert.Equal(t, query.DefaultTopN, repo.filters[0].TopN)
}

func TestRefreshStatisticsJob_PartialFailure(t *testing.T) {
	repo := &refreshLoanRepo{
		failSchools: map[string]error{"school2": errors.New("database down")},
	}
	job := newRefreshJob(repo, "school1", "school2")

	err := job.Run(context.Background())
	assert.Error(t, err)

	// The healthy school is still warmed.
	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.SchoolsWarmed)
	assert.Equal(t, 2, stats.ReportsWarmed)
	assert.Equal(t, 2, stats.ReportsFailed)
	assert.Len(t, stats.Errors, 2)
}

func TestRefreshStatisticsJob_NoSchools(t *testing.T) {
	repo := &refreshLoanRepo{}
	job := newRefreshJob(repo)

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, repo.filters)

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 0, stats.SchoolsWarmed)
}

func TestRefreshStatisticsJob_Name(t *testing.T) {
	job := newRefreshJob(&refreshLoanRepo{})
	assert.Equal(t, "refresh_statistics", job.Name())
	assert.NotEmpty(t, job.Description())
}
