package query

import (
	"context"
	"errors"
	"time"

	"github.com/schoolhub/library-service/internal/domain/loan"
	"github.com/schoolhub/library-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOAN STATISTICS QUERY
// Circulation report for a school, or globally when no school is given:
// totals by status, top borrowers, most loaned books. Aggregation is a
// single database round trip, cached per scope and period.
// ══════════════════════════════════════════════════════════════════════════════

// StatisticsTTL is how long a computed report stays cached.
const StatisticsTTL = 10 * time.Minute

// DefaultTopN is the ranking depth when none is requested.
const DefaultTopN = 5

// LoanStatisticsQuery contains the report parameters.
type LoanStatisticsQuery struct {
	// SchoolID scopes the report. Optional; empty spans every school.
	SchoolID string

	// Period filters on rental date. Optional; zero means all time.
	Period shared.TimeRange

	// TopN is the ranking depth for borrowers and books.
	TopN int
}

// Validate validates the query.
func (q LoanStatisticsQuery) Validate() error {
	if !q.Period.IsValid() {
		return errors.New("loan_statistics: period end precedes period start")
	}
	return nil
}

// LoanStatisticsHandler handles the LoanStatisticsQuery.
type LoanStatisticsHandler struct {
	loanRepo  loan.Repository
	loanCache loan.Cache
}

// NewLoanStatisticsHandler creates a new LoanStatisticsHandler.
func NewLoanStatisticsHandler(loanRepo loan.Repository, loanCache loan.Cache) *LoanStatisticsHandler {
	return &LoanStatisticsHandler{
		loanRepo:  loanRepo,
		loanCache: loanCache,
	}
}

// Handle executes the query.
func (h *LoanStatisticsHandler) Handle(ctx context.Context, q LoanStatisticsQuery) (*loan.Statistics, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	filter := loan.StatisticsFilter{
		SchoolID: q.SchoolID,
		Period:   q.Period,
		TopN:     q.TopN,
	}
	if filter.TopN <= 0 {
		filter.TopN = DefaultTopN
	}

	if h.loanCache != nil {
		if cached, err := h.loanCache.GetStatistics(ctx, filter); err == nil && cached != nil {
			return cached, nil
		}
	}

	stats, err := h.loanRepo.Statistics(ctx, filter)
	if err != nil {
		return nil, err
	}

	if h.loanCache != nil {
		_ = h.loanCache.SetStatistics(ctx, filter, stats, StatisticsTTL)
	}

	return stats, nil
}
