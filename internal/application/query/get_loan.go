// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"time"

	"github.com/schoolhub/library-service/internal/domain/loan"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LOAN QUERY
// Cache-aside single-loan read: cache hit returns immediately, a miss or
// any cache failure falls through to the database and repopulates.
// ══════════════════════════════════════════════════════════════════════════════

// LoanTTL is how long a single loan stays cached.
const LoanTTL = 5 * time.Minute

// GetLoanQuery contains the parameters for a single-loan read.
type GetLoanQuery struct {
	// LoanID is the loan to fetch.
	LoanID string
}

// Validate validates the query.
func (q GetLoanQuery) Validate() error {
	if q.LoanID == "" {
		return errors.New("get_loan: loan_id is required")
	}
	return nil
}

// GetLoanHandler handles the GetLoanQuery.
type GetLoanHandler struct {
	loanRepo  loan.Repository
	loanCache loan.Cache
}

// NewGetLoanHandler creates a new GetLoanHandler.
func NewGetLoanHandler(loanRepo loan.Repository, loanCache loan.Cache) *GetLoanHandler {
	return &GetLoanHandler{
		loanRepo:  loanRepo,
		loanCache: loanCache,
	}
}

// Handle executes the query.
func (h *GetLoanHandler) Handle(ctx context.Context, q GetLoanQuery) (*loan.Loan, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if h.loanCache != nil {
		if cached, err := h.loanCache.GetLoan(ctx, q.LoanID); err == nil && cached != nil {
			return cached, nil
		}
	}

	l, err := h.loanRepo.GetByID(ctx, q.LoanID)
	if err != nil {
		return nil, err
	}

	if h.loanCache != nil {
		_ = h.loanCache.SetLoan(ctx, l, LoanTTL)
	}

	return l, nil
}
