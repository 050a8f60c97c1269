package query

import (
	"context"
	"fmt"

	"github.com/schoolhub/library-service/internal/domain/loan"
	"github.com/schoolhub/library-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST LOANS QUERY
// Paginated loan listing behind every collection endpoint: all loans,
// per-member active/history, per-school, filtered by status or period.
// Listings are not cached; the filter space is too wide to invalidate.
// ══════════════════════════════════════════════════════════════════════════════

// ListLoansQuery contains the listing parameters.
type ListLoansQuery struct {
	// SchoolID limits results to one school. Optional.
	SchoolID string

	// MemberID limits results to one borrower. Optional.
	MemberID string

	// BookID limits results to one title. Optional.
	BookID string

	// Status filters by exact loan status. Optional.
	Status loan.Status

	// OnlyOpen selects active and overdue loans, ignoring Status.
	OnlyOpen bool

	// Period filters on rental date. Optional.
	Period shared.TimeRange

	// Pagination controls page and page size.
	Pagination shared.Pagination
}

// Validate validates the query.
func (q ListLoansQuery) Validate() error {
	if q.Status != "" && !q.Status.IsValid() {
		return fmt.Errorf("list_loans: unknown status %q", q.Status)
	}
	if !q.Period.IsValid() {
		return fmt.Errorf("list_loans: period end precedes period start")
	}
	return nil
}

// ListLoansResult is one page of loans with paging metadata.
type ListLoansResult struct {
	Loans []*loan.Loan
	Meta  shared.PageMeta
}

// ListLoansHandler handles the ListLoansQuery.
type ListLoansHandler struct {
	loanRepo loan.Repository
}

// NewListLoansHandler creates a new ListLoansHandler.
func NewListLoansHandler(loanRepo loan.Repository) *ListLoansHandler {
	return &ListLoansHandler{loanRepo: loanRepo}
}

// Handle executes the query.
func (h *ListLoansHandler) Handle(ctx context.Context, q ListLoansQuery) (*ListLoansResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	filter := loan.ListFilter{
		SchoolID: q.SchoolID,
		MemberID: q.MemberID,
		BookID:   q.BookID,
		Status:   q.Status,
		OnlyOpen: q.OnlyOpen,
		Period:   q.Period,
		Limit:    q.Pagination.Limit(),
		Offset:   q.Pagination.Offset(),
	}

	loans, total, err := h.loanRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if loans == nil {
		loans = []*loan.Loan{}
	}

	return &ListLoansResult{
		Loans: loans,
		Meta:  shared.NewPageMeta(q.Pagination, total),
	}, nil
}
