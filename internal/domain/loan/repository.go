package loan

import (
	"context"
	"time"

	"github.com/schoolhub/library-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the persistence contract for loans.
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines persistence operations for loans.
//
// Checkout and Return are the transactional boundary of the circulation
// workflow: the loan row change and the book counter change either both
// commit or both roll back.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Circulation (transactional)
	// ─────────────────────────────────────────────────────────────────────────

	// Checkout inserts the loan row and decrements the book's available
	// counter in one transaction. The decrement is conditional on the book
	// being active with at least one available copy; when the condition
	// fails the transaction rolls back and ErrBookUnavailable is returned.
	Checkout(ctx context.Context, l *Loan) error

	// Return persists a closed loan and increments the book's available
	// counter (capped at the total) in one transaction.
	// Returns ErrLoanNotFound if the loan row disappeared.
	Return(ctx context.Context, l *Loan) error

	// Renew persists an extended due date and notes. Book counters are
	// not touched: the book stays with the borrower.
	Renew(ctx context.Context, l *Loan) error

	// ─────────────────────────────────────────────────────────────────────────
	// Reads
	// ─────────────────────────────────────────────────────────────────────────

	// GetByID returns a hydrated loan (with book/member display fields).
	// Returns ErrLoanNotFound if the loan does not exist.
	GetByID(ctx context.Context, id string) (*Loan, error)

	// List returns loans matching the filter with pagination, plus the
	// total count of matching rows.
	List(ctx context.Context, filter ListFilter) ([]*Loan, int, error)

	// CountActiveByMember returns the number of open loans for a member.
	// Used for the per-rule concurrent loan limit at checkout.
	CountActiveByMember(ctx context.Context, memberID string) (int, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Maintenance & reporting
	// ─────────────────────────────────────────────────────────────────────────

	// MarkOverdue flips all active loans with a due date before the given
	// time to overdue and returns their IDs. Running it twice in a row
	// yields no additional changes.
	MarkOverdue(ctx context.Context, now time.Time) ([]string, error)

	// Statistics aggregates loan counts and top borrowers/books for the
	// filter. Zero matching rows yields zero counts and empty slices.
	Statistics(ctx context.Context, filter StatisticsFilter) (*Statistics, error)
}

// ListFilter narrows a loan listing.
type ListFilter struct {
	SchoolID string
	MemberID string
	BookID   string
	Status   Status          // empty means all statuses
	OnlyOpen bool            // active + overdue
	Period   shared.TimeRange // filters on rental date
	Limit    int
	Offset   int
}

// StatisticsFilter narrows the statistics aggregation.
type StatisticsFilter struct {
	SchoolID string
	Period   shared.TimeRange // filters on rental date
	TopN     int              // defaults to 5 when zero
}

// Statistics is the read-only circulation report.
type Statistics struct {
	TotalLoans    int            `json:"totalLoans"`
	ActiveLoans   int            `json:"activeLoans"`
	OverdueLoans  int            `json:"overdueLoans"`
	ReturnedLoans int            `json:"returnedLoans"`
	TopBorrowers  []BorrowerStat `json:"topBorrowers"`
	PopularBooks  []BookStat     `json:"mostPopularBooks"`
}

// BorrowerStat is one row of the top-borrowers ranking.
type BorrowerStat struct {
	MemberID   string `json:"memberId"`
	MemberName string `json:"memberName"`
	LoanCount  int    `json:"loanCount"`
}

// BookStat is one row of the most-loaned-books ranking.
type BookStat struct {
	BookID    string `json:"bookId"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	LoanCount int    `json:"loanCount"`
}

// EmptyStatistics returns a zero-valued report with non-nil slices, so an
// empty loan set serializes as empty arrays rather than null.
func EmptyStatistics() *Statistics {
	return &Statistics{
		TopBorrowers: []BorrowerStat{},
		PopularBooks: []BookStat{},
	}
}

// Cache is a best-effort read cache for loans and statistics. A miss or a
// cache failure always falls through to the repository.
type Cache interface {
	GetLoan(ctx context.Context, id string) (*Loan, error)
	SetLoan(ctx context.Context, l *Loan, ttl time.Duration) error
	DeleteLoan(ctx context.Context, id string) error

	GetStatistics(ctx context.Context, filter StatisticsFilter) (*Statistics, error)
	SetStatistics(ctx context.Context, filter StatisticsFilter, stats *Statistics, ttl time.Duration) error
	DeleteStatistics(ctx context.Context, schoolID string) error
}
