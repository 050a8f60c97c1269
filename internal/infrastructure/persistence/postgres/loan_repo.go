package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/schoolhub/library-service/internal/domain/loan"
	"github.com/schoolhub/library-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOAN REPOSITORY IMPLEMENTATION
// The circulation workflow's transactional boundary lives here: a loan row
// change and its book counter change always share one transaction.
// ══════════════════════════════════════════════════════════════════════════════

// LoanRepository implements loan.Repository for PostgreSQL.
type LoanRepository struct {
	conn *Connection
}

// NewLoanRepository creates a new LoanRepository.
func NewLoanRepository(conn *Connection) *LoanRepository {
	return &LoanRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Circulation (transactional)
// ─────────────────────────────────────────────────────────────────────────────

// Checkout inserts the loan row and decrements the book's available counter
// in one transaction. The decrement is conditional, so two concurrent
// checkouts of the last copy serialize on the book row and the loser gets
// ErrBookUnavailable after rollback.
func (l *LoanRepository) Checkout(ctx context.Context, ln *loan.Loan) error {
	return l.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE books
			SET copies_available = copies_available - 1,
			    updated_at = NOW()
			WHERE id = $1
			  AND status = 'active'
			  AND copies_available > 0
		`, ln.BookID)
		if err != nil {
			return fmt.Errorf("failed to reserve copy: %w", err)
		}
		if result.RowsAffected() == 0 {
			return shared.ErrBookUnavailable
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO loans (
				id, book_id, member_id, school_id, rental_rule_id,
				status, rental_date, due_date, notes, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			ln.ID,
			ln.BookID,
			ln.MemberID,
			ln.SchoolID,
			nullableID(ln.RentalRuleID),
			string(ln.Status),
			ln.RentalDate,
			ln.DueDate,
			ln.Notes,
			ln.CreatedAt,
			ln.UpdatedAt,
		)
		if err != nil {
			if IsForeignKeyViolation(err) {
				return shared.ErrMemberNotFound
			}
			return fmt.Errorf("failed to insert loan: %w", err)
		}

		return nil
	})
}

// Return persists a closed loan and releases the copy in one transaction.
// The increment is capped at copies_total so a double release can never
// overflow the counter.
func (l *LoanRepository) Return(ctx context.Context, ln *loan.Loan) error {
	return l.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE loans
			SET status = $1,
			    return_date = $2,
			    notes = $3,
			    late_fee = $4,
			    updated_at = $5
			WHERE id = $6
			  AND status IN ('active', 'overdue')
		`,
			string(ln.Status),
			ln.ReturnDate,
			ln.Notes,
			ln.LateFee,
			ln.UpdatedAt,
			ln.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to close loan: %w", err)
		}
		if result.RowsAffected() == 0 {
			// Raced with another return or the loan vanished.
			return shared.ErrLoanNotActive
		}

		_, err = tx.Exec(ctx, `
			UPDATE books
			SET copies_available = LEAST(copies_available + 1, copies_total),
			    updated_at = NOW()
			WHERE id = $1
		`, ln.BookID)
		if err != nil {
			return fmt.Errorf("failed to release copy: %w", err)
		}

		return nil
	})
}

// Renew persists an extended due date. Book counters are untouched.
func (l *LoanRepository) Renew(ctx context.Context, ln *loan.Loan) error {
	result, err := l.conn.Exec(ctx, `
		UPDATE loans
		SET due_date = $1,
		    notes = $2,
		    updated_at = $3
		WHERE id = $4
		  AND status = 'active'
	`,
		ln.DueDate,
		ln.Notes,
		ln.UpdatedAt,
		ln.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to renew loan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrLoanNotActive
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

const loanColumns = `
	l.id, l.book_id, l.member_id, l.school_id, l.rental_rule_id,
	l.status, l.rental_date, l.due_date, l.return_date, l.notes, l.late_fee,
	l.created_at, l.updated_at, b.title, m.display_name`

const loanJoins = `
	FROM loans l
	JOIN books b ON b.id = l.book_id
	JOIN members m ON m.id = l.member_id`

// GetByID returns a hydrated loan.
func (l *LoanRepository) GetByID(ctx context.Context, id string) (*loan.Loan, error) {
	query := `SELECT` + loanColumns + loanJoins + ` WHERE l.id = $1`

	row := l.conn.QueryRow(ctx, query, id)
	return scanLoan(row)
}

// List returns loans matching the filter with pagination.
func (l *LoanRepository) List(ctx context.Context, filter loan.ListFilter) ([]*loan.Loan, int, error) {
	where, args := buildLoanWhere(filter)

	countQuery := `SELECT COUNT(*) FROM loans l` + where
	var total int
	if err := l.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count loans: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = shared.DefaultPageSize
	}

	query := fmt.Sprintf(
		`SELECT`+loanColumns+loanJoins+`%s ORDER BY l.rental_date DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, filter.Offset)

	rows, err := l.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	loans := make([]*loan.Loan, 0)
	for rows.Next() {
		ln, err := scanLoan(rows)
		if err != nil {
			return nil, 0, err
		}
		loans = append(loans, ln)
	}

	return loans, total, rows.Err()
}

// CountActiveByMember returns the number of open loans for a member.
func (l *LoanRepository) CountActiveByMember(ctx context.Context, memberID string) (int, error) {
	var count int
	err := l.conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM loans
		WHERE member_id = $1
		  AND status IN ('active', 'overdue')
	`, memberID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open loans: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Maintenance & reporting
// ─────────────────────────────────────────────────────────────────────────────

// MarkOverdue flips all active loans due before the given time to overdue
// and returns their IDs. One idempotent statement: a second run right
// after matches no rows.
func (l *LoanRepository) MarkOverdue(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := l.conn.Query(ctx, `
		UPDATE loans
		SET status = 'overdue',
		    updated_at = $1
		WHERE status = 'active'
		  AND due_date < $1
		RETURNING id
	`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to mark overdue loans: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan overdue loan id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Statistics aggregates loan counts and rankings for the filter.
func (l *LoanRepository) Statistics(ctx context.Context, filter loan.StatisticsFilter) (*loan.Statistics, error) {
	topN := filter.TopN
	if topN <= 0 {
		topN = 5
	}

	where, args := buildStatsWhere(filter)
	stats := loan.EmptyStatistics()

	countQuery := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE l.status = 'active'),
		       COUNT(*) FILTER (WHERE l.status = 'overdue'),
		       COUNT(*) FILTER (WHERE l.status = 'returned')
		FROM loans l` + where
	err := l.conn.QueryRow(ctx, countQuery, args...).Scan(
		&stats.TotalLoans,
		&stats.ActiveLoans,
		&stats.OverdueLoans,
		&stats.ReturnedLoans,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate loan counts: %w", err)
	}

	borrowersQuery := fmt.Sprintf(`
		SELECT l.member_id, m.display_name, COUNT(*) AS loan_count
		FROM loans l
		JOIN members m ON m.id = l.member_id%s
		GROUP BY l.member_id, m.display_name
		ORDER BY loan_count DESC, m.display_name ASC
		LIMIT $%d
	`, where, len(args)+1)

	rows, err := l.conn.Query(ctx, borrowersQuery, append(args, topN)...)
	if err != nil {
		return nil, fmt.Errorf("failed to rank borrowers: %w", err)
	}
	for rows.Next() {
		var s loan.BorrowerStat
		if err := rows.Scan(&s.MemberID, &s.MemberName, &s.LoanCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan borrower stat: %w", err)
		}
		stats.TopBorrowers = append(stats.TopBorrowers, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	booksQuery := fmt.Sprintf(`
		SELECT l.book_id, b.title, b.author, COUNT(*) AS loan_count
		FROM loans l
		JOIN books b ON b.id = l.book_id%s
		GROUP BY l.book_id, b.title, b.author
		ORDER BY loan_count DESC, b.title ASC
		LIMIT $%d
	`, where, len(args)+1)

	rows, err = l.conn.Query(ctx, booksQuery, append(args, topN)...)
	if err != nil {
		return nil, fmt.Errorf("failed to rank books: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s loan.BookStat
		if err := rows.Scan(&s.BookID, &s.Title, &s.Author, &s.LoanCount); err != nil {
			return nil, fmt.Errorf("failed to scan book stat: %w", err)
		}
		stats.PopularBooks = append(stats.PopularBooks, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// nullableID maps an empty string to NULL for optional UUID columns.
func nullableID(id string) interface{} {
	if id == "" {
		return nil
	}
	return id
}

// buildLoanWhere assembles the WHERE clause for a loan listing.
func buildLoanWhere(filter loan.ListFilter) (string, []interface{}) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)

	if filter.SchoolID != "" {
		args = append(args, filter.SchoolID)
		conditions = append(conditions, fmt.Sprintf("l.school_id = $%d", len(args)))
	}
	if filter.MemberID != "" {
		args = append(args, filter.MemberID)
		conditions = append(conditions, fmt.Sprintf("l.member_id = $%d", len(args)))
	}
	if filter.BookID != "" {
		args = append(args, filter.BookID)
		conditions = append(conditions, fmt.Sprintf("l.book_id = $%d", len(args)))
	}
	if filter.OnlyOpen {
		conditions = append(conditions, "l.status IN ('active', 'overdue')")
	} else if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("l.status = $%d", len(args)))
	}
	if !filter.Period.From.IsZero() {
		args = append(args, filter.Period.From)
		conditions = append(conditions, fmt.Sprintf("l.rental_date >= $%d", len(args)))
	}
	if !filter.Period.To.IsZero() {
		args = append(args, filter.Period.To)
		conditions = append(conditions, fmt.Sprintf("l.rental_date <= $%d", len(args)))
	}

	return joinConditions(conditions), args
}

// buildStatsWhere assembles the WHERE clause for the statistics aggregation.
func buildStatsWhere(filter loan.StatisticsFilter) (string, []interface{}) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)

	if filter.SchoolID != "" {
		args = append(args, filter.SchoolID)
		conditions = append(conditions, fmt.Sprintf("l.school_id = $%d", len(args)))
	}
	if !filter.Period.From.IsZero() {
		args = append(args, filter.Period.From)
		conditions = append(conditions, fmt.Sprintf("l.rental_date >= $%d", len(args)))
	}
	if !filter.Period.To.IsZero() {
		args = append(args, filter.Period.To)
		conditions = append(conditions, fmt.Sprintf("l.rental_date <= $%d", len(args)))
	}

	return joinConditions(conditions), args
}

func joinConditions(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	where := " WHERE " + conditions[0]
	for _, c := range conditions[1:] {
		where += " AND " + c
	}
	return where
}

// scanLoan scans one hydrated loan row.
func scanLoan(row rowScanner) (*loan.Loan, error) {
	var ln loan.Loan
	var ruleID *string
	var status string
	var returnDate *time.Time
	var lateFee *float64

	err := row.Scan(
		&ln.ID,
		&ln.BookID,
		&ln.MemberID,
		&ln.SchoolID,
		&ruleID,
		&status,
		&ln.RentalDate,
		&ln.DueDate,
		&returnDate,
		&ln.Notes,
		&lateFee,
		&ln.CreatedAt,
		&ln.UpdatedAt,
		&ln.BookTitle,
		&ln.MemberName,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to scan loan: %w", err)
	}

	if ruleID != nil {
		ln.RentalRuleID = *ruleID
	}
	ln.Status = loan.Status(status)
	ln.ReturnDate = returnDate
	ln.LateFee = lateFee
	return &ln, nil
}
