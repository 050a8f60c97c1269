package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/schoolhub/library-service/internal/domain/book"
	"github.com/schoolhub/library-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOOK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BookRepository implements book.Repository for PostgreSQL.
type BookRepository struct {
	conn *Connection
}

// NewBookRepository creates a new BookRepository.
func NewBookRepository(conn *Connection) *BookRepository {
	return &BookRepository{conn: conn}
}

const bookColumns = `id, school_id, title, author, isbn, copies_total, copies_available, status, created_at, updated_at`

// Create creates a new catalog entry.
func (r *BookRepository) Create(ctx context.Context, b *book.Book) error {
	query := `
		INSERT INTO books (
			id, school_id, title, author, isbn,
			copies_total, copies_available, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.conn.Exec(ctx, query,
		b.ID,
		b.SchoolID,
		b.Title,
		b.Author,
		b.ISBN.String(),
		b.CopiesTotal,
		b.CopiesAvailable,
		string(b.Status),
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrBookAlreadyExists
		}
		return fmt.Errorf("failed to create book: %w", err)
	}

	return nil
}

// GetByID returns a book by ID.
func (r *BookRepository) GetByID(ctx context.Context, id string) (*book.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

	row := r.conn.QueryRow(ctx, query, id)
	return scanBook(row)
}

// Update persists changes to a book.
func (r *BookRepository) Update(ctx context.Context, b *book.Book) error {
	query := `
		UPDATE books SET
			title = $1,
			author = $2,
			isbn = $3,
			copies_total = $4,
			copies_available = $5,
			status = $6,
			updated_at = $7
		WHERE id = $8
	`

	result, err := r.conn.Exec(ctx, query,
		b.Title,
		b.Author,
		b.ISBN.String(),
		b.CopiesTotal,
		b.CopiesAvailable,
		string(b.Status),
		time.Now().UTC(),
		b.ID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrBookAlreadyExists
		}
		return fmt.Errorf("failed to update book: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrBookNotFound
	}

	return nil
}

// List returns books matching the filter with pagination.
func (r *BookRepository) List(ctx context.Context, filter book.ListFilter) ([]*book.Book, int, error) {
	where, args := buildBookWhere(filter)

	countQuery := `SELECT COUNT(*) FROM books` + where
	var total int
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count books: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = shared.DefaultPageSize
	}

	query := fmt.Sprintf(
		`SELECT `+bookColumns+` FROM books%s ORDER BY title ASC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, filter.Offset)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	books := make([]*book.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, err
		}
		books = append(books, b)
	}

	return books, total, rows.Err()
}

// Exists checks whether a book exists.
func (r *BookRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check book existence: %w", err)
	}
	return exists, nil
}

// buildBookWhere assembles the WHERE clause for a book listing.
func buildBookWhere(filter book.ListFilter) (string, []interface{}) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)

	if filter.SchoolID != "" {
		args = append(args, filter.SchoolID)
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR author ILIKE $%d)", len(args), len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}

	where := " WHERE " + conditions[0]
	for _, c := range conditions[1:] {
		where += " AND " + c
	}
	return where, args
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanBook scans one book row.
func scanBook(row rowScanner) (*book.Book, error) {
	var b book.Book
	var isbn, status string

	err := row.Scan(
		&b.ID,
		&b.SchoolID,
		&b.Title,
		&b.Author,
		&isbn,
		&b.CopiesTotal,
		&b.CopiesAvailable,
		&status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to scan book: %w", err)
	}

	b.ISBN = shared.ISBN(isbn)
	b.Status = book.Status(status)
	return &b, nil
}
