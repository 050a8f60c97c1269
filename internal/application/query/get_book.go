package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schoolhub/library-service/internal/domain/book"
	"github.com/schoolhub/library-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOOK QUERIES
// Single-book read (cache-aside) and a paginated catalog listing.
// Availability is recomputed from the counters on every read.
// ══════════════════════════════════════════════════════════════════════════════

// BookTTL is how long a single book stays cached.
const BookTTL = 5 * time.Minute

// GetBookQuery contains the parameters for a single-book read.
type GetBookQuery struct {
	// BookID is the book to fetch.
	BookID string
}

// Validate validates the query.
func (q GetBookQuery) Validate() error {
	if q.BookID == "" {
		return errors.New("get_book: book_id is required")
	}
	return nil
}

// GetBookHandler handles the GetBookQuery.
type GetBookHandler struct {
	bookRepo  book.Repository
	bookCache book.Cache
}

// NewGetBookHandler creates a new GetBookHandler.
func NewGetBookHandler(bookRepo book.Repository, bookCache book.Cache) *GetBookHandler {
	return &GetBookHandler{
		bookRepo:  bookRepo,
		bookCache: bookCache,
	}
}

// Handle executes the query.
func (h *GetBookHandler) Handle(ctx context.Context, q GetBookQuery) (*book.Book, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if h.bookCache != nil {
		if cached, err := h.bookCache.Get(ctx, q.BookID); err == nil && cached != nil {
			return cached, nil
		}
	}

	b, err := h.bookRepo.GetByID(ctx, q.BookID)
	if err != nil {
		return nil, err
	}

	if h.bookCache != nil {
		_ = h.bookCache.Set(ctx, b, BookTTL)
	}

	return b, nil
}

// ListBooksQuery contains the catalog listing parameters.
type ListBooksQuery struct {
	// SchoolID limits results to one school. Optional.
	SchoolID string

	// Status filters by catalog status. Optional.
	Status book.Status

	// Search is matched against title and author. Optional.
	Search string

	// Pagination controls page and page size.
	Pagination shared.Pagination
}

// Validate validates the query.
func (q ListBooksQuery) Validate() error {
	if q.Status != "" && !q.Status.IsValid() {
		return fmt.Errorf("list_books: unknown status %q", q.Status)
	}
	return nil
}

// ListBooksResult is one page of books with paging metadata.
type ListBooksResult struct {
	Books []*book.Book
	Meta  shared.PageMeta
}

// ListBooksHandler handles the ListBooksQuery.
type ListBooksHandler struct {
	bookRepo book.Repository
}

// NewListBooksHandler creates a new ListBooksHandler.
func NewListBooksHandler(bookRepo book.Repository) *ListBooksHandler {
	return &ListBooksHandler{bookRepo: bookRepo}
}

// Handle executes the query.
func (h *ListBooksHandler) Handle(ctx context.Context, q ListBooksQuery) (*ListBooksResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	filter := book.ListFilter{
		SchoolID: q.SchoolID,
		Status:   q.Status,
		Search:   q.Search,
		Limit:    q.Pagination.Limit(),
		Offset:   q.Pagination.Offset(),
	}

	books, total, err := h.bookRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []*book.Book{}
	}

	return &ListBooksResult{
		Books: books,
		Meta:  shared.NewPageMeta(q.Pagination, total),
	}, nil
}
