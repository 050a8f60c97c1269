package book

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the persistence contract for books.
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines persistence operations for books.
type Repository interface {
	// Create inserts a new catalog entry.
	// Returns ErrBookAlreadyExists on an ISBN collision within a school.
	Create(ctx context.Context, b *Book) error

	// GetByID returns a book by ID.
	// Returns ErrBookNotFound if the book does not exist.
	GetByID(ctx context.Context, id string) (*Book, error)

	// Update persists changes to a book (status, counters, metadata).
	// Returns ErrBookNotFound if the book does not exist.
	Update(ctx context.Context, b *Book) error

	// List returns books matching the filter with pagination, plus the total count.
	List(ctx context.Context, filter ListFilter) ([]*Book, int, error)

	// Exists checks whether a book exists.
	Exists(ctx context.Context, id string) (bool, error)
}

// ListFilter narrows a book listing.
type ListFilter struct {
	SchoolID string
	Status   Status
	Search   string // matched against title and author
	Limit    int
	Offset   int
}

// Cache is a best-effort read cache for books. A miss or a cache failure
// always falls through to the repository.
type Cache interface {
	Get(ctx context.Context, id string) (*Book, error)
	Set(ctx context.Context, b *Book, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}
