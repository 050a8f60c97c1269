// Package book contains the catalog book domain model.
// This is core business logic - no external dependencies here.
package book

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/schoolhub/library-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Status represents the catalog status of a book.
type Status string

const (
	// StatusActive - the book is in circulation.
	StatusActive Status = "active"

	// StatusArchived - the book is withdrawn from circulation.
	StatusArchived Status = "archived"

	// StatusLost - all copies are reported lost.
	StatusLost Status = "lost"

	// StatusDamaged - the book is being repaired or assessed.
	StatusDamaged Status = "damaged"
)

// IsValid checks that the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusArchived, StatusLost, StatusDamaged:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// AvailabilityStatus is the derived, user-facing availability of a book.
// It is recomputed on every read and never stored.
type AvailabilityStatus string

const (
	// AvailabilityAvailable - the book can be checked out right now.
	AvailabilityAvailable AvailabilityStatus = "AVAILABLE"

	// AvailabilityCheckedOut - all copies are currently on loan.
	AvailabilityCheckedOut AvailabilityStatus = "CHECKED_OUT"

	// AvailabilityProcessing - the book is not in active circulation
	// (archived, lost, or damaged).
	AvailabilityProcessing AvailabilityStatus = "PROCESSING"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Book represents a catalog entry with physical copy counters.
//
// Invariant: 0 <= CopiesAvailable <= CopiesTotal. The counters are the only
// cross-entity mutable state touched by the loan workflow, so every mutation
// happens atomically with the corresponding loan row change.
type Book struct {
	ID              string      `json:"id"`
	SchoolID        string      `json:"schoolId"`
	Title           string      `json:"title"`
	Author          string      `json:"author,omitempty"`
	ISBN            shared.ISBN `json:"isbn,omitempty"`
	CopiesTotal     int         `json:"copiesTotal"`
	CopiesAvailable int         `json:"copiesAvailable"`
	Status          Status      `json:"status"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// New creates a new catalog entry with all copies available.
func New(id, schoolID, title, author string, isbn shared.ISBN, copies int) (*Book, error) {
	b := &Book{
		ID:              id,
		SchoolID:        schoolID,
		Title:           strings.TrimSpace(title),
		Author:          strings.TrimSpace(author),
		ISBN:            isbn,
		CopiesTotal:     copies,
		CopiesAvailable: copies,
		Status:          StatusActive,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks entity invariants.
func (b *Book) Validate() error {
	if b.ID == "" {
		return shared.NewDomainError("book", "Validate", shared.ErrInvalidID, "book ID is required")
	}
	if b.SchoolID == "" {
		return shared.NewDomainError("book", "Validate", shared.ErrInvalidID, "school ID is required")
	}
	if b.Title == "" {
		return shared.NewDomainError("book", "Validate", shared.ErrEmptyValue, "title is required")
	}
	if !b.Status.IsValid() {
		return shared.NewDomainError("book", "Validate", shared.ErrInvalidInput, "unknown book status")
	}
	if b.CopiesTotal < 0 {
		return shared.NewDomainError("book", "Validate", shared.ErrNegativeValue, "total copies cannot be negative")
	}
	if b.CopiesAvailable < 0 || b.CopiesAvailable > b.CopiesTotal {
		return shared.ErrInvalidCopyCount
	}
	return nil
}

// IsAvailable reports whether the book can be checked out right now.
func (b *Book) IsAvailable() bool {
	return b.Status == StatusActive && b.CopiesAvailable > 0
}

// Availability derives the user-facing availability status.
func (b *Book) Availability() AvailabilityStatus {
	if b.Status != StatusActive {
		return AvailabilityProcessing
	}
	if b.CopiesAvailable <= 0 {
		return AvailabilityCheckedOut
	}
	return AvailabilityAvailable
}

// MarshalJSON adds the derived availability to the serialized form.
// Availability is never stored, so it is injected here at read time.
func (b *Book) MarshalJSON() ([]byte, error) {
	type plain Book
	return json.Marshal(struct {
		*plain
		Availability AvailabilityStatus `json:"availability"`
	}{(*plain)(b), b.Availability()})
}

// TakeCopy decrements the available counter for a checkout.
// Returns ErrBookUnavailable when no copy can be taken.
func (b *Book) TakeCopy() error {
	if !b.IsAvailable() {
		return shared.ErrBookUnavailable
	}
	b.CopiesAvailable--
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// ReturnCopy increments the available counter for a checkin,
// capped at the total copy count.
func (b *Book) ReturnCopy() {
	if b.CopiesAvailable < b.CopiesTotal {
		b.CopiesAvailable++
	}
	b.UpdatedAt = time.Now().UTC()
}

// ChangeStatus moves the book to a new catalog status.
func (b *Book) ChangeStatus(status Status) error {
	if !status.IsValid() {
		return shared.ErrInvalidBookStatus
	}
	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	return nil
}
