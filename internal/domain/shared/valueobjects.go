// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ID represents an entity identifier (UUID format).
type ID string

// IsValid checks if the ID is a valid UUID.
func (i ID) IsValid() bool {
	return uuidRegex.MatchString(string(i))
}

// String returns the string representation.
func (i ID) String() string {
	return string(i)
}

// IsEmpty checks if the ID is empty.
func (i ID) IsEmpty() bool {
	return i == ""
}

// NewID creates a new ID with validation.
func NewID(id string) (ID, error) {
	v := ID(strings.ToLower(strings.TrimSpace(id)))
	if !v.IsValid() {
		return "", NewDomainError("shared", "NewID", ErrInvalidID, "invalid ID format")
	}
	return v, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// ISBN Value Object
// ═══════════════════════════════════════════════════════════════════════════

// ISBN represents a book ISBN (10 or 13 digits, hyphens allowed).
type ISBN string

var isbnRegex = regexp.MustCompile(`^(?:\d[- ]?){9}[\dXx]$|^(?:\d[- ]?){12}\d$`)

// IsValid checks if the ISBN has a plausible format.
// An empty ISBN is allowed; not every school catalog entry carries one.
func (i ISBN) IsValid() bool {
	if i == "" {
		return true
	}
	return isbnRegex.MatchString(string(i))
}

// String returns the string representation.
func (i ISBN) String() string {
	return string(i)
}

// Normalize strips hyphens and spaces.
func (i ISBN) Normalize() ISBN {
	s := strings.NewReplacer("-", "", " ", "").Replace(string(i))
	return ISBN(strings.ToUpper(s))
}

// NewISBN creates a new ISBN with validation.
func NewISBN(value string) (ISBN, error) {
	i := ISBN(strings.TrimSpace(value))
	if !i.IsValid() {
		return "", NewDomainError("shared", "NewISBN", ErrInvalidFormat, "invalid ISBN format")
	}
	return i.Normalize(), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a time period. Zero From or To means an open bound.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether both bounds are unset.
func (t TimeRange) IsZero() bool {
	return t.From.IsZero() && t.To.IsZero()
}

// IsValid checks that a closed range is ordered.
func (t TimeRange) IsValid() bool {
	if t.From.IsZero() || t.To.IsZero() {
		return true
	}
	return !t.From.After(t.To)
}

// Contains checks if a time is within the range, honoring open bounds.
func (t TimeRange) Contains(tm time.Time) bool {
	if !t.From.IsZero() && tm.Before(t.From) {
		return false
	}
	if !t.To.IsZero() && tm.After(t.To) {
		return false
	}
	return true
}

// NewTimeRange creates a new TimeRange with validation.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	tr := TimeRange{From: from, To: to}
	if !tr.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrInvalidInput, "'from' must be before 'to'")
	}
	return tr, nil
}

// LastNDays returns a TimeRange for the last N days.
func LastNDays(n int) TimeRange {
	now := time.Now()
	return TimeRange{
		From: now.AddDate(0, 0, -n),
		To:   now,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}

// PageMeta describes one page of a listing result.
type PageMeta struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalItems  int  `json:"totalItems"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// NewPageMeta builds page metadata from pagination parameters and a total count.
func NewPageMeta(p Pagination, totalItems int) PageMeta {
	limit := p.Limit()
	page := p.Page
	if page <= 0 {
		page = 1
	}

	totalPages := 0
	if totalItems > 0 {
		totalPages = (totalItems + limit - 1) / limit
	}

	return PageMeta{
		Page:        page,
		Limit:       limit,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1 && totalItems > 0,
	}
}
