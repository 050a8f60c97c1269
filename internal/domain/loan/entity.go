// Package loan contains the circulation loan domain model: the lifecycle
// of one checkout transaction linking a book and a member.
// This is core business logic - no external dependencies here.
package loan

import (
	"time"

	"github.com/schoolhub/library-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Status represents the lifecycle status of a loan.
//
// Allowed transitions: active→returned, active→overdue, overdue→returned.
// An overdue loan is still open: the book remains with the borrower until
// it is checked in.
type Status string

const (
	// StatusActive - the book is with the borrower, due date not passed.
	StatusActive Status = "active"

	// StatusReturned - the loan is closed.
	StatusReturned Status = "returned"

	// StatusOverdue - the due date passed without a return.
	StatusOverdue Status = "overdue"
)

// IsValid checks that the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusReturned, StatusOverdue:
		return true
	}
	return false
}

// IsOpen reports whether the book is still with the borrower.
func (s Status) IsOpen() bool {
	return s == StatusActive || s == StatusOverdue
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Loan represents one checkout transaction.
//
// Invariants: ReturnDate is non-nil iff Status is returned;
// DueDate is never before RentalDate.
type Loan struct {
	ID           string     `json:"id"`
	BookID       string     `json:"bookId"`
	MemberID     string     `json:"memberId"`
	SchoolID     string     `json:"schoolId"`
	RentalRuleID string     `json:"rentalRuleId,omitempty"` // empty when no rule was applied
	Status       Status     `json:"status"`
	RentalDate   time.Time  `json:"rentalDate"`
	DueDate      time.Time  `json:"dueDate"`
	ReturnDate   *time.Time `json:"returnDate,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	LateFee      *float64   `json:"lateFee,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	// Denormalized display fields, populated on hydrated reads.
	BookTitle  string `json:"bookTitle,omitempty"`
	MemberName string `json:"memberName,omitempty"`
}

// New creates a new active loan.
func New(id, bookID, memberID, schoolID string, rentalDate, dueDate time.Time) (*Loan, error) {
	l := &Loan{
		ID:         id,
		BookID:     bookID,
		MemberID:   memberID,
		SchoolID:   schoolID,
		Status:     StatusActive,
		RentalDate: rentalDate,
		DueDate:    dueDate,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Validate checks entity invariants.
func (l *Loan) Validate() error {
	if l.ID == "" {
		return shared.NewDomainError("loan", "Validate", shared.ErrInvalidID, "loan ID is required")
	}
	if l.BookID == "" {
		return shared.NewDomainError("loan", "Validate", shared.ErrInvalidID, "book ID is required")
	}
	if l.MemberID == "" {
		return shared.NewDomainError("loan", "Validate", shared.ErrInvalidID, "member ID is required")
	}
	if !l.Status.IsValid() {
		return shared.NewDomainError("loan", "Validate", shared.ErrInvalidInput, "unknown loan status")
	}
	if l.DueDate.Before(l.RentalDate) {
		return shared.ErrInvalidDueDate
	}
	if (l.ReturnDate != nil) != (l.Status == StatusReturned) {
		return shared.NewDomainError("loan", "Validate", shared.ErrInvalidState, "return date must be set exactly when the loan is returned")
	}
	return nil
}

// IsOpen reports whether the book is still with the borrower.
func (l *Loan) IsOpen() bool {
	return l.Status.IsOpen()
}

// IsPastDue reports whether the due date has passed at the given time.
func (l *Loan) IsPastDue(now time.Time) bool {
	return l.IsOpen() && l.DueDate.Before(now)
}

// DaysOverdue returns the number of whole days past the due date at the
// given time. Zero when the loan is not past due.
func (l *Loan) DaysOverdue(now time.Time) int {
	if !now.After(l.DueDate) {
		return 0
	}
	return int(now.Sub(l.DueDate).Hours() / 24)
}

// Close marks the loan returned at the given time.
// Returns ErrLoanNotActive when the loan is already closed.
func (l *Loan) Close(now time.Time, notes string) error {
	if !l.IsOpen() {
		return shared.ErrLoanNotActive
	}
	returnedAt := now
	l.Status = StatusReturned
	l.ReturnDate = &returnedAt
	if notes != "" {
		l.Notes = notes
	}
	l.UpdatedAt = now.UTC()
	return nil
}

// ApplyLateFee records the late fee charged at return.
func (l *Loan) ApplyLateFee(fee float64) {
	if fee <= 0 {
		return
	}
	l.LateFee = &fee
}

// Renew extends the due date. Only active loans can be renewed; an overdue
// loan must be returned first.
func (l *Loan) Renew(newDueDate time.Time, notes string) error {
	if l.Status != StatusActive {
		return shared.ErrLoanNotActive
	}
	if newDueDate.Before(l.RentalDate) {
		return shared.ErrInvalidDueDate
	}
	l.DueDate = newDueDate
	if notes != "" {
		l.Notes = notes
	}
	l.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkOverdue flips an active loan past its due date to overdue.
// Returns false when the loan state did not change, which makes the
// operation idempotent.
func (l *Loan) MarkOverdue(now time.Time) bool {
	if l.Status != StatusActive || !l.DueDate.Before(now) {
		return false
	}
	l.Status = StatusOverdue
	l.UpdatedAt = now.UTC()
	return true
}
