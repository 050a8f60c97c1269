package loan

import (
	"time"

	"github.com/schoolhub/library-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN EVENTS
// Raised by the circulation workflow and delivered through the event bus.
// ══════════════════════════════════════════════════════════════════════════════

// CheckedOutEvent is raised when a book is checked out.
type CheckedOutEvent struct {
	shared.BaseEvent
	LoanID   string
	BookID   string
	MemberID string
	SchoolID string
	DueDate  time.Time
}

// NewCheckedOutEvent creates a CheckedOutEvent for the given loan.
func NewCheckedOutEvent(l *Loan) CheckedOutEvent {
	return CheckedOutEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventLoanCheckedOut, l.ID),
		LoanID:    l.ID,
		BookID:    l.BookID,
		MemberID:  l.MemberID,
		SchoolID:  l.SchoolID,
		DueDate:   l.DueDate,
	}
}

// Payload implements shared.Event.
func (e CheckedOutEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"loan_id":   e.LoanID,
		"book_id":   e.BookID,
		"member_id": e.MemberID,
		"school_id": e.SchoolID,
		"due_date":  e.DueDate.Format(time.RFC3339),
	}
}

// ReturnedEvent is raised when a book is checked in.
type ReturnedEvent struct {
	shared.BaseEvent
	LoanID     string
	BookID     string
	MemberID   string
	SchoolID   string
	ReturnDate time.Time
	WasOverdue bool
	LateFee    float64
}

// NewReturnedEvent creates a ReturnedEvent for the given closed loan.
func NewReturnedEvent(l *Loan, wasOverdue bool) ReturnedEvent {
	ev := ReturnedEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventLoanReturned, l.ID),
		LoanID:     l.ID,
		BookID:     l.BookID,
		MemberID:   l.MemberID,
		SchoolID:   l.SchoolID,
		WasOverdue: wasOverdue,
	}
	if l.ReturnDate != nil {
		ev.ReturnDate = *l.ReturnDate
	}
	if l.LateFee != nil {
		ev.LateFee = *l.LateFee
	}
	return ev
}

// Payload implements shared.Event.
func (e ReturnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"loan_id":     e.LoanID,
		"book_id":     e.BookID,
		"member_id":   e.MemberID,
		"school_id":   e.SchoolID,
		"return_date": e.ReturnDate.Format(time.RFC3339),
		"was_overdue": e.WasOverdue,
		"late_fee":    e.LateFee,
	}
}

// RenewedEvent is raised when a loan's due date is extended.
type RenewedEvent struct {
	shared.BaseEvent
	LoanID     string
	BookID     string
	MemberID   string
	SchoolID   string
	OldDueDate time.Time
	NewDueDate time.Time
}

// NewRenewedEvent creates a RenewedEvent for the given loan.
func NewRenewedEvent(l *Loan, oldDueDate time.Time) RenewedEvent {
	return RenewedEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventLoanRenewed, l.ID),
		LoanID:     l.ID,
		BookID:     l.BookID,
		MemberID:   l.MemberID,
		SchoolID:   l.SchoolID,
		OldDueDate: oldDueDate,
		NewDueDate: l.DueDate,
	}
}

// Payload implements shared.Event.
func (e RenewedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"loan_id":      e.LoanID,
		"book_id":      e.BookID,
		"member_id":    e.MemberID,
		"school_id":    e.SchoolID,
		"old_due_date": e.OldDueDate.Format(time.RFC3339),
		"new_due_date": e.NewDueDate.Format(time.RFC3339),
	}
}

// OverdueEvent is raised for each loan the sweep flips to overdue.
type OverdueEvent struct {
	shared.BaseEvent
	LoanID string
}

// NewOverdueEvent creates an OverdueEvent for the given loan ID.
func NewOverdueEvent(loanID string) OverdueEvent {
	return OverdueEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventLoanOverdue, loanID),
		LoanID:    loanID,
	}
}

// Payload implements shared.Event.
func (e OverdueEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"loan_id": e.LoanID,
	}
}

// SweepCompletedEvent is raised once per overdue sweep run.
type SweepCompletedEvent struct {
	shared.BaseEvent
	MarkedCount int
	SweptAt     time.Time
}

// NewSweepCompletedEvent creates a SweepCompletedEvent.
func NewSweepCompletedEvent(markedCount int, sweptAt time.Time) SweepCompletedEvent {
	return SweepCompletedEvent{
		BaseEvent:   shared.NewBaseEvent(shared.EventSweepCompleted, "sweep"),
		MarkedCount: markedCount,
		SweptAt:     sweptAt,
	}
}

// Payload implements shared.Event.
func (e SweepCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"marked_count": e.MarkedCount,
		"swept_at":     e.SweptAt.Format(time.RFC3339),
	}
}
