package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schoolhub/library-service/internal/domain/loan"
	"github.com/schoolhub/library-service/internal/domain/rentalrule"
	"github.com/schoolhub/library-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RETURN BOOK COMMAND
// Closes an open loan (active or overdue) and releases the copy back to
// the catalog. A late fee is assessed only when requested and the loan's
// rule charges one.
// ══════════════════════════════════════════════════════════════════════════════

// ReturnBookCommand contains the data to check a book back in.
type ReturnBookCommand struct {
	// LoanID is the loan being closed.
	LoanID string

	// Notes is free-form commentary recorded at return.
	Notes string

	// Condition describes the state of the returned copy, recorded with
	// the return notes.
	Condition string

	// ApplyLateFee charges the rule's late fee for overdue days. Off by
	// default: whether to charge is the desk's call.
	ApplyLateFee bool
}

// Validate validates the command.
func (c ReturnBookCommand) Validate() error {
	if c.LoanID == "" {
		return errors.New("return_book: loan_id is required")
	}
	return nil
}

// ReturnBookResult contains the result of a return.
type ReturnBookResult struct {
	// Loan is the closed loan.
	Loan *loan.Loan

	// WasOverdue indicates the loan was past due when returned.
	WasOverdue bool

	// DaysOverdue is the number of whole days past the due date.
	DaysOverdue int

	// LateFee is the fee charged, zero when none.
	LateFee float64

	// Events contains domain events generated.
	Events []shared.Event
}

// ReturnBookHandler handles the ReturnBookCommand.
type ReturnBookHandler struct {
	loanRepo       loan.Repository
	ruleRepo       rentalrule.Repository
	loanCache      loan.Cache
	bookCache      bookCacheInvalidator
	eventPublisher shared.EventPublisher

	now func() time.Time
}

// bookCacheInvalidator is the slice of book.Cache the return path needs.
type bookCacheInvalidator interface {
	Delete(ctx context.Context, id string) error
}

// NewReturnBookHandler creates a new ReturnBookHandler.
func NewReturnBookHandler(
	loanRepo loan.Repository,
	ruleRepo rentalrule.Repository,
	loanCache loan.Cache,
	bookCache bookCacheInvalidator,
	eventPublisher shared.EventPublisher,
) *ReturnBookHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	return &ReturnBookHandler{
		loanRepo:       loanRepo,
		ruleRepo:       ruleRepo,
		loanCache:      loanCache,
		bookCache:      bookCache,
		eventPublisher: eventPublisher,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the return.
func (h *ReturnBookHandler) Handle(ctx context.Context, cmd ReturnBookCommand) (*ReturnBookResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("return_book: validation failed: %w", err)
	}

	l, err := h.loanRepo.GetByID(ctx, cmd.LoanID)
	if err != nil {
		return nil, err
	}

	now := h.now()
	wasOverdue := l.IsPastDue(now)
	daysOverdue := l.DaysOverdue(now)

	if err := l.Close(now, returnNotes(cmd)); err != nil {
		return nil, err
	}

	var fee float64
	if cmd.ApplyLateFee {
		fee = h.assessLateFee(ctx, l, daysOverdue)
	}
	if fee > 0 {
		l.ApplyLateFee(fee)
	}

	// Transactional close + counter increment (capped at copies_total).
	if err := h.loanRepo.Return(ctx, l); err != nil {
		return nil, err
	}

	h.invalidate(ctx, l)

	events := []shared.Event{loan.NewReturnedEvent(l, wasOverdue)}
	for _, ev := range events {
		_ = h.eventPublisher.Publish(ev)
	}

	return &ReturnBookResult{
		Loan:        l,
		WasOverdue:  wasOverdue,
		DaysOverdue: daysOverdue,
		LateFee:     fee,
		Events:      events,
	}, nil
}

// returnNotes folds the reported condition into the stored notes.
func returnNotes(cmd ReturnBookCommand) string {
	if cmd.Condition == "" {
		return cmd.Notes
	}
	if cmd.Notes == "" {
		return "condition: " + cmd.Condition
	}
	return cmd.Notes + " (condition: " + cmd.Condition + ")"
}

// assessLateFee looks up the loan's rule and computes the fee. A missing
// rule or a lookup failure means no fee: the return must not be blocked
// by fee bookkeeping.
func (h *ReturnBookHandler) assessLateFee(ctx context.Context, l *loan.Loan, daysOverdue int) float64 {
	if daysOverdue <= 0 || l.RentalRuleID == "" {
		return 0
	}
	rule, err := h.ruleRepo.GetByID(ctx, l.RentalRuleID)
	if err != nil {
		return 0
	}
	return rule.LateFee(daysOverdue)
}

func (h *ReturnBookHandler) invalidate(ctx context.Context, l *loan.Loan) {
	if h.loanCache != nil {
		_ = h.loanCache.DeleteLoan(ctx, l.ID)
		_ = h.loanCache.DeleteStatistics(ctx, l.SchoolID)
	}
	if h.bookCache != nil {
		_ = h.bookCache.Delete(ctx, l.BookID)
	}
}
