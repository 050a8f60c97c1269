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
// RENEW LOAN COMMAND
// Extends an active loan's due date by the rule's renewal period. Overdue
// loans cannot be renewed: the book must come back first.
// ══════════════════════════════════════════════════════════════════════════════

// RenewLoanCommand contains the data to renew a loan.
type RenewLoanCommand struct {
	// LoanID is the loan being renewed.
	LoanID string

	// DueDate optionally overrides the rule-derived new due date.
	DueDate *time.Time

	// Notes is free-form commentary recorded with the renewal.
	Notes string
}

// Validate validates the command.
func (c RenewLoanCommand) Validate() error {
	if c.LoanID == "" {
		return errors.New("renew_loan: loan_id is required")
	}
	return nil
}

// RenewLoanResult contains the result of a renewal.
type RenewLoanResult struct {
	// Loan is the renewed loan.
	Loan *loan.Loan

	// OldDueDate is the due date before the renewal.
	OldDueDate time.Time

	// Events contains domain events generated.
	Events []shared.Event
}

// RenewLoanHandler handles the RenewLoanCommand.
type RenewLoanHandler struct {
	loanRepo       loan.Repository
	ruleRepo       rentalrule.Repository
	loanCache      loan.Cache
	eventPublisher shared.EventPublisher

	now func() time.Time
}

// NewRenewLoanHandler creates a new RenewLoanHandler.
func NewRenewLoanHandler(
	loanRepo loan.Repository,
	ruleRepo rentalrule.Repository,
	loanCache loan.Cache,
	eventPublisher shared.EventPublisher,
) *RenewLoanHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	return &RenewLoanHandler{
		loanRepo:       loanRepo,
		ruleRepo:       ruleRepo,
		loanCache:      loanCache,
		eventPublisher: eventPublisher,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the renewal.
func (h *RenewLoanHandler) Handle(ctx context.Context, cmd RenewLoanCommand) (*RenewLoanResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("renew_loan: validation failed: %w", err)
	}

	l, err := h.loanRepo.GetByID(ctx, cmd.LoanID)
	if err != nil {
		return nil, err
	}

	rule, err := h.resolveRule(ctx, l)
	if err != nil {
		return nil, err
	}
	if rule != nil && !rule.RenewalAllowed {
		return nil, shared.ErrRenewalNotAllowed
	}

	oldDueDate := l.DueDate
	newDueDate := h.resolveDueDate(cmd, rule, l)

	if err := l.Renew(newDueDate, cmd.Notes); err != nil {
		return nil, err
	}

	if err := h.loanRepo.Renew(ctx, l); err != nil {
		return nil, err
	}

	if h.loanCache != nil {
		_ = h.loanCache.DeleteLoan(ctx, l.ID)
	}

	events := []shared.Event{loan.NewRenewedEvent(l, oldDueDate)}
	for _, ev := range events {
		_ = h.eventPublisher.Publish(ev)
	}

	return &RenewLoanResult{
		Loan:       l,
		OldDueDate: oldDueDate,
		Events:     events,
	}, nil
}

func (h *RenewLoanHandler) resolveRule(ctx context.Context, l *loan.Loan) (*rentalrule.Rule, error) {
	if l.RentalRuleID == "" {
		return nil, nil
	}
	rule, err := h.ruleRepo.GetByID(ctx, l.RentalRuleID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return rule, nil
}

// resolveDueDate extends from the current due date, not from now, so a
// renewal never shortens the loan.
func (h *RenewLoanHandler) resolveDueDate(cmd RenewLoanCommand, rule *rentalrule.Rule, l *loan.Loan) time.Time {
	if cmd.DueDate != nil {
		return cmd.DueDate.UTC()
	}
	if rule != nil {
		return l.DueDate.Add(rule.RenewalPeriod())
	}
	return l.DueDate.Add(rentalrule.DefaultRentalPeriodDays * 24 * time.Hour)
}
