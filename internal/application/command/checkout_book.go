// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/schoolhub/library-service/internal/domain/book"
	"github.com/schoolhub/library-service/internal/domain/loan"
	"github.com/schoolhub/library-service/internal/domain/member"
	"github.com/schoolhub/library-service/internal/domain/rentalrule"
	"github.com/schoolhub/library-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECKOUT BOOK COMMAND
// Creates a loan for an available book. The availability decrement and the
// loan insert happen in one database transaction, so two concurrent
// checkouts of the last copy cannot both succeed.
// ══════════════════════════════════════════════════════════════════════════════

// CheckoutBookCommand contains the data to check out a book.
type CheckoutBookCommand struct {
	// BookID is the ID of the book to check out.
	BookID string

	// MemberID is the ID of the borrowing member.
	MemberID string

	// SchoolID scopes the checkout to one school's catalog and rules.
	SchoolID string

	// RentalRuleID optionally pins a specific rule. When empty the
	// school's configured rule is used, and when the school has none
	// the default rental period applies.
	RentalRuleID string

	// DueDate optionally overrides the rule-derived due date.
	DueDate *time.Time

	// Notes is free-form librarian commentary.
	Notes string
}

// Validate validates the command.
func (c CheckoutBookCommand) Validate() error {
	if c.BookID == "" {
		return errors.New("checkout_book: book_id is required")
	}
	if c.MemberID == "" {
		return errors.New("checkout_book: member_id is required")
	}
	if c.SchoolID == "" {
		return errors.New("checkout_book: school_id is required")
	}
	return nil
}

// CheckoutBookResult contains the result of a checkout.
type CheckoutBookResult struct {
	// Loan is the created loan.
	Loan *loan.Loan

	// CopiesAvailable is the book's availability after the checkout.
	CopiesAvailable int

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CheckoutBookHandler handles the CheckoutBookCommand.
type CheckoutBookHandler struct {
	loanRepo       loan.Repository
	bookRepo       book.Repository
	memberRepo     member.Repository
	ruleRepo       rentalrule.Repository
	bookCache      book.Cache
	statsCache     loan.Cache
	eventPublisher shared.EventPublisher

	// now is injectable for tests.
	now func() time.Time
}

// NewCheckoutBookHandler creates a new CheckoutBookHandler.
func NewCheckoutBookHandler(
	loanRepo loan.Repository,
	bookRepo book.Repository,
	memberRepo member.Repository,
	ruleRepo rentalrule.Repository,
	bookCache book.Cache,
	statsCache loan.Cache,
	eventPublisher shared.EventPublisher,
) *CheckoutBookHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	return &CheckoutBookHandler{
		loanRepo:       loanRepo,
		bookRepo:       bookRepo,
		memberRepo:     memberRepo,
		ruleRepo:       ruleRepo,
		bookCache:      bookCache,
		statsCache:     statsCache,
		eventPublisher: eventPublisher,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the checkout.
//
// Precondition order: book exists, member exists and may borrow, the rule's
// concurrent loan limit is not reached, the book has a copy left. The
// availability read here is advisory only; the authoritative check is the
// conditional decrement inside the transaction.
func (h *CheckoutBookHandler) Handle(ctx context.Context, cmd CheckoutBookCommand) (*CheckoutBookResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("checkout_book: validation failed: %w", err)
	}

	b, err := h.bookRepo.GetByID(ctx, cmd.BookID)
	if err != nil {
		return nil, err
	}
	if b.SchoolID != cmd.SchoolID {
		return nil, shared.ErrBookNotFound
	}

	m, err := h.memberRepo.GetByID(ctx, cmd.MemberID)
	if err != nil {
		return nil, err
	}
	if !m.CanBorrow() {
		return nil, shared.ErrMemberSuspended
	}

	rule, err := h.resolveRule(ctx, cmd)
	if err != nil {
		return nil, err
	}

	if rule != nil {
		open, err := h.loanRepo.CountActiveByMember(ctx, cmd.MemberID)
		if err != nil {
			return nil, err
		}
		if open >= rule.MaxBooksPerMember {
			return nil, shared.ErrLoanLimitReached
		}
	}

	if !b.IsAvailable() {
		return nil, shared.ErrBookUnavailable
	}

	now := h.now()
	dueDate := h.resolveDueDate(cmd, rule, now)

	l, err := loan.New(uuid.NewString(), cmd.BookID, cmd.MemberID, cmd.SchoolID, now, dueDate)
	if err != nil {
		return nil, err
	}
	if rule != nil {
		l.RentalRuleID = rule.ID
	}
	l.Notes = cmd.Notes
	l.BookTitle = b.Title
	l.MemberName = m.DisplayName

	// Transactional insert + conditional decrement. On a lost race this
	// returns ErrBookUnavailable and nothing is persisted.
	if err := h.loanRepo.Checkout(ctx, l); err != nil {
		return nil, err
	}

	h.invalidate(ctx, cmd.BookID, cmd.SchoolID)

	events := []shared.Event{loan.NewCheckedOutEvent(l)}
	for _, ev := range events {
		_ = h.eventPublisher.Publish(ev)
	}

	return &CheckoutBookResult{
		Loan:            l,
		CopiesAvailable: b.CopiesAvailable - 1,
		Events:          events,
	}, nil
}

// resolveRule loads the applicable rental rule. A school without a
// configured rule is not an error: the default period applies and no
// loan limit is enforced.
func (h *CheckoutBookHandler) resolveRule(ctx context.Context, cmd CheckoutBookCommand) (*rentalrule.Rule, error) {
	if cmd.RentalRuleID != "" {
		rule, err := h.ruleRepo.GetByID(ctx, cmd.RentalRuleID)
		if err != nil {
			return nil, err
		}
		if rule.SchoolID != cmd.SchoolID {
			return nil, shared.ErrRuleNotFound
		}
		return rule, nil
	}

	rule, err := h.ruleRepo.GetBySchool(ctx, cmd.SchoolID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return rule, nil
}

func (h *CheckoutBookHandler) resolveDueDate(cmd CheckoutBookCommand, rule *rentalrule.Rule, now time.Time) time.Time {
	if cmd.DueDate != nil {
		return cmd.DueDate.UTC()
	}
	if rule != nil {
		return now.Add(rule.RentalPeriod())
	}
	return now.Add(rentalrule.DefaultRentalPeriodDays * 24 * time.Hour)
}

// invalidate drops cached reads touched by the checkout. Cache failures
// are swallowed: the next read repopulates.
func (h *CheckoutBookHandler) invalidate(ctx context.Context, bookID, schoolID string) {
	if h.bookCache != nil {
		_ = h.bookCache.Delete(ctx, bookID)
	}
	if h.statsCache != nil {
		_ = h.statsCache.DeleteStatistics(ctx, schoolID)
	}
}
