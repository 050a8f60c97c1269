package command

import (
	"context"
	"time"

	"github.com/schoolhub/library-service/internal/domain/loan"
	"github.com/schoolhub/library-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP OVERDUE COMMAND
// Flips active loans past their due date to overdue. Runs on a schedule
// from the worker; the database update is a single idempotent statement,
// so overlapping runs are harmless.
// ══════════════════════════════════════════════════════════════════════════════

// SweepOverdueCommand triggers one sweep pass.
type SweepOverdueCommand struct {
	// AsOf is the cutoff time; loans due strictly before it become
	// overdue. Defaults to now when zero.
	AsOf time.Time
}

// SweepOverdueResult contains the result of one sweep pass.
type SweepOverdueResult struct {
	// MarkedLoanIDs are the loans flipped to overdue in this pass.
	MarkedLoanIDs []string

	// SweptAt is the cutoff time used.
	SweptAt time.Time

	// Events contains domain events generated.
	Events []shared.Event
}

// SweepOverdueHandler handles the SweepOverdueCommand.
type SweepOverdueHandler struct {
	loanRepo       loan.Repository
	loanCache      loan.Cache
	eventPublisher shared.EventPublisher

	now func() time.Time
}

// NewSweepOverdueHandler creates a new SweepOverdueHandler.
func NewSweepOverdueHandler(
	loanRepo loan.Repository,
	loanCache loan.Cache,
	eventPublisher shared.EventPublisher,
) *SweepOverdueHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	return &SweepOverdueHandler{
		loanRepo:       loanRepo,
		loanCache:      loanCache,
		eventPublisher: eventPublisher,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes one sweep pass.
func (h *SweepOverdueHandler) Handle(ctx context.Context, cmd SweepOverdueCommand) (*SweepOverdueResult, error) {
	asOf := cmd.AsOf
	if asOf.IsZero() {
		asOf = h.now()
	}

	ids, err := h.loanRepo.MarkOverdue(ctx, asOf)
	if err != nil {
		return nil, err
	}

	events := make([]shared.Event, 0, len(ids)+1)
	for _, id := range ids {
		if h.loanCache != nil {
			_ = h.loanCache.DeleteLoan(ctx, id)
		}
		events = append(events, loan.NewOverdueEvent(id))
	}
	events = append(events, loan.NewSweepCompletedEvent(len(ids), asOf))

	for _, ev := range events {
		_ = h.eventPublisher.Publish(ev)
	}

	return &SweepOverdueResult{
		MarkedLoanIDs: ids,
		SweptAt:       asOf,
		Events:        events,
	}, nil
}
