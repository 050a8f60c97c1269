package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/library-service/internal/domain/loan"
	"github.com/schoolhub/library-service/internal/domain/shared"
)

func TestSweepOverdue(t *testing.T) {
	pastDue := makeOpenLoan(t, "loan1", "book1", "member1")
	pastDue.RentalDate = testNow.AddDate(0, 0, -20)
	pastDue.DueDate = testNow.AddDate(0, 0, -2)

	current := makeOpenLoan(t, "loan2", "book2", "member2")

	returned := makeOpenLoan(t, "loan3", "book3", "member3")
	require.NoError(t, returned.Close(testNow.AddDate(0, 0, -1), ""))

	loans := newFakeLoanRepo(nil, pastDue, current, returned)
	loanCache := newFakeLoanCache()
	pub := &capturePublisher{}

	h := NewSweepOverdueHandler(loans, loanCache, pub)
	h.now = func() time.Time { return testNow }

	result, err := h.Handle(context.Background(), SweepOverdueCommand{})
	require.NoError(t, err)

	assert.Equal(t, []string{"loan1"}, result.MarkedLoanIDs)
	assert.Equal(t, testNow, result.SweptAt)
	assert.Equal(t, loan.StatusOverdue, loans.loans["loan1"].Status)
	assert.Equal(t, loan.StatusActive, loans.loans["loan2"].Status)
	assert.Equal(t, loan.StatusReturned, loans.loans["loan3"].Status)

	// Stale cached reads of the flipped loan are dropped.
	assert.Contains(t, loanCache.deletedLoans, "loan1")

	// One overdue event per flipped loan plus the sweep summary.
	assert.Equal(t, []shared.EventType{shared.EventLoanOverdue, shared.EventSweepCompleted}, pub.types())
}

func TestSweepOverdue_Idempotent(t *testing.T) {
	pastDue := makeOpenLoan(t, "loan1", "book1", "member1")
	pastDue.RentalDate = testNow.AddDate(0, 0, -20)
	pastDue.DueDate = testNow.AddDate(0, 0, -2)

	loans := newFakeLoanRepo(nil, pastDue)
	h := NewSweepOverdueHandler(loans, nil, nil)
	h.now = func() time.Time { return testNow }

	first, err := h.Handle(context.Background(), SweepOverdueCommand{})
	require.NoError(t, err)
	assert.Len(t, first.MarkedLoanIDs, 1)

	// A second pass flips nothing.
	second, err := h.Handle(context.Background(), SweepOverdueCommand{})
	require.NoError(t, err)
	assert.Empty(t, second.MarkedLoanIDs)
}

func TestSweepOverdue_ExplicitCutoff(t *testing.T) {
	l := makeOpenLoan(t, "loan1", "book1", "member1")

	loans := newFakeLoanRepo(nil, l)
	h := NewSweepOverdueHandler(loans, nil, nil)
	h.now = func() time.Time { return testNow }

	// A cutoff past the due date flips the loan even though "now" has not
	// reached it.
	result, err := h.Handle(context.Background(), SweepOverdueCommand{AsOf: l.DueDate.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.Equal(t, []string{"loan1"}, result.MarkedLoanIDs)
}

func TestSweepOverdue_RepoError(t *testing.T) {
	loans := newFakeLoanRepo(nil)
	loans.markErr = errors.New("connection refused")

	h := NewSweepOverdueHandler(loans, nil, nil)
	_, err := h.Handle(context.Background(), SweepOverdueCommand{})
	assert.Error(t, err)
}

func TestSweepOverdue_NothingToMark(t *testing.T) {
	loans := newFakeLoanRepo(nil, makeOpenLoan(t, "loan1", "book1", "member1"))
	pub := &capturePublisher{}

	h := NewSweepOverdueHandler(loans, nil, pub)
	h.now = func() time.Time { return testNow }

	result, err := h.Handle(context.Background(), SweepOverdueCommand{})
	require.NoError(t, err)
	assert.Empty(t, result.MarkedLoanIDs)

	// The summary event is still published for observability.
	assert.Equal(t, []shared.EventType{shared.EventSweepCompleted}, pub.types())
}
