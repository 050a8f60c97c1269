package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/library-service/internal/domain/loan"
	"github.com/schoolhub/library-service/internal/domain/shared"
)

func newRenewFixture(t *testing.T, l *loan.Loan) (*RenewLoanHandler, *fakeRuleRepo, *fakeLoanCache, *capturePublisher) {
	t.Helper()

	loans := newFakeLoanRepo(nil, l)
	rules := newFakeRuleRepo(makeRule("rule1"))
	loanCache := newFakeLoanCache()
	pub := &capturePublisher{}

	h := NewRenewLoanHandler(loans, rules, loanCache, pub)
	h.now = func() time.Time { return testNow }

	return h, rules, loanCache, pub
}

func TestRenewLoan(t *testing.T) {
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	l.RentalRuleID = "rule1"
	oldDue := l.DueDate
	h, _, loanCache, pub := newRenewFixture(t, l)

	result, err := h.Handle(context.Background(), RenewLoanCommand{LoanID: "loan1", Notes: "one more week"})
	require.NoError(t, err)

	// rule1 grants 7 days, extended from the old due date rather than now.
	assert.Equal(t, oldDue, result.OldDueDate)
	assert.Equal(t, oldDue.Add(7*24*time.Hour), result.Loan.DueDate)
	assert.Equal(t, loan.StatusActive, result.Loan.Status)

	assert.Contains(t, loanCache.deletedLoans, "loan1")
	assert.Equal(t, []shared.EventType{shared.EventLoanRenewed}, pub.types())
}

func TestRenewLoan_RenewalPeriodDistinct(t *testing.T) {
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	l.RentalRuleID = "rule1"
	oldDue := l.DueDate
	h, rules, _, _ := newRenewFixture(t, l)
	rules.rules["rule1"].RenewalPeriodDays = 3

	result, err := h.Handle(context.Background(), RenewLoanCommand{LoanID: "loan1"})
	require.NoError(t, err)
	assert.Equal(t, oldDue.Add(3*24*time.Hour), result.Loan.DueDate)
}

func TestRenewLoan_NoRuleDefaults(t *testing.T) {
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	oldDue := l.DueDate
	h, _, _, _ := newRenewFixture(t, l)

	result, err := h.Handle(context.Background(), RenewLoanCommand{LoanID: "loan1"})
	require.NoError(t, err)
	assert.Equal(t, oldDue.Add(14*24*time.Hour), result.Loan.DueDate)
}

func TestRenewLoan_DueDateOverride(t *testing.T) {
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	h, _, _, _ := newRenewFixture(t, l)

	due := testNow.AddDate(0, 0, 60)
	result, err := h.Handle(context.Background(), RenewLoanCommand{LoanID: "loan1", DueDate: &due})
	require.NoError(t, err)
	assert.Equal(t, due, result.Loan.DueDate)
}

func TestRenewLoan_Disallowed(t *testing.T) {
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	l.RentalRuleID = "rule1"
	h, rules, _, pub := newRenewFixture(t, l)
	rules.rules["rule1"].RenewalAllowed = false

	_, err := h.Handle(context.Background(), RenewLoanCommand{LoanID: "loan1"})
	assert.ErrorIs(t, err, shared.ErrRenewalNotAllowed)
	assert.Empty(t, pub.types())
}

func TestRenewLoan_OverdueLoan(t *testing.T) {
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	l.DueDate = testNow.AddDate(0, 0, -1)
	l.RentalDate = testNow.AddDate(0, 0, -8)
	require.True(t, l.MarkOverdue(testNow))
	h, _, _, _ := newRenewFixture(t, l)

	_, err := h.Handle(context.Background(), RenewLoanCommand{LoanID: "loan1"})
	assert.True(t, shared.IsConflict(err))
}

func TestRenewLoan_DeletedRuleFallsBack(t *testing.T) {
	// A loan referencing a rule that was since deleted renews with the
	// default period instead of failing.
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	l.RentalRuleID = "gone"
	oldDue := l.DueDate
	h, _, _, _ := newRenewFixture(t, l)

	result, err := h.Handle(context.Background(), RenewLoanCommand{LoanID: "loan1"})
	require.NoError(t, err)
	assert.Equal(t, oldDue.Add(14*24*time.Hour), result.Loan.DueDate)
}

func TestRenewLoan_NotFound(t *testing.T) {
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	h, _, _, _ := newRenewFixture(t, l)

	_, err := h.Handle(context.Background(), RenewLoanCommand{LoanID: "missing"})
	assert.True(t, shared.IsNotFound(err))
}
