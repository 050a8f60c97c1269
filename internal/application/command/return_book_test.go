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

func newReturnFixture(t *testing.T, l *loan.Loan) (*ReturnBookHandler, *fakeBookRepo, *fakeLoanRepo, *fakeLoanCache, *fakeBookCache, *capturePublisher) {
	t.Helper()

	b := makeBook(t, l.BookID, 2)
	b.CopiesAvailable = 1 // one copy is out on the loan under test
	books := newFakeBookRepo(b)
	loans := newFakeLoanRepo(books, l)
	loanCache := newFakeLoanCache()
	bookCache := &fakeBookCache{}
	pub := &capturePublisher{}

	h := NewReturnBookHandler(loans, newFakeRuleRepo(makeRule("rule1")), loanCache, bookCache, pub)
	h.now = func() time.Time { return testNow }

	return h, books, loans, loanCache, bookCache, pub
}

func TestReturnBook(t *testing.T) {
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	h, books, _, loanCache, bookCache, pub := newReturnFixture(t, l)

	result, err := h.Handle(context.Background(), ReturnBookCommand{LoanID: "loan1", Notes: "good condition"})
	require.NoError(t, err)

	assert.Equal(t, loan.StatusReturned, result.Loan.Status)
	require.NotNil(t, result.Loan.ReturnDate)
	assert.False(t, result.WasOverdue)
	assert.Equal(t, 0, result.DaysOverdue)
	assert.Equal(t, 0.0, result.LateFee)

	// The copy came back and the caches were invalidated.
	assert.Equal(t, 2, books.books["book1"].CopiesAvailable)
	assert.Contains(t, loanCache.deletedLoans, "loan1")
	assert.Contains(t, loanCache.deletedStats, "school1")
	assert.Contains(t, bookCache.deleted, "book1")
	assert.Equal(t, []shared.EventType{shared.EventLoanReturned}, pub.types())
}

func TestReturnBook_Overdue(t *testing.T) {
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	l.RentalRuleID = "rule1"
	l.DueDate = testNow.AddDate(0, 0, -3)
	l.RentalDate = testNow.AddDate(0, 0, -10)
	h, _, _, _, _, _ := newReturnFixture(t, l)

	result, err := h.Handle(context.Background(), ReturnBookCommand{LoanID: "loan1", ApplyLateFee: true})
	require.NoError(t, err)

	assert.True(t, result.WasOverdue)
	assert.Equal(t, 3, result.DaysOverdue)
	// rule1 charges 0.5 per day.
	assert.Equal(t, 1.5, result.LateFee)
	require.NotNil(t, result.Loan.LateFee)
	assert.Equal(t, 1.5, *result.Loan.LateFee)
}

func TestReturnBook_FeeNotRequested(t *testing.T) {
	// Overdue with a charging rule, but the desk did not ask for the fee.
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	l.RentalRuleID = "rule1"
	l.DueDate = testNow.AddDate(0, 0, -3)
	l.RentalDate = testNow.AddDate(0, 0, -10)
	h, _, _, _, _, _ := newReturnFixture(t, l)

	result, err := h.Handle(context.Background(), ReturnBookCommand{LoanID: "loan1"})
	require.NoError(t, err)

	assert.True(t, result.WasOverdue)
	assert.Equal(t, 0.0, result.LateFee)
	assert.Nil(t, result.Loan.LateFee)
}

func TestReturnBook_RecordsCondition(t *testing.T) {
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	h, _, _, _, _, _ := newReturnFixture(t, l)

	result, err := h.Handle(context.Background(), ReturnBookCommand{
		LoanID:    "loan1",
		Notes:     "returned at the desk",
		Condition: "cover torn",
	})
	require.NoError(t, err)
	assert.Equal(t, "returned at the desk (condition: cover torn)", result.Loan.Notes)

	l2 := makeOpenLoan(t, "loan2", "book1", "member1")
	h2, _, _, _, _, _ := newReturnFixture(t, l2)
	result, err = h2.Handle(context.Background(), ReturnBookCommand{LoanID: "loan2", Condition: "good"})
	require.NoError(t, err)
	assert.Equal(t, "condition: good", result.Loan.Notes)
}

func TestReturnBook_OverdueStatusLoan(t *testing.T) {
	// A loan already swept to overdue can still be checked in.
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	l.DueDate = testNow.AddDate(0, 0, -1)
	l.RentalDate = testNow.AddDate(0, 0, -8)
	require.True(t, l.MarkOverdue(testNow))
	h, _, _, _, _, _ := newReturnFixture(t, l)

	result, err := h.Handle(context.Background(), ReturnBookCommand{LoanID: "loan1"})
	require.NoError(t, err)
	assert.Equal(t, loan.StatusReturned, result.Loan.Status)
}

func TestReturnBook_NoRuleNoFee(t *testing.T) {
	// Overdue and the fee requested, but no rule attached: nothing to charge.
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	l.DueDate = testNow.AddDate(0, 0, -5)
	l.RentalDate = testNow.AddDate(0, 0, -12)
	h, _, _, _, _, _ := newReturnFixture(t, l)

	result, err := h.Handle(context.Background(), ReturnBookCommand{LoanID: "loan1", ApplyLateFee: true})
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.LateFee)
	assert.Nil(t, result.Loan.LateFee)
}

func TestReturnBook_AlreadyReturned(t *testing.T) {
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	require.NoError(t, l.Close(testNow.AddDate(0, 0, -1), ""))
	h, _, _, _, _, pub := newReturnFixture(t, l)

	_, err := h.Handle(context.Background(), ReturnBookCommand{LoanID: "loan1"})
	assert.True(t, shared.IsConflict(err))
	assert.Empty(t, pub.types())
}

func TestReturnBook_NotFound(t *testing.T) {
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	h, _, _, _, _, _ := newReturnFixture(t, l)

	_, err := h.Handle(context.Background(), ReturnBookCommand{LoanID: "missing"})
	assert.True(t, shared.IsNotFound(err))
}

func TestReturnBook_Validation(t *testing.T) {
	l := makeOpenLoan(t, "loan1", "book1", "member1")
	h, _, _, _, _, _ := newReturnFixture(t, l)

	_, err := h.Handle(context.Background(), ReturnBookCommand{})
	assert.Error(t, err)
}
