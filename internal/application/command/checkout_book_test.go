package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/library-service/internal/domain/book"
	"github.com/schoolhub/library-service/internal/domain/loan"
	"github.com/schoolhub/library-service/internal/domain/member"
	"github.com/schoolhub/library-service/internal/domain/rentalrule"
	"github.com/schoolhub/library-service/internal/domain/shared"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func makeBook(t *testing.T, id string, copies int) *book.Book {
	t.Helper()
	b, err := book.New(id, "school1", "Title "+id, "Author", "", copies)
	require.NoError(t, err)
	return b
}

func makeMember(t *testing.T, id string) *member.Member {
	t.Helper()
	m, err := member.New(id, "school1", "Member "+id, "")
	require.NoError(t, err)
	return m
}

func makeRule(id string) *rentalrule.Rule {
	return &rentalrule.Rule{
		ID:                id,
		SchoolID:          "school1",
		RentalPeriodDays:  7,
		MaxBooksPerMember: 2,
		RenewalAllowed:    true,
		LateFeePerDay:     0.5,
	}
}

func makeOpenLoan(t *testing.T, id, bookID, memberID string) *loan.Loan {
	t.Helper()
	l, err := loan.New(id, bookID, memberID, "school1", testNow.AddDate(0, 0, -3), testNow.AddDate(0, 0, 11))
	require.NoError(t, err)
	return l
}

func newCheckoutFixture(t *testing.T) (*CheckoutBookHandler, *fakeBookRepo, *fakeLoanRepo, *fakeLoanCache, *fakeBookCache, *capturePublisher) {
	t.Helper()

	books := newFakeBookRepo(makeBook(t, "book1", 2))
	members := newFakeMemberRepo(makeMember(t, "member1"))
	rules := newFakeRuleRepo(makeRule("rule1"))
	loans := newFakeLoanRepo(books)
	loanCache := newFakeLoanCache()
	bookCache := &fakeBookCache{}
	pub := &capturePublisher{}

	h := NewCheckoutBookHandler(loans, books, members, rules, bookCache, loanCache, pub)
	h.now = func() time.Time { return testNow }

	return h, books, loans, loanCache, bookCache, pub
}

func TestCheckoutBook(t *testing.T) {
	h, books, loans, _, bookCache, pub := newCheckoutFixture(t)

	result, err := h.Handle(context.Background(), CheckoutBookCommand{
		BookID:   "book1",
		MemberID: "member1",
		SchoolID: "school1",
		Notes:    "classroom set",
	})
	require.NoError(t, err)

	assert.Equal(t, loan.StatusActive, result.Loan.Status)
	assert.Equal(t, "rule1", result.Loan.RentalRuleID)
	assert.Equal(t, testNow, result.Loan.RentalDate)
	assert.Equal(t, testNow.AddDate(0, 0, 7), result.Loan.DueDate)
	assert.Equal(t, "classroom set", result.Loan.Notes)
	assert.Equal(t, 1, result.CopiesAvailable)

	// The loan was persisted and the counter decremented.
	assert.Len(t, loans.loans, 1)
	assert.Equal(t, 1, books.books["book1"].CopiesAvailable)

	// Book cache invalidated, checkout event published.
	assert.Contains(t, bookCache.deleted, "book1")
	assert.Equal(t, []shared.EventType{shared.EventLoanCheckedOut}, pub.types())
}

func TestCheckoutBook_Validation(t *testing.T) {
	h, _, _, _, _, _ := newCheckoutFixture(t)

	_, err := h.Handle(context.Background(), CheckoutBookCommand{MemberID: "member1", SchoolID: "school1"})
	assert.Error(t, err)

	_, err = h.Handle(context.Background(), CheckoutBookCommand{BookID: "book1", SchoolID: "school1"})
	assert.Error(t, err)
}

func TestCheckoutBook_BookNotFound(t *testing.T) {
	h, _, _, _, _, _ := newCheckoutFixture(t)

	_, err := h.Handle(context.Background(), CheckoutBookCommand{
		BookID: "missing", MemberID: "member1", SchoolID: "school1",
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestCheckoutBook_WrongSchool(t *testing.T) {
	h, _, _, _, _, _ := newCheckoutFixture(t)

	// A book from another school's catalog reads as not found.
	_, err := h.Handle(context.Background(), CheckoutBookCommand{
		BookID: "book1", MemberID: "member1", SchoolID: "school2",
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestCheckoutBook_Unavailable(t *testing.T) {
	h, books, _, _, _, pub := newCheckoutFixture(t)
	books.books["book1"].CopiesAvailable = 0

	_, err := h.Handle(context.Background(), CheckoutBookCommand{
		BookID: "book1", MemberID: "member1", SchoolID: "school1",
	})
	assert.ErrorIs(t, err, shared.ErrBookUnavailable)
	assert.Empty(t, pub.types())
}

func TestCheckoutBook_MissingMemberBeforeAvailability(t *testing.T) {
	h, books, _, _, _, _ := newCheckoutFixture(t)
	books.books["book1"].CopiesAvailable = 0

	// The member lookup comes before the availability check, so an unknown
	// borrower reads as not found even when the book also has no copies.
	_, err := h.Handle(context.Background(), CheckoutBookCommand{
		BookID: "book1", MemberID: "ghost", SchoolID: "school1",
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestCheckoutBook_SuspendedMember(t *testing.T) {
	h, _, _, _, _, _ := newCheckoutFixture(t)

	suspended := makeMember(t, "member2")
	suspended.Status = member.StatusSuspended
	h.memberRepo.(*fakeMemberRepo).members["member2"] = suspended

	_, err := h.Handle(context.Background(), CheckoutBookCommand{
		BookID: "book1", MemberID: "member2", SchoolID: "school1",
	})
	assert.ErrorIs(t, err, shared.ErrMemberSuspended)
}

func TestCheckoutBook_LoanLimit(t *testing.T) {
	h, _, loans, _, _, _ := newCheckoutFixture(t)

	// The rule allows 2 concurrent loans; member1 already holds 2.
	loans.loans["loanA"] = makeOpenLoan(t, "loanA", "bookA", "member1")
	loans.loans["loanB"] = makeOpenLoan(t, "loanB", "bookB", "member1")

	_, err := h.Handle(context.Background(), CheckoutBookCommand{
		BookID: "book1", MemberID: "member1", SchoolID: "school1",
	})
	assert.ErrorIs(t, err, shared.ErrLoanLimitReached)
}

func TestCheckoutBook_ReturnedLoansDoNotCount(t *testing.T) {
	h, _, loans, _, _, _ := newCheckoutFixture(t)

	closed := makeOpenLoan(t, "loanA", "bookA", "member1")
	require.NoError(t, closed.Close(testNow.AddDate(0, 0, -1), ""))
	loans.loans["loanA"] = closed
	loans.loans["loanB"] = makeOpenLoan(t, "loanB", "bookB", "member1")

	_, err := h.Handle(context.Background(), CheckoutBookCommand{
		BookID: "book1", MemberID: "member1", SchoolID: "school1",
	})
	assert.NoError(t, err)
}

func TestCheckoutBook_DueDateOverride(t *testing.T) {
	h, _, _, _, _, _ := newCheckoutFixture(t)

	due := testNow.AddDate(0, 0, 30)
	result, err := h.Handle(context.Background(), CheckoutBookCommand{
		BookID: "book1", MemberID: "member1", SchoolID: "school1", DueDate: &due,
	})
	require.NoError(t, err)
	assert.Equal(t, due, result.Loan.DueDate)
}

func TestCheckoutBook_PinnedRule(t *testing.T) {
	h, _, _, _, _, _ := newCheckoutFixture(t)

	otherSchool := makeRule("rule2")
	otherSchool.SchoolID = "school2"
	h.ruleRepo.(*fakeRuleRepo).rules["rule2"] = otherSchool

	// Pinning a rule that belongs to another school is rejected.
	_, err := h.Handle(context.Background(), CheckoutBookCommand{
		BookID: "book1", MemberID: "member1", SchoolID: "school1", RentalRuleID: "rule2",
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestCheckoutBook_NoRuleDefaults(t *testing.T) {
	books := newFakeBookRepo(makeBook(t, "book1", 1))
	members := newFakeMemberRepo(makeMember(t, "member1"))
	loans := newFakeLoanRepo(books)

	h := NewCheckoutBookHandler(loans, books, members, newFakeRuleRepo(), nil, nil, nil)
	h.now = func() time.Time { return testNow }

	result, err := h.Handle(context.Background(), CheckoutBookCommand{
		BookID: "book1", MemberID: "member1", SchoolID: "school1",
	})
	require.NoError(t, err)

	// No rule: default period, no rule reference, no loan limit.
	assert.Equal(t, testNow.AddDate(0, 0, rentalrule.DefaultRentalPeriodDays), result.Loan.DueDate)
	assert.Empty(t, result.Loan.RentalRuleID)
}

func TestCheckoutBook_LostRace(t *testing.T) {
	h, books, loans, _, _, pub := newCheckoutFixture(t)

	// The advisory read sees an available copy, but the transactional
	// decrement loses the race.
	loans.checkoutErr = shared.ErrBookUnavailable

	_, err := h.Handle(context.Background(), CheckoutBookCommand{
		BookID: "book1", MemberID: "member1", SchoolID: "school1",
	})
	assert.ErrorIs(t, err, shared.ErrBookUnavailable)
	assert.Empty(t, loans.loans)
	assert.Equal(t, 2, books.books["book1"].CopiesAvailable)
	assert.Empty(t, pub.types())
}
