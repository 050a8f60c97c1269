package loan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/library-service/internal/domain/shared"
)

func newTestLoan(t *testing.T) *Loan {
	t.Helper()
	rented := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	due := rented.AddDate(0, 0, 14)
	l, err := New("loan1", "book1", "member1", "school1", rented, due)
	require.NoError(t, err)
	return l
}

func TestNew(t *testing.T) {
	l := newTestLoan(t)

	assert.Equal(t, StatusActive, l.Status)
	assert.True(t, l.IsOpen())
	assert.Nil(t, l.ReturnDate)
}

func TestNew_DueBeforeRental(t *testing.T) {
	rented := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err := New("loan1", "book1", "member1", "school1", rented, rented.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, shared.ErrInvalidDueDate)
}

func TestIsPastDue(t *testing.T) {
	l := newTestLoan(t)

	assert.False(t, l.IsPastDue(l.DueDate))
	assert.True(t, l.IsPastDue(l.DueDate.Add(time.Minute)))

	// A returned loan is never past due.
	require.NoError(t, l.Close(l.DueDate.Add(48*time.Hour), ""))
	assert.False(t, l.IsPastDue(l.DueDate.Add(72*time.Hour)))
}

func TestDaysOverdue(t *testing.T) {
	l := newTestLoan(t)

	assert.Equal(t, 0, l.DaysOverdue(l.DueDate))
	assert.Equal(t, 0, l.DaysOverdue(l.DueDate.Add(12*time.Hour)))
	assert.Equal(t, 1, l.DaysOverdue(l.DueDate.Add(24*time.Hour)))
	assert.Equal(t, 3, l.DaysOverdue(l.DueDate.Add(80*time.Hour)))
}

func TestClose(t *testing.T) {
	l := newTestLoan(t)
	returnedAt := l.DueDate.Add(-24 * time.Hour)

	require.NoError(t, l.Close(returnedAt, "good condition"))
	assert.Equal(t, StatusReturned, l.Status)
	require.NotNil(t, l.ReturnDate)
	assert.Equal(t, returnedAt, *l.ReturnDate)
	assert.Equal(t, "good condition", l.Notes)
	assert.NoError(t, l.Validate())

	// Closing twice is a conflict.
	err := l.Close(returnedAt.Add(time.Hour), "")
	assert.True(t, shared.IsConflict(err))
}

func TestClose_OverdueLoan(t *testing.T) {
	l := newTestLoan(t)
	require.True(t, l.MarkOverdue(l.DueDate.Add(time.Hour)))

	// An overdue loan is still open and can be checked in.
	require.NoError(t, l.Close(l.DueDate.Add(48*time.Hour), ""))
	assert.Equal(t, StatusReturned, l.Status)
}

func TestRenew(t *testing.T) {
	l := newTestLoan(t)
	newDue := l.DueDate.AddDate(0, 0, 7)

	require.NoError(t, l.Renew(newDue, "extended"))
	assert.Equal(t, newDue, l.DueDate)
	assert.Equal(t, StatusActive, l.Status)
}

func TestRenew_OverdueLoan(t *testing.T) {
	l := newTestLoan(t)
	require.True(t, l.MarkOverdue(l.DueDate.Add(time.Hour)))

	err := l.Renew(l.DueDate.AddDate(0, 0, 7), "")
	assert.True(t, shared.IsConflict(err))
}

func TestRenew_ReturnedLoan(t *testing.T) {
	l := newTestLoan(t)
	require.NoError(t, l.Close(l.DueDate, ""))

	assert.Error(t, l.Renew(l.DueDate.AddDate(0, 0, 7), ""))
}

func TestMarkOverdue(t *testing.T) {
	l := newTestLoan(t)

	// Not past due yet.
	assert.False(t, l.MarkOverdue(l.DueDate))
	assert.Equal(t, StatusActive, l.Status)

	assert.True(t, l.MarkOverdue(l.DueDate.Add(time.Minute)))
	assert.Equal(t, StatusOverdue, l.Status)

	// Idempotent: a second sweep pass changes nothing.
	assert.False(t, l.MarkOverdue(l.DueDate.Add(time.Hour)))
	assert.Equal(t, StatusOverdue, l.Status)
}

func TestApplyLateFee(t *testing.T) {
	l := newTestLoan(t)

	l.ApplyLateFee(0)
	assert.Nil(t, l.LateFee)

	l.ApplyLateFee(2.5)
	require.NotNil(t, l.LateFee)
	assert.Equal(t, 2.5, *l.LateFee)
}

func TestStatus_IsOpen(t *testing.T) {
	assert.True(t, StatusActive.IsOpen())
	assert.True(t, StatusOverdue.IsOpen())
	assert.False(t, StatusReturned.IsOpen())
}

func TestValidate_ReturnDateConsistency(t *testing.T) {
	l := newTestLoan(t)

	// Return date on an open loan violates the invariant.
	now := time.Now()
	l.ReturnDate = &now
	assert.Error(t, l.Validate())
}
