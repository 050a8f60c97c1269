package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOfDay(t *testing.T) {
	ts := time.Date(2026, 3, 10, 15, 42, 7, 123, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), StartOfDay(ts))
}

func TestEndOfDay(t *testing.T) {
	ts := time.Date(2026, 3, 10, 15, 42, 7, 123, time.UTC)
	end := EndOfDay(ts)
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 59, end.Minute())
	assert.Equal(t, 10, end.Day())
}

func TestStartOfMonth(t *testing.T) {
	ts := time.Date(2026, 3, 10, 15, 42, 7, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), StartOfMonth(ts))
}

func TestEndOfMonth(t *testing.T) {
	// February in a non-leap year.
	ts := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 28, EndOfMonth(ts).Day())

	// Leap year.
	ts = time.Date(2028, 2, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 29, EndOfMonth(ts).Day())
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 14, DaysBetween(a, b))
	assert.Equal(t, -14, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))

	// Whole calendar days, regardless of clock time.
	assert.Equal(t, 1, DaysBetween(a, time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC)))
}

func TestAddDays(t *testing.T) {
	a := time.Date(2026, 3, 30, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC), AddDays(a, 3))
	assert.Equal(t, time.Date(2026, 3, 27, 10, 0, 0, 0, time.UTC), AddDays(a, -3))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("10/03/2026")
	assert.Error(t, err)
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2026-03-10", FormatDate(time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)))
}

func TestIsSameDay(t *testing.T) {
	a := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	b := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	c := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	assert.True(t, IsSameDay(a, b))
	assert.False(t, IsSameDay(b, c))
}
