package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewISBN(t *testing.T) {
	isbn, err := NewISBN("978-0134190440")
	require.NoError(t, err)
	assert.Equal(t, ISBN("9780134190440"), isbn)

	isbn, err = NewISBN("0-306-40615-2")
	require.NoError(t, err)
	assert.Equal(t, ISBN("0306406152"), isbn)

	// ISBN-10 check digit X is uppercased on normalization.
	isbn, err = NewISBN("080442957x")
	require.NoError(t, err)
	assert.Equal(t, ISBN("080442957X"), isbn)

	// Empty ISBN is allowed.
	isbn, err = NewISBN("")
	require.NoError(t, err)
	assert.Equal(t, ISBN(""), isbn)

	_, err = NewISBN("not-an-isbn")
	assert.Error(t, err)

	_, err = NewISBN("12345")
	assert.Error(t, err)
}

func TestTimeRange(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	tr, err := NewTimeRange(from, to)
	require.NoError(t, err)
	assert.True(t, tr.Contains(from.AddDate(0, 0, 15)))
	assert.False(t, tr.Contains(from.AddDate(0, 0, -1)))
	assert.False(t, tr.Contains(to.AddDate(0, 0, 1)))

	_, err = NewTimeRange(to, from)
	assert.Error(t, err)
}

func TestTimeRange_OpenBounds(t *testing.T) {
	anchor := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	open := TimeRange{}
	assert.True(t, open.IsZero())
	assert.True(t, open.Contains(anchor))

	fromOnly := TimeRange{From: anchor}
	assert.True(t, fromOnly.IsValid())
	assert.True(t, fromOnly.Contains(anchor.AddDate(0, 0, 1)))
	assert.False(t, fromOnly.Contains(anchor.AddDate(0, 0, -1)))
}

func TestPagination(t *testing.T) {
	p := NewPagination(0, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageSize, p.Limit())
	assert.Equal(t, 0, p.Offset())

	p = NewPagination(3, 10)
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, 10, p.Limit())

	// Oversized page size is clamped.
	p = NewPagination(1, 10000)
	assert.Equal(t, MaxPageSize, p.Limit())
}

func TestNewPageMeta(t *testing.T) {
	meta := NewPageMeta(NewPagination(2, 10), 35)
	assert.Equal(t, 2, meta.Page)
	assert.Equal(t, 4, meta.TotalPages)
	assert.True(t, meta.HasNextPage)
	assert.True(t, meta.HasPrevPage)

	meta = NewPageMeta(NewPagination(1, 10), 0)
	assert.Equal(t, 0, meta.TotalPages)
	assert.False(t, meta.HasNextPage)
	assert.False(t, meta.HasPrevPage)
}
