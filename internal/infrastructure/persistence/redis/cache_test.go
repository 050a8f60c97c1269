package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatisticsKey(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "stats:school1:20260301T000000:20260401T000000:5", StatisticsKey("school1", from, to, 5))
	assert.Equal(t, "stats:school1:all:all:5", StatisticsKey("school1", time.Time{}, time.Time{}, 5))
}

func TestStatisticsKey_GlobalReport(t *testing.T) {
	// A report with no school filter caches under its own scope and is
	// not swept by any per-school invalidation pattern.
	key := StatisticsKey("", time.Time{}, time.Time{}, 5)
	assert.Equal(t, "stats:all:all:all:5", key)
}

func TestStatisticsPattern(t *testing.T) {
	assert.Equal(t, "stats:school1:*", StatisticsPattern("school1"))
}

func TestEntityKeys(t *testing.T) {
	assert.Equal(t, "loan:loan1", LoanKey("loan1"))
	assert.Equal(t, "book:book1", BookKey("book1"))
}
