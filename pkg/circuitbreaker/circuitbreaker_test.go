package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failing(_ context.Context) error { return errBoom }
func succeeding(_ context.Context) error { return nil }

func TestExecute_ClosedPassesThrough(t *testing.T) {
	cb := New("test")

	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.Equal(t, StateClosed, cb.State())

	counts := cb.Counts()
	assert.Equal(t, 1, counts.Requests)
	assert.Equal(t, 1, counts.TotalSuccesses)
}

func TestExecute_OpensAfterThreshold(t *testing.T) {
	cb := New("test", WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), failing), errBoom)
		assert.Equal(t, StateClosed, cb.State())
	}

	assert.ErrorIs(t, cb.Execute(context.Background(), failing), errBoom)
	assert.Equal(t, StateOpen, cb.State())
	assert.True(t, cb.IsOpen())

	// Requests are rejected without calling the function.
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		t.Fatal("function must not run while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestExecute_SuccessResetsFailureStreak(t *testing.T) {
	cb := New("test", WithFailureThreshold(3))

	_ = cb.Execute(context.Background(), failing)
	_ = cb.Execute(context.Background(), failing)
	require.NoError(t, cb.Execute(context.Background(), succeeding))
	_ = cb.Execute(context.Background(), failing)

	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_HalfOpenRecovery(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(1),
		WithTimeout(10*time.Millisecond),
	)

	_ = cb.Execute(context.Background(), failing)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(15 * time.Millisecond)

	// The first probe after the timeout closes the circuit on success.
	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_HalfOpenFailureReopens(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithTimeout(10*time.Millisecond),
	)

	_ = cb.Execute(context.Background(), failing)
	time.Sleep(15 * time.Millisecond)

	assert.ErrorIs(t, cb.Execute(context.Background(), failing), errBoom)
	assert.Equal(t, StateOpen, cb.State())
}

func TestExecuteWithFallback(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))
	_ = cb.Execute(context.Background(), failing)
	require.True(t, cb.IsOpen())

	fallbackRan := false
	err := cb.ExecuteWithFallback(context.Background(), failing, func(err error) error {
		fallbackRan = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, fallbackRan)
}

func TestExecuteWithFallback_RealErrorsBypassFallback(t *testing.T) {
	cb := New("test", WithFailureThreshold(5))

	err := cb.ExecuteWithFallback(context.Background(), failing, func(err error) error {
		t.Fatal("fallback must not run for ordinary failures")
		return nil
	})
	assert.ErrorIs(t, err, errBoom)
}

func TestIsFailure_FiltersErrors(t *testing.T) {
	errMiss := errors.New("key not found")
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, errMiss) }),
	)

	// A filtered error does not trip the breaker.
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return errMiss })
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(context.Background(), failing)
	assert.Equal(t, StateOpen, cb.State())
}

func TestOnStateChange(t *testing.T) {
	var transitions []string
	cb := New("cache",
		WithFailureThreshold(1),
		WithOnStateChange(func(name string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
	)

	_ = cb.Execute(context.Background(), failing)
	assert.Equal(t, []string{"closed>open"}, transitions)
}

func TestReset(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))
	_ = cb.Execute(context.Background(), failing)
	require.True(t, cb.IsOpen())

	cb.Reset()
	assert.True(t, cb.IsClosed())
	assert.Equal(t, Counts{}, cb.Counts())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestPresetBreakers(t *testing.T) {
	assert.Equal(t, "cache", CacheBreaker(nil).Name())
	assert.Equal(t, "database", DatabaseBreaker(nil).Name())
}
