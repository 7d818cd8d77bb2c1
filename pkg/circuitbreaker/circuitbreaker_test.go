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

func failing(context.Context) error { return errBoom }
func succeeding(context.Context) error { return nil }

func tripped(t *testing.T, opts ...Option) *CircuitBreaker {
	t.Helper()
	cb := New("test", append([]Option{WithFailureThreshold(3)}, opts...)...)
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(context.Background(), failing), errBoom)
	}
	require.Equal(t, StateOpen, cb.State())
	return cb
}

func TestExecute_ClosedPassesThrough(t *testing.T) {
	cb := New("test")

	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.ErrorIs(t, cb.Execute(context.Background(), failing), errBoom)

	counts := cb.Counts()
	assert.Equal(t, 2, counts.Requests)
	assert.Equal(t, 1, counts.TotalSuccesses)
	assert.Equal(t, 1, counts.TotalFailures)
}

func TestExecute_OpensAfterConsecutiveFailures(t *testing.T) {
	var transitions []State
	cb := New("test",
		WithFailureThreshold(3),
		WithOnStateChange(func(name string, from, to State) {
			transitions = append(transitions, to)
		}),
	)

	// A success in between resets the consecutive counter.
	_ = cb.Execute(context.Background(), failing)
	_ = cb.Execute(context.Background(), failing)
	_ = cb.Execute(context.Background(), succeeding)
	_ = cb.Execute(context.Background(), failing)
	_ = cb.Execute(context.Background(), failing)
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(context.Background(), failing)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, []State{StateOpen}, transitions)
}

func TestExecute_OpenRejectsWithoutCalling(t *testing.T) {
	cb := tripped(t)

	calls := 0
	err := cb.Execute(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls)
}

func TestExecute_HalfOpenRecovery(t *testing.T) {
	cb := tripped(t, WithTimeout(10*time.Millisecond), WithSuccessThreshold(2))

	time.Sleep(15 * time.Millisecond)

	// First probe transitions to half-open; two successes close the circuit.
	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_HalfOpenFailureReopens(t *testing.T) {
	cb := tripped(t, WithTimeout(10*time.Millisecond))

	time.Sleep(15 * time.Millisecond)

	assert.ErrorIs(t, cb.Execute(context.Background(), failing), errBoom)
	assert.Equal(t, StateOpen, cb.State())
}

func TestExecute_HalfOpenLimitsProbes(t *testing.T) {
	cb := tripped(t, WithTimeout(10*time.Millisecond), WithMaxHalfOpenRequests(1), WithSuccessThreshold(2))

	time.Sleep(15 * time.Millisecond)

	// The first probe occupies the only half-open slot; the slow call below
	// never completes before the second request arrives.
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := cb.Execute(context.Background(), succeeding)
	assert.ErrorIs(t, err, ErrTooManyRequests)

	close(release)
	require.NoError(t, <-done)
}

func TestExecuteWithFallback(t *testing.T) {
	cb := tripped(t)

	fallbackCalled := false
	err := cb.ExecuteWithFallback(context.Background(), succeeding, func(cause error) error {
		fallbackCalled = true
		assert.ErrorIs(t, cause, ErrCircuitOpen)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, fallbackCalled)

	// Ordinary failures bypass the fallback.
	closed := New("test")
	err = closed.ExecuteWithFallback(context.Background(), failing, func(error) error {
		t.Fatal("fallback must not run for plain failures")
		return nil
	})
	assert.ErrorIs(t, err, errBoom)
}

func TestIsFailureFilter(t *testing.T) {
	benign := errors.New("not found")
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, benign) }),
	)

	_ = cb.Execute(context.Background(), func(context.Context) error { return benign })
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(context.Background(), failing)
	assert.Equal(t, StateOpen, cb.State())
}

func TestReset(t *testing.T) {
	cb := tripped(t)

	cb.Reset()
	assert.True(t, cb.IsClosed())
	assert.Equal(t, Counts{}, cb.Counts())
	require.NoError(t, cb.Execute(context.Background(), succeeding))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
