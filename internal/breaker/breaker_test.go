package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail() error    { return errBoom }
func succeed() error { return nil }

func newTestBreaker(timeout time.Duration) *Breaker {
	return newBreaker("upstream.test", Settings{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          timeout,
	})
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	t.Parallel()
	b := newTestBreaker(time.Minute)

	for i := 0; i < 3; i++ {
		require.Equal(t, Closed, b.CurrentState())
		require.ErrorIs(t, b.Execute(fail), errBoom)
	}
	require.Equal(t, Open, b.CurrentState())

	err := b.Execute(succeed)
	var open *ErrOpen
	require.ErrorAs(t, err, &open)
	require.Equal(t, "upstream.test", open.Host)
	require.Greater(t, open.RetryAfter, time.Duration(0))
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()
	b := newTestBreaker(time.Minute)

	require.Error(t, b.Execute(fail))
	require.Error(t, b.Execute(fail))
	require.NoError(t, b.Execute(succeed))
	require.Error(t, b.Execute(fail))
	require.Error(t, b.Execute(fail))
	// Two failures after the reset: still below the threshold of three.
	require.Equal(t, Closed, b.CurrentState())
}

func TestBreakerHalfOpenClosesAfterSuccesses(t *testing.T) {
	t.Parallel()
	b := newTestBreaker(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		require.Error(t, b.Execute(fail))
	}
	require.Equal(t, Open, b.CurrentState())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Execute(succeed))
	require.Equal(t, HalfOpen, b.CurrentState())
	require.NoError(t, b.Execute(succeed))
	require.Equal(t, Closed, b.CurrentState())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	t.Parallel()
	b := newTestBreaker(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		require.Error(t, b.Execute(fail))
	}
	time.Sleep(20 * time.Millisecond)
	require.ErrorIs(t, b.Execute(fail), errBoom)
	require.Equal(t, Open, b.CurrentState())

	// Fresh cooldown: the next call is rejected without execution.
	ran := false
	err := b.Execute(func() error { ran = true; return nil })
	var open *ErrOpen
	require.ErrorAs(t, err, &open)
	require.False(t, ran)
}

func TestRegistryReturnsSameBreakerPerHost(t *testing.T) {
	t.Parallel()
	r := NewRegistry(Settings{})
	a := r.Get("host-a")
	require.Same(t, a, r.Get("host-a"))
	require.NotSame(t, a, r.Get("host-b"))
}
