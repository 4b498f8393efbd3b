package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failing() error { return errBoom }
func succeeding() error { return nil }

func newTestBreaker(threshold int, cooldown time.Duration) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker(threshold, cooldown)
	clock := time.Unix(1_700_000_000, 0)
	cb.now = func() time.Time { return clock }
	return cb, &clock
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(failing), errBoom)
	}
	assert.Equal(t, BreakerOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	require.Error(t, cb.Execute(failing))
	require.Error(t, cb.Execute(failing))
	require.NoError(t, cb.Execute(succeeding))
	require.Error(t, cb.Execute(failing))
	require.Error(t, cb.Execute(failing))

	assert.Equal(t, BreakerClosed, cb.State())
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)

	var transitions []BreakerState
	cb.OnStateChange(func(_, to BreakerState) { transitions = append(transitions, to) })

	require.Error(t, cb.Execute(failing))
	assert.Equal(t, BreakerOpen, cb.State())

	*clock = clock.Add(59 * time.Second)
	assert.ErrorIs(t, cb.Execute(succeeding), ErrCircuitOpen)

	*clock = clock.Add(2 * time.Second)
	require.NoError(t, cb.Execute(succeeding))
	assert.Equal(t, BreakerClosed, cb.State())

	assert.Equal(t, []BreakerState{BreakerOpen, BreakerHalfOpen, BreakerClosed}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(2, time.Minute)

	require.Error(t, cb.Execute(failing))
	require.Error(t, cb.Execute(failing))

	*clock = clock.Add(time.Minute)
	require.ErrorIs(t, cb.Execute(failing), errBoom)
	assert.Equal(t, BreakerOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(succeeding), ErrCircuitOpen)
}

func TestBreakerSingleTrial(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Second)
	require.Error(t, cb.Execute(failing))
	*clock = clock.Add(time.Second)

	err := cb.Execute(func() error {
		// a concurrent caller during the trial is short-circuited
		assert.ErrorIs(t, cb.Execute(succeeding), ErrCircuitOpen)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, BreakerClosed, cb.State())
}
