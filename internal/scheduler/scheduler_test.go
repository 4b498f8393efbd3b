package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/nightwatch/internal/controllers"
)

type countingRunner struct {
	mu      sync.Mutex
	calls   int
	running int
	overlap bool
	delay   time.Duration
}

func (r *countingRunner) RunCycle(context.Context) (int, controllers.CycleSummary) {
	r.mu.Lock()
	r.calls++
	r.running++
	if r.running > 1 {
		r.overlap = true
	}
	n := r.calls
	r.mu.Unlock()

	time.Sleep(r.delay)

	r.mu.Lock()
	r.running--
	r.mu.Unlock()
	return n, controllers.CycleSummary{ID: "cycle", Found: n}
}

func (r *countingRunner) snapshot() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.overlap
}

func TestSchedulerRunsImmediatelyAndRepeats(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, 10*time.Millisecond, zerolog.Nop())
	assert.Nil(t, s.LastSummary())

	s.Start(context.Background())
	assert.Eventually(t, func() bool {
		calls, _ := runner.snapshot()
		return calls >= 3
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	require.NotNil(t, s.LastSummary())
	assert.Equal(t, "cycle", s.LastSummary().ID)
}

func TestSchedulerTriggerNow(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, time.Hour, zerolog.Nop())

	found, err := s.TriggerNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, found)
	assert.Equal(t, 1, s.LastSummary().Found)
}

func TestSchedulerCyclesDoNotOverlap(t *testing.T) {
	runner := &countingRunner{delay: 20 * time.Millisecond}
	s := NewScheduler(runner, time.Hour, zerolog.Nop())
	s.Start(context.Background())
	defer s.Stop()

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.TriggerNow(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	calls, overlap := runner.snapshot()
	assert.GreaterOrEqual(t, calls, 3)
	assert.False(t, overlap)
}

func TestSchedulerTriggerCancelled(t *testing.T) {
	runner := &countingRunner{delay: 200 * time.Millisecond}
	s := NewScheduler(runner, time.Hour, zerolog.Nop())
	s.Start(context.Background())
	defer s.Stop()

	// let the first scheduled cycle take the lock
	assert.Eventually(t, func() bool {
		calls, _ := runner.snapshot()
		return calls == 1
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.TriggerNow(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := NewScheduler(&countingRunner{}, 0, zerolog.Nop())
	assert.Equal(t, 30*time.Minute, s.Interval())
	s.Stop()
}
