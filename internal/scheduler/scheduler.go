package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/amaumene/nightwatch/internal/controllers"
)

// CycleRunner runs one poll cycle and reports the new releases found
type CycleRunner interface {
	RunCycle(ctx context.Context) (int, controllers.CycleSummary)
}

// Scheduler runs poll cycles back to back with a fixed pause measured from
// the end of each cycle. Manual triggers share the same cycle lock.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	logger   zerolog.Logger

	// cycle holds a token while a cycle is running
	cycle chan struct{}

	mu      sync.RWMutex
	last    *controllers.CycleSummary
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewScheduler creates a new scheduler
func NewScheduler(runner CycleRunner, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		cycle:    make(chan struct{}, 1),
	}
}

// Start starts the poll loop. The first cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.logger.Info().Dur("interval", s.interval).Msg("Starting scheduler")
	go s.loop(ctx)
}

// Stop stops the loop and waits for an in-flight cycle to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	s.logger.Info().Msg("Stopping scheduler")
	cancel()
	<-done
}

// TriggerNow runs one cycle outside the timer and returns the number of new
// releases found. It waits for a running cycle to finish first.
func (s *Scheduler) TriggerNow(ctx context.Context) (int, error) {
	summary, err := s.run(ctx)
	if err != nil {
		return 0, err
	}
	return summary.Found, nil
}

// LastSummary returns the most recent cycle, or nil before the first one
func (s *Scheduler) LastSummary() *controllers.CycleSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	summary := *s.last
	return &summary
}

// Interval returns the pause between cycles
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if _, err := s.run(ctx); err != nil {
			return
		}
		s.logger.Debug().Time("next_run", time.Now().Add(s.interval)).Msg("Cycle finished, sleeping")
		timer.Reset(s.interval)
	}
}

// run executes one cycle under the cycle lock
func (s *Scheduler) run(ctx context.Context) (controllers.CycleSummary, error) {
	select {
	case s.cycle <- struct{}{}:
	case <-ctx.Done():
		return controllers.CycleSummary{}, ctx.Err()
	}
	defer func() { <-s.cycle }()

	_, summary := s.runner.RunCycle(ctx)

	s.mu.Lock()
	s.last = &summary
	s.mu.Unlock()
	return summary, nil
}
