package controllers

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/amaumene/nightwatch/internal/metrics"
	"github.com/amaumene/nightwatch/internal/models"
)

const (
	defaultQueueSize  = 100
	defaultWorkers    = 2
	maxHistoryText    = 1000
	historySaveTimout = 5 * time.Second
)

// NotificationJob is one message handed off to the queue
type NotificationJob struct {
	ID           string
	Kind         models.NotificationKind
	IMDBId       string
	ReleaseTitle string
	ChangeType   models.ChangeType
	Text         string
	ImageURL     string
}

// NotificationQueue decouples message delivery from release bookkeeping.
// Producers never wait for delivery; a full queue drops the job.
type NotificationQueue struct {
	notifier Notifier
	history  HistoryStore
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	queue   chan NotificationJob
	workers int
	wg      sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewNotificationQueue creates a queue. history may be nil.
func NewNotificationQueue(notifier Notifier, history HistoryStore, m *metrics.Metrics, size, workers int, logger zerolog.Logger) *NotificationQueue {
	if size <= 0 {
		size = defaultQueueSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &NotificationQueue{
		notifier: notifier,
		history:  history,
		metrics:  m,
		logger:   logger.With().Str("component", "notifications").Logger(),
		queue:    make(chan NotificationJob, size),
		workers:  workers,
	}
}

// Start launches the workers. ctx bounds each delivery, not the worker lifetime;
// workers exit once Stop has drained the queue.
func (q *NotificationQueue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		for range q.workers {
			q.wg.Add(1)
			go q.worker(ctx)
		}
	})
}

// Enqueue hands a job off without blocking. It reports whether the job was accepted.
func (q *NotificationQueue) Enqueue(job NotificationJob) bool {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn().Str("job_id", job.ID).Msg("Notification queue closed, dropping job")
		q.metrics.Notification(string(job.Kind), "dropped")
		return false
	}

	select {
	case q.queue <- job:
		return true
	default:
		q.logger.Warn().
			Str("job_id", job.ID).
			Str("imdb_id", job.IMDBId).
			Msg("Notification queue full, dropping job")
		q.metrics.Notification(string(job.Kind), "dropped")
		return false
	}
}

// Alert enqueues an operational error message
func (q *NotificationQueue) Alert(kind, message string, fields map[string]string) bool {
	return q.Enqueue(NotificationJob{
		Kind: models.NotificationAlert,
		Text: RenderAlert(kind, message, fields, time.Now()),
	})
}

// Stop refuses new jobs, lets the workers drain what is queued and waits for
// them until ctx expires
func (q *NotificationQueue) Stop(ctx context.Context) error {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.queue)
		q.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued jobs
func (q *NotificationQueue) Pending() int {
	return len(q.queue)
}

func (q *NotificationQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for job := range q.queue {
		q.dispatch(ctx, job)
	}
}

func (q *NotificationQueue) dispatch(ctx context.Context, job NotificationJob) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().Interface("panic", r).Str("job_id", job.ID).Msg("Notification dispatch panicked")
		}
	}()

	ok := q.notifier.Send(ctx, job.Text, job.ImageURL, job.ID)

	status := "sent"
	if !ok {
		status = "failed"
	}
	q.metrics.Notification(string(job.Kind), status)
	q.logger.Debug().
		Str("job_id", job.ID).
		Str("imdb_id", job.IMDBId).
		Bool("delivered", ok).
		Msg("Notification dispatched")

	// history is kept for release notices only
	if q.history == nil || job.IMDBId == "" {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historySaveTimout)
	defer cancel()
	err := q.history.SaveNotification(saveCtx, &models.NotificationEvent{
		Kind:         job.Kind,
		IMDBId:       job.IMDBId,
		ChangeType:   job.ChangeType,
		ReleaseTitle: job.ReleaseTitle,
		Text:         truncateRunes(job.Text, maxHistoryText),
		Success:      ok,
		SentAt:       time.Now().UTC(),
	})
	if err != nil {
		q.logger.Warn().Err(err).Str("imdb_id", job.IMDBId).Msg("Failed to save notification history")
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
