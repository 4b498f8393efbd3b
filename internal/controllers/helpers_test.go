package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/nightwatch/internal/models"
)

var errTransport = errors.New("connection refused")

type fakeSearch struct {
	mu      sync.Mutex
	byID    func(imdbID string) ([]models.SearchResult, error)
	byQuery func(query string) ([]models.SearchResult, error)
	idCalls int
	queries []string
}

func (f *fakeSearch) SearchByID(_ context.Context, imdbID string) ([]models.SearchResult, error) {
	f.mu.Lock()
	f.idCalls++
	f.mu.Unlock()
	if f.byID == nil {
		return []models.SearchResult{}, nil
	}
	return f.byID(imdbID)
}

func (f *fakeSearch) SearchByQuery(_ context.Context, query string) ([]models.SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.byQuery == nil {
		return []models.SearchResult{}, nil
	}
	return f.byQuery(query)
}

type fakeLinks struct {
	mu         sync.Mutex
	target     string
	resolveErr error
	torrent    []byte
	magnet     string
	fetchErr   error
	resolves   int
	fetches    int
}

func (f *fakeLinks) ResolveLink(_ context.Context, _ int, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolves++
	return f.target, f.resolveErr
}

func (f *fakeLinks) FetchTorrent(_ context.Context, _ string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.torrent, f.magnet, f.fetchErr
}

type sentMessage struct {
	Text          string
	ImageURL      string
	CorrelationID string
}

type fakeNotifier struct {
	mu    sync.Mutex
	fail  bool
	delay time.Duration
	sent  []sentMessage
}

func (f *fakeNotifier) Send(_ context.Context, text, imageURL, correlationID string) bool {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{Text: text, ImageURL: imageURL, CorrelationID: correlationID})
	return !f.fail
}

func (f *fakeNotifier) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeHistory struct {
	mu     sync.Mutex
	events []*models.NotificationEvent
}

func (f *fakeHistory) SaveNotification(_ context.Context, ev *models.NotificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

// failingItems fails the watchlist load and records touches
type failingItems struct {
	err error
}

func (f failingItems) ListEnabledItems(context.Context) ([]*models.WatchedItem, error) {
	return nil, f.err
}

func (f failingItems) TouchLastChecked(context.Context, uint, time.Time) error { return nil }

func newTestDatabase(t *testing.T) *models.Database {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := models.NewDatabase(fmt.Sprintf("file:ctl_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestQueue(t *testing.T, n *fakeNotifier, h HistoryStore) *NotificationQueue {
	t.Helper()
	q := NewNotificationQueue(n, h, nil, 16, 1, zerolog.Nop())
	q.Start(context.Background())
	return q
}

// drain waits for every queued notification to be delivered
func drain(t *testing.T, q *NotificationQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))
}

func intPtr(v int) *int { return &v }
