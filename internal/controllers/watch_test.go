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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/nightwatch/internal/models"
)

type watchFixture struct {
	db       *models.Database
	search   *fakeSearch
	notifier *fakeNotifier
	queue    *NotificationQueue
	watch    *WatchController
}

func newWatchFixture(t *testing.T, releases ReleaseStore) *watchFixture {
	t.Helper()
	f := &watchFixture{
		db:       newTestDatabase(t),
		search:   &fakeSearch{},
		notifier: &fakeNotifier{},
	}
	if releases == nil {
		releases = f.db
	}
	f.queue = newTestQueue(t, f.notifier, f.db)
	searchCtl := newTestSearch(f.search, nil)
	links := newTestResolver(nil)
	f.watch = NewWatchController(f.db, releases, searchCtl, links, f.queue, nil, 5, zerolog.Nop())
	return f
}

func (f *watchFixture) addItem(t *testing.T, item *models.WatchedItem) *models.WatchedItem {
	t.Helper()
	item.Enabled = true
	if item.MediaType == "" {
		item.MediaType = models.MediaTypeSeries
	}
	require.NoError(t, f.db.CreateItem(context.Background(), item))
	return item
}

func (f *watchFixture) returns(results ...models.SearchResult) {
	f.search.mu.Lock()
	defer f.search.mu.Unlock()
	f.search.byQuery = func(string) ([]models.SearchResult, error) {
		return results, nil
	}
}

func hashOf(n int) string {
	return fmt.Sprintf("%040x", n)
}

func TestWatchBreakingBadScenario(t *testing.T) {
	f := newWatchFixture(t, nil)
	ctx := context.Background()
	item := f.addItem(t, &models.WatchedItem{
		IMDBId:           "tt1234567",
		Title:            "Breaking Bad",
		PreferredQuality: "1080p",
		MinReleasesCount: intPtr(2),
		PosterURL:        "https://img/bb.jpg",
	})

	// first poll: the 720p release is filtered, the 1080p one is stored silently
	f.returns(
		models.SearchResult{Title: "Breaking Bad S01 1080p WEB-DL", Quality: "1080p", InfoHash: hashOf(1)},
		models.SearchResult{Title: "Breaking Bad S01 720p", Quality: "720p", InfoHash: hashOf(2)},
	)
	found, summary := f.watch.RunCycle(ctx)
	assert.Equal(t, 1, found)
	assert.Equal(t, 1, summary.Items)
	assert.Empty(t, summary.Error)

	count, err := f.db.CountReleases(ctx, item.IMDBId)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// second poll: a distinct release reaches the minimum and is announced
	f.returns(models.SearchResult{Title: "Breaking Bad S01E02 1080p", Quality: "1080p", InfoHash: hashOf(3)})
	found, _ = f.watch.RunCycle(ctx)
	assert.Equal(t, 1, found)
	drain(t, f.queue)

	count, err = f.db.CountReleases(ctx, item.IMDBId)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	sent := f.notifier.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "Breaking Bad S01E02 1080p")
	assert.Contains(t, sent[0].Text, "New episode!")
	assert.Contains(t, sent[0].Text, "magnet:?xt=urn:btih:"+hashOf(3))
	assert.Equal(t, "https://img/bb.jpg", sent[0].ImageURL)

	history, err := f.db.ListNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "tt1234567", history[0].IMDBId)

	stored, err := f.db.GetItemByIMDB(ctx, item.IMDBId)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastChecked)
}

func TestWatchDuplicatesAreNotNew(t *testing.T) {
	f := newWatchFixture(t, nil)
	ctx := context.Background()
	f.addItem(t, &models.WatchedItem{IMDBId: "tt0000001", Title: "Breaking Bad"})
	f.returns(models.SearchResult{Title: "Breaking Bad S01", InfoHash: hashOf(1)})

	found, _ := f.watch.RunCycle(ctx)
	assert.Equal(t, 1, found)
	found, _ = f.watch.RunCycle(ctx)
	assert.Equal(t, 0, found)
	drain(t, f.queue)

	assert.Len(t, f.notifier.messages(), 1)
}

func TestWatchMinimumGate(t *testing.T) {
	f := newWatchFixture(t, nil)
	ctx := context.Background()
	item := f.addItem(t, &models.WatchedItem{IMDBId: "tt0000002", Title: "Breaking Bad", MinReleasesCount: intPtr(3)})

	// 0 stored + 2 candidates < 3
	f.returns(
		models.SearchResult{Title: "Breaking Bad S01", InfoHash: hashOf(1)},
		models.SearchResult{Title: "Breaking Bad S02", InfoHash: hashOf(2)},
	)
	found, err := f.watch.ProcessItem(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 2, found)

	// 2 stored + 1 candidate reaches 3
	f.returns(models.SearchResult{Title: "Breaking Bad S03", InfoHash: hashOf(3)})
	found, err = f.watch.ProcessItem(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 1, found)
	drain(t, f.queue)

	count, err := f.db.CountReleases(ctx, item.IMDBId)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	sent := f.notifier.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "Breaking Bad S03")
}

func TestWatchSearchFailureTouchesAndAlerts(t *testing.T) {
	f := newWatchFixture(t, nil)
	ctx := context.Background()
	item := f.addItem(t, &models.WatchedItem{IMDBId: "tt0000003", Title: "Breaking Bad"})
	f.search.byID = func(string) ([]models.SearchResult, error) { return nil, errTransport }
	f.search.byQuery = func(string) ([]models.SearchResult, error) { return nil, errTransport }

	found, summary := f.watch.RunCycle(ctx)
	assert.Equal(t, 0, found)
	assert.Equal(t, 1, summary.FailedItems)
	drain(t, f.queue)

	stored, err := f.db.GetItemByIMDB(ctx, item.IMDBId)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastChecked)

	sent := f.notifier.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "search_error")
}

func TestWatchLoadFailureAbortsCycle(t *testing.T) {
	notifier := &fakeNotifier{}
	queue := newTestQueue(t, notifier, nil)
	w := NewWatchController(failingItems{err: errors.New("database is locked")}, nil,
		newTestSearch(&fakeSearch{}, nil), newTestResolver(nil), queue, nil, 5, zerolog.Nop())

	found, summary := w.RunCycle(context.Background())
	assert.Equal(t, 0, found)
	assert.Contains(t, summary.Error, "database is locked")
	drain(t, queue)

	sent := notifier.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "cycle_error")
}

func TestWatchEmptyWatchlist(t *testing.T) {
	f := newWatchFixture(t, nil)
	found, summary := f.watch.RunCycle(context.Background())
	assert.Equal(t, 0, found)
	assert.Equal(t, 0, summary.Items)
	assert.Equal(t, 0, f.search.idCalls)
}

// flakyReleases fails inserts for one info hash
type flakyReleases struct {
	*models.Database
	badHash string
}

func (f flakyReleases) RecordIfNew(ctx context.Context, rec *models.ReleaseRecord) (bool, error) {
	if rec.InfoHash == f.badHash {
		return false, errors.New("disk I/O error")
	}
	return f.Database.RecordIfNew(ctx, rec)
}

func TestWatchStoreFailureSkipsCandidate(t *testing.T) {
	f := newWatchFixture(t, nil)
	f.watch.releases = flakyReleases{Database: f.db, badHash: hashOf(2)}
	ctx := context.Background()
	item := f.addItem(t, &models.WatchedItem{IMDBId: "tt0000004", Title: "Breaking Bad"})
	f.returns(
		models.SearchResult{Title: "Breaking Bad S01", InfoHash: hashOf(1)},
		models.SearchResult{Title: "Breaking Bad S02", InfoHash: hashOf(2)},
		models.SearchResult{Title: "Breaking Bad S03", InfoHash: hashOf(3)},
		models.SearchResult{Title: "Breaking Bad S04"},
	)

	found, err := f.watch.ProcessItem(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 2, found)
}

func TestWatchConcurrencyCapAndIsolation(t *testing.T) {
	f := newWatchFixture(t, nil)
	ctx := context.Background()

	for i := range 12 {
		f.addItem(t, &models.WatchedItem{IMDBId: fmt.Sprintf("tt%07d", 100+i), Title: fmt.Sprintf("Show Number %d", i)})
	}

	var mu sync.Mutex
	inFlight, peak := 0, 0
	f.search.byQuery = func(query string) ([]models.SearchResult, error) {
		mu.Lock()
		inFlight++
		peak = max(peak, inFlight)
		mu.Unlock()
		defer func() {
			mu.Lock()
			inFlight--
			mu.Unlock()
		}()
		time.Sleep(20 * time.Millisecond)

		switch {
		case strings.HasSuffix(query, "Number 3"):
			panic("indexer returned garbage")
		case strings.HasSuffix(query, "Number 4"):
			return nil, errTransport
		}
		return []models.SearchResult{{Title: query, GUID: "guid-" + query}}, nil
	}

	found, summary := f.watch.RunCycle(ctx)
	assert.Equal(t, 10, found)
	assert.Equal(t, 12, summary.Items)
	assert.Equal(t, 2, summary.FailedItems)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 5)
	assert.Greater(t, peak, 1)
}
