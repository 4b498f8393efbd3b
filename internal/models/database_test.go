package models

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := NewDatabase(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func intPtr(v int) *int { return &v }

func TestRecordIfNewDeduplicates(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	first := &ReleaseRecord{IMDBId: "tt1234567", InfoHash: "abc", Title: "Breaking.Bad.S01.1080p", Quality: "1080p", Size: 100}
	isNew, err := db.RecordIfNew(ctx, first)
	require.NoError(t, err)
	assert.True(t, isNew)

	stored, err := db.FindRelease(ctx, "tt1234567", "abc")
	require.NoError(t, err)
	firstSeen := stored.FirstSeen

	time.Sleep(5 * time.Millisecond)

	second := &ReleaseRecord{IMDBId: "tt1234567", InfoHash: "abc", Title: "renamed", Quality: "720p", Size: 999}
	isNew, err = db.RecordIfNew(ctx, second)
	require.NoError(t, err)
	assert.False(t, isNew)

	count, err := db.CountReleases(ctx, "tt1234567")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err = db.FindRelease(ctx, "tt1234567", "abc")
	require.NoError(t, err)
	assert.Equal(t, "Breaking.Bad.S01.1080p", stored.Title)
	assert.Equal(t, "1080p", stored.Quality)
	assert.Equal(t, int64(100), stored.Size)
	assert.True(t, stored.FirstSeen.Equal(firstSeen))
	assert.True(t, stored.LastUpdate.After(firstSeen))
}

func TestRecordIfNewKeyIncludesImdb(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	isNew, err := db.RecordIfNew(ctx, &ReleaseRecord{IMDBId: "tt0000001", InfoHash: "same"})
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = db.RecordIfNew(ctx, &ReleaseRecord{IMDBId: "tt0000002", InfoHash: "same"})
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestFindReleaseNotFound(t *testing.T) {
	db := newTestDatabase(t)

	_, err := db.FindRelease(context.Background(), "tt1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListEnabledItemsAndTouch(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	on := &WatchedItem{IMDBId: "tt0000001", Title: "On", MediaType: MediaTypeMovie, Enabled: true}
	off := &WatchedItem{IMDBId: "tt0000002", Title: "Off", MediaType: MediaTypeSeries, Enabled: false, TargetSeason: intPtr(2)}
	require.NoError(t, db.CreateItem(ctx, on))
	require.NoError(t, db.CreateItem(ctx, off))

	items, err := db.ListEnabledItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "tt0000001", items[0].IMDBId)
	assert.Nil(t, items[0].LastChecked)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, db.TouchLastChecked(ctx, on.ID, now))

	got, err := db.GetItemByIMDB(ctx, "tt0000001")
	require.NoError(t, err)
	require.NotNil(t, got.LastChecked)
	assert.True(t, got.LastChecked.Equal(now))

	require.NoError(t, db.SetItemEnabled(ctx, "tt0000002", true))
	items, err = db.ListEnabledItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	assert.ErrorIs(t, db.SetItemEnabled(ctx, "tt9999999", true), ErrNotFound)
}

func TestDuplicateImdbRejected(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.CreateItem(ctx, &WatchedItem{IMDBId: "tt0000001", Title: "A", MediaType: MediaTypeMovie, Enabled: true}))
	assert.Error(t, db.CreateItem(ctx, &WatchedItem{IMDBId: "tt0000001", Title: "B", MediaType: MediaTypeMovie, Enabled: true}))
}

func TestStatsAndHistory(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.CreateItem(ctx, &WatchedItem{IMDBId: "tt0000001", Title: "A", MediaType: MediaTypeMovie, Enabled: true}))
	_, err := db.RecordIfNew(ctx, &ReleaseRecord{IMDBId: "tt0000001", InfoHash: "h1"})
	require.NoError(t, err)
	require.NoError(t, db.SaveNotification(ctx, &NotificationEvent{Kind: NotificationRelease, IMDBId: "tt0000001", Text: "hi", Success: true}))

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.WatchedItems)
	assert.Equal(t, int64(1), stats.EnabledItems)
	assert.Equal(t, int64(1), stats.Releases)
	assert.Equal(t, int64(1), stats.Notifications)

	evs, err := db.ListNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.False(t, evs[0].SentAt.IsZero())

	require.NoError(t, db.Ping(ctx))
}
