package controllers

import (
	"context"
	"time"

	"github.com/amaumene/nightwatch/internal/models"
)

// SearchProvider queries the indexer aggregator. An empty slice means no
// matches and is distinct from an error.
type SearchProvider interface {
	SearchByID(ctx context.Context, imdbID string) ([]models.SearchResult, error)
	SearchByQuery(ctx context.Context, query string) ([]models.SearchResult, error)
}

// LinkProvider performs the best-effort network fallbacks of link resolution
type LinkProvider interface {
	// ResolveLink returns a redirect target or inline magnet for a release
	ResolveLink(ctx context.Context, indexerID int, guid string) (string, error)
	// FetchTorrent downloads a .torrent file or reports the magnet it redirects to
	FetchTorrent(ctx context.Context, url string) ([]byte, string, error)
}

// Notifier delivers one rendered message. Ordinary delivery failures return false.
type Notifier interface {
	Send(ctx context.Context, text, imageURL, correlationID string) bool
}

// ItemStore is the watched-item source
type ItemStore interface {
	ListEnabledItems(ctx context.Context) ([]*models.WatchedItem, error)
	TouchLastChecked(ctx context.Context, itemID uint, at time.Time) error
}

// ReleaseStore tracks releases already seen per watched item
type ReleaseStore interface {
	CountReleases(ctx context.Context, imdbID string) (int, error)
	RecordIfNew(ctx context.Context, rec *models.ReleaseRecord) (bool, error)
}

// HistoryStore persists delivered notifications
type HistoryStore interface {
	SaveNotification(ctx context.Context, ev *models.NotificationEvent) error
}
