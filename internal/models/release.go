package models

import "time"

// ReleaseRecord is a release that has already been seen for a watched item.
// (IMDBId, InfoHash) is unique; that pair is the dedup key.
type ReleaseRecord struct {
	ID          uint   `gorm:"primaryKey"`
	IMDBId      string `gorm:"column:imdb_id;size:16;not null;uniqueIndex:idx_release_imdb_hash,priority:1"`
	InfoHash    string `gorm:"size:40;not null;uniqueIndex:idx_release_imdb_hash,priority:2"`
	Title       string
	Quality     string
	Size        int64
	Seeders     int
	Tracker     string
	MagnetURL   string
	DownloadURL string
	FirstSeen   time.Time `gorm:"not null"`
	LastUpdate  time.Time `gorm:"not null"`
}

// TableName pins the table name independent of gorm's pluralizer
func (ReleaseRecord) TableName() string {
	return "torrent_releases"
}

// NotificationEvent is one delivered notification kept for history
type NotificationEvent struct {
	ID           uint             `gorm:"primaryKey"`
	Kind         NotificationKind `gorm:"size:16;index"`
	IMDBId       string           `gorm:"column:imdb_id;size:16;index"`
	ChangeType   ChangeType       `gorm:"size:16"`
	ReleaseTitle string
	Text         string
	Success      bool
	SentAt       time.Time `gorm:"index"`
}

// TableName pins the table name independent of gorm's pluralizer
func (NotificationEvent) TableName() string {
	return "notifications_history"
}

// SearchResult is one raw row returned by the indexer aggregator.
// It is never persisted as-is.
type SearchResult struct {
	Title       string `json:"title"`
	Indexer     string `json:"indexer"`
	IndexerID   int    `json:"indexerId"`
	Size        int64  `json:"size"`
	Seeders     int    `json:"seeders"`
	Quality     string `json:"quality"`
	GUID        string `json:"guid"`
	IMDbID      string `json:"imdbId"`
	InfoHash    string `json:"infoHash"`
	MagnetURL   string `json:"magnetUrl"`
	DownloadURL string `json:"downloadUrl"`
}

// Stats is a snapshot of store counters exposed on the status endpoint
type Stats struct {
	WatchedItems  int64 `json:"watched_items"`
	EnabledItems  int64 `json:"enabled_items"`
	Releases      int64 `json:"releases"`
	Notifications int64 `json:"notifications"`
}
