package models

import "time"

// WatchedItem is a title the user wants to be told about when new releases appear
type WatchedItem struct {
	ID            uint   `gorm:"primaryKey"`
	IMDBId        string `gorm:"column:imdb_id;uniqueIndex;size:16;not null"`
	Title         string `gorm:"not null"`
	OriginalTitle string
	MediaType     MediaType `gorm:"size:16;not null"`
	Year          int
	PosterURL     string
	Genre         string
	Rating        float64

	// Enabled has no default tag: gorm would skip an explicit false on insert
	Enabled bool `gorm:"index;not null"`

	// Preferences (all optional)
	TargetSeason     *int
	PreferredQuality string
	PreferredAudio   string
	MinReleasesCount *int

	LastChecked *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName pins the table name independent of gorm's pluralizer
func (WatchedItem) TableName() string {
	return "watchlist"
}

// DisplayTitle returns the best available human title
func (w *WatchedItem) DisplayTitle() string {
	if w.Title != "" {
		return w.Title
	}
	if w.OriginalTitle != "" {
		return w.OriginalTitle
	}
	return w.IMDBId
}

// IsSeries reports whether the item is tracked as a series
func (w *WatchedItem) IsSeries() bool {
	return w.MediaType == MediaTypeSeries
}
