package models

// MediaType represents the type of a watched title (movie or series)
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeSeries MediaType = "series"
)

// Valid reports whether the media type is one of the known values
func (t MediaType) Valid() bool {
	return t == MediaTypeMovie || t == MediaTypeSeries
}

// ChangeType classifies why a stored release is news for a watched item
type ChangeType string

const (
	ChangeNewRelease ChangeType = "new_release"
	ChangeNewEpisode ChangeType = "new_episode"
	ChangeNewDub     ChangeType = "new_dub"
)

// NotificationKind distinguishes release notices from operational alerts
type NotificationKind string

const (
	NotificationRelease NotificationKind = "release"
	NotificationAlert   NotificationKind = "alert"
)
