package controllers

import (
	"regexp"
	"strings"
)

// TrackerStrategy builds a canonical download URL for one tracker family
type TrackerStrategy struct {
	Name string
	// Matches reports whether the lower-cased indexer name belongs to the family
	Matches func(indexer string) bool
	// DownloadURL returns a download URL and the tracker-side id, if derivable
	DownloadURL func(guid string) (downloadURL, trackerID string)
}

// TrackerRegistry maps indexer names to URL-building strategies. The first
// matching strategy wins; the fallback handles every other tracker.
type TrackerRegistry struct {
	strategies []TrackerStrategy
	fallback   TrackerStrategy
}

// NewTrackerRegistry returns a registry preloaded with the known tracker families
func NewTrackerRegistry() *TrackerRegistry {
	return &TrackerRegistry{
		strategies: []TrackerStrategy{nnmClubStrategy(), ruTrackerStrategy()},
		fallback:   genericStrategy(),
	}
}

// Register adds a strategy ahead of the built-in ones
func (r *TrackerRegistry) Register(s TrackerStrategy) {
	r.strategies = append([]TrackerStrategy{s}, r.strategies...)
}

// Lookup returns the strategy for an indexer name
func (r *TrackerRegistry) Lookup(indexer string) TrackerStrategy {
	name := strings.ToLower(indexer)
	for _, s := range r.strategies {
		if s.Matches(name) {
			return s
		}
	}
	return r.fallback
}

var digitsOnly = regexp.MustCompile(`^\d+$`)

var paramPatterns = map[string]*regexp.Regexp{
	"id": paramPattern("id"),
	"t":  paramPattern("t"),
}

func paramPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[?&;])` + regexp.QuoteMeta(key) + `=([^&#]+)`)
}

// queryParam extracts a query parameter from a guid that may not be a valid URL
func queryParam(guid, key string) string {
	re, ok := paramPatterns[key]
	if !ok {
		re = paramPattern(key)
	}
	if m := re.FindStringSubmatch(guid); m != nil {
		return m[1]
	}
	return ""
}

// forumStrategy covers phpBB-style trackers addressed by a topic id
func forumStrategy(name, idParam, template string, matches func(string) bool, pages ...string) TrackerStrategy {
	return TrackerStrategy{
		Name:    name,
		Matches: matches,
		DownloadURL: func(guid string) (string, string) {
			if id := queryParam(guid, idParam); id != "" {
				return template + id, id
			}
			if digitsOnly.MatchString(guid) {
				return template + guid, guid
			}
			for _, page := range pages {
				if strings.Contains(guid, page) {
					return guid, ""
				}
			}
			return "", ""
		},
	}
}

func nnmClubStrategy() TrackerStrategy {
	return forumStrategy("nnmclub", "id", "https://nnmclub.to/forum/download.php?id=",
		func(name string) bool { return strings.Contains(name, "nnm") },
		"download.php", "viewtopic.php")
}

func ruTrackerStrategy() TrackerStrategy {
	return forumStrategy("rutracker", "t", "https://rutracker.org/forum/dl.php?t=",
		func(name string) bool { return strings.Contains(name, "rutracker") },
		"dl.php", "viewtopic.php")
}

func genericStrategy() TrackerStrategy {
	return TrackerStrategy{
		Name:    "generic",
		Matches: func(string) bool { return true },
		DownloadURL: func(guid string) (string, string) {
			if !isURL(guid) || !(strings.Contains(guid, "download") || strings.Contains(guid, "dl.php")) {
				return "", ""
			}
			id := queryParam(guid, "id")
			if id == "" {
				id = queryParam(guid, "t")
			}
			return guid, id
		},
	}
}

func isURL(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "http")
}
