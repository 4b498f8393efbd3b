package controllers

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog"

	"github.com/amaumene/nightwatch/internal/models"
	"github.com/amaumene/nightwatch/internal/utils"
)

const (
	// shortQueryKeywords is the largest keyword set matched in strict mode
	shortQueryKeywords = 2
	minOverlap         = 2
	longKeywordLength  = 5
)

// IdentityMatcher decides which search results represent a watched work
type IdentityMatcher struct {
	logger zerolog.Logger
}

// NewIdentityMatcher creates a new identity matcher
func NewIdentityMatcher(logger zerolog.Logger) *IdentityMatcher {
	return &IdentityMatcher{logger: logger.With().Str("component", "matcher").Logger()}
}

// Filter keeps the results that carry the item's imdb id or share enough
// title keywords with it. Input order is preserved.
func (m *IdentityMatcher) Filter(results []models.SearchResult, imdbID, title, originalTitle string) []models.SearchResult {
	if len(results) == 0 {
		return []models.SearchResult{}
	}

	titleKeys := utils.Normalize(title)
	originalKeys := utils.Normalize(originalTitle)
	keywords := make(map[string]struct{}, len(titleKeys)+len(originalKeys))
	for k := range titleKeys {
		keywords[k] = struct{}{}
	}
	for k := range originalKeys {
		keywords[k] = struct{}{}
	}
	if len(keywords) == 0 {
		return results
	}

	strict := len(keywords) <= shortQueryKeywords
	need := max(minOverlap, len(keywords)/2)
	wantID := strings.ToLower(strings.TrimSpace(imdbID))

	accepted := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		if wantID != "" && r.IMDbID != "" && strings.EqualFold(strings.TrimSpace(r.IMDbID), wantID) {
			accepted = append(accepted, r)
			continue
		}

		tokens := utils.Normalize(r.Title)
		matches, long := 0, false
		for k := range keywords {
			if _, ok := tokens[k]; ok {
				matches++
				if utf8.RuneCountInString(k) >= longKeywordLength {
					long = true
				}
			}
		}

		// each title is matched on its own too, so a release named after
		// either one passes even when the other title is unrelated
		ok := containsAll(tokens, titleKeys) || containsAll(tokens, originalKeys)
		if !ok && !strict {
			ok = matches >= need || long
		}
		if ok {
			accepted = append(accepted, r)
			continue
		}

		if e := m.logger.Debug(); e.Enabled() {
			e.Str("release", r.Title).
				Str("searching_for", firstNonEmpty(title, originalTitle)).
				Int("matches", matches).
				Int("keywords", len(keywords)).
				Bool("strict", strict).
				Int("distance", levenshtein.ComputeDistance(
					utils.NormalizedString(r.Title), utils.NormalizedString(firstNonEmpty(originalTitle, title)))).
				Msg("Filtered out release (no identity match)")
		}
	}
	return accepted
}

// containsAll reports whether a non-empty keyword set is fully present in tokens
func containsAll(tokens, keys map[string]struct{}) bool {
	if len(keys) == 0 {
		return false
	}
	for k := range keys {
		if _, ok := tokens[k]; !ok {
			return false
		}
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
