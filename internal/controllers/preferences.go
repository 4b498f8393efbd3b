package controllers

import (
	"strings"

	"github.com/amaumene/nightwatch/internal/models"
	"github.com/amaumene/nightwatch/internal/utils"
)

// AudioIntent classifies a free-text audio preference
type AudioIntent int

const (
	AudioLiteral AudioIntent = iota
	AudioDubbed
	AudioOriginal
)

var (
	dubIntentKeywords      = []string{"русск", "dub", "дубляж", "озвучка"}
	dubTitleKeywords       = []string{"русск", "russian", "dub", "дубляж", "озвучка", "озвучен", "russkij"}
	originalIntentKeywords = []string{"оригинал", "original", "eng"}
	originalTitleKeywords  = []string{"оригинал", "original", "eng", "english", "sub", "субтитр"}
)

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// ClassifyAudio maps an audio preference onto its intent
func ClassifyAudio(pref string) AudioIntent {
	p := strings.ToLower(pref)
	switch {
	case containsAny(p, dubIntentKeywords):
		return AudioDubbed
	case containsAny(p, originalIntentKeywords):
		return AudioOriginal
	default:
		return AudioLiteral
	}
}

// matchesAudio checks a lower-cased release title against an audio preference
func matchesAudio(intent AudioIntent, pref, title string) bool {
	switch intent {
	case AudioDubbed:
		return containsAny(title, dubTitleKeywords)
	case AudioOriginal:
		return containsAny(title, originalTitleKeywords) || !containsAny(title, dubTitleKeywords)
	default:
		return strings.Contains(title, strings.ToLower(pref))
	}
}

// FilterByPreferences keeps the results satisfying both the quality and the
// audio preference. An absent preference is vacuously satisfied.
func FilterByPreferences(results []models.SearchResult, preferredQuality, preferredAudio string) []models.SearchResult {
	preferredQuality = strings.TrimSpace(preferredQuality)
	preferredAudio = strings.TrimSpace(preferredAudio)
	if preferredQuality == "" && preferredAudio == "" {
		return results
	}

	tokens := utils.ParseQualityList(preferredQuality)
	intent := ClassifyAudio(preferredAudio)

	filtered := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		title := strings.ToLower(r.Title)
		if len(tokens) > 0 && !utils.MatchesQuality(tokens, r.Quality, title) {
			continue
		}
		if preferredAudio != "" && !matchesAudio(intent, preferredAudio, title) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}
