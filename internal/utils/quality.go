package utils

import "strings"

// QualityTier is a canonical resolution with the spellings that denote it
type QualityTier struct {
	Key      string
	Synonyms []string
}

// QualityTiers is ordered from the highest resolution down
var QualityTiers = []QualityTier{
	{Key: "2160p", Synonyms: []string{"2160p", "2160", "4k", "uhd", "ultra hd"}},
	{Key: "1080p", Synonyms: []string{"1080p", "1080", "full hd", "fhd"}},
	{Key: "720p", Synonyms: []string{"720p", "720", "hd"}},
	{Key: "480p", Synonyms: []string{"480p", "480", "sd"}},
}

// overlaps reports whether a requested token names this tier
func (t QualityTier) overlaps(token string) bool {
	if strings.Contains(t.Key, token) || strings.Contains(token, t.Key) {
		return true
	}
	for _, syn := range t.Synonyms {
		if token == syn {
			return true
		}
	}
	return false
}

// ParseQualityList splits a comma-separated preference into lower-cased tokens
func ParseQualityList(pref string) []string {
	var out []string
	for _, part := range strings.Split(pref, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MatchesQuality reports whether any requested token is satisfied by the
// quality descriptor or the title. Both inputs are compared lower-cased.
func MatchesQuality(tokens []string, quality, title string) bool {
	quality = strings.ToLower(quality)
	title = strings.ToLower(title)

	for _, token := range tokens {
		for _, tier := range QualityTiers {
			if !tier.overlaps(token) {
				continue
			}
			for _, syn := range tier.Synonyms {
				if strings.Contains(quality, syn) || strings.Contains(title, syn) {
					return true
				}
			}
		}
		if strings.Contains(quality, token) || strings.Contains(title, token) {
			return true
		}
	}
	return false
}
