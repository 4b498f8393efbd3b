package utils

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	minSeason = 1
	maxSeason = 100
)

// Go's \b only knows ASCII word characters, so Cyrillic needs explicit edges.
const (
	edgeLeft  = `(^|[^\p{L}\p{N}_])`
	edgeRight = `([^\p{L}\p{N}_]|$)`
)

// seasonPatterns are tried in priority order; group 2 is the marker, group 3 the number
var seasonPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)` + edgeLeft + `((\d{1,3})\s*сезон)` + edgeRight),
	regexp.MustCompile(`(?i)` + edgeLeft + `((\d{1,3})\s*season)` + edgeRight),
	regexp.MustCompile(`(?i)` + edgeLeft + `(s\s*(\d{1,3}))` + `([^\p{L}\p{N}_]|e\d|$)`),
	regexp.MustCompile(`(?i)` + edgeLeft + `(season\s*(\d{1,3}))` + edgeRight),
	regexp.MustCompile(`(?i)` + edgeLeft + `(сезон\s*(\d{1,3}))` + edgeRight),
}

func seasonInRange(digits string) (int, bool) {
	n, err := strconv.Atoi(digits)
	if err != nil || n < minSeason || n > maxSeason {
		return 0, false
	}
	return n, true
}

type seasonMarker struct {
	start, end int
	number     int
}

// findMarkers scans s for in-range markers of one pattern. Scanning resumes at
// the end of each marker so a shared separator can open the next match.
func findMarkers(re *regexp.Regexp, s string) []seasonMarker {
	var out []seasonMarker
	pos := 0
	for pos < len(s) {
		m := re.FindStringSubmatchIndex(s[pos:])
		if m == nil {
			break
		}
		start, end := pos+m[4], pos+m[5]
		if n, ok := seasonInRange(s[pos+m[6] : pos+m[7]]); ok {
			out = append(out, seasonMarker{start: start, end: end, number: n})
		}
		pos = end
	}
	return out
}

// ExtractSeason returns the first in-range season number found in title,
// trying patterns in priority order
func ExtractSeason(title string) (int, bool) {
	for _, re := range seasonPatterns {
		if markers := findMarkers(re, title); len(markers) > 0 {
			return markers[0].number, true
		}
	}
	return 0, false
}

// StripSeason removes every in-range season marker from title and trims the
// result. Spacing between the remaining words is left as it was.
func StripSeason(title string) string {
	out := title
	for {
		next := out
		for _, re := range seasonPatterns {
			next = stripPattern(re, next)
		}
		if next == out {
			break
		}
		out = next
	}
	return strings.TrimSpace(out)
}

func stripPattern(re *regexp.Regexp, s string) string {
	markers := findMarkers(re, s)
	if len(markers) == 0 {
		return s
	}

	var b strings.Builder
	last := 0
	for _, m := range markers {
		b.WriteString(s[last:m.start])
		last = m.end
	}
	b.WriteString(s[last:])
	return b.String()
}
