package controllers

import (
	"fmt"
	"html"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/amaumene/nightwatch/internal/models"
)

var (
	dubChangeKeywords     = []string{"dub", "озвучка", "дубляж", "voice", "localization", "russian", "русская"}
	episodeChangeKeywords = []string{"s0", "s1", "s2", "s3", "e0", "e1", "episode", "серия", "сезон"}
)

// DetectChangeType classifies a newly stored release for the message header
func DetectChangeType(releaseTitle string, mediaType models.MediaType) models.ChangeType {
	if releaseTitle == "" {
		return models.ChangeNewRelease
	}
	t := strings.ToLower(releaseTitle)
	if containsAny(t, dubChangeKeywords) {
		return models.ChangeNewDub
	}
	if mediaType == models.MediaTypeSeries && containsAny(t, episodeChangeKeywords) {
		return models.ChangeNewEpisode
	}
	return models.ChangeNewRelease
}

// RenderRelease builds the HTML notification for a new release. A release
// without any link renders without the link line.
func RenderRelease(item *models.WatchedItem, res models.SearchResult, link ResolvedLink, change models.ChangeType) string {
	var b strings.Builder

	b.WriteString("🌙 <b>NightWatcher</b>\n\n")
	switch change {
	case models.ChangeNewEpisode:
		b.WriteString("🆕 <b>New episode!</b>\n\n")
	case models.ChangeNewDub:
		b.WriteString("🎙 <b>New dub!</b>\n\n")
	default:
		b.WriteString("✨ <b>New release!</b>\n\n")
	}

	icon := "🎬"
	if item.IsSeries() {
		icon = "📺"
	}
	fmt.Fprintf(&b, "%s <b>%s</b>", icon, html.EscapeString(item.DisplayTitle()))
	if item.Year > 0 {
		fmt.Fprintf(&b, " (%d)", item.Year)
	}
	b.WriteString("\n")
	if item.Rating > 0 {
		fmt.Fprintf(&b, "⭐ IMDb: %.1f\n", item.Rating)
	}
	if item.Genre != "" {
		fmt.Fprintf(&b, "🎭 %s\n", html.EscapeString(item.Genre))
	}

	b.WriteString("\n📥 <b>Release:</b>\n")
	releaseTitle := res.Title
	if releaseTitle == "" {
		releaseTitle = "N/A"
	}
	fmt.Fprintf(&b, "📝 %s\n", html.EscapeString(releaseTitle))
	if res.Quality != "" {
		fmt.Fprintf(&b, "📺 Quality: %s\n", html.EscapeString(res.Quality))
	}
	if res.Size > 0 {
		fmt.Fprintf(&b, "💾 Size: %.2f GB\n", float64(res.Size)/(1024*1024*1024))
	}
	if res.Indexer != "" {
		fmt.Fprintf(&b, "🏷 Tracker: %s\n", html.EscapeString(res.Indexer))
	}

	switch {
	case link.MagnetURL != "":
		fmt.Fprintf(&b, "\n<a href=\"%s\">🧲 Magnet Link</a>\n", html.EscapeString(link.MagnetURL))
	case link.DownloadURL != "":
		fmt.Fprintf(&b, "\n📥 <a href=\"%s\">Download from tracker</a>\n", html.EscapeString(link.DownloadURL))
	}

	return b.String()
}

// RenderAlert builds an operational error message
func RenderAlert(kind, message string, fields map[string]string, at time.Time) string {
	var b strings.Builder
	b.WriteString("🚨 <b>NightWatcher error</b>\n\n")
	fmt.Fprintf(&b, "<b>Type:</b> %s\n", html.EscapeString(kind))
	fmt.Fprintf(&b, "<b>Message:</b> %s\n", html.EscapeString(message))
	if len(fields) > 0 {
		b.WriteString("\n<b>Context:</b>\n")
		for _, k := range slices.Sorted(maps.Keys(fields)) {
			fmt.Fprintf(&b, "• %s: %s\n", html.EscapeString(k), html.EscapeString(fields[k]))
		}
	}
	fmt.Fprintf(&b, "\n⏰ %s", at.Format("2006-01-02 15:04:05"))
	return b.String()
}
