package controllers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/amaumene/nightwatch/internal/models"
	"github.com/amaumene/nightwatch/internal/utils"
)

// BuildQuery builds the keyword query for a watched item: the original title
// (or title, or imdb id) without its season marker, the year when known and,
// for series, a canonical SNN token.
func BuildQuery(item *models.WatchedItem) string {
	base := firstNonEmpty(item.OriginalTitle, item.Title, item.IMDBId)

	// season handling is for series only: "Ocean's 8" carries no season marker
	season, hasSeason := 0, false
	if item.IsSeries() {
		season, hasSeason = targetSeason(item)
		if _, marked := utils.ExtractSeason(base); marked {
			if stripped := utils.StripSeason(base); stripped != "" {
				base = stripped
			}
		}
	}

	parts := []string{strings.TrimSpace(base)}
	if item.Year > 0 {
		parts = append(parts, strconv.Itoa(item.Year))
	}
	if hasSeason {
		parts = append(parts, fmt.Sprintf("S%02d", season))
	}
	return strings.Join(parts, " ")
}

// targetSeason prefers the explicit season, then one parsed from either title
func targetSeason(item *models.WatchedItem) (int, bool) {
	if item.TargetSeason != nil && *item.TargetSeason > 0 {
		return *item.TargetSeason, true
	}
	for _, t := range []string{item.Title, item.OriginalTitle} {
		if season, ok := utils.ExtractSeason(t); ok {
			return season, true
		}
	}
	return 0, false
}
