package controllers

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/amaumene/nightwatch/internal/metrics"
	"github.com/amaumene/nightwatch/internal/models"
	"github.com/amaumene/nightwatch/internal/utils"
)

// SearchController finds the candidate releases of one watched item
type SearchController struct {
	provider  SearchProvider
	matcher   *IdentityMatcher
	blacklist *utils.Blacklist
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewSearchController creates a new search controller. blacklist may be nil.
func NewSearchController(provider SearchProvider, matcher *IdentityMatcher, blacklist *utils.Blacklist, m *metrics.Metrics, logger zerolog.Logger) *SearchController {
	return &SearchController{
		provider:  provider,
		matcher:   matcher,
		blacklist: blacklist,
		metrics:   m,
		logger:    logger.With().Str("component", "search").Logger(),
	}
}

// SearchItem runs the id search, falls back to the keyword query and returns
// the results that match the item and its preferences. An error means both
// strategies failed.
func (c *SearchController) SearchItem(ctx context.Context, item *models.WatchedItem) ([]models.SearchResult, error) {
	results, err := c.searchRaw(ctx, item)
	if err != nil {
		return nil, err
	}
	raw := len(results)

	results = c.dropBlacklisted(results)
	results = c.matcher.Filter(results, item.IMDBId, item.Title, item.OriginalTitle)
	matched := len(results)
	results = FilterByPreferences(results, item.PreferredQuality, item.PreferredAudio)

	c.logger.Debug().
		Str("imdb_id", item.IMDBId).
		Int("raw", raw).
		Int("matched", matched).
		Int("preferred", len(results)).
		Msg("Search results filtered")

	return results, nil
}

// searchRaw prefers the id search while some result actually carries the id
func (c *SearchController) searchRaw(ctx context.Context, item *models.WatchedItem) ([]models.SearchResult, error) {
	if item.IMDBId != "" {
		results, err := c.provider.SearchByID(ctx, item.IMDBId)
		switch {
		case err != nil:
			c.metrics.SearchFailed("id")
			c.logger.Warn().Err(err).Str("imdb_id", item.IMDBId).Msg("ID search failed, falling back to query")
		case carriesID(results, item.IMDBId):
			return results, nil
		default:
			c.logger.Debug().
				Str("imdb_id", item.IMDBId).
				Int("count", len(results)).
				Msg("ID search returned no tagged results, falling back to query")
		}
	}

	query := BuildQuery(item)
	results, err := c.provider.SearchByQuery(ctx, query)
	if err != nil {
		c.metrics.SearchFailed("query")
		return nil, fmt.Errorf("failed to search %q: %w", query, err)
	}
	return results, nil
}

func (c *SearchController) dropBlacklisted(results []models.SearchResult) []models.SearchResult {
	if c.blacklist.Len() == 0 {
		return results
	}
	kept := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		if hit, term := c.blacklist.IsBlacklisted(r.Title); hit {
			c.logger.Debug().Str("title", r.Title).Str("term", term).Msg("Release blacklisted")
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func carriesID(results []models.SearchResult, imdbID string) bool {
	for _, r := range results {
		if r.IMDbID != "" && strings.EqualFold(r.IMDbID, imdbID) {
			return true
		}
	}
	return false
}
