package prowlarr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/amaumene/nightwatch/internal/models"
	"github.com/amaumene/nightwatch/internal/utils"
)

const maxSearchBody = 8 * 1024 * 1024

// SearchByID searches every indexer for an imdb id. An empty slice means no
// matches and is not an error.
func (c *Client) SearchByID(ctx context.Context, imdbID string) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("imdbId", imdbID)
	return c.search(ctx, params)
}

// SearchByQuery runs a free-text search
func (c *Client) SearchByQuery(ctx context.Context, query string) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []models.SearchResult{}, nil
	}
	params := url.Values{}
	params.Set("query", query)
	return c.search(ctx, params)
}

// search performs one logical search with bounded exponential retry.
// 4xx responses and an open breaker are not retried.
func (c *Client) search(ctx context.Context, params url.Values) ([]models.SearchResult, error) {
	finalURL := c.endpoint("/api/v1/search", params)

	c.logger.Debug().
		Str("url", redacted(finalURL)).
		Msg("Performing Prowlarr search")

	var results []models.SearchResult
	operation := func() error {
		err := c.breaker.Execute(func() error {
			var err error
			results, err = c.searchOnce(ctx, finalURL)
			return err
		})
		if err == nil {
			return nil
		}
		var statusErr *StatusError
		if errors.Is(err, utils.ErrCircuitOpen) || (errors.As(err, &statusErr) && !statusErr.Temporary()) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	var retries uint64
	if c.maxRetries > 1 {
		retries = c.maxRetries - 1
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)

	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		c.logger.Warn().
			Err(err).
			Dur("retry_in", wait).
			Msg("Prowlarr search failed, retrying")
	})
	if err != nil {
		return nil, fmt.Errorf("prowlarr search failed: %w", err)
	}

	c.logger.Debug().Int("count", len(results)).Msg("Prowlarr search completed")
	return results, nil
}

// searchOnce is a single attempt bounded by the search timeout
func (c *Client) searchOnce(ctx context.Context, finalURL string) ([]models.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()

	resp, err := c.get(ctx, c.httpClient, finalURL)
	if err != nil {
		return nil, fmt.Errorf("prowlarr API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := readError(resp)
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("body", err.(*StatusError).Body).
			Msg("Prowlarr API returned non-OK status")
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	return decodeResults(body)
}
