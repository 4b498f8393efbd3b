package prowlarr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/amaumene/nightwatch/internal/config"
	"github.com/amaumene/nightwatch/internal/utils"
)

const userAgent = "nightwatch/1.0"

// ErrNotConfigured is returned when the Prowlarr URL or API key is missing
var ErrNotConfigured = errors.New("prowlarr is not configured")

// StatusError is returned for non-OK HTTP responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("prowlarr API returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client wraps the Prowlarr HTTP API. One Client and its connection pool are
// shared by every cycle and closed once at shutdown.
type Client struct {
	baseURL *url.URL
	apiKey  string

	transport  *http.Transport
	httpClient *http.Client // follows redirects, used for searches and file fetches
	linkClient *http.Client // never follows redirects, used for the download endpoint
	breaker    *utils.CircuitBreaker
	logger     zerolog.Logger
	closeOnce  sync.Once

	searchTimeout time.Duration
	linkTimeout   time.Duration
	maxRetries    uint64
	retryInitial  time.Duration
}

// NewClient creates a new Prowlarr client
func NewClient(cfg *config.Config, breaker *utils.CircuitBreaker, logger zerolog.Logger) (*Client, error) {
	if cfg.ProwlarrURL == "" || cfg.ProwlarrAPIKey == "" {
		return nil, ErrNotConfigured
	}
	base, err := url.Parse(strings.TrimRight(cfg.ProwlarrURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid prowlarr URL: %w", err)
	}

	if breaker == nil {
		breaker = utils.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 20
	transport.MaxIdleConnsPerHost = 10
	transport.IdleConnTimeout = 90 * time.Second

	return &Client{
		baseURL:   base,
		apiKey:    cfg.ProwlarrAPIKey,
		transport: transport,
		httpClient: &http.Client{
			Transport:     transport,
			CheckRedirect: httpOnlyRedirects,
		},
		linkClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		breaker:       breaker,
		logger:        logger.With().Str("component", "prowlarr").Logger(),
		searchTimeout: cfg.SearchTimeout,
		linkTimeout:   cfg.LinkTimeout,
		maxRetries:    uint64(cfg.SearchMaxRetries),
		retryInitial:  500 * time.Millisecond,
	}, nil
}

// httpOnlyRedirects stops at a redirect to a non-http scheme (e.g. magnet:)
// and hands that response back to the caller
func httpOnlyRedirects(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return http.ErrUseLastResponse
	}
	return nil
}

// Close releases pooled connections. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.transport.CloseIdleConnections()
		c.logger.Debug().Msg("Prowlarr client closed")
	})
	return nil
}

// endpoint builds an absolute URL below the base URL with the api key attached
func (c *Client) endpoint(path string, params url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)
	u.RawQuery = params.Encode()
	return u.String()
}

// get issues a GET with the standard headers
func (c *Client) get(ctx context.Context, client *http.Client, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	return client.Do(req)
}

// readError drains a bounded slice of a failed response body into a StatusError
func readError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// redacted strips the api key from a URL for logging
func redacted(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Has("apikey") {
		q.Set("apikey", "***")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
