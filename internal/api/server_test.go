package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/nightwatch/internal/config"
	"github.com/amaumene/nightwatch/internal/controllers"
	"github.com/amaumene/nightwatch/internal/metrics"
	"github.com/amaumene/nightwatch/internal/models"
)

type fakeStore struct {
	pingErr  error
	releases []*models.ReleaseRecord
	gotIMDb  string
	gotLimit int
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) Stats(context.Context) (*models.Stats, error) {
	return &models.Stats{WatchedItems: 3, EnabledItems: 2, Releases: 7, Notifications: 4}, nil
}

func (f *fakeStore) ListReleases(_ context.Context, imdbID string, limit int) ([]*models.ReleaseRecord, error) {
	f.gotIMDb, f.gotLimit = imdbID, limit
	return f.releases, nil
}

type fakePoller struct {
	found int
	err   error
	last  *controllers.CycleSummary
}

func (f *fakePoller) TriggerNow(context.Context) (int, error) { return f.found, f.err }

func (f *fakePoller) LastSummary() *controllers.CycleSummary { return f.last }

func (f *fakePoller) Interval() time.Duration { return 30 * time.Minute }

func newTestServer(apiKey string, store *fakeStore, poller *fakePoller) *Server {
	cfg := &config.Config{ServerPort: "0", APIKey: apiKey}
	return NewServer(cfg, store, poller, metrics.New(), zerolog.Nop())
}

func doRequest(t *testing.T, s *Server, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(body) > 0 && body[0] == '{' {
		require.NoError(t, json.Unmarshal(body, &out))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer("", store, &fakePoller{})

	code, body := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])

	store.pingErr = errors.New("database is closed")
	code, body = doRequest(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestStatus(t *testing.T) {
	poller := &fakePoller{last: &controllers.CycleSummary{ID: "c1", Items: 2, Found: 1}}
	s := newTestServer("", &fakeStore{}, poller)

	code, body := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["watched_items"])
	assert.EqualValues(t, 7, body["releases"])
	assert.EqualValues(t, 1800, body["poll_interval_seconds"])
	last, ok := body["last_cycle"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "c1", last["id"])
}

func TestCheck(t *testing.T) {
	s := newTestServer("", &fakeStore{}, &fakePoller{found: 4})
	code, body := doRequest(t, s, httptest.NewRequest(http.MethodPost, "/api/check", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 4, body["found"])

	s = newTestServer("", &fakeStore{}, &fakePoller{err: context.Canceled})
	code, body = doRequest(t, s, httptest.NewRequest(http.MethodPost, "/api/check", nil))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "Check could not run", body["error"])
}

func TestAPIKeyRequired(t *testing.T) {
	s := newTestServer("secret", &fakeStore{}, &fakePoller{found: 1})

	code, _ := doRequest(t, s, httptest.NewRequest(http.MethodPost, "/api/check", nil))
	assert.Equal(t, http.StatusUnauthorized, code)

	req := httptest.NewRequest(http.MethodPost, "/api/check", nil)
	req.Header.Set("X-Api-Key", "secret")
	code, _ = doRequest(t, s, req)
	assert.Equal(t, http.StatusOK, code)

	// health stays open
	code, _ = doRequest(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, code)
}

func TestReleases(t *testing.T) {
	seen := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{releases: []*models.ReleaseRecord{
		{IMDBId: "tt1234567", InfoHash: "abc", Title: "Show S01", FirstSeen: seen, LastUpdate: seen},
	}}
	s := newTestServer("", store, &fakePoller{})

	code, body := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/releases/TT1234567?limit=5", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "tt1234567", store.gotIMDb)
	assert.Equal(t, 5, store.gotLimit)

	releases, ok := body["releases"].([]any)
	require.True(t, ok)
	require.Len(t, releases, 1)
	first := releases[0].(map[string]any)
	assert.Equal(t, "abc", first["info_hash"])
	assert.Equal(t, "2024-05-01T10:00:00Z", first["first_seen"])

	code, _ = doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/releases/nope", nil))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer("", &fakeStore{}, &fakePoller{})
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}
