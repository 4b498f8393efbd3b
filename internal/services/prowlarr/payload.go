package prowlarr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/moistari/rls"

	"github.com/amaumene/nightwatch/internal/models"
)

// flexString accepts a JSON string or number
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// flexInt64 accepts a JSON number or a numeric string
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		// unparseable numbers degrade to zero
		*f = 0
		return nil
	}
	*f = flexInt64(n)
	return nil
}

// qualityField is a resolution string that may arrive bare, as a number, as
// {"resolution": ...} or as {"quality": {"resolution": ...}}
type qualityField string

func (q *qualityField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = ""
		return nil
	}
	if data[0] != '{' {
		var s flexString
		if err := s.UnmarshalJSON(data); err != nil {
			*q = ""
			return nil
		}
		*q = qualityField(s)
		return nil
	}

	var obj struct {
		Resolution flexString      `json:"resolution"`
		Name       flexString      `json:"name"`
		Quality    json.RawMessage `json:"quality"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		*q = ""
		return nil
	}
	switch {
	case obj.Resolution != "":
		*q = qualityField(obj.Resolution)
	case len(obj.Quality) > 0:
		var nested qualityField
		_ = nested.UnmarshalJSON(obj.Quality)
		*q = nested
	default:
		*q = qualityField(obj.Name)
	}
	return nil
}

// releasePayload is the loose shape of one /api/v1/search row
type releasePayload struct {
	Title       string       `json:"title"`
	Indexer     string       `json:"indexer"`
	IndexerID   flexInt64    `json:"indexerId"`
	Size        flexInt64    `json:"size"`
	Seeders     flexInt64    `json:"seeders"`
	Quality     qualityField `json:"quality"`
	GUID        flexString   `json:"guid"`
	IMDbID      flexString   `json:"imdbId"`
	InfoHash    string       `json:"infoHash"`
	InfoHashAlt string       `json:"info_hash"`
	MagnetURL   string       `json:"magnetUrl"`
	Magnet      string       `json:"magnet"`
	MagnetLink  string       `json:"magnetLink"`
	DownloadURL string       `json:"downloadUrl"`
	Link        string       `json:"link"`
}

// normalizeIMDb renders numeric ids as tt%07d; zero and empty mean "absent"
func normalizeIMDb(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n <= 0 {
			return ""
		}
		return fmt.Sprintf("tt%07d", n)
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "tt") {
		if n, err := strconv.ParseInt(lower[2:], 10, 64); err == nil && n == 0 {
			return ""
		}
		return lower
	}
	return raw
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// toResult converts a payload row into the typed result used by the engine
func (p releasePayload) toResult() models.SearchResult {
	quality := strings.TrimSpace(string(p.Quality))
	if quality == "" && p.Title != "" {
		quality = rls.ParseString(p.Title).Resolution
	}

	return models.SearchResult{
		Title:       strings.TrimSpace(p.Title),
		Indexer:     p.Indexer,
		IndexerID:   int(p.IndexerID),
		Size:        int64(p.Size),
		Seeders:     int(p.Seeders),
		Quality:     quality,
		GUID:        firstNonEmpty(string(p.GUID), p.Link),
		IMDbID:      normalizeIMDb(string(p.IMDbID)),
		InfoHash:    firstNonEmpty(p.InfoHash, p.InfoHashAlt),
		MagnetURL:   firstNonEmpty(p.MagnetURL, p.Magnet, p.MagnetLink),
		DownloadURL: strings.TrimSpace(p.DownloadURL),
	}
}

// decodeResults parses a search response body. Rows that do not decode are
// skipped instead of failing the whole response.
func decodeResults(body []byte) ([]models.SearchResult, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	results := make([]models.SearchResult, 0, len(rows))
	for _, row := range rows {
		var p releasePayload
		if err := json.Unmarshal(row, &p); err != nil {
			continue
		}
		results = append(results, p.toResult())
	}
	return results, nil
}
