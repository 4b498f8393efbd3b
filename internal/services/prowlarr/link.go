package prowlarr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	maxLinkBody    = 1 * 1024 * 1024
	maxTorrentSize = 10 * 1024 * 1024
)

var magnetPattern = regexp.MustCompile(`(?i)magnet:\?[^\s<>"]+`)

// ResolveLink asks the Prowlarr download endpoint for a release link without
// following redirects. It returns the redirect target or an inline magnet, or
// "" when the endpoint yields neither. It is a single attempt.
func (c *Client) ResolveLink(ctx context.Context, indexerID int, guid string) (string, error) {
	if indexerID <= 0 || guid == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.linkTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("guid", guid)
	finalURL := c.endpoint("/"+strconv.Itoa(indexerID)+"/download", params)

	resp, err := c.get(ctx, c.linkClient, finalURL)
	if err != nil {
		return "", fmt.Errorf("prowlarr download request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return strings.TrimSpace(resp.Header.Get("Location")), nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", readError(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLinkBody))
	if err != nil {
		return "", fmt.Errorf("failed to read download response: %w", err)
	}
	content := strings.TrimSpace(string(body))
	if strings.HasPrefix(strings.ToLower(content), "magnet:") {
		return content, nil
	}
	return magnetPattern.FindString(content), nil
}

// FetchTorrent downloads a .torrent file. A redirect to a magnet URI is
// returned as magnet instead of data.
func (c *Client) FetchTorrent(ctx context.Context, rawURL string) (data []byte, magnet string, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.linkTimeout)
	defer cancel()

	resp, err := c.get(ctx, c.httpClient, rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download torrent: %w", err)
	}
	defer resp.Body.Close()

	if loc := resp.Header.Get("Location"); strings.HasPrefix(strings.ToLower(loc), "magnet:") {
		return nil, loc, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("torrent download failed with status %d", resp.StatusCode)
	}

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxTorrentSize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read torrent content: %w", err)
	}

	c.logger.Debug().
		Str("url", redacted(rawURL)).
		Int("size_bytes", len(data)).
		Msg("Torrent file downloaded")

	return data, "", nil
}
