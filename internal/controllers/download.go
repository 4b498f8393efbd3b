package controllers

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/amaumene/nightwatch/internal/models"
)

// maxHashLength is the width of the info_hash column
const maxHashLength = 40

// ErrNoIdentifier is returned for a result that has neither a hash nor a guid
// and therefore cannot be deduplicated
var ErrNoIdentifier = errors.New("result has no usable identifier")

var (
	btihPattern   = regexp.MustCompile(`(?i)btih:([^&\s]+)`)
	hexRunPattern = regexp.MustCompile(`[0-9a-fA-F]{32,40}`)
	magnetScan    = regexp.MustCompile(`(?i)magnet:\?[^\s<>"]+`)
)

// ResolvedLink is the canonical identity and links of one release
type ResolvedLink struct {
	InfoHash    string
	MagnetURL   string
	DownloadURL string
	TrackerID   string
}

// HasLink reports whether the release can be acted upon
func (l ResolvedLink) HasLink() bool {
	return l.MagnetURL != "" || l.DownloadURL != ""
}

// LinkResolver derives the dedup key and a magnet or download link for a
// search result. Network fallbacks are best effort and degrade to no link.
type LinkResolver struct {
	provider LinkProvider
	trackers *TrackerRegistry
	cache    *cache.Cache
	logger   zerolog.Logger
}

// NewLinkResolver creates a new link resolver. provider may be nil, which
// disables the network fallbacks.
func NewLinkResolver(provider LinkProvider, trackers *TrackerRegistry, ttl time.Duration, logger zerolog.Logger) *LinkResolver {
	if trackers == nil {
		trackers = NewTrackerRegistry()
	}
	return &LinkResolver{
		provider: provider,
		trackers: trackers,
		cache:    cache.New(ttl, 2*ttl),
		logger:   logger.With().Str("component", "links").Logger(),
	}
}

// Resolve runs the resolution steps in order: info hash, download URL, magnet
func (r *LinkResolver) Resolve(ctx context.Context, res models.SearchResult) (ResolvedLink, error) {
	guid := strings.TrimSpace(res.GUID)
	if guid == "" {
		guid = strings.TrimSpace(res.DownloadURL)
	}

	// 1. info hash
	infoHash := extractInfoHash(res, guid)
	if infoHash == "" {
		infoHash = syntheticID(guid, strings.ToLower(res.Indexer))
	}
	if infoHash == "" {
		return ResolvedLink{}, ErrNoIdentifier
	}
	link := ResolvedLink{InfoHash: infoHash}

	// 2. download url
	if guid != "" {
		link.DownloadURL, link.TrackerID = r.trackers.Lookup(res.Indexer).DownloadURL(guid)
	}
	if explicit := strings.TrimSpace(res.DownloadURL); isURL(explicit) {
		link.DownloadURL = explicit
	}

	// 3. magnet
	link.MagnetURL = explicitMagnet(res)
	if link.MagnetURL == "" && isHexHash(infoHash) {
		link.MagnetURL = "magnet:?xt=urn:btih:" + infoHash
	}
	if link.MagnetURL == "" && guid != "" && res.IndexerID > 0 {
		r.resolveExternal(ctx, res.IndexerID, guid, &link)
	}
	if link.MagnetURL == "" && link.DownloadURL != "" {
		link.MagnetURL = r.convertTorrent(ctx, link.DownloadURL)
	}

	return link, nil
}

// extractInfoHash tries explicit hash fields, then an embedded btih segment,
// then a hex guid
func extractInfoHash(res models.SearchResult, guid string) string {
	if h := strings.TrimSpace(res.InfoHash); h != "" {
		return canonicalHash(h)
	}
	for _, candidate := range []string{res.MagnetURL, res.DownloadURL} {
		if m := btihPattern.FindStringSubmatch(candidate); m != nil {
			return canonicalHash(m[1])
		}
	}
	if guid == "" || isURL(guid) {
		return ""
	}
	if isHexHash(guid) {
		return strings.ToLower(guid)
	}
	if len(guid) >= 32 {
		if m := hexRunPattern.FindString(guid); m != "" {
			return strings.ToLower(m)
		}
	}
	return ""
}

// syntheticID is the dedup key of a result without a real hash
func syntheticID(guid, tracker string) string {
	if guid == "" {
		return ""
	}
	if !isURL(guid) {
		return truncate(guid, maxHashLength)
	}
	if id := queryParam(guid, "id"); id != "" {
		return truncate(tracker+"_"+id, maxHashLength)
	}
	return truncate(guid, maxHashLength)
}

// explicitMagnet returns a magnet carried by the payload itself
func explicitMagnet(res models.SearchResult) string {
	for _, candidate := range []string{res.MagnetURL, res.DownloadURL} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(candidate), "magnet:") {
			return candidate
		}
		if m := magnetScan.FindString(candidate); m != "" {
			return m
		}
	}
	return ""
}

// resolveExternal asks the provider once for a redirect target or magnet
func (r *LinkResolver) resolveExternal(ctx context.Context, indexerID int, guid string, link *ResolvedLink) {
	if r.provider == nil {
		return
	}

	key := "link:" + strconv.Itoa(indexerID) + ":" + guid
	target, found := r.cachedString(key)
	if !found {
		var err error
		target, err = r.provider.ResolveLink(ctx, indexerID, guid)
		if err != nil {
			r.logger.Debug().Err(err).Int("indexer_id", indexerID).Msg("Download link lookup failed")
			return
		}
		r.cache.SetDefault(key, target)
	}

	switch {
	case strings.HasPrefix(strings.ToLower(target), "magnet:"):
		link.MagnetURL = target
	case isURL(target) && link.DownloadURL == "":
		link.DownloadURL = target
	}
}

// convertTorrent fetches a .torrent once and turns it into a magnet
func (r *LinkResolver) convertTorrent(ctx context.Context, downloadURL string) string {
	if r.provider == nil {
		return ""
	}

	key := "torrent:" + downloadURL
	if magnet, found := r.cachedString(key); found {
		return magnet
	}

	data, magnet, err := r.provider.FetchTorrent(ctx, downloadURL)
	if err != nil {
		r.logger.Debug().Err(err).Str("url", downloadURL).Msg("Torrent fetch failed")
		return ""
	}
	if magnet == "" {
		magnet, _, err = MagnetFromTorrent(data)
		if err != nil {
			r.logger.Debug().Err(err).Str("url", downloadURL).Msg("Torrent conversion failed")
			return ""
		}
	}
	r.cache.SetDefault(key, magnet)
	return magnet
}

func (r *LinkResolver) cachedString(key string) (string, bool) {
	v, ok := r.cache.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// canonicalHash lower-cases hex hashes and clips anything to the column width
func canonicalHash(h string) string {
	if isHexHash(h) {
		return strings.ToLower(h)
	}
	return truncate(h, maxHashLength)
}

// isHexHash reports whether s is 32 to 40 hex characters
func isHexHash(s string) bool {
	if len(s) < 32 || len(s) > maxHashLength {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// keep whole runes
	out := s[:n]
	for len(out) > 0 && !utf8.ValidString(out) {
		out = out[:len(out)-1]
	}
	return out
}
