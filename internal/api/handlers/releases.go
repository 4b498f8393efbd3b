package handlers

import (
	"context"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/amaumene/nightwatch/internal/models"
)

const (
	defaultReleaseLimit = 50
	maxReleaseLimit     = 500
)

var imdbPattern = regexp.MustCompile(`^tt\d+$`)

// ReleaseLister reads stored releases
type ReleaseLister interface {
	ListReleases(ctx context.Context, imdbID string, limit int) ([]*models.ReleaseRecord, error)
}

// ReleasesHandler lists stored releases for a watched item
type ReleasesHandler struct {
	db     ReleaseLister
	logger zerolog.Logger
}

// NewReleasesHandler creates a new releases handler
func NewReleasesHandler(db ReleaseLister, logger zerolog.Logger) *ReleasesHandler {
	return &ReleasesHandler{db: db, logger: logger}
}

// ReleaseResponse is one stored release
type ReleaseResponse struct {
	InfoHash    string `json:"info_hash"`
	Title       string `json:"title"`
	Quality     string `json:"quality,omitempty"`
	Size        int64  `json:"size"`
	Seeders     int    `json:"seeders"`
	Tracker     string `json:"tracker,omitempty"`
	MagnetURL   string `json:"magnet_url,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	FirstSeen   string `json:"first_seen"`
	LastUpdate  string `json:"last_update"`
}

// Handle handles GET /api/releases/:imdb
func (h *ReleasesHandler) Handle(c *fiber.Ctx) error {
	imdbID := strings.ToLower(c.Params("imdb"))
	if !imdbPattern.MatchString(imdbID) {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid IMDb id")
	}
	limit := c.QueryInt("limit", defaultReleaseLimit)
	if limit <= 0 || limit > maxReleaseLimit {
		limit = defaultReleaseLimit
	}

	recs, err := h.db.ListReleases(c.UserContext(), imdbID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("imdb_id", imdbID).Msg("Failed to list releases")
		return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
	}

	out := make([]ReleaseResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, ReleaseResponse{
			InfoHash:    r.InfoHash,
			Title:       r.Title,
			Quality:     r.Quality,
			Size:        r.Size,
			Seeders:     r.Seeders,
			Tracker:     r.Tracker,
			MagnetURL:   r.MagnetURL,
			DownloadURL: r.DownloadURL,
			FirstSeen:   r.FirstSeen.UTC().Format("2006-01-02T15:04:05Z"),
			LastUpdate:  r.LastUpdate.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return c.JSON(fiber.Map{"imdb_id": imdbID, "releases": out})
}
