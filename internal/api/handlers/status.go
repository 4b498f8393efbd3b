package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/amaumene/nightwatch/internal/controllers"
	"github.com/amaumene/nightwatch/internal/models"
)

// StatsSource provides the store counters
type StatsSource interface {
	Stats(ctx context.Context) (*models.Stats, error)
}

// CycleSource exposes the scheduler state
type CycleSource interface {
	LastSummary() *controllers.CycleSummary
	Interval() time.Duration
}

// StatusHandler handles status requests
type StatusHandler struct {
	db        StatsSource
	scheduler CycleSource
	logger    zerolog.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db StatsSource, scheduler CycleSource, logger zerolog.Logger) *StatusHandler {
	return &StatusHandler{
		db:        db,
		scheduler: scheduler,
		logger:    logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	WatchedItems        int64                     `json:"watched_items"`
	EnabledItems        int64                     `json:"enabled_items"`
	Releases            int64                     `json:"releases"`
	Notifications       int64                     `json:"notifications"`
	PollIntervalSeconds int64                     `json:"poll_interval_seconds"`
	LastCycle           *controllers.CycleSummary `json:"last_cycle,omitempty"`
}

// Handle handles the status endpoint
func (h *StatusHandler) Handle(c *fiber.Ctx) error {
	stats, err := h.db.Stats(c.UserContext())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load stats")
		return fiber.NewError(fiber.StatusInternalServerError, "Internal server error")
	}

	return c.JSON(StatusResponse{
		WatchedItems:        stats.WatchedItems,
		EnabledItems:        stats.EnabledItems,
		Releases:            stats.Releases,
		Notifications:       stats.Notifications,
		PollIntervalSeconds: int64(h.scheduler.Interval().Seconds()),
		LastCycle:           h.scheduler.LastSummary(),
	})
}
