package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Trigger forces one poll cycle
type Trigger interface {
	TriggerNow(ctx context.Context) (int, error)
}

// CheckHandler runs a manual poll cycle
type CheckHandler struct {
	trigger Trigger
	logger  zerolog.Logger
}

// NewCheckHandler creates a new check handler
func NewCheckHandler(trigger Trigger, logger zerolog.Logger) *CheckHandler {
	return &CheckHandler{trigger: trigger, logger: logger}
}

// Handle blocks until the cycle has finished and returns the number of new releases
func (h *CheckHandler) Handle(c *fiber.Ctx) error {
	found, err := h.trigger.TriggerNow(c.UserContext())
	if err != nil {
		h.logger.Error().Err(err).Msg("Manual check failed")
		return fiber.NewError(fiber.StatusServiceUnavailable, "Check could not run")
	}
	h.logger.Info().Int("found", found).Msg("Manual check completed")
	return c.JSON(fiber.Map{"found": found})
}
