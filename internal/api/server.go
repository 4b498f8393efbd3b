package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/amaumene/nightwatch/internal/api/handlers"
	"github.com/amaumene/nightwatch/internal/api/middleware"
	"github.com/amaumene/nightwatch/internal/config"
	"github.com/amaumene/nightwatch/internal/metrics"
)

// Store is the read side of the database used by the API
type Store interface {
	handlers.Pinger
	handlers.StatsSource
	handlers.ReleaseLister
}

// Poller is the scheduler surface used by the API
type Poller interface {
	handlers.Trigger
	handlers.CycleSource
}

// Server represents the HTTP server
type Server struct {
	app    *fiber.App
	addr   string
	logger zerolog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, store Store, poller Poller, m *metrics.Metrics, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "api").Logger()
	s := &Server{
		addr:   ":" + cfg.ServerPort,
		logger: logger,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "nightwatch",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		// a manual check runs a full cycle
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: errorHandler,
	})
	s.app.Use(recover.New())
	s.app.Use(middleware.Logging(logger))
	s.setupRoutes(cfg, store, poller, m)

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg *config.Config, store Store, poller Poller, m *metrics.Metrics) {
	// Health check
	s.app.Get("/health", handlers.NewHealthHandler(store, s.logger).Handle)

	// Status endpoint
	s.app.Get("/status", handlers.NewStatusHandler(store, poller, s.logger).Handle)

	// Prometheus
	s.app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	api := s.app.Group("/api", middleware.APIKey(cfg.APIKey))
	api.Post("/check", handlers.NewCheckHandler(poller, s.logger).Handle)
	api.Get("/releases/:imdb", handlers.NewReleasesHandler(store, s.logger).Handle)
}

// App exposes the fiber app for in-process requests
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the HTTP server and blocks until ctx is done
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info().Str("port", s.addr).Msg("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(s.addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.app.ShutdownWithTimeout(10 * time.Second)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code, msg = fe.Code, fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
