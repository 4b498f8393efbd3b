package main

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/amaumene/nightwatch/internal/api"
	"github.com/amaumene/nightwatch/internal/config"
	"github.com/amaumene/nightwatch/internal/controllers"
	"github.com/amaumene/nightwatch/internal/metrics"
	"github.com/amaumene/nightwatch/internal/models"
	"github.com/amaumene/nightwatch/internal/scheduler"
	"github.com/amaumene/nightwatch/internal/services/prowlarr"
	"github.com/amaumene/nightwatch/internal/services/telegram"
	"github.com/amaumene/nightwatch/internal/utils"
)

var errAlreadyRunning = errors.New("another nightwatch instance holds the lock")

// App is the wired application graph
type App struct {
	DB        *models.Database
	Prowlarr  *prowlarr.Client
	Telegram  *telegram.Client
	Metrics   *metrics.Metrics
	Queue     *controllers.NotificationQueue
	Watch     *controllers.WatchController
	Scheduler *scheduler.Scheduler
	Server    *api.Server
}

var appSet = wire.NewSet(
	provideDatabase,
	provideBlacklist,
	provideBreaker,
	provideProwlarr,
	provideTelegram,
	metrics.New,
	provideQueue,
	provideSearch,
	provideLinks,
	provideWatch,
	provideScheduler,
	provideServer,
	wire.Struct(new(App), "*"),
)

func provideDatabase(cfg *config.Config) (*models.Database, func(), error) {
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, func() { _ = db.Close() }, nil
}

func provideBlacklist(cfg *config.Config, logger zerolog.Logger) *utils.Blacklist {
	blacklist, err := utils.LoadBlacklist(cfg.BlacklistFile)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load blacklist, continuing without it")
		return utils.NewBlacklist()
	}
	logger.Info().Int("terms", blacklist.Len()).Msg("Blacklist loaded")
	return blacklist
}

func provideBreaker(cfg *config.Config, logger zerolog.Logger) *utils.CircuitBreaker {
	breaker := utils.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown)
	breaker.OnStateChange(func(from, to utils.BreakerState) {
		logger.Warn().Str("from", string(from)).Str("to", string(to)).Msg("Prowlarr circuit breaker changed state")
	})
	return breaker
}

func provideProwlarr(cfg *config.Config, breaker *utils.CircuitBreaker, logger zerolog.Logger) (*prowlarr.Client, func(), error) {
	client, err := prowlarr.NewClient(cfg, breaker, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize Prowlarr client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

func provideTelegram(cfg *config.Config, logger zerolog.Logger) (*telegram.Client, func()) {
	client := telegram.NewClient(cfg, logger)
	if !client.Configured() {
		logger.Warn().Msg("Telegram is not configured, notifications will be dropped")
	}
	return client, func() { _ = client.Close() }
}

func provideQueue(cfg *config.Config, tg *telegram.Client, db *models.Database, m *metrics.Metrics, logger zerolog.Logger) *controllers.NotificationQueue {
	return controllers.NewNotificationQueue(tg, db, m, cfg.NotifyQueueSize, cfg.NotifyWorkers, logger)
}

func provideSearch(client *prowlarr.Client, blacklist *utils.Blacklist, m *metrics.Metrics, logger zerolog.Logger) *controllers.SearchController {
	return controllers.NewSearchController(client, controllers.NewIdentityMatcher(logger), blacklist, m, logger)
}

func provideLinks(cfg *config.Config, client *prowlarr.Client, logger zerolog.Logger) *controllers.LinkResolver {
	return controllers.NewLinkResolver(client, controllers.NewTrackerRegistry(), cfg.LinkCacheTTL, logger)
}

func provideWatch(cfg *config.Config, db *models.Database, search *controllers.SearchController, links *controllers.LinkResolver, queue *controllers.NotificationQueue, m *metrics.Metrics, logger zerolog.Logger) *controllers.WatchController {
	return controllers.NewWatchController(db, db, search, links, queue, m, cfg.MaxConcurrentItems, logger)
}

func provideScheduler(cfg *config.Config, watch *controllers.WatchController, logger zerolog.Logger) *scheduler.Scheduler {
	return scheduler.NewScheduler(watch, cfg.PollInterval, logger)
}

func provideServer(cfg *config.Config, db *models.Database, sched *scheduler.Scheduler, m *metrics.Metrics, logger zerolog.Logger) *api.Server {
	return api.NewServer(cfg, db, sched, m, logger)
}

// acquireLock takes the single-instance lock in the config directory
func acquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", errAlreadyRunning, path)
	}
	return lock, nil
}
