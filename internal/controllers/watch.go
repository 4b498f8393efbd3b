package controllers

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/amaumene/nightwatch/internal/metrics"
	"github.com/amaumene/nightwatch/internal/models"
	"github.com/amaumene/nightwatch/internal/utils"
)

const (
	defaultConcurrency = 5
	touchTimeout       = 10 * time.Second
)

// CycleSummary describes one finished poll cycle
type CycleSummary struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Items       int       `json:"items"`
	FailedItems int       `json:"failed_items"`
	Found       int       `json:"found"`
	Error       string    `json:"error,omitempty"`
}

// Duration returns the wall time of the cycle
func (s CycleSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// WatchController runs the per-item pipeline for every enabled watched item
type WatchController struct {
	items       ItemStore
	releases    ReleaseStore
	search      *SearchController
	links       *LinkResolver
	queue       *NotificationQueue
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	concurrency int
	logger      zerolog.Logger
}

// NewWatchController creates a new watch controller. concurrency caps the
// number of items processed at once.
func NewWatchController(items ItemStore, releases ReleaseStore, search *SearchController, links *LinkResolver, queue *NotificationQueue, m *metrics.Metrics, concurrency int, logger zerolog.Logger) *WatchController {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &WatchController{
		items:       items,
		releases:    releases,
		search:      search,
		links:       links,
		queue:       queue,
		metrics:     m,
		tracer:      otel.Tracer(utils.TracerName),
		concurrency: concurrency,
		logger:      logger.With().Str("component", "watch").Logger(),
	}
}

// RunCycle loads the enabled items and processes them concurrently. It returns
// the number of new releases found. Item failures count as zero.
func (c *WatchController) RunCycle(ctx context.Context) (int, CycleSummary) {
	summary := CycleSummary{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	ctx, span := c.tracer.Start(ctx, "watch.cycle", trace.WithAttributes(attribute.String("cycle_id", summary.ID)))
	defer span.End()

	logger := c.logger.With().Str("cycle_id", summary.ID).Logger()
	if traceID := utils.TraceID(ctx); traceID != "" {
		logger = logger.With().Str("trace_id", traceID).Logger()
	}

	finish := func() (int, CycleSummary) {
		summary.FinishedAt = time.Now().UTC()
		c.metrics.ObserveCycle(summary.Duration(), summary.Found, summary.Error != "")
		span.SetAttributes(attribute.Int("found", summary.Found), attribute.Int("items", summary.Items))
		return summary.Found, summary
	}

	items, err := c.items.ListEnabledItems(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load watchlist")
		span.RecordError(err)
		span.SetStatus(codes.Error, "load watchlist")
		summary.Error = err.Error()
		c.queue.Alert("cycle_error", "Failed to load watchlist", map[string]string{"error": err.Error()})
		return finish()
	}
	summary.Items = len(items)
	if len(items) == 0 {
		logger.Debug().Msg("No enabled items, skipping cycle")
		return finish()
	}

	logger.Info().Int("items", len(items)).Msg("Starting poll cycle")

	var found, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, item := range items {
		g.Go(func() error {
			n, err := c.processIsolated(ctx, item)
			if err != nil {
				failed.Add(1)
				logger.Error().Err(err).Str("imdb_id", item.IMDBId).Msg("Item processing failed")
			}
			found.Add(int64(n))
			c.metrics.ItemProcessed(err == nil)
			return nil
		})
	}
	_ = g.Wait()

	summary.Found = int(found.Load())
	summary.FailedItems = int(failed.Load())
	logger.Info().
		Int("items", summary.Items).
		Int("failed", summary.FailedItems).
		Int("found", summary.Found).
		Dur("duration", time.Since(summary.StartedAt)).
		Msg("Poll cycle completed")
	return finish()
}

// processIsolated turns a panic in one item into an error for that item
func (c *WatchController) processIsolated(ctx context.Context, item *models.WatchedItem) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("panic while processing %s: %v", item.IMDBId, r)
		}
	}()
	return c.ProcessItem(ctx, item)
}

// ProcessItem searches, filters, deduplicates and notifies for one item. It
// returns the number of new releases stored. last_checked is updated whatever
// the outcome.
func (c *WatchController) ProcessItem(ctx context.Context, item *models.WatchedItem) (int, error) {
	ctx, span := c.tracer.Start(ctx, "watch.item", trace.WithAttributes(attribute.String("imdb_id", item.IMDBId)))
	defer span.End()
	defer c.touch(ctx, item)

	logger := c.logger.With().Str("imdb_id", item.IMDBId).Str("title", item.DisplayTitle()).Logger()

	results, err := c.search.SearchItem(ctx, item)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search")
		c.queue.Alert("search_error", "Search failed for "+item.DisplayTitle(), map[string]string{
			"imdb_id": item.IMDBId,
			"error":   err.Error(),
		})
		return 0, fmt.Errorf("failed to search item: %w", err)
	}

	suppress := c.belowMinimum(ctx, item, len(results), logger)

	found := 0
	for _, res := range results {
		isNew, link, err := c.record(ctx, item, res)
		if err != nil {
			if errors.Is(err, ErrNoIdentifier) {
				logger.Debug().Str("release", res.Title).Msg("Skipping release without identifier")
			} else {
				logger.Warn().Err(err).Str("release", res.Title).Msg("Failed to record release")
			}
			continue
		}
		if !isNew {
			continue
		}
		found++

		logger.Info().
			Str("release", res.Title).
			Str("info_hash", link.InfoHash).
			Bool("has_link", link.HasLink()).
			Bool("suppressed", suppress).
			Msg("New release found")

		if suppress {
			continue
		}
		change := DetectChangeType(res.Title, item.MediaType)
		c.queue.Enqueue(NotificationJob{
			Kind:         models.NotificationRelease,
			IMDBId:       item.IMDBId,
			ReleaseTitle: res.Title,
			ChangeType:   change,
			Text:         RenderRelease(item, res, link, change),
			ImageURL:     item.PosterURL,
		})
	}

	span.SetAttributes(attribute.Int("candidates", len(results)), attribute.Int("found", found))
	return found, nil
}

// belowMinimum reports whether notifications for this batch are held back
// because the item has not yet accumulated enough releases
func (c *WatchController) belowMinimum(ctx context.Context, item *models.WatchedItem, candidates int, logger zerolog.Logger) bool {
	if item.MinReleasesCount == nil || *item.MinReleasesCount <= 0 {
		return false
	}
	existing, err := c.releases.CountReleases(ctx, item.IMDBId)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to count stored releases")
		existing = 0
	}
	if existing+candidates < *item.MinReleasesCount {
		logger.Debug().
			Int("existing", existing).
			Int("candidates", candidates).
			Int("minimum", *item.MinReleasesCount).
			Msg("Below minimum release count, notifications suppressed")
		return true
	}
	return false
}

func (c *WatchController) record(ctx context.Context, item *models.WatchedItem, res models.SearchResult) (bool, ResolvedLink, error) {
	link, err := c.links.Resolve(ctx, res)
	if err != nil {
		return false, link, err
	}
	isNew, err := c.releases.RecordIfNew(ctx, &models.ReleaseRecord{
		IMDBId:      item.IMDBId,
		InfoHash:    link.InfoHash,
		Title:       res.Title,
		Quality:     res.Quality,
		Size:        res.Size,
		Seeders:     res.Seeders,
		Tracker:     res.Indexer,
		MagnetURL:   link.MagnetURL,
		DownloadURL: link.DownloadURL,
	})
	if err != nil {
		return false, link, err
	}
	c.metrics.ReleaseRecorded(isNew)
	return isNew, link, nil
}

func (c *WatchController) touch(ctx context.Context, item *models.WatchedItem) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchTimeout)
	defer cancel()
	if err := c.items.TouchLastChecked(ctx, item.ID, time.Now().UTC()); err != nil {
		c.logger.Warn().Err(err).Str("imdb_id", item.IMDBId).Msg("Failed to update last checked")
	}
}
