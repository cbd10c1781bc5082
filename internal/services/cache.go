package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmlat/InfoCoffee-sub001/internal/models"
	"github.com/dmlat/InfoCoffee-sub001/internal/observability"
)

const defaultLoadTimeout = 15 * time.Second

// MonthSource produces the event table of a month. Implementations are the
// in-memory synthesizer and the persisted artifact readers.
type MonthSource interface {
	Name() string
	LoadMonth(ctx context.Context, month models.MonthKey) (*models.MonthEvents, error)
}

// GenerationCache memoizes a MonthSource per month. A month is loaded at
// most once per cache: concurrent callers share one in-flight load and the
// published table is never replaced. Failed loads are not remembered.
type GenerationCache struct {
	source      MonthSource
	logger      *slog.Logger
	metrics     *observability.Metrics
	loadTimeout time.Duration

	group singleflight.Group

	mu     sync.RWMutex
	months map[models.MonthKey]*models.MonthEvents
}

type CacheOption func(*GenerationCache)

func WithLoadTimeout(d time.Duration) CacheOption {
	return func(c *GenerationCache) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *GenerationCache) {
		c.logger = logger
	}
}

func NewGenerationCache(source MonthSource, metrics *observability.Metrics, opts ...CacheOption) *GenerationCache {
	c := &GenerationCache{
		source:      source,
		logger:      slog.Default(),
		metrics:     metrics,
		loadTimeout: defaultLoadTimeout,
		months:      make(map[models.MonthKey]*models.MonthEvents),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *GenerationCache) SourceName() string {
	return c.source.Name()
}

func (c *GenerationCache) lookup(month models.MonthKey) (*models.MonthEvents, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.months[month]
	return m, ok
}

// EnsureGenerated returns the table of month, loading it on first use. The
// load runs under the cache's own timeout and is not cancelled when the
// first caller goes away; every caller still stops waiting when its own
// context ends.
func (c *GenerationCache) EnsureGenerated(ctx context.Context, month models.MonthKey) (*models.MonthEvents, error) {
	if m, ok := c.lookup(month); ok {
		c.metrics.MonthCacheHits.Inc()
		return m, nil
	}
	c.metrics.MonthCacheMisses.Inc()

	ch := c.group.DoChan(month.String(), func() (any, error) {
		// A load that finished between lookup and DoChan has already published.
		if m, ok := c.lookup(month); ok {
			return m, nil
		}
		return c.load(context.WithoutCancel(ctx), month)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.MonthEvents), nil
	}
}

func (c *GenerationCache) load(ctx context.Context, month models.MonthKey) (*models.MonthEvents, error) {
	ctx, cancel := context.WithTimeout(ctx, c.loadTimeout)
	defer cancel()

	source := c.source.Name()
	start := time.Now()
	m, err := c.source.LoadMonth(ctx, month)
	elapsed := time.Since(start)
	c.metrics.MonthLoadLatency.WithLabelValues(source).Observe(elapsed.Seconds())

	if err == nil && m == nil {
		err = fmt.Errorf("source %s returned no data for %s", source, month)
	}
	if err != nil {
		c.metrics.MonthLoadErrors.WithLabelValues(source).Inc()
		c.logger.Error("month load failed",
			"month", month.String(),
			"source", source,
			"error", err,
		)
		return nil, fmt.Errorf("load %s: %w", month, err)
	}

	c.mu.Lock()
	c.months[month] = m
	size := len(c.months)
	c.mu.Unlock()

	c.metrics.MonthsLoaded.WithLabelValues(source).Inc()
	c.metrics.MonthsCached.Set(float64(size))
	c.logger.Info("month generated",
		"month", month.String(),
		"source", source,
		"events", m.EventCount(),
		"duration", elapsed,
	)
	return m, nil
}

// Day returns the events of the calendar day of date. A generated day with
// no sales is an empty slice, not an error.
func (c *GenerationCache) Day(ctx context.Context, date time.Time) ([]models.SaleEvent, error) {
	m, err := c.EnsureGenerated(ctx, models.MonthOf(date))
	if err != nil {
		return nil, err
	}
	events := m.Day(models.DayKey(date))
	if events == nil {
		events = []models.SaleEvent{}
	}
	return events, nil
}

// DayByKey is Day for a YYYY-MM-DD key.
func (c *GenerationCache) DayByKey(ctx context.Context, dateKey string) ([]models.SaleEvent, error) {
	date, err := time.Parse(models.DateLayout, dateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: bad date %q", ErrInvalidRange, dateKey)
	}
	return c.Day(ctx, date)
}

// Months lists the generated months in ascending order.
func (c *GenerationCache) Months() []models.MonthKey {
	c.mu.RLock()
	keys := make([]models.MonthKey, 0, len(c.months))
	for k := range c.months {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	slices.SortFunc(keys, func(a, b models.MonthKey) int {
		if a.Year != b.Year {
			return a.Year - b.Year
		}
		return int(a.Month) - int(b.Month)
	})
	return keys
}

// Reset drops every generated month. Loads in flight still publish.
func (c *GenerationCache) Reset() {
	c.mu.Lock()
	c.months = make(map[models.MonthKey]*models.MonthEvents)
	c.mu.Unlock()
	c.metrics.MonthsCached.Set(0)
	c.logger.Info("generation cache reset")
}
