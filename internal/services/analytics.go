package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmlat/InfoCoffee-sub001/internal/models"
	"github.com/dmlat/InfoCoffee-sub001/internal/observability"
)

const (
	defaultMaxWorkers   = 8
	defaultMaxRangeDays = 366
)

// ErrInvalidRange is returned for a missing, inverted or oversized range.
var ErrInvalidRange = errors.New("invalid date range")

// StatsQuery selects the days and locations to aggregate. A zero To means a
// single day; an empty LocationIDs means every location. Time of day is
// ignored on both bounds.
type StatsQuery struct {
	From        time.Time
	To          time.Time
	LocationIDs []int
}

// Analytics aggregates generated sales over date ranges.
type Analytics struct {
	cache     *GenerationCache
	products  []models.Product
	locations []models.Location

	productIndex  map[int]int
	locationIndex map[int]int

	maxWorkers   int
	maxRangeDays int

	logger  *slog.Logger
	metrics *observability.Metrics

	queriesServed atomic.Int64
	lastQuery     atomic.Pointer[time.Time]
}

type AnalyticsOption func(*Analytics)

func WithMaxWorkers(n int) AnalyticsOption {
	return func(a *Analytics) {
		if n > 0 {
			a.maxWorkers = n
		}
	}
}

func WithMaxRangeDays(n int) AnalyticsOption {
	return func(a *Analytics) {
		if n > 0 {
			a.maxRangeDays = n
		}
	}
}

func WithLogger(logger *slog.Logger) AnalyticsOption {
	return func(a *Analytics) {
		a.logger = logger
	}
}

func NewAnalytics(cache *GenerationCache, products []models.Product, locations []models.Location, metrics *observability.Metrics, opts ...AnalyticsOption) *Analytics {
	a := &Analytics{
		cache:         cache,
		products:      slices.Clone(products),
		locations:     slices.Clone(locations),
		productIndex:  make(map[int]int, len(products)),
		locationIndex: make(map[int]int, len(locations)),
		maxWorkers:    defaultMaxWorkers,
		maxRangeDays:  defaultMaxRangeDays,
		logger:        slog.Default(),
		metrics:       metrics,
	}
	for i, p := range a.products {
		a.productIndex[p.ID] = i
	}
	for i, l := range a.locations {
		a.locationIndex[l.ID] = i
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analytics) Products() []models.Product {
	return a.products
}

func (a *Analytics) Locations() []models.Location {
	return a.locations
}

func (a *Analytics) Cache() *GenerationCache {
	return a.cache
}

// Query aggregates every sale in the inclusive day range whose location is
// in the filter. Location ids that do not exist match nothing and are not an
// error. A source failure fails the whole query.
func (a *Analytics) Query(ctx context.Context, q StatsQuery) (*models.StatsSummary, error) {
	ctx, span := observability.StartSpan(ctx, "stats.query")
	summary, err := a.query(ctx, q)
	elapsed := span.Finish()
	a.metrics.QueryDuration.Observe(elapsed.Seconds())

	if err != nil {
		span.SetError(err)
		outcome := "error"
		if errors.Is(err, ErrInvalidRange) {
			outcome = "invalid"
		}
		a.metrics.QueriesTotal.WithLabelValues(outcome).Inc()
		return nil, err
	}

	span.SetTag("stats.from", summary.From)
	span.SetTag("stats.to", summary.To)
	a.logger.Debug("stats query served", span.LogAttrs()...)
	a.metrics.QueriesTotal.WithLabelValues("ok").Inc()
	a.queriesServed.Add(1)
	now := time.Now()
	a.lastQuery.Store(&now)
	return summary, nil
}

type productAcc struct {
	count      int
	revenue    models.Money
	byLocation []int
}

func (a *Analytics) query(ctx context.Context, q StatsQuery) (*models.StatsSummary, error) {
	days, err := a.expandDays(q)
	if err != nil {
		return nil, err
	}
	a.metrics.QueryDays.Observe(float64(len(days)))

	filterIDs, filter := a.locationFilter(q.LocationIDs)

	dayEvents := make([][]models.SaleEvent, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxWorkers)
	for i, day := range days {
		g.Go(func() error {
			events, err := a.cache.Day(gctx, day)
			if err != nil {
				return err
			}
			dayEvents[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	accs := make([]productAcc, len(a.products))
	for i := range accs {
		accs[i].byLocation = make([]int, len(a.locations))
	}

	summary := &models.StatsSummary{
		From:         models.DayKey(days[0]),
		To:           models.DayKey(days[len(days)-1]),
		LocationIDs:  filterIDs,
		Days:         make([]models.DayStats, len(days)),
	}

	unknown := 0
	for i, events := range dayEvents {
		dayStats := models.DayStats{Date: models.DayKey(days[i])}
		for _, e := range events {
			locIdx, ok := filter[e.LocationID]
			if !ok {
				continue
			}
			pIdx, ok := a.productIndex[e.ProductID]
			if !ok {
				unknown++
				continue
			}
			p := a.products[pIdx]

			summary.TotalCount++
			summary.TotalRevenue = summary.TotalRevenue.Add(p.Price)
			summary.TotalCost = summary.TotalCost.Add(p.Cost)

			acc := &accs[pIdx]
			acc.count++
			acc.revenue = acc.revenue.Add(p.Price)
			acc.byLocation[locIdx]++

			dayStats.Count++
			dayStats.Revenue = dayStats.Revenue.Add(p.Price)
		}
		summary.Days[i] = dayStats
	}
	if unknown > 0 {
		a.metrics.UnknownProductEv.Add(float64(unknown))
		a.logger.Warn("skipped events of unknown products", "count", unknown)
	}

	summary.TotalProfit = summary.TotalRevenue.Sub(summary.TotalCost)
	summary.Products = a.productBreakdown(accs, filterIDs)
	return summary, nil
}

func (a *Analytics) productBreakdown(accs []productAcc, filterIDs []int) []models.ProductStats {
	out := make([]models.ProductStats, len(a.products))
	for i, p := range a.products {
		acc := accs[i]
		ps := models.ProductStats{
			ProductID: p.ID,
			Name:      p.Name,
			Category:  p.Category,
			Count:     acc.count,
			Revenue:   acc.revenue,
			Locations: make([]models.LocationShare, 0, len(filterIDs)),
		}
		for _, id := range filterIDs {
			locIdx, ok := a.locationIndex[id]
			if !ok {
				continue
			}
			count := acc.byLocation[locIdx]
			ps.Locations = append(ps.Locations, models.LocationShare{
				LocationID: id,
				Name:       a.locations[locIdx].Name,
				Count:      count,
				Percent:    share(count, acc.count),
			})
		}
		slices.SortStableFunc(ps.Locations, func(x, y models.LocationShare) int {
			if x.Count != y.Count {
				return y.Count - x.Count
			}
			return x.LocationID - y.LocationID
		})
		out[i] = ps
	}

	slices.SortStableFunc(out, func(x, y models.ProductStats) int {
		if x.Count != y.Count {
			return y.Count - x.Count
		}
		if c := y.Revenue.Cmp(x.Revenue.Decimal); c != 0 {
			return c
		}
		return x.ProductID - y.ProductID
	})
	return out
}

func share(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*10000) / 100
}

// expandDays lists the calendar days of q in ascending order.
func (a *Analytics) expandDays(q StatsQuery) ([]time.Time, error) {
	if q.From.IsZero() {
		return nil, fmt.Errorf("%w: start date is required", ErrInvalidRange)
	}
	from := models.TruncateDay(q.From)
	to := from
	if !q.To.IsZero() {
		to = models.TruncateDay(q.To)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange, models.DayKey(to), models.DayKey(from))
	}

	n := int(to.Sub(from)/(24*time.Hour)) + 1
	if n > a.maxRangeDays {
		return nil, fmt.Errorf("%w: %d days exceeds limit of %d", ErrInvalidRange, n, a.maxRangeDays)
	}

	days := make([]time.Time, n)
	for i := range days {
		days[i] = from.AddDate(0, 0, i)
	}
	return days, nil
}

// locationFilter resolves the requested ids. The returned map goes from a
// known location id to its index; unknown ids are kept in the id list but
// match nothing.
func (a *Analytics) locationFilter(ids []int) ([]int, map[int]int) {
	if len(ids) == 0 {
		ids = make([]int, len(a.locations))
		for i, l := range a.locations {
			ids[i] = l.ID
		}
	} else {
		ids = slices.Clone(ids)
		slices.Sort(ids)
		ids = slices.Compact(ids)
	}

	filter := make(map[int]int, len(ids))
	for _, id := range ids {
		if idx, ok := a.locationIndex[id]; ok {
			filter[id] = idx
		}
	}
	return ids, filter
}

// Stats reports the state of the engine for monitoring.
func (a *Analytics) Stats() map[string]any {
	months := a.cache.Months()
	generated := make([]string, len(months))
	for i, m := range months {
		generated[i] = m.String()
	}

	stats := map[string]any{
		"source":           a.cache.SourceName(),
		"products":         len(a.products),
		"locations":        len(a.locations),
		"months_generated": generated,
		"queries_served":   a.queriesServed.Load(),
	}
	if last := a.lastQuery.Load(); last != nil {
		stats["last_query"] = *last
	}
	return stats
}
