package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the sales engine and the HTTP
// layer. Each instance owns its registry so tests can build as many as they
// like.
type Metrics struct {
	registry *prometheus.Registry

	// Generation cache
	MonthsLoaded     *prometheus.CounterVec
	MonthLoadErrors  *prometheus.CounterVec
	MonthCacheHits   prometheus.Counter
	MonthCacheMisses prometheus.Counter
	MonthsCached     prometheus.Gauge
	MonthLoadLatency *prometheus.HistogramVec

	// Queries
	QueriesTotal     *prometheus.CounterVec
	QueryDuration    prometheus.Histogram
	QueryDays        prometheus.Histogram
	UnknownProductEv prometheus.Counter

	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "infocoffee"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		MonthsLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sales_cache",
			Name:      "months_loaded_total",
			Help:      "Months loaded from a source and published to the cache",
		}, []string{"source"}),
		MonthLoadErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sales_cache",
			Name:      "month_load_errors_total",
			Help:      "Failed month loads",
		}, []string{"source"}),
		MonthCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sales_cache",
			Name:      "hits_total",
			Help:      "Month lookups served from the cache",
		}),
		MonthCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sales_cache",
			Name:      "misses_total",
			Help:      "Month lookups that had to wait for a load",
		}),
		MonthsCached: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sales_cache",
			Name:      "months",
			Help:      "Months currently held by the cache",
		}),
		MonthLoadLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sales_cache",
			Name:      "month_load_seconds",
			Help:      "Time spent loading one month",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"source"}),

		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "queries_total",
			Help:      "Stats queries by outcome",
		}, []string{"outcome"}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "query_seconds",
			Help:      "Stats query latency",
			Buckets:   prometheus.DefBuckets,
		}),
		QueryDays: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "query_days",
			Help:      "Number of calendar days covered by a query",
			Buckets:   []float64{1, 7, 31, 92, 183, 366},
		}),
		UnknownProductEv: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "unknown_product_events_total",
			Help:      "Events skipped because their product is not in the catalog",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status",
		}, []string{"method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
