package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dmlat/InfoCoffee-sub001/internal/artifact"
	"github.com/dmlat/InfoCoffee-sub001/internal/catalog"
	"github.com/dmlat/InfoCoffee-sub001/internal/config"
	"github.com/dmlat/InfoCoffee-sub001/internal/middleware"
	"github.com/dmlat/InfoCoffee-sub001/internal/models"
	"github.com/dmlat/InfoCoffee-sub001/internal/observability"
	"github.com/dmlat/InfoCoffee-sub001/internal/server"
	"github.com/dmlat/InfoCoffee-sub001/internal/services"
	"github.com/dmlat/InfoCoffee-sub001/internal/synth"
	"github.com/dmlat/InfoCoffee-sub001/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	warmupTimeout = 30 * time.Second
	cacheMaxAge   = "public, max-age=300"
)

func dashboardHandler(locations []models.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", cacheMaxAge)
		if err := templates.Dashboard(locations).Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

// buildSource picks where month tables come from.
func buildSource(cfg config.SalesConfig, products []models.Product, locations []models.Location) (services.MonthSource, error) {
	switch cfg.Source {
	case config.SourceMemory:
		return synth.New(products, locations, synth.WithScale(cfg.Scale))
	case config.SourceFile:
		return artifact.NewFileSource(cfg.ArtifactDir), nil
	case config.SourceHTTP:
		return artifact.NewHTTPSource(cfg.ArtifactURL, cfg.FetchTimeout), nil
	default:
		return nil, fmt.Errorf("unknown sales source %q", cfg.Source)
	}
}

func newAnalytics(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*services.Analytics, error) {
	loader := catalog.NewLoader()
	products, err := loader.LoadFile(cfg.Sales.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	locations := catalog.DefaultLocations()
	if err := loader.ValidateLocations(locations); err != nil {
		return nil, fmt.Errorf("validate locations: %w", err)
	}

	source, err := buildSource(cfg.Sales, products, locations)
	if err != nil {
		return nil, err
	}

	cache := services.NewGenerationCache(source, metrics,
		services.WithLoadTimeout(cfg.Sales.LoadTimeout),
		services.WithCacheLogger(logger),
	)

	logger.Info("catalog loaded",
		"file", cfg.Sales.CatalogFile,
		"products", len(products),
		"locations", len(locations),
		"source", source.Name(),
	)

	return services.NewAnalytics(cache, products, locations, metrics,
		services.WithMaxWorkers(cfg.Sales.QueryWorkers),
		services.WithMaxRangeDays(cfg.Sales.MaxRangeDays),
		services.WithLogger(logger),
	), nil
}

func newHandler(cfg *config.Config, logger *slog.Logger, analytics *services.Analytics, metrics *observability.Metrics, rateLimiter *middleware.RateLimiter) http.Handler {
	templateHandlers := &server.TemplateHandlers{
		Dashboard: dashboardHandler(analytics.Locations()),
	}
	if cfg.Metrics.Enabled {
		templateHandlers.Metrics = metrics.Handler()
	}

	srv := server.NewServer(analytics, logger, templateHandlers)

	middlewares := []middleware.Middleware{
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
	}
	if cfg.Metrics.Enabled {
		middlewares = append(middlewares, middleware.Metrics(metrics))
	}
	middlewares = append(middlewares,
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middleware.Chain(middlewares...)(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"addr", cfg.Address(),
		"sales_source", cfg.Sales.Source,
	)

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)
	analytics, err := newAnalytics(cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to initialise sales engine", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Generate the current month up front so the first dashboard load is fast.
	go func() {
		warmCtx, warmCancel := context.WithTimeout(ctx, warmupTimeout)
		defer warmCancel()
		if _, err := analytics.Cache().EnsureGenerated(warmCtx, models.MonthOf(time.Now().UTC())); err != nil {
			logger.Warn("warmup failed", "error", err)
		}
	}()

	rateLimiter := middleware.NewRateLimiter(cfg.Security)
	go rateLimiter.Run(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, logger, analytics, metrics, rateLimiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(context.Context) error {
		logger.Info("stopping background workers")
		cancel()
		return nil
	})

	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
