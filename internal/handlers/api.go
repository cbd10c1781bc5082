package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmlat/InfoCoffee-sub001/internal/errors"
	"github.com/dmlat/InfoCoffee-sub001/internal/observability"
	"github.com/dmlat/InfoCoffee-sub001/internal/services"
)

const cacheMaxAge = "public, max-age=300"

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	now       func() time.Time
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
		now:       time.Now,
	}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, toAppError(err), observability.GetRequestID(r.Context()))
}

// HandleStats serves GET /api/stats?from=&to=&locations=. Generated sales
// never change for a given catalog, so responses are cacheable.
func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	params, err := paramsFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := params.toQuery(h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	summary, err := h.analytics.Query(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, summary, map[string]string{"Cache-Control": cacheMaxAge})
}

// HandleDay serves GET /api/days/{date}: the raw events of one day.
func (h *APIHandlers) HandleDay(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	events, err := h.analytics.Cache().DayByKey(r.Context(), date)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, map[string]any{
		"date":   date,
		"events": events,
	}, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleProducts(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.Products(), map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleLocations(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.Locations(), map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]string{
		"status":    "healthy",
		"source":    h.analytics.Cache().SourceName(),
		"timestamp": h.now().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}

// HandleCacheInfo serves GET /admin/cache.
func (h *APIHandlers) HandleCacheInfo(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}

// HandleCacheReset serves POST /admin/cache/reset. Months are regenerated
// on next use and come out identical.
func (h *APIHandlers) HandleCacheReset(w http.ResponseWriter, r *http.Request) {
	dropped := len(h.analytics.Cache().Months())
	h.analytics.Cache().Reset()

	observability.LoggerFrom(r.Context(), h.logger).Info("generation cache reset requested",
		"months_dropped", dropped,
	)
	errors.WriteSuccess(w, map[string]int{"months_dropped": dropped})
}
