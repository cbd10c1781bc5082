package server

import (
	"log/slog"
	"net/http"

	"github.com/dmlat/InfoCoffee-sub001/internal/handlers"
	"github.com/dmlat/InfoCoffee-sub001/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func NewServer(analytics *services.Analytics, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		analytics:   analytics,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, logger),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard and operations
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/cache", s.apiHandlers.HandleCacheInfo)
	s.mux.HandleFunc("POST /admin/cache/reset", s.apiHandlers.HandleCacheReset)
	if templateHandlers.Metrics != nil {
		s.mux.Handle("GET /metrics", templateHandlers.Metrics)
	}

	// REST API endpoints
	s.mux.HandleFunc("GET /api/stats", s.apiHandlers.HandleStats)
	s.mux.HandleFunc("GET /api/days/{date}", s.apiHandlers.HandleDay)
	s.mux.HandleFunc("GET /api/products", s.apiHandlers.HandleProducts)
	s.mux.HandleFunc("GET /api/locations", s.apiHandlers.HandleLocations)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/stats", s.sseHandlers.HandleStats)
	s.mux.HandleFunc("GET /sse/daily", s.sseHandlers.HandleDaily)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
