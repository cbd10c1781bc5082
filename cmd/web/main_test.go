package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/dmlat/InfoCoffee-sub001/internal/artifact"
	"github.com/dmlat/InfoCoffee-sub001/internal/catalog"
	"github.com/dmlat/InfoCoffee-sub001/internal/config"
	"github.com/dmlat/InfoCoffee-sub001/internal/middleware"
	"github.com/dmlat/InfoCoffee-sub001/internal/observability"
	"github.com/dmlat/InfoCoffee-sub001/internal/services"
	"github.com/dmlat/InfoCoffee-sub001/internal/synth"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("CATALOG_FILE", "../../data/catalog.csv")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SECURITY_RATE_LIMIT_ENABLED", "false")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

// newTestHandler wires the full middleware chain over the sample catalog.
func newTestHandler(t *testing.T) (http.Handler, *services.Analytics) {
	t.Helper()
	cfg := testConfig(t)
	logger := observability.NewLogger(cfg.Logger)
	metrics := observability.NewMetrics("test")

	analytics, err := newAnalytics(cfg, logger, metrics)
	if err != nil {
		t.Fatalf("newAnalytics() error = %v", err)
	}
	return newHandler(cfg, logger, analytics, metrics, middleware.NewRateLimiter(cfg.Security)), analytics
}

func TestBuildSource(t *testing.T) {
	products, err := catalog.NewLoader().LoadFile("../../data/catalog.csv")
	if err != nil {
		t.Fatal(err)
	}
	locations := catalog.DefaultLocations()

	tests := []struct {
		cfg  config.SalesConfig
		want string
	}{
		{config.SalesConfig{Source: config.SourceMemory, Scale: 2.5}, "memory"},
		{config.SalesConfig{Source: config.SourceFile, ArtifactDir: t.TempDir()}, "file"},
		{config.SalesConfig{Source: config.SourceHTTP, ArtifactURL: "http://localhost:1/static"}, "http"},
	}
	for _, tt := range tests {
		src, err := buildSource(tt.cfg, products, locations)
		if err != nil {
			t.Fatalf("buildSource(%s) error = %v", tt.cfg.Source, err)
		}
		if src.Name() != tt.want {
			t.Errorf("buildSource(%s).Name() = %q", tt.cfg.Source, src.Name())
		}
	}

	if _, err := buildSource(config.SalesConfig{Source: "ftp"}, products, locations); err == nil {
		t.Error("unknown source should fail")
	}
}

// Integration tests for HTTP routes
func TestServer_Routes(t *testing.T) {
	handler, _ := newTestHandler(t)

	tests := []struct {
		path           string
		expectedStatus int
		contentType    string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/api/stats?from=2025-03-01&to=2025-03-07", http.StatusOK, "application/json"},
		{"/api/days/2025-03-01", http.StatusOK, "application/json"},
		{"/api/products", http.StatusOK, "application/json"},
		{"/api/locations", http.StatusOK, "application/json"},
		{"/health", http.StatusOK, "application/json"},
		{"/admin/cache", http.StatusOK, "application/json"},
		{"/metrics", http.StatusOK, "text/plain"},
		{"/api/stats?from=2025-03-07&to=2025-03-01", http.StatusBadRequest, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", tt.path, nil)

			handler.ServeHTTP(w, r)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}

			ct := w.Header().Get("Content-Type")
			if !strings.Contains(ct, tt.contentType) {
				t.Errorf("content-type = %q, want %q", ct, tt.contentType)
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID header")
			}

			if tt.contentType == "application/json" {
				var result any
				if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
					t.Errorf("invalid json: %v", err)
				}
			}
		})
	}
}

func TestServer_StatsResponse(t *testing.T) {
	handler, analytics := newTestHandler(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/stats?from=2024-02-01&to=2024-02-29", nil))

	var response struct {
		Success bool `json:"success"`
		Data    struct {
			TotalCount int `json:"total_count"`
			Products   []struct {
				Name      string `json:"name"`
				Count     int    `json:"count"`
				Locations []struct {
					Percent float64 `json:"percent"`
				} `json:"locations"`
			} `json:"products"`
			Days []struct {
				Date string `json:"date"`
			} `json:"days"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}

	if !response.Success {
		t.Fatal("expected success=true in response")
	}
	data := response.Data
	if data.TotalCount == 0 {
		t.Error("a full month should have sales")
	}
	if len(data.Days) != 29 {
		t.Errorf("days = %d, want 29", len(data.Days))
	}
	if len(data.Products) != len(analytics.Products()) {
		t.Errorf("products = %d, want every catalog product", len(data.Products))
	}

	sum := 0
	for i, p := range data.Products {
		sum += p.Count
		if i > 0 && p.Count > data.Products[i-1].Count {
			t.Errorf("products not sorted by count at %d", i)
		}
		if p.Count > 0 {
			pct := 0.0
			for _, l := range p.Locations {
				pct += l.Percent
			}
			if pct < 99.9 || pct > 100.1 {
				t.Errorf("%s location shares sum to %.2f", p.Name, pct)
			}
		}
	}
	if sum != data.TotalCount {
		t.Errorf("product counts sum to %d, total is %d", sum, data.TotalCount)
	}
}

// Test Server-Sent Events routes
func TestServer_SSERoutes(t *testing.T) {
	handler, _ := newTestHandler(t)

	sseRoutes := []string{
		"/sse/stats?from=2025-03-01",
		"/sse/daily?from=2025-03-01&to=2025-03-31",
		"/sse/refresh-all?from=2025-03-01&locations=0,1",
	}

	for _, route := range sseRoutes {
		t.Run(route, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", route, nil)

			handler.ServeHTTP(w, r)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
				t.Errorf("content-type = %q, should contain 'text/event-stream'", ct)
			}
		})
	}
}

func TestServer_CacheReset(t *testing.T) {
	handler, analytics := newTestHandler(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/stats?from=2025-03-01", nil))
	if len(analytics.Cache().Months()) != 1 {
		t.Fatalf("months = %v", analytics.Cache().Months())
	}
	before := w.Body.String()

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/admin/cache/reset", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d", w.Code)
	}
	if len(analytics.Cache().Months()) != 0 {
		t.Error("cache should be empty after reset")
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/stats?from=2025-03-01", nil))
	if w.Body.String() != before {
		t.Error("regenerated month must produce identical stats")
	}
}

// Test error handling for invalid methods
func TestServer_ErrorHandling(t *testing.T) {
	handler, _ := newTestHandler(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"POST", "/api/stats", http.StatusMethodNotAllowed},
		{"PUT", "/", http.StatusMethodNotAllowed},
		{"DELETE", "/health", http.StatusMethodNotAllowed},
		{"GET", "/admin/cache/reset", http.StatusMethodNotAllowed},
		{"GET", "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(tt.method, tt.path, nil)

			handler.ServeHTTP(w, r)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

// The file source serves the same numbers as on-demand generation.
func TestFileSourceMatchesMemory(t *testing.T) {
	products, err := catalog.NewLoader().LoadFile("../../data/catalog.csv")
	if err != nil {
		t.Fatal(err)
	}
	locations := catalog.DefaultLocations()
	s, err := synth.New(products, locations)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if _, err := artifact.WriteSales(dir, 2025, artifact.Entries(s.GenerateYear(2025))); err != nil {
		t.Fatal(err)
	}

	query := func(src services.MonthSource) string {
		metrics := observability.NewMetrics("test")
		a := services.NewAnalytics(services.NewGenerationCache(src, metrics), products, locations, metrics)
		h := newHandler(testConfig(t), observability.NewLogger(config.LoggerConfig{Level: "error"}), a, metrics, middleware.NewRateLimiter(config.SecurityConfig{}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", "/api/stats?from=2025-05-28&to=2025-06-03&locations=1,3", nil))
		return w.Body.String()
	}

	if query(s) != query(artifact.NewFileSource(dir)) {
		t.Error("file and memory sources disagree")
	}
}

// Test dashboard template rendering
func TestDashboardTemplate(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)

	dashboardHandler(catalog.DefaultLocations())(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	expectedComponents := []string{
		"InfoCoffee Sales Dashboard",
		"Sales by Product",
		"Daily Sales",
		`id="stats-content"`,
		"/sse/refresh-all",
		"Business Center",
		"Fitness Club",
	}
	for _, component := range expectedComponents {
		if !strings.Contains(body, component) {
			t.Errorf("dashboard should contain '%s'", component)
		}
	}
}
