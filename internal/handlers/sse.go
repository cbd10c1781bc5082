package handlers

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/dmlat/InfoCoffee-sub001/internal/errors"
	"github.com/dmlat/InfoCoffee-sub001/internal/models"
	"github.com/dmlat/InfoCoffee-sub001/internal/observability"
	"github.com/dmlat/InfoCoffee-sub001/internal/services"
)

const (
	maxShareColumns = 3
	datastarParam   = "datastar"
)

var statsTableTemplate = template.Must(template.New("statsTable").Funcs(template.FuncMap{
	"top": func(shares []models.LocationShare) []models.LocationShare {
		if len(shares) > maxShareColumns {
			return shares[:maxShareColumns]
		}
		return shares
	},
}).Parse(`
<div id="stats-content">
<div class="totals">
<div class="card"><span>Sales</span><strong>{{.TotalCount}}</strong></div>
<div class="card"><span>Revenue</span><strong>{{.TotalRevenue.StringFixed 0}} ₽</strong></div>
<div class="card"><span>Cost</span><strong>{{.TotalCost.StringFixed 0}} ₽</strong></div>
<div class="card"><span>Profit</span><strong>{{.TotalProfit.StringFixed 0}} ₽</strong></div>
</div>
<table class="modern-table">
<thead><tr><th>Product</th><th>Category</th><th>Sold</th><th>Revenue</th><th>Top locations</th></tr></thead>
<tbody>
{{range .Products}}<tr>
<td>{{.Name}}</td>
<td><span class="category-badge">{{.Category}}</span></td>
<td>{{.Count}}</td>
<td><strong>{{.Revenue.StringFixed 0}} ₽</strong></td>
<td>{{range top .Locations}}{{if .Count}}<span class="share">{{.Name}} {{printf "%.1f" .Percent}}%</span> {{end}}{{end}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var errorTemplate = template.Must(template.New("statsError").Parse(
	`<div id="stats-content" class="error">{{.}}</div>`))

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	now       func() time.Time
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
		now:       time.Now,
	}
}

// readFilter prefers the dashboard signals and falls back to query params so
// the endpoints can also be hit directly.
func (h *SSEHandlers) readFilter(r *http.Request) (services.StatsQuery, error) {
	if !hasSignals(r) {
		params, err := paramsFromQuery(r)
		if err != nil {
			return services.StatsQuery{}, err
		}
		return params.toQuery(h.now())
	}

	var params statsParams
	if err := datastar.ReadSignals(r, &params); err != nil {
		return services.StatsQuery{}, errors.ValidationWrap(err, "Dashboard filter could not be read")
	}
	if params.From == "" && params.To == "" && len(params.Locations) == 0 {
		var err error
		if params, err = paramsFromQuery(r); err != nil {
			return services.StatsQuery{}, err
		}
	}
	return params.toQuery(h.now())
}

// hasSignals reports whether the request carries datastar signals: the
// datastar query parameter on GET, a body otherwise.
func hasSignals(r *http.Request) bool {
	if r.Method == http.MethodGet {
		return r.URL.Query().Has(datastarParam)
	}
	return r.ContentLength != 0
}

func (h *SSEHandlers) summary(r *http.Request) (*models.StatsSummary, error) {
	q, err := h.readFilter(r)
	if err != nil {
		return nil, err
	}
	return h.analytics.Query(r.Context(), q)
}

func (h *SSEHandlers) renderStatsTable(summary *models.StatsSummary) (string, error) {
	var buf strings.Builder
	err := statsTableTemplate.Execute(&buf, summary)
	return buf.String(), err
}

func (h *SSEHandlers) patchError(r *http.Request, sse *datastar.ServerSentEventGenerator, err error) {
	appErr := toAppError(err)
	observability.LoggerFrom(r.Context(), h.logger).Warn("dashboard update failed", "error", err, "code", appErr.Code)

	var buf strings.Builder
	if renderErr := errorTemplate.Execute(&buf, appErr.Message); renderErr != nil {
		h.logger.Error("render error panel", "error", renderErr)
		return
	}
	sse.PatchElements(buf.String())
}

func totalsSignals(summary *models.StatsSummary) map[string]any {
	return map[string]any{
		"from":         summary.From,
		"to":           summary.To,
		"totalCount":   summary.TotalCount,
		"totalRevenue": summary.TotalRevenue,
		"totalProfit":  summary.TotalProfit,
	}
}

// HandleStats patches the totals cards and the product table.
func (h *SSEHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.summary(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.patchError(r, sse, err)
		return
	}

	html, err := h.renderStatsTable(summary)
	if err != nil {
		h.logger.Error("render stats table", "error", err)
		return
	}
	sse.PatchElements(html)

	signals, err := json.Marshal(map[string]any{"summary": totalsSignals(summary)})
	if err != nil {
		h.logger.Error("marshal summary signals", "error", err)
		return
	}
	sse.PatchSignals(signals)
}

// HandleDaily sends the per-day series for the chart.
func (h *SSEHandlers) HandleDaily(w http.ResponseWriter, r *http.Request) {
	summary, err := h.summary(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.patchError(r, sse, err)
		return
	}

	signals, err := json.Marshal(map[string]any{"dailyData": summary.Days})
	if err != nil {
		h.logger.Error("marshal daily data", "error", err)
		return
	}
	sse.PatchSignals(signals)
}

func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.summary(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.patchError(r, sse, err)
		return
	}

	html, err := h.renderStatsTable(summary)
	if err != nil {
		h.logger.Error("render stats table", "error", err)
		return
	}
	sse.PatchElements(html)

	allSignals, err := json.Marshal(map[string]any{
		"summary":   totalsSignals(summary),
		"dailyData": summary.Days,
	})
	if err != nil {
		h.logger.Error("marshal all signals data", "error", err)
		return
	}
	sse.PatchSignals(allSignals)
}
