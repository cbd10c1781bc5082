// Package templates renders the dashboard shell. Data arrives afterwards
// over the datastar SSE endpoints.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/dmlat/InfoCoffee-sub001/internal/models"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"

const dashboardHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>InfoCoffee Sales Dashboard</title>
<script type="module" src="` + datastarScript + `"></script>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f6f3ef;color:#2b2118}
header{padding:1.5rem 2rem;background:#3b2a1e;color:#fff}
main{padding:1.5rem 2rem}
.filters{display:flex;gap:1rem;flex-wrap:wrap;align-items:end;margin-bottom:1.5rem}
.totals{display:flex;gap:1rem;margin-bottom:1rem}
.card{background:#fff;border-radius:8px;padding:1rem;min-width:9rem;display:flex;flex-direction:column}
.modern-table{width:100%;border-collapse:collapse;background:#fff}
.modern-table th,.modern-table td{padding:.5rem .75rem;border-bottom:1px solid #eee;text-align:left}
.category-badge{background:#efe4d8;border-radius:4px;padding:0 .4rem}
.share{font-size:.85em;color:#6b5a4c}
.error{color:#a12a1a;background:#fff;padding:1rem;border-radius:8px}
</style>
</head>
`

// Dashboard renders the page with one location checkbox per vending point.
func Dashboard(locations []models.Location) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		b.WriteString(dashboardHead)
		b.WriteString(`<body data-signals="{from: '', to: '', locations: [], summary: {}, dailyData: []}" data-on-load="@get('/sse/refresh-all')">`)
		b.WriteString("\n<header><h1>InfoCoffee Sales Dashboard</h1><p>Vending sales by product and location</p></header>\n<main>\n")

		b.WriteString(`<section class="filters">`)
		b.WriteString(`<label>From <input type="date" data-bind-from></label>`)
		b.WriteString(`<label>To <input type="date" data-bind-to></label>`)
		b.WriteString(`<fieldset><legend>Locations</legend>`)
		for _, loc := range locations {
			fmt.Fprintf(&b, `<label><input type="checkbox" value="%d" data-bind-locations> %s</label>`,
				loc.ID, templ.EscapeString(loc.Name))
		}
		b.WriteString(`</fieldset>`)
		b.WriteString(`<button data-on-click="@get('/sse/refresh-all')">Apply</button>`)
		b.WriteString("</section>\n")

		b.WriteString(`<section><h2>Sales by Product</h2><div id="stats-content">Loading…</div></section>`)
		b.WriteString("\n")
		b.WriteString(`<section><h2>Daily Sales</h2><canvas id="daily-chart" data-effect="window.drawDaily && window.drawDaily($dailyData)"></canvas></section>`)
		b.WriteString("\n</main>\n</body>\n</html>\n")

		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}
