package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/starfederation/datastar-go/datastar"

	"order-mart/internal/models"
	"order-mart/internal/services"
	"order-mart/internal/store"
)

const (
	maxTableRows = 50
	maxCities    = 30
	maxRecent    = 30
	nullCell     = "—"
)

var tableFuncs = template.FuncMap{
	"text": func(s *string) string {
		if s == nil {
			return nullCell
		}
		return *s
	},
	"date": func(t *time.Time) string {
		if t == nil {
			return nullCell
		}
		return t.Format(store.DateLayout)
	},
	"month": func(t time.Time) string {
		return t.Format("2006-01")
	},
	"money": func(d decimal.NullDecimal) string {
		if !d.Valid {
			return nullCell
		}
		return d.Decimal.StringFixed(2)
	},
	"num": func(n *int) string {
		if n == nil {
			return nullCell
		}
		return strconv.Itoa(*n)
	},
	"pct": func(f float64) float64 { return f * 100 },
}

var cityTableTemplate = template.Must(template.New("cityTable").Funcs(tableFuncs).Parse(`
<div id="city-content">
<table class="modern-table">
<thead><tr><th>State</th><th>City</th><th>Revenue</th><th>Orders</th></tr></thead>
<tbody>
{{range $i, $c := .Data}}{{if lt $i $.MaxRows}}<tr>
<td>{{text .CustomerState}}</td>
<td>{{text .CustomerCity}}</td>
<td><strong>{{.Revenue.StringFixed 2}}</strong></td>
<td>{{.OrderCount}}</td>
</tr>{{end}}{{end}}
</tbody>
</table>
</div>`))

var recentTableTemplate = template.Must(template.New("recentTable").Funcs(tableFuncs).Parse(`
<div id="recent-content">
<table class="modern-table">
<thead><tr><th>Order</th><th>Purchased</th><th>State</th><th>Status</th><th>Gross</th><th>Delay</th></tr></thead>
<tbody>
{{range $i, $o := .Data}}{{if lt $i $.MaxRows}}<tr>
<td><code>{{.OrderID}}</code></td>
<td>{{date .PurchaseDate}}</td>
<td>{{text .CustomerState}}</td>
<td><span class="status-badge">{{text .Status}}</span></td>
<td>{{money .GrossOrderValue}}</td>
<td>{{num .DelayDays}}</td>
</tr>{{end}}{{end}}
</tbody>
</table>
</div>`))

var monthlyTableTemplate = template.Must(template.New("monthlyTable").Funcs(tableFuncs).Parse(`
<div id="monthly-content">
<table class="modern-table">
<thead><tr><th>Month</th><th>Orders</th><th>Revenue</th><th>Avg order</th><th>Late rate</th></tr></thead>
<tbody>
{{range .Data}}<tr>
<td>{{month .MonthStart}}</td>
<td>{{.OrderCount}}</td>
<td><strong>{{.Revenue.StringFixed 2}}</strong></td>
<td>{{money .AvgOrderValue}}</td>
<td>{{printf "%.2f%%" (pct .LateRate)}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

type templateData struct {
	Data    any
	MaxRows int
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf strings.Builder
	err := tmpl.Execute(&buf, templateData{Data: data, MaxRows: maxTableRows})
	return buf.String(), err
}

func (h *SSEHandlers) renderCityTable(data []models.CityRevenue) (string, error) {
	return render(cityTableTemplate, data)
}

func (h *SSEHandlers) renderRecentTable(data []models.FactOrder) (string, error) {
	return render(recentTableTemplate, data)
}

func (h *SSEHandlers) renderMonthlyTable(data []models.MonthlyKPI) (string, error) {
	return render(monthlyTableTemplate, data)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) HandleMonthlyKPIs(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	data := h.analytics.MonthlyKPIs()
	jsonData, err := json.Marshal(map[string]any{
		"monthlyData": data,
	})
	if err != nil {
		h.logger.Error("marshal monthly data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	html, err := h.renderMonthlyTable(data)
	if err != nil {
		h.logger.Error("render monthly table", "error", err)
		return
	}
	sse.PatchElements(html)

	flush(w)
}

func (h *SSEHandlers) HandleTopStates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	jsonData, err := json.Marshal(map[string]any{
		"statesData": h.analytics.TopStates(),
	})
	if err != nil {
		h.logger.Error("marshal top state data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)
	sse.PatchElements(`<div id="states-content">Top states loaded</div>`)

	flush(w)
}

func (h *SSEHandlers) HandleCityRevenue(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	html, err := h.renderCityTable(h.analytics.CityRevenue(maxCities))
	if err != nil {
		h.logger.Error("render city table", "error", err)
		return
	}
	sse.PatchElements(html)

	flush(w)
}

func (h *SSEHandlers) HandleRecentOrders(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	html, err := h.renderRecentTable(h.analytics.RecentOrders(maxRecent))
	if err != nil {
		h.logger.Error("render recent orders table", "error", err)
		return
	}
	sse.PatchElements(html)

	flush(w)
}

func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	monthly := h.analytics.MonthlyKPIs()
	for _, part := range []struct {
		name   string
		render func() (string, error)
	}{
		{"monthly", func() (string, error) { return h.renderMonthlyTable(monthly) }},
		{"city", func() (string, error) { return h.renderCityTable(h.analytics.CityRevenue(maxCities)) }},
		{"recent", func() (string, error) { return h.renderRecentTable(h.analytics.RecentOrders(maxRecent)) }},
	} {
		html, err := part.render()
		if err != nil {
			h.logger.Error("render table", "table", part.name, "error", err)
			return
		}
		sse.PatchElements(html)
	}

	allSignals, err := json.Marshal(map[string]any{
		"monthlyData": monthly,
		"statesData":  h.analytics.TopStates(),
		"stats":       h.analytics.Stats(),
	})
	if err != nil {
		h.logger.Error("marshal all signals data", "error", err)
		return
	}
	sse.PatchSignals(allSignals)

	flush(w)
}
