package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"order-mart/internal/config"
	"order-mart/internal/middleware"
	"order-mart/internal/server"
	"order-mart/internal/services"
	"order-mart/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func seededStore() *store.Memory {
	m := store.NewMemory()
	m.Seed(store.TableCustomers, []store.Row{
		{"customer_id": "c1", "customer_unique_id": "u1", "customer_city": "sao paulo", "customer_state": "SP"},
		{"customer_id": "c2", "customer_unique_id": "u2", "customer_city": "rio de janeiro", "customer_state": "RJ"},
	})
	m.Seed(store.TableOrders, []store.Row{
		{
			"order_id": "o1", "customer_id": "c1", "order_status": "delivered",
			"order_purchase_timestamp":      "2018-08-01 10:00:00",
			"order_delivered_customer_date": "2018-08-06 18:30:00",
			"order_estimated_delivery_date": "2018-08-05 00:00:00",
		},
		{
			"order_id": "o2", "customer_id": "c2", "order_status": "shipped",
			"order_purchase_timestamp":      "2018-08-20 09:15:00",
			"order_estimated_delivery_date": "2018-09-01 00:00:00",
		},
	})
	m.Seed(store.TableItems, []store.Row{
		{"order_id": "o1", "order_item_id": "1", "price": "100.00", "freight_value": "10.00"},
		{"order_id": "o2", "order_item_id": "1", "price": "30.00", "freight_value": "5.50"},
	})
	return m
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Store.Driver = config.DriverMemory
	cfg.Pipeline.ReferenceDate = "2018-09-01"
	cfg.Security.EnableRateLimit = false
	return cfg
}

type testApp struct {
	handler   http.Handler
	analytics *services.Analytics
}

func newTestApp(t *testing.T, cfg *config.Config, st store.Store) *testApp {
	t.Helper()
	logger := quietLogger()
	analytics := services.NewAnalytics(logger, cfg.Pipeline.RecentWindowDays)
	runner := newRunner(cfg, st, logger)

	warmUp(context.Background(), cfg, st, runner, analytics, logger)

	handler := newHandler(cfg, logger, server.Deps{
		Analytics:  analytics,
		Store:      st,
		Rebuilder:  runner,
		RunTimeout: cfg.Pipeline.RunTimeout,
		Logger:     logger,
	}, middleware.NewRateLimiter(cfg.Security))

	return &testApp{handler: handler, analytics: analytics}
}

func (a *testApp) do(method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestDashboard(t *testing.T) {
	app := newTestApp(t, testConfig(), seededStore())

	w := app.do(http.MethodGet, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), "/sse/refresh-all") {
		t.Error("dashboard should wire the refresh-all stream")
	}
	if cc := w.Header().Get("Cache-Control"); cc != cacheMaxAge {
		t.Errorf("expected cache-control %q, got %q", cacheMaxAge, cc)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("middleware chain should assign a request id")
	}
}

func TestStartupRunServesViews(t *testing.T) {
	app := newTestApp(t, testConfig(), seededStore())

	w := app.do(http.MethodGet, "/api/monthly-kpis")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response struct {
		Success bool `json:"success"`
		Data    []struct {
			MonthStart string  `json:"month_start"`
			OrderCount int     `json:"order_count"`
			Revenue    string  `json:"revenue"`
			LateRate   float64 `json:"late_rate"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if len(response.Data) != 1 {
		t.Fatalf("expected one month, got %d", len(response.Data))
	}
	got := response.Data[0]
	if got.OrderCount != 2 || got.Revenue != "145.5" {
		t.Errorf("unexpected August KPIs: %+v", got)
	}
	if got.LateRate != 0.5 {
		t.Errorf("late_rate = %v, want 0.5", got.LateRate)
	}

	w = app.do(http.MethodGet, "/api/views/"+store.ViewMonthlyKPIs)
	if w.Code != http.StatusOK {
		t.Errorf("materialized view should be queryable, got %d", w.Code)
	}
}

func TestRebuildEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.RunOnStart = false
	app := newTestApp(t, cfg, seededStore())

	if got := app.analytics.Stats()["fact_count"]; got != 0 {
		t.Fatalf("nothing should be served before the first rebuild, fact_count = %v", got)
	}

	w := app.do(http.MethodPost, "/admin/rebuild")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if got := app.analytics.Stats()["fact_count"]; got != 2 {
		t.Errorf("rebuild should publish facts, fact_count = %v", got)
	}
}

func TestRebuildEndpoint_BadInput(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.RunOnStart = false
	st := seededStore()
	st.Seed(store.TableItems, []store.Row{
		{"order_id": "o1", "order_item_id": "1", "price": "x", "freight_value": "1"},
	})
	app := newTestApp(t, cfg, st)

	w := app.do(http.MethodPost, "/admin/rebuild")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
	}
	if !strings.Contains(w.Body.String(), `"code":"SCHEMA_ERROR"`) {
		t.Errorf("expected SCHEMA error code, got %s", w.Body.String())
	}
}

func TestWarmUp_Snapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "views.gob")

	cfg := testConfig()
	first := newTestApp(t, cfg, seededStore())
	if err := first.analytics.SaveSnapshot(path); err != nil {
		t.Fatal(err)
	}

	cfg = testConfig()
	cfg.Pipeline.RunOnStart = false
	cfg.Pipeline.SnapshotPath = path
	second := newTestApp(t, cfg, store.NewMemory())

	if got := second.analytics.Stats()["fact_count"]; got != 2 {
		t.Errorf("snapshot should be served when the store is empty, fact_count = %v", got)
	}
}

func TestWarmUp_MissingSnapshot(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.SnapshotPath = filepath.Join(t.TempDir(), "absent.gob")
	app := newTestApp(t, cfg, seededStore())

	if got := app.analytics.Stats()["fact_count"]; got != 2 {
		t.Errorf("missing snapshot should not block the startup run, fact_count = %v", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	app := newTestApp(t, testConfig(), seededStore())

	w := app.do(http.MethodGet, "/health")
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if w.Header().Get(h) == "" {
			t.Errorf("expected %s header", h)
		}
	}
}
