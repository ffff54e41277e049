package handlers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"order-mart/internal/errors"
	"order-mart/internal/observability"
	"order-mart/internal/pipeline"
	"order-mart/internal/services"
	"order-mart/internal/store"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
	cacheMaxAge  = "public, max-age=300"
)

var queryableViews = []string{
	store.ViewMonthlyKPIs,
	store.ViewTopStateByMonth,
	store.ViewCityRevenue,
	store.ViewRecentOrders,
}

// Rebuilder runs the pipeline. *pipeline.Runner satisfies it.
type Rebuilder interface {
	Run(ctx context.Context) (*pipeline.RunReport, error)
}

type APIHandlers struct {
	analytics  *services.Analytics
	store      store.Store
	rebuilder  Rebuilder
	logger     *slog.Logger
	runTimeout time.Duration
}

func NewAPIHandlers(analytics *services.Analytics, st store.Store, rebuilder Rebuilder, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics:  analytics,
		store:      st,
		rebuilder:  rebuilder,
		logger:     logger,
		runTimeout: 5 * time.Minute,
	}
}

func (h *APIHandlers) HandleMonthlyKPIs(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.MonthlyKPIs(), map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

func (h *APIHandlers) HandleTopStates(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.TopStates(), map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

func (h *APIHandlers) HandleCityRevenue(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}
	errors.WriteSuccessWithHeaders(w, h.analytics.CityRevenue(limit), map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

func (h *APIHandlers) HandleRecentOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}
	errors.WriteSuccessWithHeaders(w, h.analytics.RecentOrders(limit), map[string]string{
		"Cache-Control": cacheMaxAge,
	})
}

// HandleView returns the rows the store holds for one materialized view.
func (h *APIHandlers) HandleView(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())
	name := r.PathValue("name")

	if !slices.Contains(queryableViews, name) {
		errors.WriteError(w, h.logger, errors.NotFound("unknown view").WithDetails("view=%s", name), requestID)
		return
	}

	rows, err := h.store.Query(r.Context(), name)
	if err != nil {
		if stderrors.Is(err, store.ErrTableNotFound) {
			err = errors.ServiceUnavailable("view has not been built yet").WithDetails("view=%s", name)
		}
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	errors.WriteSuccess(w, rows)
}

// HandleRebuild runs the pipeline and swaps the served views to its output.
func (h *APIHandlers) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), h.runTimeout)
	defer cancel()

	report, err := h.rebuilder.Run(ctx)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	h.analytics.SetFacts(report.Facts, report.ReferenceDate)
	h.logger.Info("rebuild served", "run_id", report.RunID, "request_id", requestID)

	errors.WriteSuccess(w, report)
}

// SetRunTimeout bounds how long a rebuild request may take.
func (h *APIHandlers) SetRunTimeout(d time.Duration) {
	if d > 0 {
		h.runTimeout = d
	}
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxLimit {
		return 0, errors.BadRequest("limit must be an integer between 1 and 1000").WithDetails("limit=%s", raw)
	}
	return limit, nil
}
