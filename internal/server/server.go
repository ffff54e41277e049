package server

import (
	"log/slog"
	"net/http"
	"time"

	"order-mart/internal/handlers"
	"order-mart/internal/services"
	"order-mart/internal/store"
)

type Server struct {
	analytics   *services.Analytics
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.Handler
}

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Analytics  *services.Analytics
	Store      store.Store
	Rebuilder  handlers.Rebuilder
	RunTimeout time.Duration
	Logger     *slog.Logger
}

func NewServer(deps Deps, templateHandlers *TemplateHandlers) *Server {
	api := handlers.NewAPIHandlers(deps.Analytics, deps.Store, deps.Rebuilder, deps.Logger)
	api.SetRunTimeout(deps.RunTimeout)

	s := &Server{
		analytics:   deps.Analytics,
		mux:         http.NewServeMux(),
		logger:      deps.Logger,
		apiHandlers: api,
		sseHandlers: handlers.NewSSEHandlers(deps.Analytics, deps.Logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard and admin routes
	if templateHandlers != nil && templateHandlers.Dashboard != nil {
		s.mux.Handle("GET /{$}", templateHandlers.Dashboard)
	}
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)
	s.mux.HandleFunc("POST /admin/rebuild", s.apiHandlers.HandleRebuild)

	// REST API endpoints
	s.mux.HandleFunc("GET /api/monthly-kpis", s.apiHandlers.HandleMonthlyKPIs)
	s.mux.HandleFunc("GET /api/top-states", s.apiHandlers.HandleTopStates)
	s.mux.HandleFunc("GET /api/city-revenue", s.apiHandlers.HandleCityRevenue)
	s.mux.HandleFunc("GET /api/recent-orders", s.apiHandlers.HandleRecentOrders)
	s.mux.HandleFunc("GET /api/views/{name}", s.apiHandlers.HandleView)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/monthly-kpis", s.sseHandlers.HandleMonthlyKPIs)
	s.mux.HandleFunc("GET /sse/top-states", s.sseHandlers.HandleTopStates)
	s.mux.HandleFunc("GET /sse/city-revenue", s.sseHandlers.HandleCityRevenue)
	s.mux.HandleFunc("GET /sse/recent-orders", s.sseHandlers.HandleRecentOrders)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
