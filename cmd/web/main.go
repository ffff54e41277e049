package main

import (
	"context"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"

	"order-mart/internal/config"
	"order-mart/internal/middleware"
	"order-mart/internal/observability"
	"order-mart/internal/pipeline"
	"order-mart/internal/server"
	"order-mart/internal/services"
	"order-mart/internal/store"
	"order-mart/internal/ui/templates"
)

const (
	connectTimeout = 30 * time.Second
	cacheMaxAge    = "public, max-age=300"
	dashboardTitle = "Order mart"
)

func dashboardHandler() http.Handler {
	h := templ.Handler(templates.Dashboard(dashboardTitle))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", cacheMaxAge)
		h.ServeHTTP(w, r)
	})
}

func newHandler(cfg *config.Config, logger *slog.Logger, deps server.Deps, limiter *middleware.RateLimiter) http.Handler {
	srv := server.NewServer(deps, &server.TemplateHandlers{
		Dashboard: dashboardHandler(),
	})

	return middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.RateLimit(limiter, logger),
	)(srv)
}

func newRunner(cfg *config.Config, st store.Store, logger *slog.Logger) *pipeline.Runner {
	return pipeline.NewRunner(st, logger,
		pipeline.WithClock(func() time.Time { return cfg.Pipeline.ReferenceTime(time.Now()) }),
		pipeline.WithRecentWindow(cfg.Pipeline.RecentWindowDays),
	)
}

// warmUp fills analytics before the server starts: from the snapshot, then
// from a fresh run, falling back to whatever fact table the store already
// holds if that run fails.
func warmUp(ctx context.Context, cfg *config.Config, st store.Store, runner *pipeline.Runner, analytics *services.Analytics, logger *slog.Logger) {
	if path := cfg.Pipeline.SnapshotPath; path != "" {
		if err := analytics.LoadSnapshot(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			logger.Warn("ignoring unreadable snapshot", "path", path, "error", err)
		}
	}

	if cfg.Pipeline.RunOnStart {
		runCtx, cancel := context.WithTimeout(ctx, cfg.Pipeline.RunTimeout)
		defer cancel()

		report, err := runner.Run(runCtx)
		if err == nil {
			analytics.SetFacts(report.Facts, report.ReferenceDate)
			return
		}
		logger.Error("startup pipeline run failed", "error", err)
	}

	ref := cfg.Pipeline.ReferenceTime(time.Now())
	if err := analytics.Refresh(ctx, st, ref); err != nil {
		logger.Warn("no fact table to serve yet", "error", err)
	}
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
		"store", cfg.Store.Driver,
		"recent_window_days", cfg.Pipeline.RecentWindowDays,
	)

	ctx := context.Background()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	st, closeStore, err := store.Open(connectCtx, cfg.Store, logger)
	cancel()
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}

	analytics := services.NewAnalytics(logger, cfg.Pipeline.RecentWindowDays)
	runner := newRunner(cfg, st, logger)

	start := time.Now()
	warmUp(ctx, cfg, st, runner, analytics, logger)
	logger.Info("analytics ready", "duration", time.Since(start), "stats", analytics.Stats())

	limiter := middleware.NewRateLimiter(cfg.Security)
	stopSweeper := make(chan struct{})
	go limiter.Run(stopSweeper)

	handler := newHandler(cfg, logger, server.Deps{
		Analytics:  analytics,
		Store:      st,
		Rebuilder:  runner,
		RunTimeout: cfg.Pipeline.RunTimeout,
		Logger:     logger,
	}, limiter)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		close(stopSweeper)
		if path := cfg.Pipeline.SnapshotPath; path != "" {
			logger.Info("saving analytics snapshot", "path", path)
			if err := analytics.SaveSnapshot(path); err != nil {
				return err
			}
		}
		closeStore()
		return nil
	})

	if err := gracefulServer.ListenAndServe(ctx); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
