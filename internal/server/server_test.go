package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-mart/internal/config"
	"order-mart/internal/errors"
	"order-mart/internal/pipeline"
	"order-mart/internal/services"
	"order-mart/internal/store"
)

type conflictRebuilder struct{}

func (conflictRebuilder) Run(ctx context.Context) (*pipeline.RunReport, error) {
	return nil, errors.Conflict("pipeline run already in progress")
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dashboard := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>dashboard</html>"))
	})
	return NewServer(Deps{
		Analytics: services.NewAnalytics(slog.Default(), 90),
		Store:     store.NewMemory(),
		Rebuilder: conflictRebuilder{},
		Logger:    slog.Default(),
	}, &TemplateHandlers{Dashboard: dashboard})
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/admin/stats", http.StatusOK},
		{http.MethodPost, "/admin/rebuild", http.StatusConflict},
		{http.MethodGet, "/admin/rebuild", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/monthly-kpis", http.StatusOK},
		{http.MethodGet, "/api/top-states", http.StatusOK},
		{http.MethodGet, "/api/city-revenue", http.StatusOK},
		{http.MethodGet, "/api/recent-orders", http.StatusOK},
		{http.MethodGet, "/api/views/v_recent_orders", http.StatusServiceUnavailable},
		{http.MethodGet, "/sse/refresh-all", http.StatusOK},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestGracefulServer_ShutdownRunsHooks(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	gs := NewGracefulServer(&http.Server{Handler: http.NotFoundHandler()}, slog.Default(), testConfig())

	var ran atomic.Int32
	for range 3 {
		gs.RegisterShutdownHook(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Equal(t, int32(3), ran.Load())
}

func TestGracefulServer_HookError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	gs := NewGracefulServer(&http.Server{Handler: http.NotFoundHandler()}, slog.Default(), testConfig())
	boom := stderrors.New("close pool")
	gs.RegisterShutdownHook(func(ctx context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Serve(ctx, ln) }()
	cancel()

	assert.ErrorIs(t, <-done, boom)
}
