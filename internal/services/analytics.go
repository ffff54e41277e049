package services

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"order-mart/internal/models"
	"order-mart/internal/pipeline"
	"order-mart/internal/store"
)

const snapshotVersion = "v1"

// Snapshot is the precomputed state served to dashboards.
type Snapshot struct {
	Version       string
	Views         models.Views
	ReferenceDate time.Time
	RefreshedAt   time.Time
	FactCount     int
}

// Analytics answers view queries from the most recent fact table. Views are
// always recomputed from facts; they are never edited in place.
type Analytics struct {
	mu         sync.RWMutex
	snapshot   *Snapshot
	windowDays int
	logger     *slog.Logger
}

func NewAnalytics(logger *slog.Logger, windowDays int) *Analytics {
	if logger == nil {
		logger = slog.Default()
	}
	if windowDays <= 0 {
		windowDays = pipeline.DefaultRecentWindowDays
	}
	return &Analytics{
		snapshot:   &Snapshot{Version: snapshotVersion},
		windowDays: windowDays,
		logger:     logger,
	}
}

// SetFacts recomputes every view from facts as of ref.
func (a *Analytics) SetFacts(facts []models.FactOrder, ref time.Time) {
	snap := &Snapshot{
		Version:       snapshotVersion,
		Views:         pipeline.ComputeViews(facts, ref, a.windowDays),
		ReferenceDate: ref,
		RefreshedAt:   time.Now(),
		FactCount:     len(facts),
	}

	a.mu.Lock()
	a.snapshot = snap
	a.mu.Unlock()
}

// Refresh reloads fact_orders from st and recomputes the views.
func (a *Analytics) Refresh(ctx context.Context, st store.Store, ref time.Time) error {
	start := time.Now()

	rows, err := st.Query(ctx, store.TableFactOrders)
	if err != nil {
		return fmt.Errorf("query fact table: %w", err)
	}
	facts, err := pipeline.DecodeFacts(rows)
	if err != nil {
		return fmt.Errorf("decode fact table: %w", err)
	}

	a.SetFacts(facts, ref)
	a.logger.Info("analytics refreshed",
		"facts", len(facts),
		"duration", time.Since(start),
	)
	return nil
}

func (a *Analytics) MonthlyKPIs() []models.MonthlyKPI {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot.Views.MonthlyKPIs
}

func (a *Analytics) TopStates() []models.TopState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot.Views.TopStates
}

func (a *Analytics) CityRevenue(limit int) []models.CityRevenue {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return head(a.snapshot.Views.CityRevenue, limit)
}

func (a *Analytics) RecentOrders(limit int) []models.FactOrder {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return head(a.snapshot.Views.RecentOrders, limit)
}

func head[T any](s []T, limit int) []T {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit]
}

func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := a.snapshot
	return map[string]any{
		"fact_count":     s.FactCount,
		"reference_date": s.ReferenceDate.Format(store.DateLayout),
		"refreshed_at":   s.RefreshedAt,
		"months":         len(s.Views.MonthlyKPIs),
		"top_states":     len(s.Views.TopStates),
		"cities":         len(s.Views.CityRevenue),
		"recent_orders":  len(s.Views.RecentOrders),
	}
}

// SaveSnapshot writes the current views so a restarted server can answer
// queries before its first rebuild completes.
func (a *Analytics) SaveSnapshot(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	a.mu.RLock()
	err = gob.NewEncoder(tmp).Encode(a.snapshot)
	a.mu.RUnlock()
	if err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (a *Analytics) LoadSnapshot(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var snap Snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("snapshot version %q, want %q", snap.Version, snapshotVersion)
	}

	a.mu.Lock()
	a.snapshot = &snap
	a.mu.Unlock()

	a.logger.Info("loaded analytics snapshot", "facts", snap.FactCount, "refreshed_at", snap.RefreshedAt)
	return nil
}
