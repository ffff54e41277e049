// Package pipeline rebuilds the order mart: it deduplicates customers,
// normalizes orders, sanitizes items, builds the order-grain fact table and
// derives the aggregate views from it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"order-mart/internal/errors"
	"order-mart/internal/models"
	"order-mart/internal/observability"
	"order-mart/internal/store"
)

// RunReport summarizes one completed rebuild.
type RunReport struct {
	RunID         string         `json:"run_id"`
	ReferenceDate time.Time      `json:"reference_date"`
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"duration"`
	RowCounts     map[string]int `json:"row_counts"`

	Facts []models.FactOrder `json:"-"`
	Views models.Views       `json:"-"`
}

// Runner drives the stages against a store. Only one Run may be in flight at
// a time because each run drops and recreates the output tables.
type Runner struct {
	store      store.Store
	logger     *slog.Logger
	now        func() time.Time
	windowDays int

	mu sync.Mutex
}

type Option func(*Runner)

// WithClock fixes how the reference date of a run is obtained. It is called
// exactly once per run.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func WithRecentWindow(days int) Option {
	return func(r *Runner) {
		if days > 0 {
			r.windowDays = days
		}
	}
}

func NewRunner(st store.Store, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		store:      st,
		logger:     logger,
		now:        time.Now,
		windowDays: DefaultRecentWindowDays,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs a full rebuild. It stops at the first failing stage. The fact
// table and every view are handed to the store as one batch, so a failed run
// leaves all outputs as the previous run wrote them.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	if !r.mu.TryLock() {
		return nil, errors.Conflict("a pipeline run is already in progress")
	}
	defer r.mu.Unlock()

	report := &RunReport{
		RunID:         uuid.NewString(),
		StartedAt:     time.Now(),
		ReferenceDate: *truncateDate(ptr(r.now())),
		RowCounts:     make(map[string]int),
	}
	logger := r.logger.With("run_id", report.RunID)

	ctx, span := observability.StartSpan(ctx, "pipeline.run")
	defer span.End(logger)

	logger.Info("pipeline run started", "reference_date", report.ReferenceDate.Format(store.DateLayout))

	if err := r.run(ctx, logger, report); err != nil {
		span.SetError(err)
		logger.Error("pipeline run failed", "error", err)
		return nil, err
	}

	report.Duration = time.Since(report.StartedAt)
	logger.Info("pipeline run complete",
		"duration", report.Duration,
		"fact_orders", report.RowCounts[store.TableFactOrders],
	)
	return report, nil
}

func (r *Runner) run(ctx context.Context, logger *slog.Logger, report *RunReport) error {
	rawCustomers, err := readInput(ctx, r, store.TableCustomers, DecodeCustomers)
	if err != nil {
		return err
	}
	rawOrders, err := readInput(ctx, r, store.TableOrders, DecodeOrders)
	if err != nil {
		return err
	}
	rawItems, err := readInput(ctx, r, store.TableItems, DecodeItems)
	if err != nil {
		return err
	}

	customers, err := stage(ctx, logger, "dedupe_customers", func() ([]models.Customer, error) {
		return DedupeCustomers(rawCustomers)
	})
	if err != nil {
		return err
	}
	orders, err := stage(ctx, logger, "normalize_orders", func() ([]models.Order, error) {
		return NormalizeOrders(rawOrders)
	})
	if err != nil {
		return err
	}
	items, err := stage(ctx, logger, "sanitize_items", func() ([]models.Item, error) {
		return SanitizeItems(rawItems)
	})
	if err != nil {
		return err
	}
	facts, err := stage(ctx, logger, "build_facts", func() ([]models.FactOrder, error) {
		return BuildFacts(orders, customers, items)
	})
	if err != nil {
		return err
	}
	if len(facts) != len(orders) {
		return errors.Computation("fact table grain does not match orders").
			WithDetails("orders=%d facts=%d", len(orders), len(facts))
	}

	views := ComputeViews(facts, report.ReferenceDate, r.windowDays)

	outputs := []store.Table{
		{Spec: FactOrdersSpec, Rows: FactRows(facts)},
		{Spec: MonthlyKPIsSpec, Rows: MonthlyKPIRows(views.MonthlyKPIs)},
		{Spec: TopStateSpec, Rows: TopStateRows(views.TopStates)},
		{Spec: CityRevenueSpec, Rows: CityRevenueRows(views.CityRevenue)},
		{Spec: RecentOrdersSpec, Rows: FactRows(views.RecentOrders)},
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.store.WriteAll(ctx, outputs); err != nil {
		return errors.InternalWrap(err, "write output tables")
	}
	for _, out := range outputs {
		report.RowCounts[out.Spec.Name] = len(out.Rows)
		logger.Debug("table written", "table", out.Spec.Name, "rows", len(out.Rows))
	}

	report.Facts = facts
	report.Views = views
	return nil
}

func readInput[T any](ctx context.Context, r *Runner, table string, decode func([]store.Row) ([]T, error)) ([]T, error) {
	rows, err := r.store.Read(ctx, table)
	if err != nil {
		return nil, errors.InternalWrap(err, "read input table").WithDetails("table=%s", table)
	}
	records, err := decode(rows)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("input table read", "table", table, "rows", len(records))
	return records, nil
}

// stage runs fn inside a span named after the stage and logs its output size.
func stage[T any](ctx context.Context, logger *slog.Logger, name string, fn func() ([]T, error)) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, span := observability.StartSpan(ctx, "pipeline."+name)
	defer span.End(logger)

	out, err := fn()
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	span.SetTag("rows", strconv.Itoa(len(out)))
	logger.Info("stage complete", "stage", name, "rows", len(out))
	return out, nil
}

func ptr[T any](v T) *T {
	return &v
}
