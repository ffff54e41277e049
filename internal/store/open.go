package store

import (
	"context"
	"fmt"
	"log/slog"

	"order-mart/internal/config"
)

// Open builds the store named by cfg.Driver. The returned func releases any
// connections and is safe to call when err is nil.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemory(), func() {}, nil
	case config.DriverCSV:
		return NewCSV(cfg.InputDir, cfg.OutputDir, logger), func() {}, nil
	case config.DriverPostgres:
		pg, err := NewPostgres(ctx, cfg.PostgresDSN, cfg.PostgresSchema, logger)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
