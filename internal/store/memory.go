package store

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// Memory keeps tables in process. It is used by tests and by the demo server.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]Row
	specs  map[string]TableSpec
}

func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string][]Row),
		specs:  make(map[string]TableSpec),
	}
}

// Seed loads an input table, replacing anything stored under the same name.
func (m *Memory) Seed(table string, rows []Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = cloneRows(rows)
}

func (m *Memory) Read(ctx context.Context, table string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", table, ErrTableNotFound)
	}
	return cloneRows(rows), nil
}

func (m *Memory) Write(ctx context.Context, spec TableSpec, rows []Row) error {
	return m.WriteAll(ctx, []Table{{Spec: spec, Rows: rows}})
}

// WriteAll swaps every table of the batch in under a single lock.
func (m *Memory) WriteAll(ctx context.Context, tables []Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	replacements := make([][]Row, len(tables))
	for i, t := range tables {
		if t.Spec.Name == "" {
			return fmt.Errorf("write batch entry %d: table name is required", i)
		}
		replacements[i] = cloneRows(t.Rows)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range tables {
		m.tables[t.Spec.Name] = replacements[i]
		m.specs[t.Spec.Name] = t.Spec
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, view string) ([]Row, error) {
	return m.Read(ctx, view)
}

// Spec returns the spec a table was last written with.
func (m *Memory) Spec(table string) (TableSpec, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	spec, ok := m.specs[table]
	return spec, ok
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = maps.Clone(r)
	}
	return out
}
