// Package store holds the tabular stores the pipeline reads its inputs from
// and writes its fact table and views into.
package store

import (
	"context"
	"errors"
)

// Input tables owned by the upstream ingestion system.
const (
	TableCustomers = "order_customer_dataset"
	TableOrders    = "order_dataset"
	TableItems     = "order_items_dataset"
)

// Output tables and views rebuilt on every run.
const (
	TableFactOrders     = "fact_orders"
	ViewMonthlyKPIs     = "mv_monthly_kpis"
	ViewTopStateByMonth = "mv_top_state_by_month"
	ViewCityRevenue     = "mv_city_revenue"
	ViewRecentOrders    = "v_recent_orders"
)

var ErrTableNotFound = errors.New("table not found")

// Row is a loosely typed record keyed by column name. A nil value is NULL.
type Row map[string]any

type ColumnType string

const (
	ColText      ColumnType = "text"
	ColInteger   ColumnType = "integer"
	ColFloat     ColumnType = "float"
	ColNumeric   ColumnType = "numeric"
	ColDate      ColumnType = "date"
	ColTimestamp ColumnType = "timestamp"
)

type Column struct {
	Name string
	Type ColumnType
}

// TableSpec describes an output table. PrimaryKey and Indexes are hints a
// store may use for physical layout; they never change which rows are kept.
type TableSpec struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
	Indexes    [][]string
}

func (s TableSpec) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Table is one entry of a WriteAll batch.
type Table struct {
	Spec TableSpec
	Rows []Row
}

// Store is the tabular collaborator of the pipeline. Write replaces the whole
// contents of spec.Name atomically; readers never observe a partial table.
// WriteAll does the same for a batch: either every table is replaced or none
// is.
type Store interface {
	Read(ctx context.Context, table string) ([]Row, error)
	Write(ctx context.Context, spec TableSpec, rows []Row) error
	WriteAll(ctx context.Context, tables []Table) error
	Query(ctx context.Context, view string) ([]Row, error)
}
