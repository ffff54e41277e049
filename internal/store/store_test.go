package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

var testSpec = TableSpec{
	Name: "fact_orders",
	Columns: []Column{
		{Name: "order_id", Type: ColText},
		{Name: "purchase_date", Type: ColDate},
		{Name: "gross_order_value", Type: ColNumeric},
		{Name: "item_count", Type: ColInteger},
	},
	PrimaryKey: []string{"order_id"},
}

func TestMemory_ReadMissingTable(t *testing.T) {
	m := NewMemory()
	_, err := m.Read(context.Background(), TableOrders)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestMemory_WriteReplacesAndIsolates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rows := []Row{{"order_id": "a"}, {"order_id": "b"}}
	require.NoError(t, m.Write(ctx, testSpec, rows))

	// Mutating the caller's slice must not leak into the store.
	rows[0]["order_id"] = "mutated"

	got, err := m.Query(ctx, testSpec.Name)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0]["order_id"])

	require.NoError(t, m.Write(ctx, testSpec, []Row{{"order_id": "c"}}))
	got, err = m.Query(ctx, testSpec.Name)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	spec, ok := m.Spec(testSpec.Name)
	require.True(t, ok)
	assert.Equal(t, []string{"order_id"}, spec.PrimaryKey)
}

var viewSpec = TableSpec{
	Name:    "mv_monthly_kpis",
	Columns: []Column{{Name: "revenue", Type: ColNumeric}},
}

func TestMemory_WriteAllIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.WriteAll(ctx, []Table{
		{Spec: testSpec, Rows: []Row{{"order_id": "old"}}},
		{Spec: viewSpec, Rows: []Row{{"revenue": "1"}}},
	}))

	err := m.WriteAll(ctx, []Table{
		{Spec: testSpec, Rows: []Row{{"order_id": "new"}}},
		{Spec: TableSpec{}, Rows: []Row{{"revenue": "2"}}},
	})
	require.Error(t, err)

	got, err := m.Query(ctx, testSpec.Name)
	require.NoError(t, err)
	assert.Equal(t, "old", got[0]["order_id"])
}

func TestCSV_WriteAllStagingFailureKeepsOutputs(t *testing.T) {
	out := t.TempDir()
	s := NewCSV(t.TempDir(), out, nil)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, testSpec, []Row{{"order_id": "old"}}))

	err := s.WriteAll(ctx, []Table{
		{Spec: testSpec, Rows: []Row{{"order_id": "new"}}},
		{Spec: TableSpec{Name: "nested/view"}, Rows: nil},
	})
	require.Error(t, err)

	got, err := s.Query(ctx, testSpec.Name)
	require.NoError(t, err)
	assert.Equal(t, "old", got[0]["order_id"])

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staged files must be cleaned up")
}

func TestCSV_WriteAllRenameFailureRestoresOutputs(t *testing.T) {
	out := t.TempDir()
	s := NewCSV(t.TempDir(), out, nil)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, testSpec, []Row{{"order_id": "old"}}))
	// A directory in the way of the second table makes its swap fail after
	// the first table has been replaced.
	require.NoError(t, os.Mkdir(filepath.Join(out, viewSpec.Name+".csv"), 0o755))

	err := s.WriteAll(ctx, []Table{
		{Spec: testSpec, Rows: []Row{{"order_id": "new"}}},
		{Spec: viewSpec, Rows: []Row{{"revenue": "2"}}},
	})
	require.Error(t, err)

	got, err := s.Query(ctx, testSpec.Name)
	require.NoError(t, err)
	assert.Equal(t, "old", got[0]["order_id"])

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "backups and staged files must be cleaned up")
}

func TestCSV_ReadInputWithNulls(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, TableOrders+".csv",
		"order_id,customer_id,order_delivered_customer_date\n"+
			"o1,c1,2017-10-10 21:25:13\n"+
			"o2,c2,\n")

	s := NewCSV(in, t.TempDir(), nil)
	rows, err := s.Read(context.Background(), TableOrders)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2017-10-10 21:25:13", rows[0]["order_delivered_customer_date"])
	assert.Nil(t, rows[1]["order_delivered_customer_date"])
	assert.Contains(t, rows[1], "order_delivered_customer_date")
}

func TestCSV_ReadKeepsOrder(t *testing.T) {
	in := t.TempDir()

	var b strings.Builder
	b.WriteString("order_id\n")
	for i := 0; i < 250; i++ {
		fmt.Fprintf(&b, "o%03d\n", i)
	}
	writeFile(t, in, TableOrders+".csv", b.String())

	rows, err := NewCSV(in, t.TempDir(), nil).Read(context.Background(), TableOrders)
	require.NoError(t, err)
	require.Len(t, rows, 250)
	for i, row := range rows {
		assert.Equal(t, fmt.Sprintf("o%03d", i), row["order_id"])
	}
}

func TestCSV_ReadErrors(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "empty.csv", "")
	writeFile(t, in, "ragged.csv", "a,b\n1\n")

	s := NewCSV(in, t.TempDir(), nil)
	ctx := context.Background()

	_, err := s.Read(ctx, "missing")
	assert.ErrorIs(t, err, ErrTableNotFound)

	_, err = s.Read(ctx, "empty")
	assert.Error(t, err)

	_, err = s.Read(ctx, "ragged")
	assert.Error(t, err)
}

func TestCSV_WriteThenQuery(t *testing.T) {
	out := t.TempDir()
	s := NewCSV(t.TempDir(), out, nil)
	ctx := context.Background()

	rows := []Row{
		{
			"order_id":          "o1",
			"purchase_date":     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			"gross_order_value": decimal.RequireFromString("12.50"),
			"item_count":        int64(2),
		},
		{"order_id": "o2", "purchase_date": nil, "gross_order_value": nil, "item_count": nil},
	}
	require.NoError(t, s.Write(ctx, testSpec, rows))

	got, err := s.Query(ctx, testSpec.Name)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-15", got[0]["purchase_date"])
	assert.Equal(t, "12.5", got[0]["gross_order_value"])
	assert.Equal(t, "2", got[0]["item_count"])
	assert.Nil(t, got[1]["gross_order_value"])

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{int64(7), "7"},
		{0.25, "0.25"},
		{decimal.RequireFromString("10.00"), "10"},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "2024-03-01"},
		{time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC), "2024-03-01 08:30:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}

func TestCreateTableSQL(t *testing.T) {
	spec := testSpec
	spec.Indexes = [][]string{{"purchase_date"}}
	got := createTableSQL(`"public"."fact_orders"`, spec)

	assert.Equal(t,
		`CREATE TABLE "public"."fact_orders" ("order_id" text, "purchase_date" date, "gross_order_value" numeric, "item_count" integer, PRIMARY KEY ("order_id"))`,
		got)
}

func TestToPG_Numeric(t *testing.T) {
	for _, in := range []string{"3.75", "0.125", "1234567890123.4567"} {
		v, err := toPG(decimal.RequireFromString(in), ColNumeric)
		require.NoError(t, err)

		back, err := fromPG(v)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString(in).Equal(back.(decimal.Decimal)), "scale of %s is kept", in)
	}
	assert.Equal(t, "numeric", pgType(ColNumeric))

	v, err := toPG(nil, ColNumeric)
	require.NoError(t, err)
	assert.Nil(t, v)
}
