package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// undefined_table
const pgUndefinedTable = "42P01"

// Postgres keeps tables in a PostgreSQL schema. A write drops and recreates
// its tables inside one transaction.
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
	logger *slog.Logger
}

func NewPostgres(ctx context.Context, dsn, schema string, logger *slog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if schema == "" {
		schema = "public"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, schema: schema, logger: logger}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) ident(table string) string {
	return pgx.Identifier{p.schema, table}.Sanitize()
}

func (p *Postgres) Read(ctx context.Context, table string) ([]Row, error) {
	rows, err := p.pool.Query(ctx, "SELECT * FROM "+p.ident(table))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
			return nil, fmt.Errorf("read %s: %w", table, ErrTableNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()

	var out []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		row := make(Row, len(fields))
		for i, fd := range fields {
			v, err := fromPG(values[i])
			if err != nil {
				return nil, fmt.Errorf("convert %s.%s: %w", table, fd.Name, err)
			}
			row[fd.Name] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}

	return out, nil
}

func (p *Postgres) Query(ctx context.Context, view string) ([]Row, error) {
	return p.Read(ctx, view)
}

func (p *Postgres) Write(ctx context.Context, spec TableSpec, rows []Row) error {
	return p.WriteAll(ctx, []Table{{Spec: spec, Rows: rows}})
}

// WriteAll replaces every table of the batch inside one transaction.
func (p *Postgres) WriteAll(ctx context.Context, tables []Table) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	defer tx.Rollback(ctx)

	copied := make([]int64, len(tables))
	for i, t := range tables {
		if copied[i], err = p.replace(ctx, tx, t.Spec, t.Rows); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit write: %w", err)
	}

	for i, t := range tables {
		p.logger.Debug("postgres table replaced", "table", t.Spec.Name, "rows", copied[i])
	}
	return nil
}

func (p *Postgres) replace(ctx context.Context, tx pgx.Tx, spec TableSpec, rows []Row) (int64, error) {
	target := p.ident(spec.Name)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+target); err != nil {
		return 0, fmt.Errorf("drop %s: %w", spec.Name, err)
	}
	if _, err := tx.Exec(ctx, createTableSQL(target, spec)); err != nil {
		return 0, fmt.Errorf("create %s: %w", spec.Name, err)
	}

	names := spec.ColumnNames()
	copied, err := tx.CopyFrom(ctx, pgx.Identifier{p.schema, spec.Name}, names,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			values := make([]any, len(spec.Columns))
			for j, col := range spec.Columns {
				v, err := toPG(rows[i][col.Name], col.Type)
				if err != nil {
					return nil, fmt.Errorf("row %d column %s: %w", i, col.Name, err)
				}
				values[j] = v
			}
			return values, nil
		}))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", spec.Name, err)
	}

	for i, cols := range spec.Indexes {
		name := pgx.Identifier{fmt.Sprintf("%s_idx_%d", spec.Name, i+1)}.Sanitize()
		stmt := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", name, target, quoteColumns(cols))
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return 0, fmt.Errorf("index %s: %w", spec.Name, err)
		}
	}
	return copied, nil
}

func createTableSQL(target string, spec TableSpec) string {
	defs := make([]string, 0, len(spec.Columns)+1)
	for _, col := range spec.Columns {
		defs = append(defs, pgx.Identifier{col.Name}.Sanitize()+" "+pgType(col.Type))
	}
	if len(spec.PrimaryKey) > 0 {
		defs = append(defs, "PRIMARY KEY ("+quoteColumns(spec.PrimaryKey)+")")
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", target, strings.Join(defs, ", "))
}

func quoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

func pgType(t ColumnType) string {
	switch t {
	case ColInteger:
		return "integer"
	case ColFloat:
		return "double precision"
	case ColNumeric:
		// Unconstrained so item-level inputs keep their full scale.
		return "numeric"
	case ColDate:
		return "date"
	case ColTimestamp:
		return "timestamp"
	default:
		return "text"
	}
}

// toPG converts a row value into something pgx can COPY into a column of
// type t.
func toPG(v any, t ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}
	if t != ColNumeric {
		return v, nil
	}

	var text string
	switch val := v.(type) {
	case decimal.Decimal:
		text = val.String()
	case string:
		text = val
	default:
		text = FormatValue(val)
	}

	var n pgtype.Numeric
	if err := n.Scan(text); err != nil {
		return nil, err
	}
	return n, nil
}

// fromPG maps pgx's decoded values onto the types the pipeline decoders
// understand.
func fromPG(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case pgtype.Numeric:
		if !val.Valid {
			return nil, nil
		}
		raw, err := val.Value()
		if err != nil {
			return nil, err
		}
		text, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected numeric value %T", raw)
		}
		return decimal.NewFromString(text)
	case int32:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case driver.Valuer:
		return val.Value()
	default:
		return val, nil
	}
}
