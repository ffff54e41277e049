package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

// CSV reads input tables from InputDir/<table>.csv and keeps outputs in
// OutputDir/<table>.csv. Empty fields are NULL; an empty string written out
// reads back as NULL.
type CSV struct {
	InputDir  string
	OutputDir string
	logger    *slog.Logger
}

func NewCSV(inputDir, outputDir string, logger *slog.Logger) *CSV {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSV{
		InputDir:  inputDir,
		OutputDir: outputDir,
		logger:    logger,
	}
}

func (c *CSV) Read(ctx context.Context, table string) ([]Row, error) {
	return c.readFile(ctx, filepath.Join(c.InputDir, table+".csv"))
}

func (c *CSV) Query(ctx context.Context, view string) ([]Row, error) {
	return c.readFile(ctx, filepath.Join(c.OutputDir, view+".csv"))
}

func (c *CSV) readFile(ctx context.Context, path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", path, ErrTableNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file", path)
		}
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	var rows []Row
	batch := make([][]string, 0, batchSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		batch = append(batch, record)
		if len(batch) >= batchSize {
			parsed, err := parseBatch(ctx, header, batch)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			rows = append(rows, parsed...)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		parsed, err := parseBatch(ctx, header, batch)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		rows = append(rows, parsed...)
	}

	c.logger.Debug("csv table loaded", "path", path, "rows", len(rows))
	return rows, nil
}

// parseBatch turns records into rows in parallel. Each worker writes only its
// own slot, so input order is kept.
func parseBatch(ctx context.Context, header []string, batch [][]string) ([]Row, error) {
	out := make([]Row, len(batch))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i, record := range batch {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if len(record) != len(header) {
				return fmt.Errorf("record has %d fields, header has %d", len(record), len(header))
			}

			row := make(Row, len(header))
			for j, name := range header {
				if record[j] == "" {
					row[name] = nil
					continue
				}
				row[name] = record[j]
			}
			out[i] = row
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CSV) Write(ctx context.Context, spec TableSpec, rows []Row) error {
	return c.WriteAll(ctx, []Table{{Spec: spec, Rows: rows}})
}

// WriteAll renders every table into a temporary file in OutputDir and only
// renames them into place once all of them are complete, so a failed render
// leaves the previous outputs untouched.
func (c *CSV) WriteAll(ctx context.Context, tables []Table) error {
	if err := os.MkdirAll(c.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	staged := make([]string, 0, len(tables))
	defer func() {
		for _, name := range staged {
			os.Remove(name)
		}
	}()

	for _, t := range tables {
		name, err := c.stage(ctx, t)
		if err != nil {
			return err
		}
		staged = append(staged, name)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return c.swap(tables, staged)
}

// swap renames staged files over their targets. Each existing target is
// first hard-linked to a backup so that a failed rename can restore the
// targets already replaced.
func (c *CSV) swap(tables []Table, staged []string) error {
	type replaced struct {
		target string
		backup string
	}
	var done []replaced
	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			if done[i].backup == "" {
				os.Remove(done[i].target)
				continue
			}
			if err := os.Rename(done[i].backup, done[i].target); err != nil {
				c.logger.Error("failed to restore csv table", "path", done[i].target, "error", err)
			}
		}
	}

	for i, t := range tables {
		r := replaced{target: filepath.Join(c.OutputDir, t.Spec.Name+".csv")}

		backup := filepath.Join(c.OutputDir, "."+t.Spec.Name+".prev.csv")
		os.Remove(backup)
		switch err := os.Link(r.target, backup); {
		case err == nil:
			r.backup = backup
		case !errors.Is(err, fs.ErrNotExist):
			rollback()
			return fmt.Errorf("back up %s: %w", r.target, err)
		}

		if err := os.Rename(staged[i], r.target); err != nil {
			if r.backup != "" {
				os.Remove(r.backup)
			}
			rollback()
			return fmt.Errorf("replace %s: %w", r.target, err)
		}
		done = append(done, r)
	}

	for i, r := range done {
		if r.backup != "" {
			os.Remove(r.backup)
		}
		c.logger.Debug("csv table written", "path", r.target, "rows", len(tables[i].Rows))
	}
	return nil
}

func (c *CSV) stage(ctx context.Context, t Table) (string, error) {
	tmp, err := os.CreateTemp(c.OutputDir, "."+t.Spec.Name+"-*.csv")
	if err != nil {
		return "", fmt.Errorf("create temp file for %s: %w", t.Spec.Name, err)
	}

	if err := writeCSV(ctx, tmp, t.Spec, t.Rows); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", t.Spec.Name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", t.Spec.Name, err)
	}
	return tmp.Name(), nil
}

func writeCSV(ctx context.Context, w io.Writer, spec TableSpec, rows []Row) error {
	cw := csv.NewWriter(w)

	names := spec.ColumnNames()
	if err := cw.Write(names); err != nil {
		return err
	}

	record := make([]string, len(names))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, name := range names {
			record[i] = FormatValue(row[name])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
