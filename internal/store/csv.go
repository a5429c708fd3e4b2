package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// CSVSink writes one <table>.csv file per table into a directory.
type CSVSink struct {
	dir    string
	logger *slog.Logger
}

// NewCSVSink creates dir if needed.
func NewCSVSink(dir string, logger *slog.Logger) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating csv output directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVSink{dir: dir, logger: logger}, nil
}

func (s *CSVSink) Name() string { return "csv:" + s.dir }

func (s *CSVSink) Write(ctx context.Context, tables []Table) error {
	if err := checkTables(tables); err != nil {
		return err
	}
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(s.dir, t.Name+".csv")
		if err := writeCSVFile(path, t); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		s.logger.Info("table written", "sink", "csv", "table", t.Name, "rows", len(t.Rows))
	}
	return nil
}

func writeCSVFile(path string, t Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes a table with a header row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			rec[i] = formatValue(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func (s *CSVSink) Close() error { return nil }
