package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteSink writes tables to a SQLite database file.
type SQLiteSink struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	clean := filepath.Clean(path)
	db, err := sql.Open("sqlite", clean+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &SQLiteSink{db: db, path: clean, logger: logger}, nil
}

func (s *SQLiteSink) Name() string { return "sqlite:" + s.path }

// DB exposes the handle for read-back.
func (s *SQLiteSink) DB() *sql.DB { return s.db }

func sqliteType(t ColumnType) string {
	switch t {
	case Integer:
		return "INTEGER"
	case Real:
		return "REAL"
	default:
		return "TEXT"
	}
}

// Write drops and recreates every table in a single transaction.
func (s *SQLiteSink) Write(ctx context.Context, tables []Table) error {
	if err := checkTables(tables); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tables {
		if err := s.writeTable(ctx, tx, t); err != nil {
			return fmt.Errorf("writing %s: %w", t.Name, err)
		}
		s.logger.Info("table written", "sink", "sqlite", "table", t.Name, "rows", len(t.Rows))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteSink) writeTable(ctx context.Context, tx *sql.Tx, t Table) error {
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(t.Name)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(quoteIdent(t.Name), t.Columns, sqliteType)); err != nil {
		return err
	}

	cols := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = quoteIdent(c.Name)
		marks[i] = "?"
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(t.Name), strings.Join(cols, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, row := range t.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *SQLiteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
