package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresSink writes tables with COPY, dropping and recreating each one.
type PostgresSink struct {
	db     TxBeginner
	schema string
	logger *slog.Logger
}

// NewPostgresSink writes into schema ("" for the search path default).
func NewPostgresSink(db TxBeginner, schema string, logger *slog.Logger) *PostgresSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSink{db: db, schema: schema, logger: logger}
}

func (s *PostgresSink) Name() string { return "postgres" }

func postgresType(t ColumnType) string {
	switch t {
	case Integer:
		return "BIGINT"
	case Real:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

func (s *PostgresSink) ident(table string) pgx.Identifier {
	if s.schema == "" {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{s.schema, table}
}

func (s *PostgresSink) Write(ctx context.Context, tables []Table) error {
	if err := checkTables(tables); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range tables {
		id := s.ident(t.Name)
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+id.Sanitize()); err != nil {
			return fmt.Errorf("dropping %s: %w", t.Name, err)
		}
		if _, err := tx.Exec(ctx, createTableSQL(id.Sanitize(), t.Columns, postgresType)); err != nil {
			return fmt.Errorf("creating %s: %w", t.Name, err)
		}
		n, err := tx.CopyFrom(ctx, id, t.ColumnNames(), pgx.CopyFromRows(t.Rows))
		if err != nil {
			return fmt.Errorf("copying %s: %w", t.Name, err)
		}
		s.logger.Info("table written", "sink", "postgres", "table", t.Name, "rows", n)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close is a no-op; the pool belongs to the caller.
func (s *PostgresSink) Close() error { return nil }
