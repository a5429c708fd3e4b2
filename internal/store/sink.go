package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/RAP/internal/core"
)

// Sink persists the tables of a run.
type Sink interface {
	Name() string
	Write(ctx context.Context, tables []Table) error
	Close() error
}

// checkTables refuses any table without rows.
func checkTables(tables []Table) error {
	for _, t := range tables {
		if len(t.Rows) == 0 {
			return fmt.Errorf("%w: %s", core.ErrEmptyTable, t.Name)
		}
	}
	return nil
}

// quoteIdent quotes a SQL identifier with double quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// createTableSQL builds the CREATE TABLE statement; name is already quoted.
func createTableSQL(name string, cols []Column, typeName func(ColumnType) string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(name)
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(c.Name))
		b.WriteByte(' ')
		b.WriteString(typeName(c.Type))
	}
	b.WriteString(")")
	return b.String()
}
