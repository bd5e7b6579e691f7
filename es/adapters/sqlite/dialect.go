package sqlite

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/getpup/pupstore/es/persistence"
)

// Dialect is the SQLite persistence.Dialect.
// Timestamps are stored as RFC 3339 text in UTC.
type Dialect struct{}

// Name implements persistence.Dialect.
func (Dialect) Name() string { return "sqlite" }

// Placeholder implements persistence.Dialect.
func (Dialect) Placeholder() sq.PlaceholderFormat { return sq.Question }

// SingleStreamSchema implements persistence.Dialect.
func (Dialect) SingleStreamSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE %s (
    no INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id TEXT NOT NULL UNIQUE,
    event_type TEXT NOT NULL,
    content TEXT NOT NULL,
    headers TEXT NOT NULL,
    aggregate_id TEXT NOT NULL,
    aggregate_type TEXT NOT NULL,
    aggregate_version INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE (aggregate_type, aggregate_id, aggregate_version)
)`, table),
		fmt.Sprintf(`CREATE INDEX %s ON %s (aggregate_type, aggregate_id, no)`,
			persistence.AggregateIndexName(table), table),
	}
}

// PerAggregateSchema implements persistence.Dialect.
func (Dialect) PerAggregateSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE %s (
    no INTEGER PRIMARY KEY,
    event_id TEXT NOT NULL UNIQUE,
    event_type TEXT NOT NULL,
    content TEXT NOT NULL,
    headers TEXT NOT NULL,
    aggregate_id TEXT NOT NULL,
    aggregate_type TEXT NOT NULL,
    aggregate_version INTEGER NOT NULL UNIQUE,
    created_at TEXT NOT NULL
)`, table),
	}
}

// PerAggregateConstraints implements persistence.Dialect.
// SQLite cannot add constraints to an existing table; they are inline.
func (Dialect) PerAggregateConstraints(string) []string { return nil }

// CatalogSchema implements persistence.Dialect.
func (Dialect) CatalogSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    real_stream_name TEXT NOT NULL UNIQUE,
    stream_name TEXT NOT NULL,
    category TEXT NULL
)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_category_idx ON %s (category)`, table, table),
	}
}

// DropTable implements persistence.Dialect.
func (Dialect) DropTable(table string) string {
	return "DROP TABLE " + table
}

// TransactionalDDL implements persistence.Dialect.
func (Dialect) TransactionalDDL() bool { return true }

// SupportsRowLock implements persistence.Dialect.
// SQLite locks the whole database on write; there is no FOR UPDATE.
func (Dialect) SupportsRowLock() bool { return false }

// From implements persistence.Dialect.
func (Dialect) From(table, index string) string {
	if index == "" {
		return table
	}
	return table + " INDEXED BY " + index
}

// TimeValue implements persistence.Dialect.
func (Dialect) TimeValue(t time.Time) interface{} {
	return t.UTC().Format(time.RFC3339Nano)
}

var _ persistence.Dialect = Dialect{}
