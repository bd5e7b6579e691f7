package postgres

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/getpup/pupstore/es/persistence"
)

// Dialect is the PostgreSQL persistence.Dialect.
type Dialect struct{}

// Name implements persistence.Dialect.
func (Dialect) Name() string { return "postgres" }

// Placeholder implements persistence.Dialect.
func (Dialect) Placeholder() sq.PlaceholderFormat { return sq.Dollar }

// SingleStreamSchema implements persistence.Dialect.
func (Dialect) SingleStreamSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE %s (
    no BIGSERIAL PRIMARY KEY,
    event_id UUID NOT NULL UNIQUE,
    event_type VARCHAR(150) NOT NULL,
    content JSONB NOT NULL,
    headers JSONB NOT NULL,
    aggregate_id VARCHAR(150) NOT NULL,
    aggregate_type VARCHAR(150) NOT NULL,
    aggregate_version BIGINT NOT NULL,
    created_at TIMESTAMPTZ(6) NOT NULL,
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
    no BIGINT PRIMARY KEY,
    event_id UUID NOT NULL UNIQUE,
    event_type VARCHAR(150) NOT NULL,
    content JSONB NOT NULL,
    headers JSONB NOT NULL,
    aggregate_id VARCHAR(150) NOT NULL,
    aggregate_type VARCHAR(150) NOT NULL,
    aggregate_version BIGINT NOT NULL,
    created_at TIMESTAMPTZ(6) NOT NULL
)`, table),
	}
}

// PerAggregateConstraints implements persistence.Dialect.
func (Dialect) PerAggregateConstraints(table string) []string {
	return []string{
		fmt.Sprintf(`ALTER TABLE %s ADD CONSTRAINT %s_aggregate_version_key UNIQUE (aggregate_version)`, table, table),
	}
}

// CatalogSchema implements persistence.Dialect.
func (Dialect) CatalogSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    real_stream_name VARCHAR(150) NOT NULL UNIQUE,
    stream_name CHAR(41) NOT NULL,
    category VARCHAR(150)
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
func (Dialect) SupportsRowLock() bool { return true }

// From implements persistence.Dialect. PostgreSQL has no index hints.
func (Dialect) From(table, _ string) string { return table }

// TimeValue implements persistence.Dialect.
func (Dialect) TimeValue(t time.Time) interface{} { return t.UTC() }

var _ persistence.Dialect = Dialect{}
