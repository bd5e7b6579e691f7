package mysql

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/getpup/pupstore/es/persistence"
)

// Dialect is the MySQL persistence.Dialect (InnoDB, MySQL 8 or later).
type Dialect struct{}

// Name implements persistence.Dialect.
func (Dialect) Name() string { return "mysql" }

// Placeholder implements persistence.Dialect.
func (Dialect) Placeholder() sq.PlaceholderFormat { return sq.Question }

// SingleStreamSchema implements persistence.Dialect.
func (Dialect) SingleStreamSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE %[1]s (
    no BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
    event_id CHAR(36) NOT NULL,
    event_type VARCHAR(150) NOT NULL,
    content JSON NOT NULL,
    headers JSON NOT NULL,
    aggregate_id VARCHAR(150) NOT NULL,
    aggregate_type VARCHAR(150) NOT NULL,
    aggregate_version BIGINT NOT NULL,
    created_at DATETIME(6) NOT NULL,
    UNIQUE KEY %[1]s_event_id (event_id),
    UNIQUE KEY %[1]s_aggregate_version (aggregate_type, aggregate_id, aggregate_version),
    KEY %[2]s (aggregate_type, aggregate_id, no)
) ENGINE=InnoDB`, table, persistence.AggregateIndexName(table)),
	}
}

// PerAggregateSchema implements persistence.Dialect.
func (Dialect) PerAggregateSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE %[1]s (
    no BIGINT NOT NULL PRIMARY KEY,
    event_id CHAR(36) NOT NULL,
    event_type VARCHAR(150) NOT NULL,
    content JSON NOT NULL,
    headers JSON NOT NULL,
    aggregate_id VARCHAR(150) NOT NULL,
    aggregate_type VARCHAR(150) NOT NULL,
    aggregate_version BIGINT NOT NULL,
    created_at DATETIME(6) NOT NULL,
    UNIQUE KEY %[1]s_event_id (event_id),
    UNIQUE KEY %[1]s_aggregate_version (aggregate_version)
) ENGINE=InnoDB`, table),
	}
}

// PerAggregateConstraints implements persistence.Dialect.
func (Dialect) PerAggregateConstraints(string) []string { return nil }

// CatalogSchema implements persistence.Dialect.
func (Dialect) CatalogSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
    id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
    real_stream_name VARCHAR(150) NOT NULL,
    stream_name CHAR(41) NOT NULL,
    category VARCHAR(150) NULL,
    UNIQUE KEY %[1]s_real_stream_name (real_stream_name),
    KEY %[1]s_category_idx (category)
) ENGINE=InnoDB`, table),
	}
}

// DropTable implements persistence.Dialect.
func (Dialect) DropTable(table string) string {
	return "DROP TABLE " + table
}

// TransactionalDDL implements persistence.Dialect.
// DDL commits the surrounding transaction implicitly.
func (Dialect) TransactionalDDL() bool { return false }

// SupportsRowLock implements persistence.Dialect.
func (Dialect) SupportsRowLock() bool { return true }

// From implements persistence.Dialect.
func (Dialect) From(table, index string) string {
	if index == "" {
		return table
	}
	return fmt.Sprintf("%s USE INDEX (%s)", table, index)
}

// TimeValue implements persistence.Dialect.
func (Dialect) TimeValue(t time.Time) interface{} { return t.UTC() }

var _ persistence.Dialect = Dialect{}
