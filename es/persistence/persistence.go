// Package persistence defines how streams are laid out in physical tables:
// table naming, schema creation, event serialization and position handling.
package persistence

import (
	"context"
	"crypto/sha1" //nolint:gosec // used for naming, not security
	"encoding/hex"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/getpup/pupstore/es"
)

// Column names of a physical event table.
const (
	ColumnNo               = "no"
	ColumnEventID          = "event_id"
	ColumnEventType        = "event_type"
	ColumnContent          = "content"
	ColumnHeaders          = "headers"
	ColumnAggregateID      = "aggregate_id"
	ColumnAggregateType    = "aggregate_type"
	ColumnAggregateVersion = "aggregate_version"
	ColumnCreatedAt        = "created_at"
)

// Columns returns the columns written by an insert, in Row.Values order.
// The position column is included only when the strategy sets it explicitly.
func Columns(withPosition bool) []string {
	cols := []string{
		ColumnEventID, ColumnEventType, ColumnContent, ColumnHeaders,
		ColumnAggregateID, ColumnAggregateType, ColumnAggregateVersion, ColumnCreatedAt,
	}
	if withPosition {
		return append([]string{ColumnNo}, cols...)
	}
	return cols
}

// SelectColumns returns the columns read back by loaders, in scan order.
func SelectColumns() []string {
	return Columns(true)
}

// Row is the physical representation of one event.
type Row struct {
	No               int64
	EventID          string
	EventType        string
	Content          string
	Headers          string
	AggregateID      string
	AggregateType    string
	AggregateVersion int64
	CreatedAt        interface{}
}

// Values returns the insert values matching Columns(withPosition).
func (r Row) Values(withPosition bool) []interface{} {
	values := []interface{}{
		r.EventID, r.EventType, r.Content, r.Headers,
		r.AggregateID, r.AggregateType, r.AggregateVersion, r.CreatedAt,
	}
	if withPosition {
		return append([]interface{}{r.No}, values...)
	}
	return values
}

// PostCreate runs after the physical table is created, e.g. to add
// constraints. If it fails the table and the catalog entry are removed.
type PostCreate func(ctx context.Context, conn es.DBTX) error

// Strategy decides the physical layout of streams.
type Strategy interface {
	// TableName returns the physical table of a stream.
	TableName(stream es.StreamName) string

	// Serialize converts an event into its physical row.
	Serialize(event es.Event) (Row, error)

	// CreateSchema creates the physical table and returns an optional
	// post-creation step.
	CreateSchema(ctx context.Context, conn es.DBTX, table string) (PostCreate, error)

	// IsAutoIncremented reports whether the engine assigns positions.
	// When false the position equals the aggregate version and the table
	// holds a single aggregate.
	IsAutoIncremented() bool

	// IndexName returns the index used to read one aggregate.
	IndexName(table string) string
}

// Dialect is the engine specific SQL a strategy, the catalog and the
// engine need. Implementations live in the adapter packages.
type Dialect interface {
	// Name identifies the engine ("postgres", "mysql", "sqlite").
	Name() string

	// Placeholder is the bind parameter format of the engine.
	Placeholder() sq.PlaceholderFormat

	// SingleStreamSchema returns the DDL of a table shared by many aggregates.
	SingleStreamSchema(table string) []string

	// PerAggregateSchema returns the DDL of a table holding one aggregate.
	PerAggregateSchema(table string) []string

	// PerAggregateConstraints returns statements run after the per
	// aggregate table exists. May be empty.
	PerAggregateConstraints(table string) []string

	// CatalogSchema returns the DDL of the stream catalog table.
	CatalogSchema(table string) []string

	// DropTable returns the statement dropping a table.
	DropTable(table string) string

	// TransactionalDDL reports whether DDL is rolled back with the
	// surrounding transaction.
	TransactionalDDL() bool

	// SupportsRowLock reports whether SELECT ... FOR UPDATE is available.
	SupportsRowLock() bool

	// From returns the FROM expression for reading table, with an index
	// hint when the engine supports one.
	From(table, index string) string

	// TimeValue converts a timestamp into the bind value stored in created_at.
	TimeValue(t time.Time) interface{}
}

// TableName returns "_" followed by the SHA-1 of the stream name: a
// deterministic identifier valid on every supported engine.
func TableName(stream es.StreamName) string {
	sum := sha1.Sum([]byte(stream)) //nolint:gosec // used for naming, not security
	return "_" + hex.EncodeToString(sum[:])
}

// AggregateIndexName returns the name of the (aggregate_type, aggregate_id, no)
// index of a single stream table.
func AggregateIndexName(table string) string {
	return table + "_aggregate_idx"
}

func execAll(ctx context.Context, conn es.DBTX, statements []string) error {
	for _, stmt := range statements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
