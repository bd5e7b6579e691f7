// Package store provides the event store contracts, the error taxonomy and the
// query filters shared by every storage engine.
package store

import (
	"context"
	"iter"

	sq "github.com/Masterminds/squirrel"

	"github.com/getpup/pupstore/es"
)

// Chronicler is the contract consumed by aggregate repositories, projections
// and command handlers.
type Chronicler interface {
	// FirstCommit creates the stream: its catalog entry, its physical table,
	// and then appends the initial events (which may be none).
	// Returns ErrStreamAlreadyExists if the stream name is taken.
	FirstCommit(ctx context.Context, stream es.Stream) error

	// Amend appends events to an existing stream in a single statement.
	// An empty batch is a no-op.
	// Returns ErrConcurrency when an aggregate version is already taken
	// or the write lock cannot be acquired, and ErrStreamNotFound when
	// the physical table does not exist.
	Amend(ctx context.Context, stream es.Stream) error

	// Delete removes the catalog entry and drops the physical table.
	// Returns ErrStreamNotFound if the stream is not in the catalog.
	Delete(ctx context.Context, name es.StreamName) error

	// RetrieveAll returns the events of one aggregate ordered by position.
	// The sequence yields ErrStreamNotFound if nothing was read.
	RetrieveAll(ctx context.Context, name es.StreamName, aggregateID string, direction es.Direction) iter.Seq2[es.Event, error]

	// RetrieveFiltered returns the events selected by filter.
	// The sequence yields ErrStreamNotFound if nothing was read.
	RetrieveFiltered(ctx context.Context, name es.StreamName, filter QueryFilter) iter.Seq2[es.Event, error]

	// FilterStreamNames returns the given names that exist, sorted.
	FilterStreamNames(ctx context.Context, names ...es.StreamName) ([]es.StreamName, error)

	// FilterCategoryNames returns the names of the streams belonging to
	// the given categories, sorted.
	FilterCategoryNames(ctx context.Context, categories ...string) ([]es.StreamName, error)

	// HasStream reports whether the stream is in the catalog.
	HasStream(ctx context.Context, name es.StreamName) (bool, error)

	// StreamCatalog returns the catalog the chronicler writes to.
	StreamCatalog() EventStreamProvider
}

// TransactionalChronicler is a Chronicler that can group operations in one
// database transaction.
type TransactionalChronicler interface {
	Chronicler

	// BeginTransaction starts a transaction.
	// Returns ErrTransactionAlreadyStarted if one is open.
	BeginTransaction(ctx context.Context) error

	// CommitTransaction commits the open transaction.
	// Returns ErrTransactionNotStarted if there is none.
	CommitTransaction() error

	// RollbackTransaction rolls back the open transaction.
	// Returns ErrTransactionNotStarted if there is none.
	RollbackTransaction() error

	// InTransaction reports whether a transaction is open.
	InTransaction() bool

	// Transactional runs fn inside a transaction, committing on success and
	// rolling back on error or panic. It returns fn's result, or true when
	// fn returned a nil result.
	Transactional(ctx context.Context, fn func(ctx context.Context, chronicler Chronicler) (any, error)) (any, error)
}

// EventStreamProvider is the stream catalog: the directory mapping a logical
// stream name to its physical table and category.
// Every listing is sorted by stream name.
type EventStreamProvider interface {
	// CreateStream inserts a catalog entry. A duplicate stream name fails
	// with the engine's unique violation.
	CreateStream(ctx context.Context, conn es.DBTX, name es.StreamName, table, category string) error

	// DeleteStream removes a catalog entry and reports whether it existed.
	DeleteStream(ctx context.Context, conn es.DBTX, name es.StreamName) (bool, error)

	// HasRealStreamName reports whether the stream is in the catalog.
	HasRealStreamName(ctx context.Context, conn es.DBTX, name es.StreamName) (bool, error)

	// StreamTable returns the physical table recorded for the stream.
	// Returns ErrStreamNotFound if the stream is not in the catalog.
	StreamTable(ctx context.Context, conn es.DBTX, name es.StreamName) (string, error)

	// FilterByStreams returns the given names that are in the catalog.
	FilterByStreams(ctx context.Context, conn es.DBTX, names []es.StreamName) ([]es.StreamName, error)

	// FilterByCategories returns the streams belonging to the categories.
	FilterByCategories(ctx context.Context, conn es.DBTX, categories []string) ([]es.StreamName, error)

	// AllWithoutInternal returns every stream that is not internal.
	AllWithoutInternal(ctx context.Context, conn es.DBTX) ([]es.StreamName, error)
}

// QueryFilter shapes the read query of RetrieveFiltered: predicates,
// ordering and limit.
type QueryFilter interface {
	Apply(query sq.SelectBuilder) sq.SelectBuilder
}

// Limiter is implemented by filters that cap the number of rows read.
// Chunked loaders honour it across pages.
type Limiter interface {
	Limit() uint64
}

// IndexHinter is implemented by filters that benefit from the aggregate
// index of single stream tables. Engines with index hints apply it.
type IndexHinter interface {
	UsesAggregateIndex() bool
}
