// Package eventstore is the relational event store engine: it persists
// streams through a persistence strategy, guards writes with a write lock,
// reads through a loader and keeps the stream catalog in step with the
// physical tables.
package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	sq "github.com/Masterminds/squirrel"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/catalog"
	"github.com/getpup/pupstore/es/loader"
	"github.com/getpup/pupstore/es/lock"
	"github.com/getpup/pupstore/es/persistence"
	"github.com/getpup/pupstore/es/store"
)

// Store is a store.Chronicler over a *sql.DB.
// Every operation runs on its own connection; use TransactionalStore to
// group operations.
type Store struct {
	db         *sql.DB
	dialect    persistence.Dialect
	translator store.ErrorTranslator
	config     Config
	builder    sq.StatementBuilderType
}

// New creates an engine for dialect. The adapter packages wrap it with their
// dialect and translator.
func New(db *sql.DB, dialect persistence.Dialect, translator store.ErrorTranslator, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: nil database", store.ErrInvalidArgument)
	}
	if dialect == nil || translator == nil {
		return nil, fmt.Errorf("%w: dialect and translator are required", store.ErrInvalidArgument)
	}

	config := NewConfig(opts...)
	if config.Logger == nil {
		config.Logger = es.NoOpLogger{}
	}
	if config.Strategy == nil {
		config.Strategy = persistence.NewSingleStream(dialect)
	}
	if config.WriteLock == nil {
		config.WriteLock = lock.NoOp{}
	}
	if config.Loader == nil {
		config.Loader = loader.NewCursor()
	}
	if aware, ok := config.Loader.(loader.SerializerAware); ok {
		aware.UseSerializer(persistence.SerializerOf(config.Strategy))
	}
	if config.CatalogTable == "" {
		config.CatalogTable = catalog.DefaultTable
	}
	if config.Catalog == nil {
		config.Catalog = catalog.NewProvider(config.CatalogTable, dialect.Placeholder())
	}

	if isRowLocker(config.WriteLock) && !dialect.SupportsRowLock() {
		return nil, fmt.Errorf("%w: %s does not support row locks", store.ErrInvalidArgument, dialect.Name())
	}

	return &Store{
		db:         db,
		dialect:    dialect,
		translator: translator,
		config:     config,
		builder:    sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder()),
	}, nil
}

// DB returns the underlying database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the engine dialect.
func (s *Store) Dialect() persistence.Dialect {
	return s.dialect
}

// Strategy returns the stream persistence strategy.
func (s *Store) Strategy() persistence.Strategy {
	return s.config.Strategy
}

// CreateCatalog creates the catalog table if it does not exist.
func (s *Store) CreateCatalog(ctx context.Context) error {
	for _, stmt := range s.dialect.CatalogSchema(s.config.CatalogTable) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create catalog %s: %w", s.config.CatalogTable, err)
		}
	}
	s.config.Logger.Info(ctx, "catalog ready", "table", s.config.CatalogTable)
	return nil
}

// FirstCommit implements store.Chronicler.
func (s *Store) FirstCommit(ctx context.Context, stream es.Stream) error {
	return s.firstCommit(ctx, s.db, stream)
}

// Amend implements store.Chronicler.
func (s *Store) Amend(ctx context.Context, stream es.Stream) error {
	return s.amend(ctx, s.db, stream, store.PhaseAmend)
}

// Delete implements store.Chronicler.
func (s *Store) Delete(ctx context.Context, name es.StreamName) error {
	return s.delete(ctx, s.db, name)
}

// RetrieveAll implements store.Chronicler.
func (s *Store) RetrieveAll(ctx context.Context, name es.StreamName, aggregateID string, direction es.Direction) iter.Seq2[es.Event, error] {
	return s.retrieveAll(ctx, s.db, name, aggregateID, direction)
}

// RetrieveFiltered implements store.Chronicler.
func (s *Store) RetrieveFiltered(ctx context.Context, name es.StreamName, filter store.QueryFilter) iter.Seq2[es.Event, error] {
	return s.retrieveFiltered(ctx, s.db, name, filter)
}

// FilterStreamNames implements store.Chronicler.
func (s *Store) FilterStreamNames(ctx context.Context, names ...es.StreamName) ([]es.StreamName, error) {
	return s.filterStreamNames(ctx, s.db, names)
}

// FilterCategoryNames implements store.Chronicler.
func (s *Store) FilterCategoryNames(ctx context.Context, categories ...string) ([]es.StreamName, error) {
	return s.filterCategoryNames(ctx, s.db, categories)
}

// HasStream implements store.Chronicler.
func (s *Store) HasStream(ctx context.Context, name es.StreamName) (bool, error) {
	return s.hasStream(ctx, s.db, name)
}

// AllStreamNames returns every stream that is not internal, sorted.
func (s *Store) AllStreamNames(ctx context.Context) ([]es.StreamName, error) {
	return s.allStreamNames(ctx, s.db)
}

// StreamCatalog implements store.Chronicler.
func (s *Store) StreamCatalog() store.EventStreamProvider {
	return s.config.Catalog
}

func (s *Store) firstCommit(ctx context.Context, conn es.DBTX, stream es.Stream) error {
	logger := s.config.Logger
	table := s.config.Strategy.TableName(stream.Name)

	logger.Debug(ctx, "first commit starting", "stream", stream.Name, "table", table, "event_count", len(stream.Events))

	err := s.config.Catalog.CreateStream(ctx, conn, stream.Name, table, stream.Name.Category())
	if err != nil {
		return s.translate(ctx, err, store.PhaseCreation, stream.Name)
	}

	if err := s.createSchema(ctx, conn, stream.Name, table); err != nil {
		return err
	}

	logger.Info(ctx, "stream created", "stream", stream.Name, "table", table)

	if err := s.amend(ctx, conn, stream, store.PhaseCreation); err != nil {
		return s.abandon(ctx, conn, stream.Name, table, err)
	}
	return nil
}

// createSchema creates the physical table and runs the post-creation step.
// On failure the table and the catalog entry are removed, unless the
// surrounding transaction rolls the DDL back anyway.
func (s *Store) createSchema(ctx context.Context, conn es.DBTX, name es.StreamName, table string) error {
	post, err := s.config.Strategy.CreateSchema(ctx, conn, table)
	if err == nil && post != nil {
		err = post(ctx, conn)
	}
	if err == nil {
		return nil
	}

	return s.abandon(ctx, conn, name, table, s.translate(ctx, err, store.PhaseCreation, name))
}

// abandon undoes a first commit that failed with err. Inside a transaction
// on an engine with transactional DDL the rollback does it instead.
func (s *Store) abandon(ctx context.Context, conn es.DBTX, name es.StreamName, table string, err error) error {
	if _, inTx := conn.(*sql.Tx); inTx && s.dialect.TransactionalDDL() {
		return err
	}

	if cerr := s.compensate(ctx, conn, name, table); cerr != nil {
		s.config.Logger.Error(ctx, "first commit compensation failed",
			"stream", name, "table", table, "error", cerr, "cause", err)
		return cerr
	}
	return err
}

func (s *Store) compensate(ctx context.Context, conn es.DBTX, name es.StreamName, table string) error {
	if _, err := conn.ExecContext(ctx, s.dialect.DropTable(table)); err != nil && !s.translator.IsMissingRelation(err) {
		return fmt.Errorf("failed to drop table %s of stream %s: %w", table, name,
			s.translator.Translate(err, store.PhaseDelete, name))
	}
	if _, err := s.config.Catalog.DeleteStream(ctx, conn, name); err != nil {
		return fmt.Errorf("failed to remove catalog entry of stream %s: %w", name,
			s.translator.Translate(err, store.PhaseDelete, name))
	}
	return nil
}

// amend appends the events of stream. phase selects how a constraint
// violation is reported.
func (s *Store) amend(ctx context.Context, conn es.DBTX, stream es.Stream, phase store.Phase) error {
	if stream.IsEmpty() {
		return nil
	}

	strategy := s.config.Strategy
	table := strategy.TableName(stream.Name)
	withPosition := !strategy.IsAutoIncremented()

	insert := s.builder.Insert(table).Columns(persistence.Columns(withPosition)...)
	for i := range stream.Events {
		row, err := strategy.Serialize(stream.Events[i])
		if err != nil {
			return fmt.Errorf("event %d of stream %s: %w", i, stream.Name, err)
		}
		insert = insert.Values(row.Values(withPosition)...)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	write := func(conn es.DBTX) error {
		return s.write(ctx, conn, stream, phase, table, query, args)
	}
	if isSessionScoped(s.config.WriteLock) {
		return es.WithSession(ctx, conn, write)
	}
	return write(conn)
}

// write runs the insert under the write lock. The lock is released on
// every path.
func (s *Store) write(ctx context.Context, conn es.DBTX, stream es.Stream, phase store.Phase, table, query string, args []interface{}) (err error) {
	logger := s.config.Logger
	writeLock := s.config.WriteLock

	acquired, err := writeLock.Acquire(ctx, conn, table)
	if err != nil {
		logger.Error(ctx, "write lock failed", "stream", stream.Name, "table", table, "error", err)
		return store.NewConcurrencyError(stream.Name, "", "failed to acquire write lock", err)
	}
	if !acquired {
		logger.Error(ctx, "write lock not acquired", "stream", stream.Name, "table", table)
		return store.NewConcurrencyError(stream.Name, "", "write lock not acquired on "+table, nil)
	}

	defer func() {
		released, rerr := writeLock.Release(context.WithoutCancel(ctx), conn, table)
		if rerr != nil {
			logger.Error(ctx, "write lock release failed", "stream", stream.Name, "table", table, "error", rerr)
			if err == nil {
				err = fmt.Errorf("failed to release write lock on %s: %w", table, rerr)
			}
			return
		}
		if !released {
			logger.Debug(ctx, "write lock was not held at release", "stream", stream.Name, "table", table)
		}
	}()

	if isRowLocker(writeLock) {
		if err := s.lockTail(ctx, conn, table); err != nil {
			return s.translate(ctx, err, phase, stream.Name)
		}
	}

	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		return s.translate(ctx, err, phase, stream.Name)
	}

	logger.Debug(ctx, "events appended", "stream", stream.Name, "table", table, "event_count", len(stream.Events))
	return nil
}

// lockTail locks the last row of table until the transaction ends.
func (s *Store) lockTail(ctx context.Context, conn es.DBTX, table string) error {
	query, args, err := s.builder.
		Select(persistence.ColumnNo).
		From(table).
		OrderBy(persistence.ColumnNo + " DESC").
		Limit(1).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return err
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return rows.Close()
}

func (s *Store) delete(ctx context.Context, conn es.DBTX, name es.StreamName) error {
	logger := s.config.Logger
	provider := s.config.Catalog

	table, err := provider.StreamTable(ctx, conn, name)
	if err != nil {
		return s.translate(ctx, err, store.PhaseDelete, name)
	}

	deleted, err := provider.DeleteStream(ctx, conn, name)
	if err != nil {
		return s.translate(ctx, err, store.PhaseDelete, name)
	}
	if !deleted {
		return store.NewStreamNotFound(name, nil)
	}

	if _, err := conn.ExecContext(ctx, s.dialect.DropTable(table)); err != nil {
		if !s.translator.IsMissingRelation(err) {
			return s.translate(ctx, err, store.PhaseDelete, name)
		}
		logger.Debug(ctx, "stream table already gone", "stream", name, "table", table)
	}

	logger.Info(ctx, "stream deleted", "stream", name, "table", table)
	return nil
}

func (s *Store) selectFrom(table, index string) sq.SelectBuilder {
	return s.builder.
		Select(persistence.SelectColumns()...).
		From(s.dialect.From(table, index))
}

func (s *Store) retrieveAll(ctx context.Context, conn es.DBTX, name es.StreamName, aggregateID string, direction es.Direction) iter.Seq2[es.Event, error] {
	strategy := s.config.Strategy
	table := strategy.TableName(name)

	query := s.selectFrom(table, "")
	if strategy.IsAutoIncremented() {
		query = query.Where(sq.Eq{persistence.ColumnAggregateID: aggregateID})
	}
	query = query.OrderBy(persistence.ColumnNo + " " + direction.SQL())

	return s.load(ctx, conn, loader.Query{Select: query}, name)
}

func (s *Store) retrieveFiltered(ctx context.Context, conn es.DBTX, name es.StreamName, filter store.QueryFilter) iter.Seq2[es.Event, error] {
	strategy := s.config.Strategy
	table := strategy.TableName(name)

	var index string
	if hinter, ok := filter.(store.IndexHinter); ok && hinter.UsesAggregateIndex() {
		index = strategy.IndexName(table)
	}

	q := loader.Query{Select: filter.Apply(s.selectFrom(table, index))}
	if limiter, ok := filter.(store.Limiter); ok {
		q.MaxRows = limiter.Limit()
	}
	return s.load(ctx, conn, q, name)
}

// load translates the errors yielded by the loader.
func (s *Store) load(ctx context.Context, conn es.DBTX, query loader.Query, name es.StreamName) iter.Seq2[es.Event, error] {
	seq := s.config.Loader.Load(ctx, conn, query, name)
	return func(yield func(es.Event, error) bool) {
		for event, err := range seq {
			if err != nil {
				yield(es.Event{}, s.translate(ctx, err, store.PhaseRead, name))
				return
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}

func (s *Store) filterStreamNames(ctx context.Context, conn es.DBTX, names []es.StreamName) ([]es.StreamName, error) {
	found, err := s.config.Catalog.FilterByStreams(ctx, conn, names)
	if err != nil {
		return nil, s.translate(ctx, err, store.PhaseRead, "")
	}
	return found, nil
}

func (s *Store) filterCategoryNames(ctx context.Context, conn es.DBTX, categories []string) ([]es.StreamName, error) {
	found, err := s.config.Catalog.FilterByCategories(ctx, conn, categories)
	if err != nil {
		return nil, s.translate(ctx, err, store.PhaseRead, "")
	}
	return found, nil
}

func (s *Store) hasStream(ctx context.Context, conn es.DBTX, name es.StreamName) (bool, error) {
	ok, err := s.config.Catalog.HasRealStreamName(ctx, conn, name)
	if err != nil {
		return false, s.translate(ctx, err, store.PhaseRead, name)
	}
	return ok, nil
}

func (s *Store) allStreamNames(ctx context.Context, conn es.DBTX) ([]es.StreamName, error) {
	names, err := s.config.Catalog.AllWithoutInternal(ctx, conn)
	if err != nil {
		return nil, s.translate(ctx, err, store.PhaseRead, "")
	}
	return names, nil
}

func (s *Store) translate(ctx context.Context, err error, phase store.Phase, name es.StreamName) error {
	translated := s.translator.Translate(err, phase, name)
	switch {
	case translated == nil:
	case errors.Is(translated, store.ErrStreamNotFound):
		s.config.Logger.Debug(ctx, "stream not found", "stream", name, "phase", phase.String())
	default:
		s.config.Logger.Error(ctx, "store operation failed",
			"stream", name, "phase", phase.String(), "error", translated)
	}
	return translated
}

func isRowLocker(l lock.WriteLock) bool {
	r, ok := l.(lock.RowLocker)
	return ok && r.LocksRows()
}

func isSessionScoped(l lock.WriteLock) bool {
	s, ok := l.(lock.SessionScoped)
	return ok && s.SessionScoped()
}

var _ store.Chronicler = (*Store)(nil)
