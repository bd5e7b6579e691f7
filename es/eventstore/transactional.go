package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/store"
)

// TransactionalStore decorates a Store with explicit transactions.
// While a transaction is open every operation runs on it; otherwise
// operations run on the pool like Store.
type TransactionalStore struct {
	store *Store

	mu sync.Mutex
	tx *sql.Tx
}

// NewTransactional wraps an engine.
func NewTransactional(s *Store) *TransactionalStore {
	return &TransactionalStore{store: s}
}

// Store returns the wrapped engine.
func (t *TransactionalStore) Store() *Store {
	return t.store
}

func (t *TransactionalStore) conn() es.DBTX {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tx != nil {
		return t.tx
	}
	return t.store.db
}

// BeginTransaction implements store.TransactionalChronicler.
func (t *TransactionalStore) BeginTransaction(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tx != nil {
		return store.ErrTransactionAlreadyStarted
	}

	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return t.store.translate(ctx, fmt.Errorf("failed to begin transaction: %w", err), store.PhaseRead, "")
	}
	t.tx = tx
	t.store.config.Logger.Debug(ctx, "transaction started")
	return nil
}

// CommitTransaction implements store.TransactionalChronicler.
func (t *TransactionalStore) CommitTransaction() error {
	tx, err := t.take()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return t.store.translator.Translate(fmt.Errorf("failed to commit transaction: %w", err), store.PhaseRead, "")
	}
	return nil
}

// RollbackTransaction implements store.TransactionalChronicler.
func (t *TransactionalStore) RollbackTransaction() error {
	tx, err := t.take()
	if err != nil {
		return err
	}
	if err := tx.Rollback(); err != nil {
		return t.store.translator.Translate(fmt.Errorf("failed to roll back transaction: %w", err), store.PhaseRead, "")
	}
	return nil
}

// take detaches the open transaction. Commit and rollback end it whatever
// their outcome.
func (t *TransactionalStore) take() (*sql.Tx, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tx == nil {
		return nil, store.ErrTransactionNotStarted
	}
	tx := t.tx
	t.tx = nil
	return tx, nil
}

// InTransaction implements store.TransactionalChronicler.
func (t *TransactionalStore) InTransaction() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx != nil
}

// Transactional implements store.TransactionalChronicler.
// A panic in fn rolls back and is re-raised.
func (t *TransactionalStore) Transactional(ctx context.Context, fn func(ctx context.Context, chronicler store.Chronicler) (any, error)) (result any, err error) {
	if err := t.BeginTransaction(ctx); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			if rerr := t.RollbackTransaction(); rerr != nil {
				t.store.config.Logger.Error(ctx, "rollback after panic failed", "error", rerr)
			}
			panic(r)
		}
	}()

	result, err = fn(ctx, t)
	if err != nil {
		if rerr := t.RollbackTransaction(); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	}

	if err := t.CommitTransaction(); err != nil {
		return nil, err
	}

	if result == nil {
		return true, nil
	}
	return result, nil
}

// FirstCommit implements store.Chronicler.
func (t *TransactionalStore) FirstCommit(ctx context.Context, stream es.Stream) error {
	return t.store.firstCommit(ctx, t.conn(), stream)
}

// Amend implements store.Chronicler.
func (t *TransactionalStore) Amend(ctx context.Context, stream es.Stream) error {
	return t.store.amend(ctx, t.conn(), stream, store.PhaseAmend)
}

// Delete implements store.Chronicler.
func (t *TransactionalStore) Delete(ctx context.Context, name es.StreamName) error {
	return t.store.delete(ctx, t.conn(), name)
}

// RetrieveAll implements store.Chronicler.
func (t *TransactionalStore) RetrieveAll(ctx context.Context, name es.StreamName, aggregateID string, direction es.Direction) iter.Seq2[es.Event, error] {
	return t.store.retrieveAll(ctx, t.conn(), name, aggregateID, direction)
}

// RetrieveFiltered implements store.Chronicler.
func (t *TransactionalStore) RetrieveFiltered(ctx context.Context, name es.StreamName, filter store.QueryFilter) iter.Seq2[es.Event, error] {
	return t.store.retrieveFiltered(ctx, t.conn(), name, filter)
}

// FilterStreamNames implements store.Chronicler.
func (t *TransactionalStore) FilterStreamNames(ctx context.Context, names ...es.StreamName) ([]es.StreamName, error) {
	return t.store.filterStreamNames(ctx, t.conn(), names)
}

// FilterCategoryNames implements store.Chronicler.
func (t *TransactionalStore) FilterCategoryNames(ctx context.Context, categories ...string) ([]es.StreamName, error) {
	return t.store.filterCategoryNames(ctx, t.conn(), categories)
}

// HasStream implements store.Chronicler.
func (t *TransactionalStore) HasStream(ctx context.Context, name es.StreamName) (bool, error) {
	return t.store.hasStream(ctx, t.conn(), name)
}

// AllStreamNames returns every stream that is not internal, sorted.
func (t *TransactionalStore) AllStreamNames(ctx context.Context) ([]es.StreamName, error) {
	return t.store.allStreamNames(ctx, t.conn())
}

// StreamCatalog implements store.Chronicler.
func (t *TransactionalStore) StreamCatalog() store.EventStreamProvider {
	return t.store.StreamCatalog()
}

var _ store.TransactionalChronicler = (*TransactionalStore)(nil)
