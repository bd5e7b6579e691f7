// Package sqlite provides the SQLite adapter of the event store.
//
// Importing it registers the modernc.org/sqlite driver as "sqlite".
// Open the database with a busy timeout so concurrent writers wait on
// SQLite's database lock instead of failing:
//
//	db, err := sql.Open("sqlite", "file:events.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
package sqlite

import (
	"database/sql"
	"time"

	"github.com/getpup/pupstore/es/eventstore"
	"github.com/getpup/pupstore/es/lock"
)

// NewStore creates a SQLite event store.
func NewStore(db *sql.DB, opts ...eventstore.Option) (*eventstore.Store, error) {
	return eventstore.New(db, Dialect{}, Translator{}, opts...)
}

// NewTransactionalStore creates a SQLite event store with explicit transactions.
func NewTransactionalStore(db *sql.DB, opts ...eventstore.Option) (*eventstore.TransactionalStore, error) {
	s, err := NewStore(db, opts...)
	if err != nil {
		return nil, err
	}
	return eventstore.NewTransactional(s), nil
}

// DefaultWriteLock returns the engine's default write lock.
// SQLite serializes writers on its database lock.
func DefaultWriteLock(time.Duration) lock.WriteLock {
	return lock.NoOp{}
}
