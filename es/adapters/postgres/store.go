// Package postgres provides the PostgreSQL adapter of the event store.
//
// The adapter works with either lib/pq ("postgres") or the pgx stdlib
// driver ("pgx"); Translator understands the errors of both. Importing
// the package registers the lib/pq driver.
package postgres

import (
	"database/sql"
	"time"

	"github.com/getpup/pupstore/es/eventstore"
	"github.com/getpup/pupstore/es/lock"
)

// NewStore creates a PostgreSQL event store.
func NewStore(db *sql.DB, opts ...eventstore.Option) (*eventstore.Store, error) {
	return eventstore.New(db, Dialect{}, Translator{}, opts...)
}

// NewTransactionalStore creates a PostgreSQL event store with explicit transactions.
func NewTransactionalStore(db *sql.DB, opts ...eventstore.Option) (*eventstore.TransactionalStore, error) {
	s, err := NewStore(db, opts...)
	if err != nil {
		return nil, err
	}
	return eventstore.NewTransactional(s), nil
}

// DefaultWriteLock returns the engine's default write lock.
func DefaultWriteLock(timeout time.Duration) lock.WriteLock {
	return NewAdvisoryLock(timeout)
}
