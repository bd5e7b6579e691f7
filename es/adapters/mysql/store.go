// Package mysql provides the MySQL adapter of the event store.
//
// MySQL commits DDL implicitly, so a failed schema creation is always
// compensated by dropping the table and the catalog entry, even inside a
// transaction. Importing the package registers the go-sql-driver/mysql
// driver as "mysql".
package mysql

import (
	"database/sql"
	"time"

	"github.com/getpup/pupstore/es/eventstore"
	"github.com/getpup/pupstore/es/lock"
)

// NewStore creates a MySQL event store.
func NewStore(db *sql.DB, opts ...eventstore.Option) (*eventstore.Store, error) {
	return eventstore.New(db, Dialect{}, Translator{}, opts...)
}

// NewTransactionalStore creates a MySQL event store with explicit transactions.
func NewTransactionalStore(db *sql.DB, opts ...eventstore.Option) (*eventstore.TransactionalStore, error) {
	s, err := NewStore(db, opts...)
	if err != nil {
		return nil, err
	}
	return eventstore.NewTransactional(s), nil
}

// DefaultWriteLock returns the engine's default write lock.
func DefaultWriteLock(timeout time.Duration) lock.WriteLock {
	return NewNamedLock(timeout)
}
