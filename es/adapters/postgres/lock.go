package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/lock"
)

// AdvisoryLock is a PostgreSQL advisory lock keyed by the FNV-1a hash of
// the table name. It is polled until the timeout elapses.
//
// Outside a transaction it is a session lock taken with
// pg_try_advisory_lock and released explicitly. Inside a *sql.Tx it is a
// transaction lock taken with pg_try_advisory_xact_lock: the server drops
// it at commit or rollback, so Release does nothing. An error aborts the
// transaction and would make an explicit unlock fail, and a rollback does
// not release session locks.
type AdvisoryLock struct {
	timeout  time.Duration
	interval time.Duration
}

// NewAdvisoryLock creates an advisory lock waiting at most timeout.
// A zero timeout uses lock.DefaultTimeout.
func NewAdvisoryLock(timeout time.Duration) *AdvisoryLock {
	if timeout <= 0 {
		timeout = lock.DefaultTimeout
	}
	return &AdvisoryLock{timeout: timeout, interval: lock.DefaultRetryInterval}
}

// Acquire implements lock.WriteLock.
func (l *AdvisoryLock) Acquire(ctx context.Context, conn es.DBTX, resource string) (bool, error) {
	query := "SELECT pg_try_advisory_lock($1)"
	if inTransaction(conn) {
		query = "SELECT pg_try_advisory_xact_lock($1)"
	}

	key := lock.Key(resource)
	ok, err := lock.Poll(ctx, l.timeout, l.interval, func(ctx context.Context) (bool, error) {
		var acquired bool
		err := conn.QueryRowContext(ctx, query, key).Scan(&acquired)
		return acquired, err
	})
	if err != nil {
		return false, fmt.Errorf("failed to acquire advisory lock on %s: %w", resource, err)
	}
	return ok, nil
}

// Release implements lock.WriteLock.
// A transaction lock is held until the transaction ends.
func (l *AdvisoryLock) Release(ctx context.Context, conn es.DBTX, resource string) (bool, error) {
	if inTransaction(conn) {
		return true, nil
	}

	var released bool
	err := conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", lock.Key(resource)).Scan(&released)
	if err != nil {
		return false, fmt.Errorf("failed to release advisory lock on %s: %w", resource, err)
	}
	return released, nil
}

func inTransaction(conn es.DBTX) bool {
	_, ok := conn.(*sql.Tx)
	return ok
}

// SessionScoped implements lock.SessionScoped.
func (l *AdvisoryLock) SessionScoped() bool { return true }

var (
	_ lock.WriteLock     = (*AdvisoryLock)(nil)
	_ lock.SessionScoped = (*AdvisoryLock)(nil)
)
