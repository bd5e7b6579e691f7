package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/lock"
)

// NamedLock is a MySQL user level lock (GET_LOCK) named after the table.
// MySQL waits for the lock itself, so no polling is involved.
type NamedLock struct {
	timeout time.Duration
	prefix  string
}

// NewNamedLock creates a named lock waiting at most timeout, rounded up to
// whole seconds. A zero timeout uses lock.DefaultTimeout.
func NewNamedLock(timeout time.Duration) *NamedLock {
	if timeout <= 0 {
		timeout = lock.DefaultTimeout
	}
	return &NamedLock{timeout: timeout, prefix: "pupstore:"}
}

// Acquire implements lock.WriteLock.
func (l *NamedLock) Acquire(ctx context.Context, conn es.DBTX, resource string) (bool, error) {
	seconds := int64(math.Ceil(l.timeout.Seconds()))

	var result sql.NullInt64
	err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", l.prefix+resource, seconds).Scan(&result)
	if err != nil {
		return false, fmt.Errorf("failed to acquire named lock on %s: %w", resource, err)
	}
	if !result.Valid {
		return false, fmt.Errorf("failed to acquire named lock on %s: GET_LOCK returned NULL", resource)
	}
	return result.Int64 == 1, nil
}

// Release implements lock.WriteLock.
func (l *NamedLock) Release(ctx context.Context, conn es.DBTX, resource string) (bool, error) {
	var result sql.NullInt64
	err := conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", l.prefix+resource).Scan(&result)
	if err != nil {
		return false, fmt.Errorf("failed to release named lock on %s: %w", resource, err)
	}
	return result.Valid && result.Int64 == 1, nil
}

// SessionScoped implements lock.SessionScoped.
func (l *NamedLock) SessionScoped() bool { return true }

var (
	_ lock.WriteLock     = (*NamedLock)(nil)
	_ lock.SessionScoped = (*NamedLock)(nil)
)
