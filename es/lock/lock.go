// Package lock provides the write lock strategies guarding a physical
// table's write path.
package lock

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/getpup/pupstore/es"
)

// DefaultTimeout bounds how long Acquire waits for a lock.
const DefaultTimeout = 5 * time.Second

// DefaultRetryInterval is the polling interval of locks without a native wait.
const DefaultRetryInterval = 50 * time.Millisecond

// WriteLock serializes writers on one resource, the physical table name.
//
// Acquire returns false when the lock was not granted within the lock's
// timeout. Errors are reported as concurrency conflicts by the engine and
// never retried there.
type WriteLock interface {
	Acquire(ctx context.Context, conn es.DBTX, resource string) (bool, error)
	Release(ctx context.Context, conn es.DBTX, resource string) (bool, error)
}

// SessionScoped is implemented by locks owned by a database session.
// The engine pins a single connection for acquire, insert and release.
type SessionScoped interface {
	SessionScoped() bool
}

// RowLocker is implemented by locks expressed in the write query itself:
// the engine selects the table tail FOR UPDATE before inserting.
type RowLocker interface {
	LocksRows() bool
}

// NoOp never blocks. Conflicts are only detected by the unique constraint.
type NoOp struct{}

// Acquire implements WriteLock.
func (NoOp) Acquire(context.Context, es.DBTX, string) (bool, error) { return true, nil }

// Release implements WriteLock.
func (NoOp) Release(context.Context, es.DBTX, string) (bool, error) { return true, nil }

// RowLock locks through SELECT ... FOR UPDATE in the write path.
// Acquire and Release do nothing; the row lock ends with the transaction
// or statement. It only serializes writers inside transactions.
type RowLock struct{}

// Acquire implements WriteLock.
func (RowLock) Acquire(context.Context, es.DBTX, string) (bool, error) { return true, nil }

// Release implements WriteLock.
func (RowLock) Release(context.Context, es.DBTX, string) (bool, error) { return true, nil }

// LocksRows implements RowLocker.
func (RowLock) LocksRows() bool { return true }

// Key hashes a resource name into a 64 bit lock id using FNV-1a.
func Key(resource string) int64 {
	h := fnv.New64a()
	h.Write([]byte(resource))
	return int64(h.Sum64()) //nolint:gosec // lock ids wrap around on purpose
}

// Poll calls try until it reports success, the timeout elapses or ctx is
// done. A timeout is not an error: Poll returns false, nil.
func Poll(ctx context.Context, timeout, interval time.Duration, try func(context.Context) (bool, error)) (bool, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := try(ctx)
		if err != nil && ctx.Err() == context.DeadlineExceeded {
			return false, nil
		}
		if err != nil || ok {
			return ok, err
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return false, nil
			}
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

var (
	_ WriteLock = NoOp{}
	_ WriteLock = RowLock{}
	_ RowLocker = RowLock{}
)
