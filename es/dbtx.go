package es

import (
	"context"
	"database/sql"
)

// DBTX is a minimal interface for database operations.
// It is implemented by *sql.DB, *sql.Conn and *sql.Tx, allowing
// the library to be transaction-agnostic.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Ensure standard library types implement DBTX
var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Conn)(nil)
	_ DBTX = (*sql.Tx)(nil)
)

// WithSession runs fn on a single connection.
// A *sql.DB is a pool, so session-scoped state such as advisory locks
// would leak across connections; WithSession pins one for the duration
// of fn. Any other DBTX is already bound to one session and is used as is.
func WithSession(ctx context.Context, conn DBTX, fn func(DBTX) error) error {
	db, ok := conn.(*sql.DB)
	if !ok {
		return fn(conn)
	}

	c, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(c)
}
