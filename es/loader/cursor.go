package loader

import (
	"context"
	"fmt"
	"iter"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/store"
)

// Cursor streams a single result set, one row at a time.
type Cursor struct {
	*decoder
}

// NewCursor creates a cursor loader.
func NewCursor(opts ...Option) *Cursor {
	return &Cursor{decoder: newDecoder(newOptions(opts))}
}

// Load implements Loader.
func (c *Cursor) Load(ctx context.Context, conn es.DBTX, query Query, stream es.StreamName) iter.Seq2[es.Event, error] {
	return once(func(yield func(es.Event, error) bool) {
		w, err := windowOf(query)
		if err != nil {
			yield(es.Event{}, err)
			return
		}

		q := query.Select
		if w.capped {
			q = q.Limit(w.limit)
		}

		sqlStr, args, err := q.ToSql()
		if err != nil {
			yield(es.Event{}, fmt.Errorf("failed to build read query: %w", err))
			return
		}

		rows, err := conn.QueryContext(ctx, sqlStr, args...)
		if err != nil {
			yield(es.Event{}, err)
			return
		}
		defer rows.Close()

		read := 0
		for rows.Next() {
			e, err := scanEvent(rows, c.get())
			if err != nil {
				yield(es.Event{}, err)
				return
			}
			read++
			if !yield(e, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(es.Event{}, err)
			return
		}

		if read == 0 {
			yield(es.Event{}, store.NewStreamNotFound(stream, nil))
		}
	})
}

var (
	_ Loader          = (*Cursor)(nil)
	_ SerializerAware = (*Cursor)(nil)
)
