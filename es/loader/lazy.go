package loader

import (
	"context"
	"fmt"
	"iter"

	sq "github.com/Masterminds/squirrel"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/store"
)

// Lazy pages through the result in chunks of ChunkSize rows using
// LIMIT/OFFSET. A LIMIT or OFFSET already on the query bounds the pages.
// The query must have a total order for pages to be stable, which every
// engine query and built-in filter provides.
type Lazy struct {
	*decoder
	chunkSize uint64
}

// NewLazy creates a chunked loader. A chunk size of 0 uses DefaultChunkSize.
func NewLazy(chunkSize uint64, opts ...Option) *Lazy {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	return &Lazy{decoder: newDecoder(newOptions(opts)), chunkSize: chunkSize}
}

// ChunkSize returns the page size.
func (l *Lazy) ChunkSize() uint64 {
	return l.chunkSize
}

// Load implements Loader.
func (l *Lazy) Load(ctx context.Context, conn es.DBTX, query Query, stream es.StreamName) iter.Seq2[es.Event, error] {
	return once(func(yield func(es.Event, error) bool) {
		w, err := windowOf(query)
		if err != nil {
			yield(es.Event{}, err)
			return
		}

		var read uint64
		for {
			size := l.chunkSize
			if w.capped {
				if read >= w.limit {
					break
				}
				size = min(size, w.limit-read)
			}

			n, stop := l.page(ctx, conn, w.base.Limit(size).Offset(w.offset+read), yield)
			if stop {
				return
			}
			read += n
			if n < size {
				break
			}
		}

		if read == 0 {
			yield(es.Event{}, store.NewStreamNotFound(stream, nil))
		}
	})
}

// page reads one chunk. stop is true when the consumer stopped or an
// error was yielded.
func (l *Lazy) page(ctx context.Context, conn es.DBTX, query sq.SelectBuilder, yield func(es.Event, error) bool) (read uint64, stop bool) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		yield(es.Event{}, fmt.Errorf("failed to build read query: %w", err))
		return 0, true
	}

	rows, err := conn.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		yield(es.Event{}, err)
		return 0, true
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEvent(rows, l.get())
		if err != nil {
			yield(es.Event{}, err)
			return read, true
		}
		read++
		if !yield(e, nil) {
			return read, true
		}
	}

	if err := rows.Err(); err != nil {
		yield(es.Event{}, err)
		return read, true
	}
	return read, false
}

var (
	_ Loader          = (*Lazy)(nil)
	_ SerializerAware = (*Lazy)(nil)
)
