// Package loader turns read queries into event sequences.
//
// Two loaders are provided: Cursor streams one result set, Lazy pages
// through the result in fixed size chunks so memory stays bounded on long
// streams. Both yield store.ErrStreamNotFound when nothing was read and
// can be ranged over only once.
package loader

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lann/builder"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/persistence"
)

// DefaultChunkSize is the page size of Lazy.
const DefaultChunkSize = 5000

// ErrConsumed is yielded when a sequence is ranged over a second time.
var ErrConsumed = errors.New("event sequence already consumed")

// Query is a read query prepared by the engine.
type Query struct {
	// Select selects persistence.SelectColumns in scan order.
	Select sq.SelectBuilder

	// MaxRows caps the rows read across all pages. 0 means no cap.
	MaxRows uint64
}

// window is the row range a query asks for: the LIMIT and OFFSET set on
// the select, capped by MaxRows.
type window struct {
	base   sq.SelectBuilder // the select without LIMIT and OFFSET
	offset uint64
	limit  uint64
	capped bool
}

func windowOf(query Query) (window, error) {
	w := window{base: query.Select.RemoveLimit().RemoveOffset()}

	limit, hasLimit, err := clause(query.Select, "Limit")
	if err != nil {
		return window{}, err
	}
	if hasLimit {
		w.limit, w.capped = limit, true
	}
	if query.MaxRows > 0 && (!w.capped || query.MaxRows < w.limit) {
		w.limit, w.capped = query.MaxRows, true
	}

	w.offset, _, err = clause(query.Select, "Offset")
	if err != nil {
		return window{}, err
	}
	return w, nil
}

// clause reads the LIMIT or OFFSET value squirrel keeps on a select.
func clause(query sq.SelectBuilder, name string) (uint64, bool, error) {
	v, ok := builder.Get(query, name)
	if !ok {
		return 0, false, nil
	}
	text, _ := v.(string)
	if text == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s %q on read query: %w", name, text, err)
	}
	return n, true, nil
}

// Loader runs a query and yields the decoded events.
// Database errors are yielded untranslated.
type Loader interface {
	Load(ctx context.Context, conn es.DBTX, query Query, stream es.StreamName) iter.Seq2[es.Event, error]
}

// Option configures a loader.
type Option func(*options)

type options struct {
	serializer persistence.Serializer
}

// WithSerializer sets the serializer used to decode headers.
func WithSerializer(s persistence.Serializer) Option {
	return func(o *options) {
		o.serializer = s
	}
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SerializerAware is implemented by loaders that accept the serializer of
// the store they read for. The engine hands it its strategy's serializer.
type SerializerAware interface {
	// UseSerializer sets s unless a serializer was given with WithSerializer
	// or by an earlier call.
	UseSerializer(s persistence.Serializer)
}

// decoder holds the serializer of a loader. It falls back to JSON until
// one is set.
type decoder struct {
	mu         sync.RWMutex
	serializer persistence.Serializer
}

func newDecoder(o options) *decoder {
	return &decoder{serializer: o.serializer}
}

// UseSerializer implements SerializerAware.
func (d *decoder) UseSerializer(s persistence.Serializer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.serializer == nil {
		d.serializer = s
	}
}

func (d *decoder) get() persistence.Serializer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.serializer == nil {
		return persistence.JSONSerializer{}
	}
	return d.serializer
}

// once makes seq yield ErrConsumed on every range after the first.
func once(seq iter.Seq2[es.Event, error]) iter.Seq2[es.Event, error] {
	var used atomic.Bool
	return func(yield func(es.Event, error) bool) {
		if used.Swap(true) {
			yield(es.Event{}, ErrConsumed)
			return
		}
		seq(yield)
	}
}

// timestamp scans created_at from engines returning time.Time or text.
type timestamp struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Scan implements sql.Scanner.
func (t *timestamp) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported created_at type %T", src)
	}
}

func (t *timestamp) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unsupported created_at format %q", s)
}

func scanEvent(rows *sql.Rows, serializer persistence.Serializer) (es.Event, error) {
	var (
		e         es.Event
		eventID   string
		content   []byte
		headers   []byte
		createdAt timestamp
	)

	err := rows.Scan(
		&e.Position,
		&eventID,
		&e.EventType,
		&content,
		&headers,
		&e.AggregateID,
		&e.AggregateType,
		&e.AggregateVersion,
		&createdAt,
	)
	if err != nil {
		return es.Event{}, fmt.Errorf("failed to scan event row: %w", err)
	}

	e.EventID, err = uuid.Parse(eventID)
	if err != nil {
		return es.Event{}, fmt.Errorf("invalid event id %q at position %d: %w", eventID, e.Position, err)
	}

	e.Headers, err = serializer.DeserializeHeaders(headers)
	if err != nil {
		return es.Event{}, err
	}

	e.Content = json.RawMessage(content)
	e.CreatedAt = createdAt.Time
	return e, nil
}
