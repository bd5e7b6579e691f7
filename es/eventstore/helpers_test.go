package eventstore_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/adapters/sqlite"
	"github.com/getpup/pupstore/es/eventstore"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "events.db") +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx))

	return db
}

func newStore(t *testing.T, opts ...eventstore.Option) *eventstore.Store {
	t.Helper()

	s, err := sqlite.NewStore(openDB(t), opts...)
	require.NoError(t, err)
	require.NoError(t, s.CreateCatalog(context.Background()))
	return s
}

func newEvent(aggregateType, aggregateID string, version int64, eventType string, content any) es.Event {
	raw, err := json.Marshal(content)
	if err != nil {
		panic(err)
	}
	return es.Event{
		EventID:          uuid.New(),
		EventType:        eventType,
		AggregateType:    aggregateType,
		AggregateID:      aggregateID,
		AggregateVersion: version,
		Content:          raw,
		Headers:          es.Headers{"producer": "test"},
		CreatedAt:        time.Date(2024, 5, 1, 12, 0, int(version), 0, time.UTC),
	}
}

func orderEvents(aggregateID string, versions ...int64) []es.Event {
	events := make([]es.Event, len(versions))
	for i, v := range versions {
		events[i] = newEvent("order", aggregateID, v, "OrderLineAdded", map[string]any{"line": fmt.Sprintf("item-%d", v)})
	}
	return events
}

func collect(seq iter.Seq2[es.Event, error]) ([]es.Event, error) {
	var events []es.Event
	for e, err := range seq {
		if err != nil {
			return events, err
		}
		events = append(events, e)
	}
	return events, nil
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()

	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	require.NoError(t, err)
	return n == 1
}
