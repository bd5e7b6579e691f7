// Package integration_test contains integration tests for the MySQL adapter.
// These tests require a running MySQL instance.
//
// Run with: go test -tags=integration ./es/adapters/mysql/integration_test/...
//
//go:build integration

package integration_test

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/adapters/mysql"
	"github.com/getpup/pupstore/es/eventstore"
	"github.com/getpup/pupstore/es/lock"
	"github.com/getpup/pupstore/es/persistence"
	"github.com/getpup/pupstore/es/store"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// created_at is scanned from its text form; parseTime is left off on purpose
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s",
		envOr("MYSQL_USER", "root"),
		envOr("MYSQL_PASSWORD", "password"),
		envOr("MYSQL_HOST", "localhost"),
		envOr("MYSQL_PORT", "3306"),
		envOr("MYSQL_DATABASE", "pupstore_test"),
	)

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err, "Failed to connect to database")
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}
	return db
}

func newStore(t *testing.T, db *sql.DB, opts ...eventstore.Option) *eventstore.Store {
	t.Helper()

	s, err := mysql.NewStore(db, opts...)
	require.NoError(t, err)
	require.NoError(t, s.CreateCatalog(context.Background()))
	return s
}

func uniqueStream(t *testing.T, s *eventstore.Store, category string) es.StreamName {
	t.Helper()

	name := es.StreamName(category + "-" + uuid.NewString())
	t.Cleanup(func() { _ = s.Delete(context.Background(), name) })
	return name
}

func orderEvents(aggregateID string, from, to int64) []es.Event {
	var events []es.Event
	for v := from; v <= to; v++ {
		events = append(events, es.Event{
			AggregateType:    "order",
			AggregateID:      aggregateID,
			AggregateVersion: v,
			EventType:        "OrderLineAdded",
			Content:          []byte(fmt.Sprintf(`{"line":%d}`, v)),
			CreatedAt:        time.Date(2024, 1, 2, 3, 4, 5, 123456000, time.UTC),
		})
	}
	return events
}

func collect(t *testing.T, seq iter.Seq2[es.Event, error]) []es.Event {
	t.Helper()

	var events []es.Event
	for event, err := range seq {
		require.NoError(t, err)
		events = append(events, event)
	}
	return events
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, getTestDB(t))
	name := uniqueStream(t, s, "orders")

	require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 2)...)))
	require.NoError(t, s.Amend(ctx, es.NewStream(name, orderEvents("B", 1, 1)...)))

	events := collect(t, s.RetrieveAll(ctx, name, "A", es.Forward))
	require.Len(t, events, 2)
	assert.JSONEq(t, `{"line":1}`, string(events[0].Content))
	assert.True(t, events[0].CreatedAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 123456000, time.UTC)))

	all := collect(t, s.RetrieveAll(ctx, name, "", es.Backward))
	require.Len(t, all, 3)
	assert.Equal(t, "B", all[0].AggregateID)
}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, getTestDB(t))
	name := uniqueStream(t, s, "orders")

	require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 1)...)))
	assert.ErrorIs(t, s.FirstCommit(ctx, es.NewStream(name)), store.ErrStreamAlreadyExists)
	assert.ErrorIs(t, s.Amend(ctx, es.NewStream(name, orderEvents("A", 1, 1)...)), store.ErrConcurrency)

	for _, err := range s.RetrieveAll(ctx, es.StreamName("nowhere-"+uuid.NewString()), "", es.Forward) {
		assert.ErrorIs(t, err, store.ErrStreamNotFound)
	}
}

func TestRetrieveFiltered_IndexHint(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, getTestDB(t))
	name := uniqueStream(t, s, "orders")

	require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, append(orderEvents("A", 1, 4), orderEvents("B", 1, 2)...)...)))

	from, to := int64(2), int64(3)
	events := collect(t, s.RetrieveFiltered(ctx, name, store.AggregateVersions{
		AggregateID:   "A",
		AggregateType: "order",
		FromVersion:   &from,
		ToVersion:     &to,
	}))
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].AggregateVersion)
	assert.Equal(t, int64(3), events[1].AggregateVersion)
}

func TestNamedLock_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, getTestDB(t), eventstore.WithWriteLock(mysql.NewNamedLock(5*time.Second)))
	name := uniqueStream(t, s, "orders")
	require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 1)...)))

	const writers = 4
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Amend(ctx, es.NewStream(name, orderEvents("A", 2, 2)...))
		}(i)
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, store.ErrConcurrency)
	}
	assert.Equal(t, 1, won)
}

func TestNamedLock_Timeout(t *testing.T) {
	ctx := context.Background()
	db := getTestDB(t)
	s := newStore(t, db, eventstore.WithWriteLock(mysql.NewNamedLock(time.Second)))
	name := uniqueStream(t, s, "orders")
	require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 1)...)))

	holder, err := db.Conn(ctx)
	require.NoError(t, err)
	defer holder.Close()

	held := mysql.NewNamedLock(time.Second)
	table := persistence.TableName(name)
	ok, err := held.Acquire(ctx, holder, table)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, s.Amend(ctx, es.NewStream(name, orderEvents("A", 2, 2)...)), store.ErrConcurrency)

	released, err := held.Release(ctx, holder, table)
	require.NoError(t, err)
	assert.True(t, released)
	assert.NoError(t, s.Amend(ctx, es.NewStream(name, orderEvents("A", 2, 2)...)))
}

func TestRowLock_InTransaction(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, getTestDB(t), eventstore.WithWriteLock(lock.RowLock{}))
	name := uniqueStream(t, s, "orders")
	require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 1)...)))

	tx := eventstore.NewTransactional(s)
	_, err := tx.Transactional(ctx, func(ctx context.Context, c store.Chronicler) (any, error) {
		return nil, c.Amend(ctx, es.NewStream(name, orderEvents("A", 2, 3)...))
	})
	require.NoError(t, err)
	assert.Len(t, collect(t, s.RetrieveAll(ctx, name, "A", es.Forward)), 3)
}

func TestPerAggregate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, getTestDB(t), eventstore.WithStrategy(persistence.NewPerAggregate(mysql.Dialect{})))
	name := uniqueStream(t, s, "order")

	require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 2)...)))
	assert.ErrorIs(t, s.Amend(ctx, es.NewStream(name, orderEvents("A", 2, 2)...)), store.ErrConcurrency)

	events := collect(t, s.RetrieveAll(ctx, name, "", es.Forward))
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[1].Position)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, getTestDB(t))
	name := uniqueStream(t, s, "orders")

	require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 1)...)))
	require.NoError(t, s.Delete(ctx, name))
	assert.ErrorIs(t, s.Delete(ctx, name), store.ErrStreamNotFound)

	exists, err := s.HasStream(ctx, name)
	require.NoError(t, err)
	assert.False(t, exists)
}
