// Package integration_test contains integration tests for the Postgres adapter.
// These tests require a running PostgreSQL instance.
//
// Run with: go test -tags=integration ./es/adapters/postgres/integration_test/...
//
//go:build integration

package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/adapters/postgres"
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

// getTestDB opens the test database with driver ("postgres" for lib/pq,
// "pgx" for jackc/pgx).
func getTestDB(t *testing.T, driver string) *sql.DB {
	t.Helper()

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		envOr("POSTGRES_HOST", "localhost"),
		envOr("POSTGRES_PORT", "5432"),
		envOr("POSTGRES_USER", "postgres"),
		envOr("POSTGRES_PASSWORD", "postgres"),
		envOr("POSTGRES_DB", "pupstore_test"),
	)

	db, err := sql.Open(driver, connStr)
	require.NoError(t, err, "Failed to connect to database")
	t.Cleanup(func() { db.Close() })

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}
	return db
}

func newStore(t *testing.T, db *sql.DB, opts ...eventstore.Option) *eventstore.Store {
	t.Helper()

	s, err := postgres.NewStore(db, opts...)
	require.NoError(t, err)
	require.NoError(t, s.CreateCatalog(context.Background()))
	return s
}

// uniqueStream returns a fresh stream name so tests do not depend on
// previous runs.
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
			Headers:          es.Headers{"tenant": "acme"},
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
	for _, driver := range []string{"postgres", "pgx"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, getTestDB(t, driver))
			name := uniqueStream(t, s, "orders")

			require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 3)...)))
			require.NoError(t, s.Amend(ctx, es.NewStream(name, orderEvents("A", 4, 5)...)))

			events := collect(t, s.RetrieveAll(ctx, name, "A", es.Forward))
			require.Len(t, events, 5)
			for i, event := range events {
				assert.Equal(t, int64(i+1), event.AggregateVersion)
				assert.Equal(t, "acme", event.Headers["tenant"])
				assert.JSONEq(t, fmt.Sprintf(`{"line":%d}`, i+1), string(event.Content))
				assert.False(t, event.CreatedAt.IsZero())
			}

			backward := collect(t, s.RetrieveAll(ctx, name, "A", es.Backward))
			assert.Equal(t, int64(5), backward[0].AggregateVersion)
		})
	}
}

func TestFirstCommit_AlreadyExists(t *testing.T) {
	for _, driver := range []string{"postgres", "pgx"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, getTestDB(t, driver))
			name := uniqueStream(t, s, "orders")

			require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 1)...)))
			err := s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 1)...))
			assert.ErrorIs(t, err, store.ErrStreamAlreadyExists)
		})
	}
}

func TestAmend_DuplicateVersion(t *testing.T) {
	for _, driver := range []string{"postgres", "pgx"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, getTestDB(t, driver))
			name := uniqueStream(t, s, "orders")

			require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 2)...)))
			err := s.Amend(ctx, es.NewStream(name, orderEvents("A", 2, 2)...))

			var conflict *store.ConcurrencyError
			require.ErrorAs(t, err, &conflict)
			assert.Equal(t, "23505", conflict.Code)
		})
	}
}

func TestRetrieve_MissingStream(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, getTestDB(t, "pgx"))

	for _, err := range s.RetrieveAll(ctx, es.StreamName("nowhere-"+uuid.NewString()), "", es.Forward) {
		assert.ErrorIs(t, err, store.ErrStreamNotFound)
	}
}

func TestAdvisoryLock_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, getTestDB(t, "postgres"), eventstore.WithWriteLock(postgres.NewAdvisoryLock(5*time.Second)))
	name := uniqueStream(t, s, "orders")
	require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 1)...)))

	const writers = 5
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
	assert.Len(t, collect(t, s.RetrieveAll(ctx, name, "A", es.Forward)), 2)
}

func TestAdvisoryLock_Timeout(t *testing.T) {
	ctx := context.Background()
	db := getTestDB(t, "postgres")
	s := newStore(t, db, eventstore.WithWriteLock(postgres.NewAdvisoryLock(200*time.Millisecond)))
	name := uniqueStream(t, s, "orders")
	require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 1)...)))

	holder, err := db.Conn(ctx)
	require.NoError(t, err)
	defer holder.Close()

	table := persistence.TableName(name)
	_, err = holder.ExecContext(ctx, "SELECT pg_advisory_lock($1)", lock.Key(table))
	require.NoError(t, err)

	err = s.Amend(ctx, es.NewStream(name, orderEvents("A", 2, 2)...))
	assert.ErrorIs(t, err, store.ErrConcurrency)

	_, err = holder.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", lock.Key(table))
	require.NoError(t, err)
	assert.NoError(t, s.Amend(ctx, es.NewStream(name, orderEvents("A", 2, 2)...)))
}

func TestAdvisoryLock_FailedTransactionReleasesLock(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, getTestDB(t, "postgres"), eventstore.WithWriteLock(postgres.NewAdvisoryLock(5*time.Second)))
	name := uniqueStream(t, s, "orders")
	require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 1)...)))

	tx := eventstore.NewTransactional(s)
	_, err := tx.Transactional(ctx, func(ctx context.Context, c store.Chronicler) (any, error) {
		return nil, c.Amend(ctx, es.NewStream(name, orderEvents("A", 1, 1)...))
	})
	require.ErrorIs(t, err, store.ErrConcurrency)

	other := newStore(t, getTestDB(t, "postgres"), eventstore.WithWriteLock(postgres.NewAdvisoryLock(500*time.Millisecond)))
	assert.NoError(t, other.Amend(ctx, es.NewStream(name, orderEvents("A", 2, 2)...)))
}

func TestAdvisoryLock_HeldUntilCommit(t *testing.T) {
	ctx := context.Background()
	db := getTestDB(t, "postgres")
	s := newStore(t, db, eventstore.WithWriteLock(postgres.NewAdvisoryLock(200*time.Millisecond)))
	name := uniqueStream(t, s, "orders")
	require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 1)...)))

	tx := eventstore.NewTransactional(s)
	require.NoError(t, tx.BeginTransaction(ctx))
	require.NoError(t, tx.Amend(ctx, es.NewStream(name, orderEvents("A", 2, 2)...)))

	err := s.Amend(ctx, es.NewStream(name, orderEvents("A", 3, 3)...))
	assert.ErrorIs(t, err, store.ErrConcurrency)

	require.NoError(t, tx.CommitTransaction())
	assert.NoError(t, s.Amend(ctx, es.NewStream(name, orderEvents("A", 3, 3)...)))
}

func TestRowLock_InTransaction(t *testing.T) {
	ctx := context.Background()
	db := getTestDB(t, "pgx")
	s := newStore(t, db, eventstore.WithWriteLock(lock.RowLock{}))
	name := uniqueStream(t, s, "orders")
	require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 1)...)))

	first := eventstore.NewTransactional(s)
	require.NoError(t, first.BeginTransaction(ctx))
	require.NoError(t, first.Amend(ctx, es.NewStream(name, orderEvents("A", 2, 2)...)))

	// The second writer blocks on the tail row until the first commits,
	// then collides on the version.
	done := make(chan error, 1)
	go func() {
		second := eventstore.NewTransactional(s)
		_, err := second.Transactional(ctx, func(ctx context.Context, c store.Chronicler) (any, error) {
			return nil, c.Amend(ctx, es.NewStream(name, orderEvents("A", 2, 2)...))
		})
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("second writer finished while the row was locked: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, first.CommitTransaction())
	assert.ErrorIs(t, <-done, store.ErrConcurrency)
}

func TestTransactional_RollbackRemovesStream(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, getTestDB(t, "postgres"))
	tx := eventstore.NewTransactional(s)
	name := uniqueStream(t, s, "orders")

	boom := errors.New("boom")
	_, err := tx.Transactional(ctx, func(ctx context.Context, c store.Chronicler) (any, error) {
		if err := c.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 2)...)); err != nil {
			return nil, err
		}
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	exists, err := s.HasStream(ctx, name)
	require.NoError(t, err)
	assert.False(t, exists)

	var regclass sql.NullString
	require.NoError(t, s.DB().QueryRowContext(ctx, "SELECT to_regclass($1)::text", persistence.TableName(name)).Scan(&regclass))
	assert.False(t, regclass.Valid, "table should be rolled back with the transaction")
}

func TestPerAggregate(t *testing.T) {
	ctx := context.Background()
	db := getTestDB(t, "pgx")
	s := newStore(t, db, eventstore.WithStrategy(persistence.NewPerAggregate(postgres.Dialect{})))
	name := uniqueStream(t, s, "order")

	require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 3)...)))
	events := collect(t, s.RetrieveAll(ctx, name, "", es.Forward))
	require.Len(t, events, 3)
	for _, event := range events {
		assert.Equal(t, event.AggregateVersion, event.Position)
	}

	err := s.Amend(ctx, es.NewStream(name, orderEvents("A", 3, 3)...))
	assert.ErrorIs(t, err, store.ErrConcurrency)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, getTestDB(t, "postgres"))
	name := uniqueStream(t, s, "orders")

	require.NoError(t, s.FirstCommit(ctx, es.NewStream(name, orderEvents("A", 1, 1)...)))
	require.NoError(t, s.Delete(ctx, name))

	assert.ErrorIs(t, s.Delete(ctx, name), store.ErrStreamNotFound)
	for _, err := range s.RetrieveAll(ctx, name, "", es.Forward) {
		assert.ErrorIs(t, err, store.ErrStreamNotFound)
	}
}

func TestCatalogListings(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, getTestDB(t, "pgx"))
	category := "cat" + uuid.NewString()[:8]
	a := uniqueStream(t, s, category)
	b := uniqueStream(t, s, category)

	require.NoError(t, s.FirstCommit(ctx, es.NewStream(a)))
	require.NoError(t, s.FirstCommit(ctx, es.NewStream(b)))

	names, err := s.FilterCategoryNames(ctx, category)
	require.NoError(t, err)
	assert.ElementsMatch(t, []es.StreamName{a, b}, names)

	filtered, err := s.FilterStreamNames(ctx, a, "missing-stream")
	require.NoError(t, err)
	assert.Equal(t, []es.StreamName{a}, filtered)
}
