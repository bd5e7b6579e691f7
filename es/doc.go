// Package es provides the core types of the event store: events, streams,
// stream names, the DBTX connection abstraction and the Logger interface.
//
// # Overview
//
// A stream is a named, append-only sequence of events. Each stream lives in
// its own physical table whose name is derived from the stream name; a
// catalog table records which streams exist, their table and their category.
//
//   - Event: immutable domain event with aggregate identity and version
//   - Stream: a named batch of events handed to FirstCommit or Amend
//   - StreamName: logical name; "$" prefixed names are internal
//   - DBTX: *sql.DB, *sql.Conn or *sql.Tx
//   - Logger: optional structured logging hook
//
// # Quick Start
//
// 1. Create a store for your engine:
//
//	import (
//	    "github.com/getpup/pupstore/es"
//	    "github.com/getpup/pupstore/es/adapters/postgres"
//	)
//
//	store, err := postgres.NewStore(db)
//	if err != nil {
//	    return err
//	}
//
// 2. Create the catalog, or apply the output of cmd/migrate-gen:
//
//	err = store.CreateCatalog(ctx)
//
// 3. Create a stream with its first events, then append to it:
//
//	err = store.FirstCommit(ctx, es.NewStream("order-42", es.Event{
//	    AggregateType:    "Order",
//	    AggregateID:      "42",
//	    AggregateVersion: 1,
//	    EventType:        "OrderPlaced",
//	    Content:          payload,
//	}))
//
//	err = store.Amend(ctx, es.NewStream("order-42", next...))
//
// 4. Read it back:
//
//	for event, err := range store.RetrieveAll(ctx, "order-42", "42", es.Forward) {
//	    if err != nil {
//	        return err
//	    }
//	    apply(event)
//	}
//
// # Concurrency
//
// Every physical table carries a unique constraint on the aggregate version.
// Two writers appending the same version collide on it and the loser gets a
// store.ConcurrencyError. Write locks (es/lock and the adapters) serialize
// writers ahead of the insert when optimistic detection alone is not wanted.
//
// # Transactions
//
// Store operations run on the pool. eventstore.TransactionalStore groups
// operations in one transaction; on engines with transactional DDL a rolled
// back FirstCommit also removes the stream's table.
package es
