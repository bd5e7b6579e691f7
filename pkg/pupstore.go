// Package pupstore is a relational event store for Go applications.
//
// This package serves as the main entry point for the pupstore library.
// The store itself lives in the es package and its subpackages:
//
//	es                   - Core types: events, streams, DBTX, logging
//	es/store             - Chronicler interfaces, filters and errors
//	es/eventstore        - The engine and its transactional decorator
//	es/persistence       - Table layout strategies and serialization
//	es/lock              - Write locks (no-op, row, Redis)
//	es/loader            - Cursor and lazy result loaders
//	es/catalog           - The stream catalog
//	es/adapters/postgres - PostgreSQL dialect, errors and advisory lock
//	es/adapters/mysql    - MySQL dialect, errors and named lock
//	es/adapters/sqlite   - SQLite dialect and errors
//	es/config            - viper configuration and store assembly
//	es/migrations        - Migration generation
//
// Quick Start:
//
//  1. Generate the catalog migration, or let the store create it:
//     go run github.com/getpup/pupstore/cmd/migrate-gen --output migrations
//
//  2. Create a store and commit a stream:
//     store, err := postgres.NewStore(db)
//     err = store.FirstCommit(ctx, es.NewStream("orders", events...))
//
//  3. Read it back:
//     for event, err := range store.RetrieveAll(ctx, "orders", "", es.Forward) { ... }
//
// See the examples directory for complete working examples.
package pupstore

// Version returns the current version of the library.
func Version() string {
	return "0.1.0-dev"
}
