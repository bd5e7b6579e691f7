package eventstore

import (
	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/catalog"
	"github.com/getpup/pupstore/es/loader"
	"github.com/getpup/pupstore/es/lock"
	"github.com/getpup/pupstore/es/persistence"
	"github.com/getpup/pupstore/es/store"
)

// Config contains the collaborators of a Store.
// Configuration is immutable after construction; nil fields get defaults.
type Config struct {
	// Logger is an optional logger for observability.
	// If nil, logging is disabled.
	Logger es.Logger

	// Strategy lays streams out in physical tables.
	// Defaults to the single stream strategy of the dialect.
	Strategy persistence.Strategy

	// WriteLock guards the write path. Defaults to lock.NoOp.
	WriteLock lock.WriteLock

	// Loader reads query results. Defaults to a cursor loader using the
	// strategy's serializer.
	Loader loader.Loader

	// Catalog is the stream catalog. Defaults to a catalog.Provider on
	// CatalogTable.
	Catalog store.EventStreamProvider

	// CatalogTable is the table of the default catalog and of CreateCatalog.
	CatalogTable string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CatalogTable: catalog.DefaultTable,
	}
}

// Option is a functional option for configuring a Store.
type Option func(*Config)

// WithLogger sets a logger for the store.
func WithLogger(logger es.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithStrategy sets the stream persistence strategy.
func WithStrategy(strategy persistence.Strategy) Option {
	return func(c *Config) {
		c.Strategy = strategy
	}
}

// WithWriteLock sets the write lock.
func WithWriteLock(l lock.WriteLock) Option {
	return func(c *Config) {
		c.WriteLock = l
	}
}

// WithLoader sets the result loader.
func WithLoader(l loader.Loader) Option {
	return func(c *Config) {
		c.Loader = l
	}
}

// WithCatalog replaces the stream catalog.
func WithCatalog(provider store.EventStreamProvider) Option {
	return func(c *Config) {
		c.Catalog = provider
	}
}

// WithCatalogTable sets a custom catalog table name.
func WithCatalogTable(table string) Option {
	return func(c *Config) {
		c.CatalogTable = table
	}
}

// NewConfig creates a configuration from the defaults and the given options.
func NewConfig(opts ...Option) Config {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}
