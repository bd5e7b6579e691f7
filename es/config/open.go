package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	// register the pgx stdlib driver as "pgx"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/getpup/pupstore/es/adapters/mysql"
	"github.com/getpup/pupstore/es/adapters/postgres"
	"github.com/getpup/pupstore/es/adapters/sqlite"
	"github.com/getpup/pupstore/es/eventstore"
	"github.com/getpup/pupstore/es/loader"
	"github.com/getpup/pupstore/es/lock"
	"github.com/getpup/pupstore/es/persistence"
	"github.com/getpup/pupstore/es/store"
)

// Store is a store assembled from a Config. It owns the database pool and,
// with the redis write lock, the Redis client.
type Store struct {
	store.Chronicler

	// Engine is the underlying engine, also when Chronicler is transactional.
	Engine *eventstore.Store

	DB *sql.DB

	redis *redis.Client
}

// Transactional returns the chronicler as a TransactionalChronicler when
// the configuration enabled transactions.
func (s *Store) Transactional() (store.TransactionalChronicler, bool) {
	t, ok := s.Chronicler.(store.TransactionalChronicler)
	return t, ok
}

// Close releases the database pool and the Redis client.
func (s *Store) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.DB.Close())
	return errors.Join(errs...)
}

type engine struct {
	dialect      persistence.Dialect
	defaultLock  func(time.Duration) lock.WriteLock
	driverName   string
	createEngine func(*sql.DB, ...eventstore.Option) (*eventstore.Store, error)
}

func engineFor(driver string) (engine, error) {
	switch driver {
	case DriverPostgres, DriverPGX:
		return engine{
			dialect:      postgres.Dialect{},
			defaultLock:  postgres.DefaultWriteLock,
			driverName:   driver,
			createEngine: postgres.NewStore,
		}, nil
	case DriverMySQL:
		return engine{
			dialect:      mysql.Dialect{},
			defaultLock:  mysql.DefaultWriteLock,
			driverName:   driver,
			createEngine: mysql.NewStore,
		}, nil
	case DriverSQLite:
		return engine{
			dialect:      sqlite.Dialect{},
			defaultLock:  sqlite.DefaultWriteLock,
			driverName:   driver,
			createEngine: sqlite.NewStore,
		}, nil
	default:
		return engine{}, invalid("unknown driver %q", driver)
	}
}

// Open opens the database and assembles the store described by cfg.
// opts are applied after the configured components; the "custom" modes
// require the matching option (WithStrategy, WithWriteLock, WithLoader).
func Open(ctx context.Context, cfg *Config, opts ...eventstore.Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	eng, err := engineFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	supplied := eventstore.NewConfig(opts...)
	built, redisClient, err := components(cfg, eng, supplied)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(eng.driverName, cfg.DSN)
	if err != nil {
		closeRedis(redisClient)
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		closeRedis(redisClient)
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}

	engineStore, err := eng.createEngine(db, append(built, opts...)...)
	if err != nil {
		db.Close()
		closeRedis(redisClient)
		return nil, err
	}

	s := &Store{Chronicler: engineStore, Engine: engineStore, DB: db, redis: redisClient}
	if cfg.Transactional {
		s.Chronicler = eventstore.NewTransactional(engineStore)
	}
	return s, nil
}

// components translates the selectors into engine options.
func components(cfg *Config, eng engine, supplied eventstore.Config) ([]eventstore.Option, *redis.Client, error) {
	opts := []eventstore.Option{eventstore.WithCatalogTable(cfg.CatalogTable)}

	strategy, err := strategyFor(cfg, eng, supplied)
	if err != nil {
		return nil, nil, err
	}
	if strategy != nil {
		opts = append(opts, eventstore.WithStrategy(strategy))
	} else {
		strategy = supplied.Strategy
	}

	readMode, chunkSize, err := ParseReadMode(cfg.ReadMode)
	if err != nil {
		return nil, nil, err
	}
	serializer := persistence.SerializerOf(strategy)
	switch readMode {
	case ReadModeCursor:
		opts = append(opts, eventstore.WithLoader(loader.NewCursor(loader.WithSerializer(serializer))))
	case ReadModeLazy:
		opts = append(opts, eventstore.WithLoader(loader.NewLazy(chunkSize, loader.WithSerializer(serializer))))
	case ReadModeCustom:
		if supplied.Loader == nil {
			return nil, nil, invalid("read_mode %q requires a loader option", readMode)
		}
	}

	var redisClient *redis.Client
	switch cfg.WriteLock {
	case WriteLockNone:
		opts = append(opts, eventstore.WithWriteLock(lock.NoOp{}))
	case WriteLockDefault:
		opts = append(opts, eventstore.WithWriteLock(eng.defaultLock(cfg.LockTimeout)))
	case WriteLockRow:
		opts = append(opts, eventstore.WithWriteLock(lock.RowLock{}))
	case WriteLockRedis:
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		opts = append(opts, eventstore.WithWriteLock(lock.NewRedis(redisClient, lock.WithRedisTimeout(cfg.LockTimeout))))
	case WriteLockCustom:
		if supplied.WriteLock == nil {
			return nil, nil, invalid("write_lock %q requires a write lock option", cfg.WriteLock)
		}
	}

	return opts, redisClient, nil
}

func strategyFor(cfg *Config, eng engine, supplied eventstore.Config) (persistence.Strategy, error) {
	switch cfg.Persistence {
	case PersistenceSingle:
		return persistence.NewSingleStream(eng.dialect), nil
	case PersistencePerAggregate:
		return persistence.NewPerAggregate(eng.dialect), nil
	case PersistenceCustom:
		if supplied.Strategy == nil {
			return nil, invalid("persistence %q requires a strategy option", cfg.Persistence)
		}
		return nil, nil
	default:
		return nil, invalid("unknown persistence %q", cfg.Persistence)
	}
}

func closeRedis(c *redis.Client) {
	if c != nil {
		_ = c.Close()
	}
}
