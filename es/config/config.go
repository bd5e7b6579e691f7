// Package config loads the store configuration with viper and assembles a
// ready to use store from it.
//
// Keys may come from a YAML, TOML or JSON file and are overridden by
// PUPSTORE_* environment variables (PUPSTORE_DSN, PUPSTORE_WRITE_LOCK, ...).
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/getpup/pupstore/es/catalog"
	"github.com/getpup/pupstore/es/loader"
	"github.com/getpup/pupstore/es/lock"
	"github.com/getpup/pupstore/es/store"
)

// EnvPrefix prefixes the environment variables read by Load.
const EnvPrefix = "PUPSTORE"

// Drivers.
const (
	DriverPostgres = "postgres" // lib/pq
	DriverPGX      = "pgx"      // jackc/pgx stdlib
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Write lock modes.
const (
	WriteLockNone    = "none"
	WriteLockDefault = "default" // advisory on postgres, GET_LOCK on mysql, none on sqlite
	WriteLockRow     = "row"
	WriteLockRedis   = "redis"
	WriteLockCustom  = "custom"
)

// Read modes. The lazy mode accepts a chunk size: "lazy:1000".
const (
	ReadModeCursor = "cursor"
	ReadModeLazy   = "lazy"
	ReadModeCustom = "custom"
)

// Persistence modes.
const (
	PersistenceSingle       = "single"
	PersistencePerAggregate = "per-aggregate"
	PersistenceCustom       = "custom"
)

// Config holds the store configuration.
type Config struct {
	Driver        string        `mapstructure:"driver"`
	DSN           string        `mapstructure:"dsn"`
	WriteLock     string        `mapstructure:"write_lock"`
	ReadMode      string        `mapstructure:"read_mode"`
	Persistence   string        `mapstructure:"persistence"`
	Transactional bool          `mapstructure:"transactional"`
	CatalogTable  string        `mapstructure:"catalog_table"`
	LockTimeout   time.Duration `mapstructure:"lock_timeout"`
	RedisAddr     string        `mapstructure:"redis_addr"`
}

// Default returns the configuration used for missing keys.
func Default() Config {
	return Config{
		Driver:       DriverPostgres,
		WriteLock:    WriteLockNone,
		ReadMode:     ReadModeCursor,
		Persistence:  PersistenceSingle,
		CatalogTable: catalog.DefaultTable,
		LockTimeout:  lock.DefaultTimeout,
	}
}

// Load reads the configuration file at path, when path is not empty, and
// the PUPSTORE_* environment, then validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	config := &Config{
		Driver:        v.GetString("driver"),
		DSN:           v.GetString("dsn"),
		WriteLock:     v.GetString("write_lock"),
		ReadMode:      v.GetString("read_mode"),
		Persistence:   v.GetString("persistence"),
		Transactional: v.GetBool("transactional"),
		CatalogTable:  v.GetString("catalog_table"),
		LockTimeout:   v.GetDuration("lock_timeout"),
		RedisAddr:     v.GetString("redis_addr"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("driver", d.Driver)
	v.SetDefault("dsn", "")
	v.SetDefault("write_lock", d.WriteLock)
	v.SetDefault("read_mode", d.ReadMode)
	v.SetDefault("persistence", d.Persistence)
	v.SetDefault("transactional", false)
	v.SetDefault("catalog_table", d.CatalogTable)
	v.SetDefault("lock_timeout", d.LockTimeout)
	v.SetDefault("redis_addr", "")
}

// Validate checks the driver, the DSN and every selector.
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverPGX, DriverMySQL, DriverSQLite:
	default:
		return invalid("unknown driver %q", c.Driver)
	}
	if c.DSN == "" {
		return invalid("dsn is required")
	}

	switch c.WriteLock {
	case WriteLockNone, WriteLockDefault, WriteLockCustom:
	case WriteLockRow:
		if c.Driver == DriverSQLite {
			return invalid("write_lock %q is not supported by sqlite", c.WriteLock)
		}
	case WriteLockRedis:
		if c.RedisAddr == "" {
			return invalid("redis_addr is required with write_lock %q", c.WriteLock)
		}
	default:
		return invalid("unknown write_lock %q", c.WriteLock)
	}

	if _, _, err := ParseReadMode(c.ReadMode); err != nil {
		return err
	}

	switch c.Persistence {
	case PersistenceSingle, PersistencePerAggregate, PersistenceCustom:
	default:
		return invalid("unknown persistence %q", c.Persistence)
	}

	if c.LockTimeout < 0 {
		return invalid("lock_timeout must not be negative")
	}
	return nil
}

// ParseReadMode splits a read mode into its name and the lazy chunk size.
// "lazy" alone uses loader.DefaultChunkSize.
func ParseReadMode(mode string) (string, uint64, error) {
	name, size, hasSize := strings.Cut(mode, ":")
	switch name {
	case ReadModeCursor, ReadModeCustom:
		if hasSize {
			return "", 0, invalid("read_mode %q takes no chunk size", mode)
		}
		return name, 0, nil
	case ReadModeLazy:
		if !hasSize {
			return name, loader.DefaultChunkSize, nil
		}
		n, err := strconv.ParseUint(size, 10, 64)
		if err != nil || n == 0 {
			return "", 0, invalid("invalid lazy chunk size in read_mode %q", mode)
		}
		return name, n, nil
	default:
		return "", 0, invalid("unknown read_mode %q", mode)
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{store.ErrInvalidArgument}, args...)...)
}
