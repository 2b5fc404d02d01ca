// Package store is a small string key-value store with interchangeable
// backends.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/joeblew999/plat-waterwatch/internal/db"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("store: key not found")

// KV stores string values by key.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Drivers understood by Open.
const (
	DriverDuckDB = db.DuckDB
	DriverSQLite = db.SQLite
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Driver  string
	DataDir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open returns the store named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (KV, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverDuckDB, DriverSQLite:
		conn, err := db.Open(db.Config{Driver: cfg.Driver, DataDir: cfg.DataDir, DBName: "waterwatch"})
		if err != nil {
			return nil, err
		}
		return NewSQL(ctx, conn)
	case DriverRedis:
		return NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
