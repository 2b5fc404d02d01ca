// Package db opens the embedded SQL databases used for local state.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
	_ "modernc.org/sqlite"
)

// Drivers understood by Open.
const (
	DuckDB = "duckdb"
	SQLite = "sqlite"
)

// Config holds database configuration.
type Config struct {
	Driver  string
	DataDir string
	DBName  string
}

// Path returns the database file for cfg: <data-dir>/<driver>/<name>.<ext>.
func Path(cfg Config) string {
	ext := ".duckdb"
	if cfg.Driver == SQLite {
		ext = ".db"
	}
	return filepath.Join(cfg.DataDir, cfg.Driver, cfg.DBName+ext)
}

// Open opens the database described by cfg, creating its directory.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.Driver != DuckDB && cfg.Driver != SQLite {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if cfg.DBName == "" {
		cfg.DBName = "waterwatch"
	}

	dbPath := Path(cfg)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", cfg.Driver, err)
	}

	conn, err := sql.Open(cfg.Driver, dbPath)
	if err != nil {
		return nil, err
	}

	if cfg.Driver == SQLite {
		// Set pragmas for concurrent readers
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
			if _, err := conn.Exec(pragma); err != nil {
				conn.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open %s: %w", dbPath, err)
	}
	return conn, nil
}
