// Package db stores cross-match runs and master catalogs in SQLite.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/skymatch/internal/timeutil"
)

// DefaultFileName is the store's file name inside a cache directory.
const DefaultFileName = "skymatch.db"

type DB struct {
	*sql.DB
	clock timeutil.Clock
}

// SetClock replaces the clock that stamps new runs.
func (db *DB) SetClock(c timeutil.Clock) {
	db.clock = c
}

// pragmas are applied to every connection the store opens.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// OpenDB opens the database at path and applies the connection pragmas
// without touching the schema.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite pragmas are per connection; keep a single one.
	sqlDB.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	return &DB{DB: sqlDB, clock: timeutil.RealClock{}}, nil
}

// NewDB opens the database at path and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
