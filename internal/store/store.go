// Package store is the primary record store: organizations, candidates and
// job listings persisted as JSON documents in a local SQLite database.
// Repositories notify registered listeners after every committed write so
// secondary indexes can follow along.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: record not found")

// Tables holding each record type.
const (
	tableOrganizations = "organizations"
	tableCandidates    = "candidates"
	tableJobListings   = "job_listings"
)

// DB is a SQLite database holding every record table.
type DB struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default database path, ~/.hiresync/hiresync.db,
// creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".hiresync")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "hiresync.db"), nil
}

// Open opens (or creates) the database at path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &DB{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *DB) migrate() error {
	for _, table := range []string{tableOrganizations, tableCandidates, tableJobListings} {
		ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    id          TEXT    PRIMARY KEY,
    org         TEXT    NOT NULL DEFAULT '',
    doc         TEXT    NOT NULL,           -- JSON document
    created_at  INTEGER NOT NULL,           -- Unix timestamp (nanoseconds)
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_org_created ON %[1]s (org, created_at);
`, table)
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("store: migrate %s: %w", table, err)
		}
	}
	return nil
}

// Name returns the dependency label used in readiness responses.
func (s *DB) Name() string { return "sqlite" }

// Ping verifies the database is reachable.
func (s *DB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database connection pool.
func (s *DB) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
