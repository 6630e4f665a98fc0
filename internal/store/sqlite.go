// Package store persists telemetry events and round history in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/lunasherpa/luna/internal/logging"
)

// memoryPath opens a private in-memory database.
const memoryPath = ":memory:"

// pragmas run once per Open, in order. busy_timeout lets the CLI and a
// running gateway share history.db.
var pragmas = []struct{ stmt, what string }{
	{"PRAGMA journal_mode=WAL", "journal mode"},
	{"PRAGMA foreign_keys=ON", "foreign keys"},
	{"PRAGMA busy_timeout=5000", "busy timeout"},
}

// DB is an open Luna database with its schema applied.
type DB struct {
	sql *sql.DB
	log *logging.Logger
}

// Open opens the database at path, creating the file and its directory as
// needed, and applies pending migrations.
func Open(path string, log *logging.Logger) (*DB, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if path == memoryPath {
		// Each pooled connection would get its own empty database.
		conn.SetMaxOpenConns(1)
	}

	db := &DB{sql: conn, log: log.Sub("store").With("db", filepath.Base(path))}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) init() error {
	for _, p := range pragmas {
		if _, err := db.sql.Exec(p.stmt); err != nil {
			return fmt.Errorf("setting %s: %w", p.what, err)
		}
	}
	if err := db.migrate(); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	return db.sql.Close()
}

// SQL exposes the pool for ad-hoc queries.
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// migrate applies every migration newer than the recorded ones, each in its
// own transaction.
func (db *DB) migrate() error {
	if _, err := db.sql.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	applied, err := db.appliedVersions()
	if err != nil {
		return err
	}

	pending := 0
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := db.apply(m); err != nil {
			return err
		}
		pending++
	}
	if pending > 0 {
		db.log.Info().Int("applied", pending).Int("version", migrations[len(migrations)-1].Version).Msg("schema upgraded")
	}
	return nil
}

func (db *DB) appliedVersions() (map[int]bool, error) {
	rows, err := db.sql.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("reading schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("reading schema_migrations: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (db *DB) apply(m migration) error {
	tx, err := db.sql.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
		return fmt.Errorf("migration %d: recording: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: commit: %w", m.Version, err)
	}
	db.log.Debug().Int("version", m.Version).Str("name", m.Name).Msg("migration applied")
	return nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
