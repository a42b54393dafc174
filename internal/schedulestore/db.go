// Package schedulestore persists Schedules and Runs in sqlite (C8),
// grounded on internal/db/db.go's connection bring-up (PRAGMA tuning,
// retry-with-backoff open) and internal/db/repositories/agent_runs.go's
// otel.Tracer-wrapped repository shape.
package schedulestore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a sqlite connection tuned for a single-writer, many-reader
// workload, following the platform's PRAGMA choices.
type DB struct {
	conn *sql.DB
}

// Open creates (if needed) and connects to the sqlite file at path,
// retrying with exponential backoff since concurrent schedule runs may
// be contending for the file lock.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	const maxRetries = 5
	const baseDelay = 100 * time.Millisecond

	var conn *sql.DB
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		conn, err = sql.Open("sqlite3", path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(5)

		if err = conn.Ping(); err == nil {
			break
		}
		if attempt == maxRetries-1 {
			return nil, fmt.Errorf("failed to ping database after %d attempts: %w", maxRetries, err)
		}
		conn.Close()
		time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return &DB{conn: conn}, nil
}

// Migrate runs embedded migrations.
func (db *DB) Migrate() error {
	return RunMigrations(db.conn)
}

func (db *DB) Conn() *sql.DB { return db.conn }

func (db *DB) Close() error {
	db.conn.SetMaxOpenConns(0)
	db.conn.SetMaxIdleConns(0)
	return db.conn.Close()
}
