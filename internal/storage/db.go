// Package storage persists run history in a SQLite database under
// .aprbot/aprbot.db. The store is optional; a default run keeps nothing on
// disk beyond the summary and the test artifacts.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"aprbot/internal/logging"
)

// DB represents a database connection with transaction helpers
type DB struct {
	conn   *sql.DB
	logger *logging.Logger
	dbPath string
}

// Open opens or creates the run-history database at .aprbot/aprbot.db
func Open(repoRoot string, logger *logging.Logger) (*DB, error) {
	dir := filepath.Join(repoRoot, ".aprbot")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .aprbot directory: %w", err)
	}

	dbPath := filepath.Join(dir, "aprbot.db")

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Pragmas for reliability on a single-writer workload
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	db := &DB{
		conn:   conn,
		logger: logger.WithComponent("storage"),
		dbPath: dbPath,
	}

	if err := db.initializeSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// WithTx runs fn inside a transaction, rolling back on error
func (db *DB) WithTx(fn func(*sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// initializeSchema creates the tables when they do not exist yet
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS runs (
				run_id TEXT PRIMARY KEY,
				repo_root TEXT NOT NULL,
				branch TEXT,
				started_at TEXT NOT NULL,
				duration_ms INTEGER NOT NULL,
				suspicious_locations INTEGER NOT NULL,
				ast_nodes INTEGER NOT NULL,
				patch_candidates INTEGER NOT NULL,
				prioritized_patches INTEGER NOT NULL,
				validation_results INTEGER NOT NULL,
				best_patch_id TEXT,
				validated INTEGER NOT NULL
			)`); err != nil {
			return err
		}
		if _, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS validation_logs (
				run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
				patch_id TEXT NOT NULL,
				compilation_success INTEGER NOT NULL,
				tests_passed INTEGER NOT NULL,
				build_time_ms INTEGER NOT NULL,
				test_time_ms INTEGER NOT NULL,
				tests_passed_count INTEGER NOT NULL,
				tests_total_count INTEGER NOT NULL,
				error_message TEXT,
				build_output_zst BLOB,
				test_output_zst BLOB,
				PRIMARY KEY (run_id, patch_id)
			)`); err != nil {
			return err
		}
		if _, err := tx.Exec(`
			CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC)`); err != nil {
			return err
		}
		return nil
	})
}
