// Package stats records per-run analysis statistics and the suggestions each
// run produced in a local SQLite database. The pipeline treats the whole
// store as optional: an agent without stats.db still analyzes, it just keeps
// no history.
package stats

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Store wraps the runs database.
type Store struct {
	db *sql.DB
}

// Open initializes the SQLite database at baseDir/stats.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.snipsense.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	// Pragmas in the connection string apply to every pooled connection.
	dbPath := filepath.Join(baseDir, "stats.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open stats db: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := getUserVersion(db)
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS runs (
		  id               TEXT PRIMARY KEY,
		  started_at       INTEGER NOT NULL,
		  finished_at      INTEGER NOT NULL,
		  entry_count      INTEGER NOT NULL,
		  cluster_count    INTEGER NOT NULL,
		  suggestion_count INTEGER NOT NULL,
		  duration_ms      INTEGER NOT NULL,
		  fatal            TEXT,
		  errors_json      TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started
		ON runs(started_at DESC);

		CREATE TABLE IF NOT EXISTS suggestions (
		  id                TEXT PRIMARY KEY,
		  run_id            TEXT NOT NULL,
		  trigger_text      TEXT NOT NULL,
		  replacement_text  TEXT NOT NULL,
		  source_texts_json TEXT,
		  confidence        REAL NOT NULL,
		  created_at        INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_suggestions_run
		ON suggestions(run_id, created_at DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

func getUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
