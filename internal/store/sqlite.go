package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore backs every persistent concern of the daemon: extracted job
// postings, the processed-email ledger, the resume profile cache, and the
// pipeline run queue. One file, one connection pool.
type SQLiteStore struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		company      TEXT NOT NULL,
		location     TEXT NOT NULL DEFAULT '',
		remote       INTEGER NOT NULL DEFAULT 0,
		description  TEXT NOT NULL DEFAULT '',
		requirements TEXT NOT NULL DEFAULT '[]',
		apply_url    TEXT NOT NULL DEFAULT '',
		salary       TEXT NOT NULL DEFAULT '',
		posted_at    DATETIME,
		source       TEXT NOT NULL DEFAULT '',
		relevance    REAL NOT NULL DEFAULT 0,
		email_id     TEXT NOT NULL DEFAULT '',
		processed    INTEGER NOT NULL DEFAULT 0,
		created_at   DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_relevance ON jobs (relevance, created_at)`,
	`CREATE TABLE IF NOT EXISTS processed_emails (
		email_id     TEXT PRIMARY KEY,
		jobs_found   INTEGER NOT NULL DEFAULT 0,
		archived     INTEGER NOT NULL DEFAULT 0,
		processed_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS resume_profile (
		id              INTEGER PRIMARY KEY CHECK (id = 1),
		skills          TEXT NOT NULL DEFAULT '[]',
		highlights      TEXT NOT NULL DEFAULT '[]',
		preferred_roles TEXT NOT NULL DEFAULT '[]',
		seniority       TEXT NOT NULL DEFAULT '',
		analyzed_at     DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id              TEXT PRIMARY KEY,
		kind            TEXT NOT NULL,
		trigger_source  TEXT NOT NULL,
		priority        INTEGER NOT NULL DEFAULT 0,
		payload         TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL,
		progress        INTEGER NOT NULL DEFAULT 0,
		step            TEXT NOT NULL DEFAULT '',
		attempts        INTEGER NOT NULL DEFAULT 0,
		last_err        TEXT NOT NULL DEFAULT '',
		next_attempt_at DATETIME,
		created_at      DATETIME NOT NULL,
		started_at      DATETIME,
		leased_at       DATETIME,
		completed_at    DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_status_kind ON pipeline_runs (status, kind)`,
}

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	// The queue worker and scheduler share this pool; sqlite allows one
	// writer, so serialize access instead of fighting over busy errors.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
