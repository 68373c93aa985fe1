package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Database wraps the sqlx.DB connection.
type Database struct {
	*sqlx.DB
}

// schema defines the database tables.
const schema = `
CREATE TABLE IF NOT EXISTS tenant_secrets (
    secret_key TEXT PRIMARY KEY,
    chat_id TEXT UNIQUE NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS credentials (
    chat_id TEXT PRIMARY KEY,
    sealed_token TEXT NOT NULL,
    created_by TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS pending_requests (
    request_id TEXT PRIMARY KEY,
    secret_key TEXT NOT NULL,
    user_id TEXT NOT NULL,
    chat_id TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id TEXT NOT NULL,
    author TEXT,
    repo_name TEXT,
    branch_name TEXT,
    summary TEXT,
    files_added INTEGER DEFAULT 0,
    files_modified INTEGER DEFAULT 0,
    files_removed INTEGER DEFAULT 0,
    files_changed INTEGER DEFAULT 0,
    lines_added INTEGER DEFAULT 0,
    lines_removed INTEGER DEFAULT 0,
    confidence TEXT NOT NULL DEFAULT 'estimated',
    dedup_key TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    UNIQUE(chat_id, dedup_key)
);

CREATE TABLE IF NOT EXISTS pending_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    author TEXT,
    repo_name TEXT,
    branch_name TEXT,
    payload BLOB NOT NULL,
    enqueued_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS pull_requests (
    id INTEGER PRIMARY KEY,
    chat_id TEXT NOT NULL,
    repo_name TEXT,
    number INTEGER,
    author TEXT,
    created_at DATETIME,
    merged_at DATETIME,
    closed_at DATETIME,
    state TEXT,
    additions INTEGER DEFAULT 0,
    deletions INTEGER DEFAULT 0,
    changed_files INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pr_reviews (
    id INTEGER PRIMARY KEY,
    chat_id TEXT NOT NULL,
    pr_id INTEGER,
    reviewer TEXT,
    state TEXT,
    submitted_at DATETIME
);

CREATE TABLE IF NOT EXISTS issues_closed (
    id INTEGER PRIMARY KEY,
    chat_id TEXT NOT NULL,
    repo_name TEXT,
    number INTEGER,
    author TEXT,
    closed_by TEXT,
    created_at DATETIME,
    closed_at DATETIME,
    labels TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS ci_results (
    id INTEGER PRIMARY KEY,
    chat_id TEXT NOT NULL,
    pr_id INTEGER,
    status TEXT,
    started_at DATETIME,
    finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_events_chat_time ON events(chat_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_pending_events_chat ON pending_events(chat_id, enqueued_at);
CREATE INDEX IF NOT EXISTS idx_pending_requests_user ON pending_requests(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_pull_requests_chat ON pull_requests(chat_id, created_at);
CREATE INDEX IF NOT EXISTS idx_pr_reviews_chat ON pr_reviews(chat_id, submitted_at);
`

// NewDatabase creates a new database connection and initializes the schema.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists for file-backed databases
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// A memory database lives on its connection; keep the pool at one so
	// every query sees the same data.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.DB.Close()
}
