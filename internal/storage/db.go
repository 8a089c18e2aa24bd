package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps SQLite database operations. It is the authoritative record for
// projects, engagement events, follow edges, and recommendation clicks; the
// search index and embedding vectors are derived views rebuilt from it.
type Store struct {
	db *sql.DB
}

// Open opens or creates a SQLite database
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory database exists per connection; keep the pool at one
	// so every query sees the same schema.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	store := &Store{db: db}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

// OpenInMemory opens a private in-memory database, used by tests.
func OpenInMemory() (*Store, error) {
	return Open(":memory:")
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// initSchema creates tables if they don't exist
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		creator_id TEXT NOT NULL,
		creator_name TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		tech_tags TEXT NOT NULL DEFAULT '[]',
		published INTEGER NOT NULL DEFAULT 0,
		view_count INTEGER NOT NULL DEFAULT 0,
		engagement_score REAL NOT NULL DEFAULT 0,
		embedding BLOB,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_creator ON projects(creator_id);
	CREATE INDEX IF NOT EXISTS idx_projects_published ON projects(published);
	CREATE INDEX IF NOT EXISTS idx_projects_created ON projects(created_at);

	CREATE TABLE IF NOT EXISTS engagement_events (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		project_id TEXT REFERENCES projects(id) ON DELETE CASCADE,
		action TEXT NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		referrer TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_project ON engagement_events(project_id);
	CREATE INDEX IF NOT EXISTS idx_events_user ON engagement_events(user_id);
	CREATE INDEX IF NOT EXISTS idx_events_created ON engagement_events(created_at);

	CREATE TABLE IF NOT EXISTS follows (
		follower_id TEXT NOT NULL,
		creator_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (follower_id, creator_id)
	);

	CREATE TABLE IF NOT EXISTS recommendation_clicks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		project_id TEXT REFERENCES projects(id) ON DELETE CASCADE,
		reason TEXT NOT NULL,
		position INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS project_stats_daily (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		day TEXT NOT NULL,
		views INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (project_id, day)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}
