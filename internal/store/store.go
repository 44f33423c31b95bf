// Package store provides the SQLite + FTS5 persistence layer for chatlift.
//
// All transcript data lives in a single SQLite database file:
// - Scan sessions with their direction and origin chat
// - Reconstructed messages, deduplicated by stable key
// - A cross-session dedup index of every stable key ever stored
// - An append-only event log of pipeline runs
// - FTS5 full-text search over message content
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hurttlocker/chatlift/internal/pipeline"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.chatlift/chatlift.db"

// Session is one scrolling scan over a chat window.
type Session struct {
	ID        string
	ChatName  string
	Direction string
	StartedAt time.Time
}

// StoredMessage is a reconstructed message with its storage identity.
type StoredMessage struct {
	RowID     int64
	SessionID string
	StableKey string
	CreatedAt time.Time
	pipeline.Message
}

// SaveResult reports the outcome of one SaveMessages call.
type SaveResult struct {
	New        int
	Duplicates int
}

// Event is an entry in the append-only pipeline event log.
type Event struct {
	ID        int64
	EventType string
	Detail    string
	CreatedAt time.Time
}

// ListOpts controls pagination and filtering for ListMessages.
type ListOpts struct {
	SessionID  string
	Sender     string
	Type       string
	Limit      int
	Offset     int
	Descending bool
}

// SearchResult holds a full-text search hit with its snippet.
type SearchResult struct {
	Message StoredMessage
	Snippet string
}

// Stats holds observability counters for the store.
type Stats struct {
	SessionCount int64
	MessageCount int64
	SeenKeyCount int64
	EventCount   int64
	DBSizeBytes  int64
}

// Config holds configuration for NewStore.
type Config struct {
	DBPath string
}

// Store defines the transcript storage interface.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)

	// Messages
	SaveMessages(ctx context.Context, sessionID string, msgs []pipeline.Message) (SaveResult, error)
	ListMessages(ctx context.Context, opts ListOpts) ([]*StoredMessage, error)

	// Search
	SearchMessages(ctx context.Context, query string, limit int) ([]*SearchResult, error)

	// Deduplication
	HasSeenKey(ctx context.Context, key string) (bool, error)
	ClearDedupIndex(ctx context.Context) error

	// Events
	LogEvent(ctx context.Context, e *Event) error

	// Observability
	Stats(ctx context.Context) (*Stats, error)

	// Maintenance
	Vacuum(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store using SQLite + FTS5.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg Config) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Vacuum runs VACUUM on the database. Manual only — never auto-vacuum.
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// GetDB exposes the underlying handle for packages that extend the schema.
func (s *SQLiteStore) GetDB() *sql.DB { return s.db }

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
