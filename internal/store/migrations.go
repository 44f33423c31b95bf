package store

import (
	"database/sql"
	"fmt"
	"time"
)

// migrate creates all tables if they don't exist and seeds metadata.
func (s *SQLiteStore) migrate() error {
	bootstrapDone, err := s.isMetaFlagEnabled("schema_bootstrap_complete")
	if err != nil {
		return fmt.Errorf("checking bootstrap state: %w", err)
	}

	if !bootstrapDone {
		if err := s.runBootstrapDDL(); err != nil {
			return err
		}
	}

	if err := s.seedMeta(); err != nil {
		return fmt.Errorf("seeding metadata: %w", err)
	}

	if !bootstrapDone {
		if err := s.setMetaFlag("schema_bootstrap_complete"); err != nil {
			return fmt.Errorf("marking bootstrap complete: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) runBootstrapDDL() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			chat_name  TEXT NOT NULL DEFAULT '',
			direction  TEXT NOT NULL DEFAULT 'up',
			started_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id     TEXT NOT NULL DEFAULT '',
			msg_id         TEXT NOT NULL,
			stable_key     TEXT NOT NULL,
			sender         TEXT NOT NULL,
			type           TEXT NOT NULL,
			content        TEXT NOT NULL,
			raw_text       TEXT NOT NULL DEFAULT '',
			timestamp      TEXT NOT NULL,
			confidence     REAL NOT NULL DEFAULT 0,
			share_platform TEXT,
			share_title    TEXT,
			share_body     TEXT,
			share_source   TEXT,
			share_author   TEXT,
			share_metric   INTEGER,
			share_url      TEXT,
			quote_nickname TEXT,
			quote_label    TEXT,
			quote_text     TEXT,
			region_x       INTEGER,
			region_y       INTEGER,
			region_w       INTEGER,
			region_h       INTEGER,
			created_at     TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_stable_key ON messages(stable_key)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp)`,

		// Cross-session dedup index: every stable key ever stored.
		`CREATE TABLE IF NOT EXISTS seen_keys (
			key        TEXT PRIMARY KEY,
			first_seen TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			detail     TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
			content,
			sender,
			content='messages',
			content_rowid='id'
		)`,

		// Keep the FTS index in sync with the messages table.
		`CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
			INSERT INTO messages_fts(rowid, content, sender)
			VALUES (new.id, new.content, new.sender);
		END`,
		`CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
			INSERT INTO messages_fts(messages_fts, rowid, content, sender)
			VALUES ('delete', old.id, old.content, old.sender);
		END`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning bootstrap transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("bootstrap DDL: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) seedMeta() error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`INSERT INTO meta (key, value, updated_at) VALUES ('schema_version', '1', ?)
		 ON CONFLICT(key) DO NOTHING`, now)
	return err
}

func (s *SQLiteStore) isMetaFlagEnabled(key string) (bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		// The meta table itself may not exist yet on a fresh database.
		return false, nil
	}
	return value == "1", nil
}

func (s *SQLiteStore) setMetaFlag(key string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`INSERT INTO meta (key, value, updated_at) VALUES (?, '1', ?)
		 ON CONFLICT(key) DO UPDATE SET value='1', updated_at=excluded.updated_at`,
		key, now)
	return err
}
