package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hurttlocker/chatlift/internal/pipeline"
)

// timeFormat is the canonical timestamp encoding. SQLite DATE() cannot parse
// Go's default format; RFC3339 sorts lexicographically, which the timestamp
// index relies on.
const timeFormat = time.RFC3339

// CreateSession inserts a new scan session.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = pipeline.NewMessageID()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, chat_name, direction, started_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.ChatName, sess.Direction, sess.StartedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetSession fetches a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	var (
		sess      Session
		startedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, chat_name, direction, started_at FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.ChatName, &sess.Direction, &startedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	sess.StartedAt, _ = time.Parse(timeFormat, startedAt)
	return &sess, nil
}

// SaveMessages stores messages, deduplicating by stable key both within the
// batch and against the cross-session seen_keys index. Duplicate messages
// are counted, never stored twice.
func (s *SQLiteStore) SaveMessages(ctx context.Context, sessionID string, msgs []pipeline.Message) (SaveResult, error) {
	var result SaveResult
	if len(msgs) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeFormat)
	batchSeen := make(map[string]struct{}, len(msgs))

	for _, m := range msgs {
		key := m.StableKey()
		if _, dup := batchSeen[key]; dup {
			result.Duplicates++
			continue
		}
		batchSeen[key] = struct{}{}

		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM seen_keys WHERE key = ?`, key).Scan(&exists)
		if err == nil {
			result.Duplicates++
			continue
		}
		if err != sql.ErrNoRows {
			return result, fmt.Errorf("checking seen key: %w", err)
		}

		msgID := m.ID
		if msgID == "" {
			msgID = pipeline.NewMessageID()
		}

		args := []interface{}{
			sessionID, msgID, key,
			string(m.Sender), string(m.Type), m.Content, m.RawText,
			m.Timestamp.UTC().Format(timeFormat), m.Confidence,
		}
		args = append(args, shareArgs(m.ShareCard)...)
		args = append(args, quoteArgs(m.Quote)...)
		args = append(args, regionArgs(m.Region)...)
		args = append(args, now)

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (
				session_id, msg_id, stable_key, sender, type, content, raw_text,
				timestamp, confidence,
				share_platform, share_title, share_body, share_source,
				share_author, share_metric, share_url,
				quote_nickname, quote_label, quote_text,
				region_x, region_y, region_w, region_h,
				created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			args...); err != nil {
			return result, fmt.Errorf("inserting message: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO seen_keys (key, first_seen) VALUES (?, ?)`, key, now); err != nil {
			return result, fmt.Errorf("recording seen key: %w", err)
		}
		result.New++
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("committing save: %w", err)
	}
	return result, nil
}

// ListMessages returns stored messages filtered by opts, ordered by
// timestamp then insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context, opts ListOpts) ([]*StoredMessage, error) {
	query := `
		SELECT id, session_id, msg_id, stable_key, sender, type, content, raw_text,
		       timestamp, confidence,
		       share_platform, share_title, share_body, share_source,
		       share_author, share_metric, share_url,
		       quote_nickname, quote_label, quote_text,
		       region_x, region_y, region_w, region_h,
		       created_at
		FROM messages`

	var (
		conds []string
		args  []interface{}
	)
	if opts.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, opts.SessionID)
	}
	if opts.Sender != "" {
		conds = append(conds, "sender = ?")
		args = append(args, opts.Sender)
	}
	if opts.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, opts.Type)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if opts.Descending {
		query += " ORDER BY timestamp DESC, id DESC"
	} else {
		query += " ORDER BY timestamp ASC, id ASC"
	}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var out []*StoredMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SearchMessages runs an FTS5 match over message content.
func (s *SQLiteStore) SearchMessages(ctx context.Context, query string, limit int) ([]*SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.session_id, m.msg_id, m.stable_key, m.sender, m.type,
		       m.content, m.raw_text, m.timestamp, m.confidence,
		       m.share_platform, m.share_title, m.share_body, m.share_source,
		       m.share_author, m.share_metric, m.share_url,
		       m.quote_nickname, m.quote_label, m.quote_text,
		       m.region_x, m.region_y, m.region_w, m.region_h,
		       m.created_at,
		       snippet(messages_fts, 0, '[', ']', '…', 12)
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.rowid
		WHERE messages_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	defer rows.Close()

	var out []*SearchResult
	for rows.Next() {
		var r SearchResult
		m, err := scanMessageWithSnippet(rows, &r.Snippet)
		if err != nil {
			return nil, err
		}
		r.Message = *m
		out = append(out, &r)
	}
	return out, rows.Err()
}

// HasSeenKey reports whether a stable key is in the dedup index.
func (s *SQLiteStore) HasSeenKey(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM seen_keys WHERE key = ?`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking seen key: %w", err)
	}
	return true, nil
}

// ClearDedupIndex wipes the cross-session seen-key index. Stored messages
// stay; only future dedup decisions are affected.
func (s *SQLiteStore) ClearDedupIndex(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM seen_keys`)
	if err != nil {
		return fmt.Errorf("clearing dedup index: %w", err)
	}
	return nil
}

// LogEvent appends an entry to the pipeline event log.
func (s *SQLiteStore) LogEvent(ctx context.Context, e *Event) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_type, detail, created_at) VALUES (?, ?, ?)`,
		e.EventType, e.Detail, now)
	if err != nil {
		return fmt.Errorf("logging event: %w", err)
	}
	return nil
}

// Stats returns store-level counters.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	counters := []struct {
		query string
		dst   *int64
	}{
		{`SELECT COUNT(*) FROM sessions`, &st.SessionCount},
		{`SELECT COUNT(*) FROM messages`, &st.MessageCount},
		{`SELECT COUNT(*) FROM seen_keys`, &st.SeenKeyCount},
		{`SELECT COUNT(*) FROM events`, &st.EventCount},
	}
	for _, c := range counters {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting: %w", err)
		}
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err == nil {
			st.DBSizeBytes = pageCount * pageSize
		}
	}
	return st, nil
}

// --- row scanning helpers ---

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(r rowScanner) (*StoredMessage, error) {
	return scanMessageWithSnippet(r, nil)
}

func scanMessageWithSnippet(r rowScanner, snippet *string) (*StoredMessage, error) {
	var (
		m         StoredMessage
		timestamp string
		createdAt string

		sharePlatform, shareTitle, shareBody, shareSource sql.NullString
		shareAuthor, shareURL                             sql.NullString
		shareMetric                                       sql.NullInt64

		quoteNickname, quoteLabel, quoteText sql.NullString

		regionX, regionY, regionW, regionH sql.NullInt64
	)

	dest := []interface{}{
		&m.RowID, &m.SessionID, &m.Message.ID, &m.StableKey,
		&m.Sender, &m.Type, &m.Content, &m.RawText,
		&timestamp, &m.Confidence,
		&sharePlatform, &shareTitle, &shareBody, &shareSource,
		&shareAuthor, &shareMetric, &shareURL,
		&quoteNickname, &quoteLabel, &quoteText,
		&regionX, &regionY, &regionW, &regionH,
		&createdAt,
	}
	if snippet != nil {
		dest = append(dest, snippet)
	}
	if err := r.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scanning message row: %w", err)
	}

	m.Timestamp, _ = time.Parse(timeFormat, timestamp)
	m.CreatedAt, _ = time.Parse(timeFormat, createdAt)

	if sharePlatform.Valid {
		m.ShareCard = &pipeline.ShareCard{
			Platform: sharePlatform.String,
			Title:    shareTitle.String,
			Body:     shareBody.String,
			Source:   shareSource.String,
			Author:   shareAuthor.String,
			Metric:   shareMetric.Int64,
			URL:      shareURL.String,
		}
	}
	if quoteNickname.Valid {
		m.Quote = &pipeline.QuoteMeta{
			OriginalNickname: quoteNickname.String,
			OriginalSender:   pipeline.QuoteLabel(quoteLabel.String),
			QuotedText:       quoteText.String,
		}
	}
	if regionX.Valid {
		m.Region = &pipeline.Rectangle{
			X: int(regionX.Int64), Y: int(regionY.Int64),
			W: int(regionW.Int64), H: int(regionH.Int64),
		}
	}
	return &m, nil
}

func shareArgs(c *pipeline.ShareCard) []interface{} {
	if c == nil {
		return []interface{}{nil, nil, nil, nil, nil, nil, nil}
	}
	return []interface{}{c.Platform, c.Title, c.Body, c.Source, c.Author, c.Metric, c.URL}
}

func quoteArgs(q *pipeline.QuoteMeta) []interface{} {
	if q == nil {
		return []interface{}{nil, nil, nil}
	}
	return []interface{}{q.OriginalNickname, string(q.OriginalSender), q.QuotedText}
}

func regionArgs(r *pipeline.Rectangle) []interface{} {
	if r == nil {
		return []interface{}{nil, nil, nil, nil}
	}
	return []interface{}{r.X, r.Y, r.W, r.H}
}
