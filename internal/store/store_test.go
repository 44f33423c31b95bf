package store

import (
	"context"
	"testing"
	"time"

	"github.com/hurttlocker/chatlift/internal/pipeline"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewStore(Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestSession(t *testing.T, s *SQLiteStore) *Session {
	t.Helper()
	sess := &Session{ChatName: "张三", Direction: "up"}
	if err := s.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func textMsg(sender pipeline.Sender, content string, ts time.Time) pipeline.Message {
	return pipeline.Message{
		Sender:     sender,
		Content:    content,
		Type:       pipeline.TypeText,
		Timestamp:  ts,
		Confidence: 0.9,
		RawText:    content,
	}
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession(t, s)
	if sess.ID == "" {
		t.Fatal("expected session ID to be assigned")
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.ChatName != "张三" || got.Direction != "up" {
		t.Errorf("got session %+v", got)
	}
	if got.StartedAt.IsZero() {
		t.Error("expected non-zero StartedAt")
	}

	if _, err := s.GetSession(ctx, "nope"); err == nil {
		t.Error("expected error for missing session")
	}
}

func TestSaveMessagesDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession(t, s)

	ts := time.Date(2024, 10, 16, 20, 30, 0, 0, time.Local)
	batch := []pipeline.Message{
		textMsg(pipeline.SenderSelf, "晚上好", ts),
		textMsg(pipeline.SenderOther, "吃了吗", ts.Add(time.Minute)),
		textMsg(pipeline.SenderSelf, "晚上好", ts), // duplicate within batch
	}

	res, err := s.SaveMessages(ctx, sess.ID, batch)
	if err != nil {
		t.Fatalf("SaveMessages: %v", err)
	}
	if res.New != 2 || res.Duplicates != 1 {
		t.Errorf("got New=%d Duplicates=%d, want 2/1", res.New, res.Duplicates)
	}

	// A second capture of the same conversation dedups entirely.
	res, err = s.SaveMessages(ctx, sess.ID, batch[:2])
	if err != nil {
		t.Fatalf("SaveMessages (second capture): %v", err)
	}
	if res.New != 0 || res.Duplicates != 2 {
		t.Errorf("second capture: got New=%d Duplicates=%d, want 0/2", res.New, res.Duplicates)
	}

	msgs, err := s.ListMessages(ctx, ListOpts{SessionID: sess.ID})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d stored messages, want 2", len(msgs))
	}
	if msgs[0].Content != "晚上好" || msgs[1].Content != "吃了吗" {
		t.Errorf("unexpected order: %q, %q", msgs[0].Content, msgs[1].Content)
	}
	if msgs[0].Message.ID == "" {
		t.Error("expected storage to assign a message ID")
	}
}

func TestSaveMessagesExplicitID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession(t, s)

	m := textMsg(pipeline.SenderSelf, "hello", time.Now())
	m.ID = "upstream-42"

	if _, err := s.SaveMessages(ctx, sess.ID, []pipeline.Message{m}); err != nil {
		t.Fatalf("SaveMessages: %v", err)
	}

	seen, err := s.HasSeenKey(ctx, "upstream-42")
	if err != nil {
		t.Fatalf("HasSeenKey: %v", err)
	}
	if !seen {
		t.Error("expected explicit ID to be the dedup key")
	}
}

func TestSaveMessagesRoundTripsStructuredFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession(t, s)

	ts := time.Date(2024, 10, 16, 21, 0, 0, 0, time.Local)
	m := pipeline.Message{
		Sender:     pipeline.SenderOther,
		Content:    "发现一家好店",
		Type:       pipeline.TypeShare,
		Timestamp:  ts,
		Confidence: 0.8,
		ShareCard: &pipeline.ShareCard{
			Platform: "小红书",
			Title:    "发现一家好店",
			Author:   "美食家",
			Metric:   120000,
			URL:      "https://xhslink.com/abc",
		},
		Quote: &pipeline.QuoteMeta{
			OriginalNickname: "李四",
			OriginalSender:   pipeline.QuoteOther,
			QuotedText:       "周末去吗",
		},
		Region: &pipeline.Rectangle{X: 40, Y: 200, W: 320, H: 180},
	}

	if _, err := s.SaveMessages(ctx, sess.ID, []pipeline.Message{m}); err != nil {
		t.Fatalf("SaveMessages: %v", err)
	}

	msgs, err := s.ListMessages(ctx, ListOpts{SessionID: sess.ID})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	got := msgs[0]

	if got.ShareCard == nil {
		t.Fatal("expected share card to survive storage")
	}
	if got.ShareCard.Platform != "小红书" || got.ShareCard.Metric != 120000 {
		t.Errorf("share card mangled: %+v", got.ShareCard)
	}
	if got.Quote == nil || got.Quote.OriginalNickname != "李四" || got.Quote.OriginalSender != pipeline.QuoteOther {
		t.Errorf("quote mangled: %+v", got.Quote)
	}
	if got.Region == nil || got.Region.W != 320 {
		t.Errorf("region mangled: %+v", got.Region)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("timestamp drifted: got %v want %v", got.Timestamp, ts)
	}
}

func TestListMessagesFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession(t, s)

	ts := time.Now()
	batch := []pipeline.Message{
		textMsg(pipeline.SenderSelf, "a", ts),
		textMsg(pipeline.SenderOther, "b", ts.Add(time.Second)),
		textMsg(pipeline.SenderOther, "c", ts.Add(2*time.Second)),
	}
	batch[2].Type = pipeline.TypeImage
	if _, err := s.SaveMessages(ctx, sess.ID, batch); err != nil {
		t.Fatalf("SaveMessages: %v", err)
	}

	bySender, err := s.ListMessages(ctx, ListOpts{SessionID: sess.ID, Sender: "other"})
	if err != nil {
		t.Fatalf("ListMessages sender filter: %v", err)
	}
	if len(bySender) != 2 {
		t.Errorf("sender filter: got %d, want 2", len(bySender))
	}

	byType, err := s.ListMessages(ctx, ListOpts{SessionID: sess.ID, Type: "image"})
	if err != nil {
		t.Fatalf("ListMessages type filter: %v", err)
	}
	if len(byType) != 1 || byType[0].Content != "c" {
		t.Errorf("type filter: got %+v", byType)
	}

	limited, err := s.ListMessages(ctx, ListOpts{SessionID: sess.ID, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListMessages limit: %v", err)
	}
	if len(limited) != 1 || limited[0].Content != "b" {
		t.Errorf("limit/offset: got %+v", limited)
	}
}

func TestSearchMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession(t, s)

	ts := time.Now()
	batch := []pipeline.Message{
		textMsg(pipeline.SenderSelf, "let's meet at the coffee shop", ts),
		textMsg(pipeline.SenderOther, "sounds good, see you there", ts.Add(time.Minute)),
	}
	if _, err := s.SaveMessages(ctx, sess.ID, batch); err != nil {
		t.Fatalf("SaveMessages: %v", err)
	}

	hits, err := s.SearchMessages(ctx, "coffee", 10)
	if err != nil {
		t.Fatalf("SearchMessages: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Message.Sender != pipeline.SenderSelf {
		t.Errorf("wrong hit: %+v", hits[0].Message)
	}
	if hits[0].Snippet == "" {
		t.Error("expected a non-empty snippet")
	}

	none, err := s.SearchMessages(ctx, "  ", 10)
	if err != nil {
		t.Fatalf("SearchMessages blank: %v", err)
	}
	if none != nil {
		t.Errorf("blank query should return nothing, got %v", none)
	}
}

func TestClearDedupIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession(t, s)

	m := textMsg(pipeline.SenderSelf, "hello again", time.Now())
	if _, err := s.SaveMessages(ctx, sess.ID, []pipeline.Message{m}); err != nil {
		t.Fatalf("SaveMessages: %v", err)
	}

	if err := s.ClearDedupIndex(ctx); err != nil {
		t.Fatalf("ClearDedupIndex: %v", err)
	}

	seen, err := s.HasSeenKey(ctx, m.StableKey())
	if err != nil {
		t.Fatalf("HasSeenKey: %v", err)
	}
	if seen {
		t.Error("dedup index should be empty after clear")
	}

	// The same message imports again as new after the index is cleared.
	res, err := s.SaveMessages(ctx, sess.ID, []pipeline.Message{m})
	if err != nil {
		t.Fatalf("SaveMessages after clear: %v", err)
	}
	if res.New != 1 {
		t.Errorf("after clear: got New=%d, want 1", res.New)
	}
}

func TestStatsAndEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession(t, s)

	if _, err := s.SaveMessages(ctx, sess.ID, []pipeline.Message{
		textMsg(pipeline.SenderSelf, "one", time.Now()),
	}); err != nil {
		t.Fatalf("SaveMessages: %v", err)
	}
	if err := s.LogEvent(ctx, &Event{EventType: "import", Detail: "1 new"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.SessionCount != 1 || st.MessageCount != 1 || st.SeenKeyCount != 1 || st.EventCount != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
}
