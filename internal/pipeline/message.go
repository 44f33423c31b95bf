package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageType is the closed set of message classifications. Exactly one
// stage of the cascade assigns a unit's type; it never changes afterwards.
type MessageType string

const (
	TypeText    MessageType = "text"
	TypeImage   MessageType = "image"
	TypeVoice   MessageType = "voice"
	TypeSticker MessageType = "sticker"
	TypeShare   MessageType = "share"
	TypeSystem  MessageType = "system"
	TypeUnknown MessageType = "unknown"
)

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	SenderSelf   Sender = "self"
	SenderOther  Sender = "other"
	SenderSystem Sender = "system"
)

// QuoteLabel identifies the side a quoted-reply's original author sat on.
type QuoteLabel string

const (
	QuoteSelf    QuoteLabel = "self"
	QuoteOther   QuoteLabel = "other"
	QuoteUnknown QuoteLabel = "unknown"
)

// ShareCard is the structured form of a rich-content share bubble.
type ShareCard struct {
	Platform string `json:"platform"`
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`
	Source   string `json:"source,omitempty"`
	Author   string `json:"author,omitempty"`
	Metric   int64  `json:"metric,omitempty"`
	URL      string `json:"url,omitempty"`
}

// QuoteMeta describes a quoted-reply detected inside a bubble.
type QuoteMeta struct {
	OriginalNickname string     `json:"original_nickname"`
	OriginalSender   QuoteLabel `json:"original_sender"`
	QuotedText       string     `json:"quoted_text"`
}

// Message is one classified conversational unit.
//
// ID is left empty by the pipeline so that StableKey falls back to the
// content-level key and the same logical message seen in two captures
// dedups. Callers that receive messages from an upstream system with stable
// primary keys may set it, in which case it becomes the dedup key verbatim.
type Message struct {
	ID         string      `json:"id"`
	Sender     Sender      `json:"sender"`
	Content    string      `json:"content"`
	Type       MessageType `json:"type"`
	Timestamp  time.Time   `json:"timestamp"`
	Confidence float64     `json:"confidence"`
	RawText    string      `json:"raw_text"`
	ShareCard  *ShareCard  `json:"share_card,omitempty"`
	Quote      *QuoteMeta  `json:"quote,omitempty"`
	Region     *Rectangle  `json:"region,omitempty"`
}

// StableKey returns a deterministic dedup key for the message.
//
// A non-empty ID wins outright. Otherwise the key is sender +
// second-precision timestamp + trimmed content, which is identical for the
// same logical message seen in two different captures.
func (m *Message) StableKey() string {
	if m.ID != "" {
		return m.ID
	}
	ts := m.Timestamp.Truncate(time.Second).Format(time.RFC3339)
	return fmt.Sprintf("%s|%s|%s", m.Sender, ts, strings.TrimSpace(m.Content))
}

// NewMessageID returns a fresh random message ID for storage layers that
// need a row identity independent of the dedup key.
func NewMessageID() string { return uuid.NewString() }
