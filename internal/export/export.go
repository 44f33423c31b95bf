// Package export renders stored transcripts in standard formats.
//
// Four writers are provided: JSON (full structured records), Markdown
// (a readable transcript grouped by day), CSV (flat rows for spreadsheets)
// and plain text. All writers stream to an io.Writer; file handling is the
// caller's concern.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hurttlocker/chatlift/internal/pipeline"
	"github.com/hurttlocker/chatlift/internal/store"
)

// Format names a supported export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatText     Format = "text"
)

// ParseFormat validates a format name, accepting common aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "text", "txt", "plain":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Extension returns the conventional file extension for the format.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatCSV:
		return ".csv"
	case FormatText:
		return ".txt"
	default:
		return ".json"
	}
}

// Write renders msgs in the given format. chatName labels the transcript
// in formats that carry a header.
func Write(w io.Writer, f Format, chatName string, msgs []*store.StoredMessage) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, chatName, msgs)
	case FormatMarkdown:
		return writeMarkdown(w, chatName, msgs)
	case FormatCSV:
		return writeCSV(w, msgs)
	case FormatText:
		return writeText(w, msgs)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// jsonDoc is the top-level JSON export shape.
type jsonDoc struct {
	ChatName   string             `json:"chat_name"`
	ExportedAt time.Time          `json:"exported_at"`
	Count      int                `json:"count"`
	Messages   []pipeline.Message `json:"messages"`
}

func writeJSON(w io.Writer, chatName string, msgs []*store.StoredMessage) error {
	doc := jsonDoc{
		ChatName:   chatName,
		ExportedAt: time.Now(),
		Count:      len(msgs),
		Messages:   make([]pipeline.Message, len(msgs)),
	}
	for i, m := range msgs {
		doc.Messages[i] = m.Message
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

func writeMarkdown(w io.Writer, chatName string, msgs []*store.StoredMessage) error {
	if chatName == "" {
		chatName = "Chat"
	}
	if _, err := fmt.Fprintf(w, "# %s\n", chatName); err != nil {
		return err
	}

	var day string
	for _, m := range msgs {
		if d := m.Timestamp.Format("2006-01-02"); d != day {
			day = d
			if _, err := fmt.Fprintf(w, "\n## %s\n\n", day); err != nil {
				return err
			}
		}
		if err := writeMarkdownMessage(w, m); err != nil {
			return err
		}
	}
	return nil
}

func writeMarkdownMessage(w io.Writer, m *store.StoredMessage) error {
	label := senderLabel(m.Sender)
	clock := m.Timestamp.Format("15:04")

	body := markdownBody(m)
	if _, err := fmt.Fprintf(w, "- **%s** %s: %s\n", clock, label, body); err != nil {
		return err
	}
	if m.Quote != nil {
		if _, err := fmt.Fprintf(w, "  > %s: %s\n", m.Quote.OriginalNickname, m.Quote.QuotedText); err != nil {
			return err
		}
	}
	return nil
}

func markdownBody(m *store.StoredMessage) string {
	switch m.Type {
	case pipeline.TypeImage:
		return "*[image]*"
	case pipeline.TypeVoice:
		return "*[voice]*"
	case pipeline.TypeSticker:
		if m.Content != "" {
			return fmt.Sprintf("*[sticker: %s]*", m.Content)
		}
		return "*[sticker]*"
	case pipeline.TypeShare:
		return markdownShare(m)
	case pipeline.TypeUnknown:
		if m.Content == "" {
			return "*[unrecognized]*"
		}
	}
	return m.Content
}

func markdownShare(m *store.StoredMessage) string {
	c := m.ShareCard
	if c == nil {
		return fmt.Sprintf("*[share]* %s", m.Content)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*[%s]*", c.Platform)
	if c.URL != "" {
		fmt.Fprintf(&b, " [%s](%s)", c.Title, c.URL)
	} else if c.Title != "" {
		fmt.Fprintf(&b, " %s", c.Title)
	}
	if c.Author != "" {
		fmt.Fprintf(&b, " — %s", c.Author)
	}
	return b.String()
}

func writeCSV(w io.Writer, msgs []*store.StoredMessage) error {
	cw := csv.NewWriter(w)
	header := []string{"timestamp", "sender", "type", "content", "confidence", "platform", "url"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, m := range msgs {
		platform, url := "", ""
		if m.ShareCard != nil {
			platform, url = m.ShareCard.Platform, m.ShareCard.URL
		}
		row := []string{
			m.Timestamp.Format(time.RFC3339),
			string(m.Sender),
			string(m.Type),
			m.Content,
			strconv.FormatFloat(m.Confidence, 'f', 2, 64),
			platform,
			url,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeText(w io.Writer, msgs []*store.StoredMessage) error {
	for _, m := range msgs {
		body := m.Content
		switch m.Type {
		case pipeline.TypeImage:
			body = "[图片]"
		case pipeline.TypeVoice:
			body = "[语音]"
		case pipeline.TypeSticker:
			body = "[表情] " + m.Content
		case pipeline.TypeShare:
			if m.ShareCard != nil {
				body = fmt.Sprintf("[%s] %s", m.ShareCard.Platform, m.ShareCard.Title)
			}
		}
		_, err := fmt.Fprintf(w, "%s %s: %s\n",
			m.Timestamp.Format("2006-01-02 15:04"), senderLabel(m.Sender), strings.TrimSpace(body))
		if err != nil {
			return err
		}
	}
	return nil
}

func senderLabel(s pipeline.Sender) string {
	switch s {
	case pipeline.SenderSelf:
		return "me"
	case pipeline.SenderSystem:
		return "system"
	default:
		return "them"
	}
}
