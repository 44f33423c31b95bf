// Package mcp provides a Model Context Protocol server for chatlift.
//
// It exposes the reconstruction pipeline (parse OCR fragments into
// messages), full-text search over stored transcripts, store statistics
// and transcript export as MCP tools, and the most recent messages as an
// MCP resource. Serves over stdio.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hurttlocker/chatlift/internal/export"
	"github.com/hurttlocker/chatlift/internal/pipeline"
	"github.com/hurttlocker/chatlift/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   store.Store
	Version string           // version string for MCP server info
	Opts    pipeline.Options // pipeline configuration for chat_parse
}

// dbMu serializes all MCP tool calls that touch the database.
// The mcp-go library dispatches handlers concurrently via goroutines.
// SQLite (even with WAL) supports only one writer at a time, and concurrent
// reads during writes can return stale results. A global mutex ensures
// correct ordering: parses complete before searches see their data.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all chatlift tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"chatlift",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	parser := pipeline.NewParser(cfg.Opts)

	registerParseTool(s, cfg.Store, parser)
	registerSearchTool(s, cfg.Store)
	registerStatsTool(s, cfg.Store)
	registerExportTool(s, cfg.Store)

	registerRecentResource(s, cfg.Store)

	return s
}

// ServeStdio runs the server over stdin/stdout until EOF.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// --- Tools ---

func registerParseTool(s *server.MCPServer, st store.Store, parser *pipeline.Parser) {
	tool := mcp.NewTool("chat_parse",
		mcp.WithDescription("Reconstruct chat messages from OCR text fragments. Input is a JSON array of fragments with text, box {x,y,w,h} and confidence. Returns typed, attributed messages. Optionally persists them."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("fragments",
			mcp.Required(),
			mcp.Description("JSON array of OCR fragments"),
		),
		mcp.WithString("direction",
			mcp.Description("Scan direction: up (newest capture first) or down (default: up)"),
			mcp.Enum("up", "down"),
		),
		mcp.WithString("anchor_time",
			mcp.Description("RFC3339 anchor time for resolving relative time separators (default: now)"),
		),
		mcp.WithString("chat_name",
			mcp.Description("Chat name for the stored session (only used with store=true)"),
		),
		mcp.WithBoolean("store",
			mcp.Description("Persist reconstructed messages with dedup (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		fragsJSON, err := req.RequireString("fragments")
		if err != nil {
			return mcp.NewToolResultError("fragments is required"), nil
		}

		var frags []pipeline.Fragment
		if err := json.Unmarshal([]byte(fragsJSON), &frags); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid fragments JSON: %v", err)), nil
		}

		pctx := pipeline.ParseContext{Direction: pipeline.DirectionUp}
		if d, err := req.RequireString("direction"); err == nil && d != "" {
			if d != "up" && d != "down" {
				return mcp.NewToolResultError(fmt.Sprintf("invalid direction %q", d)), nil
			}
			pctx.Direction = pipeline.ScanDirection(d)
		}
		if a, err := req.RequireString("anchor_time"); err == nil && a != "" {
			anchor, err := time.Parse(time.RFC3339, a)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid anchor_time: %v", err)), nil
			}
			pctx.Time = anchor
		}

		parsed, _ := parser.Parse(frags, pctx)

		result := map[string]interface{}{
			"messages": parsed.Messages,
			"count":    len(parsed.Messages),
		}
		if len(parsed.Warnings) > 0 {
			result["warnings"] = parsed.Warnings
		}

		doStore := false
		if b, err := req.RequireBool("store"); err == nil {
			doStore = b
		}
		if doStore {
			chatName := ""
			if n, err := req.RequireString("chat_name"); err == nil {
				chatName = n
			}
			sess := &store.Session{ChatName: chatName, Direction: string(pctx.Direction)}
			if err := st.CreateSession(ctx, sess); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("creating session: %v", err)), nil
			}
			saved, err := st.SaveMessages(ctx, sess.ID, parsed.Messages)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("storing messages: %v", err)), nil
			}
			result["session_id"] = sess.ID
			result["stored_new"] = saved.New
			result["stored_duplicates"] = saved.Duplicates
		}

		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSearchTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("chat_search",
		mcp.WithDescription("Full-text search over stored chat messages. Returns matching messages with highlighted snippets."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 20, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		limit := 20
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			l := int(limitVal)
			if l > 100 {
				l = 100
			}
			if l > 0 {
				limit = l
			}
		}

		results, err := st.SearchMessages(ctx, query, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search error: %v", err)), nil
		}

		type hit struct {
			SessionID string    `json:"session_id"`
			Sender    string    `json:"sender"`
			Type      string    `json:"type"`
			Content   string    `json:"content"`
			Snippet   string    `json:"snippet"`
			Timestamp time.Time `json:"timestamp"`
		}
		hits := make([]hit, 0, len(results))
		for _, r := range results {
			hits = append(hits, hit{
				SessionID: r.Message.SessionID,
				Sender:    string(r.Message.Sender),
				Type:      string(r.Message.Type),
				Content:   r.Message.Content,
				Snippet:   r.Snippet,
				Timestamp: r.Message.Timestamp,
			})
		}

		data, _ := json.MarshalIndent(hits, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("chat_stats",
		mcp.WithDescription("Get chatlift store statistics: session, message, dedup-key and event counts plus database size."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}

		result := map[string]interface{}{
			"sessions":      stats.SessionCount,
			"messages":      stats.MessageCount,
			"seen_keys":     stats.SeenKeyCount,
			"events":        stats.EventCount,
			"db_size_bytes": stats.DBSizeBytes,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerExportTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("chat_export",
		mcp.WithDescription("Export stored messages as json, markdown, csv or text. Optionally scoped to one session."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("format",
			mcp.Description("Export format (default: markdown)"),
			mcp.Enum("json", "markdown", "csv", "text"),
		),
		mcp.WithString("session_id",
			mcp.Description("Restrict export to one session. Empty = all sessions."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of messages (default: unlimited)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		format := export.FormatMarkdown
		if f, err := req.RequireString("format"); err == nil && f != "" {
			parsed, err := export.ParseFormat(f)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			format = parsed
		}

		opts := store.ListOpts{}
		if sid, err := req.RequireString("session_id"); err == nil && sid != "" {
			opts.SessionID = sid
		}
		if limitVal, err := req.RequireFloat("limit"); err == nil && int(limitVal) > 0 {
			opts.Limit = int(limitVal)
		}

		msgs, err := st.ListMessages(ctx, opts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing messages: %v", err)), nil
		}

		chatName := ""
		if opts.SessionID != "" {
			if sess, err := st.GetSession(ctx, opts.SessionID); err == nil {
				chatName = sess.ChatName
			}
		}

		var buf bytes.Buffer
		if err := export.Write(&buf, format, chatName, msgs); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("export error: %v", err)), nil
		}
		return mcp.NewToolResultText(buf.String()), nil
	})
}

// --- Resources ---

func registerRecentResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"chatlift://recent",
		"Recent Messages",
		mcp.WithResourceDescription("The 20 most recently timestamped messages across all sessions."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		msgs, err := st.ListMessages(ctx, store.ListOpts{Limit: 20, Descending: true})
		if err != nil {
			return nil, fmt.Errorf("listing recent messages: %w", err)
		}

		type recentMessage struct {
			SessionID string `json:"session_id"`
			Sender    string `json:"sender"`
			Type      string `json:"type"`
			Snippet   string `json:"snippet"`
			Timestamp string `json:"timestamp"`
		}
		recent := make([]recentMessage, 0, len(msgs))
		for _, m := range msgs {
			snippet := m.Content
			if runes := []rune(snippet); len(runes) > 100 {
				snippet = string(runes[:100]) + "..."
			}
			recent = append(recent, recentMessage{
				SessionID: m.SessionID,
				Sender:    string(m.Sender),
				Type:      string(m.Type),
				Snippet:   strings.TrimSpace(snippet),
				Timestamp: m.Timestamp.Format(time.RFC3339),
			})
		}

		data, _ := json.MarshalIndent(recent, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
