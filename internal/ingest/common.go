package ingest

import (
	"context"
	"time"

	"github.com/hurttlocker/chatlift/internal/pipeline"
)

// CaptureBatch is one screen capture's worth of OCR fragments, parsed from
// an input file and ready for reconstruction.
type CaptureBatch struct {
	ChatName   string              `json:"chat_name" yaml:"chat_name"`
	Direction  string              `json:"direction,omitempty" yaml:"direction,omitempty"`
	CapturedAt time.Time           `json:"captured_at,omitempty" yaml:"captured_at,omitempty"`
	SplitX     int                 `json:"split_x,omitempty" yaml:"split_x,omitempty"`
	Fragments  []pipeline.Fragment `json:"fragments" yaml:"fragments"`

	// SourceFile and SourceSection record provenance for error reporting.
	SourceFile    string `json:"-" yaml:"-"`
	SourceSection string `json:"-" yaml:"-"`
}

// Importer handles a specific capture file format.
type Importer interface {
	// CanHandle returns true if this importer supports the given file path.
	CanHandle(path string) bool

	// Import parses the file and returns capture batches in file order.
	Import(ctx context.Context, path string) ([]CaptureBatch, error)
}

// ImportResult summarizes an import operation.
type ImportResult struct {
	FilesScanned      int
	FilesImported     int
	FilesSkipped      int
	BatchesParsed     int
	MessagesNew       int
	MessagesDuplicate int
	Warnings          []string
	Errors            []ImportError
}

// Add merges another ImportResult into this one.
func (r *ImportResult) Add(other *ImportResult) {
	r.FilesScanned += other.FilesScanned
	r.FilesImported += other.FilesImported
	r.FilesSkipped += other.FilesSkipped
	r.BatchesParsed += other.BatchesParsed
	r.MessagesNew += other.MessagesNew
	r.MessagesDuplicate += other.MessagesDuplicate
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Errors = append(r.Errors, other.Errors...)
}

// ImportError records a non-fatal error during import.
type ImportError struct {
	File    string
	Section string
	Message string
}

// ImportOptions configures an import operation.
type ImportOptions struct {
	Recursive   bool
	DryRun      bool
	MaxFileSize int64  // bytes, default 10MB
	ChatName    string // Overrides the batch-level chat name
	Direction   string // Overrides the batch-level scan direction
	// DefaultDirection applies when neither Direction nor the batch sets
	// one; empty falls back to scanning up.
	DefaultDirection string
	ProgressFn       func(current, total int, file string)
}

// DefaultMaxFileSize is 10MB.
const DefaultMaxFileSize = 10 * 1024 * 1024
