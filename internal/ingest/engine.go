package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hurttlocker/chatlift/internal/pipeline"
	"github.com/hurttlocker/chatlift/internal/store"
)

// Engine coordinates importers, the reconstruction pipeline and the store.
type Engine struct {
	store     store.Store
	opts      pipeline.Options
	importers []Importer
}

// NewEngine creates an import engine backed by s. popts configures the
// reconstruction pipeline for every imported capture.
func NewEngine(s store.Store, popts pipeline.Options) *Engine {
	return &Engine{
		store: s,
		opts:  popts,
		importers: []Importer{
			&JSONImporter{},
			&YAMLImporter{},
			&CSVImporter{},
		},
	}
}

// ImportFile imports a single capture file or a directory of them.
func (e *Engine) ImportFile(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return e.importDir(ctx, path, opts)
	}
	return e.importOne(ctx, path, info.Size(), opts)
}

func (e *Engine) importDir(ctx context.Context, dir string, opts ImportOptions) (*ImportResult, error) {
	var files []string
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if p != dir && !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if e.importerFor(p) != nil {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	total := &ImportResult{}
	for i, f := range files {
		if opts.ProgressFn != nil {
			opts.ProgressFn(i+1, len(files), f)
		}
		info, err := os.Stat(f)
		if err != nil {
			total.Errors = append(total.Errors, ImportError{File: f, Message: err.Error()})
			continue
		}
		res, err := e.importOne(ctx, f, info.Size(), opts)
		if err != nil {
			total.FilesScanned++
			total.Errors = append(total.Errors, ImportError{File: f, Message: err.Error()})
			continue
		}
		total.Add(res)
	}
	return total, nil
}

func (e *Engine) importOne(ctx context.Context, path string, size int64, opts ImportOptions) (*ImportResult, error) {
	result := &ImportResult{FilesScanned: 1}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if size > maxSize {
		result.FilesSkipped++
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: skipped, %d bytes exceeds limit", path, size))
		return result, nil
	}

	imp := e.importerFor(path)
	if imp == nil {
		result.FilesSkipped++
		return result, nil
	}

	batches, err := imp.Import(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		result.FilesSkipped++
		return result, nil
	}

	chatName := opts.ChatName
	if chatName == "" {
		chatName = batches[0].ChatName
	}
	direction := e.direction(batches[0], opts)

	var sessionID string
	if !opts.DryRun {
		sess := &store.Session{ChatName: chatName, Direction: string(direction)}
		if err := e.store.CreateSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("creating session: %w", err)
		}
		sessionID = sess.ID
	}

	pctx := pipeline.ParseContext{Direction: direction}
	for _, batch := range batches {
		if !batch.CapturedAt.IsZero() {
			pctx.Time = batch.CapturedAt
		}
		pctx.Direction = e.direction(batch, opts)

		parsed, next := e.parserFor(batch).Parse(batch.Fragments, pctx)
		pctx = next
		result.BatchesParsed++

		for _, w := range parsed.Warnings {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s %s: %s", path, batch.SourceSection, w))
		}

		if opts.DryRun {
			result.MessagesNew += len(parsed.Messages)
			continue
		}
		saved, err := e.store.SaveMessages(ctx, sessionID, parsed.Messages)
		if err != nil {
			result.Errors = append(result.Errors, ImportError{
				File: path, Section: batch.SourceSection, Message: err.Error(),
			})
			continue
		}
		result.MessagesNew += saved.New
		result.MessagesDuplicate += saved.Duplicates
	}

	result.FilesImported++

	if !opts.DryRun {
		detail := fmt.Sprintf("%s: %d batches, %d new, %d duplicate",
			path, result.BatchesParsed, result.MessagesNew, result.MessagesDuplicate)
		if err := e.store.LogEvent(ctx, &store.Event{EventType: "import", Detail: detail}); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("logging import event: %v", err))
		}
	}
	return result, nil
}

func (e *Engine) importerFor(path string) Importer {
	for _, imp := range e.importers {
		if imp.CanHandle(path) {
			return imp
		}
	}
	return nil
}

// parserFor returns the shared parser unless the batch carries its own
// sender split override.
func (e *Engine) parserFor(batch CaptureBatch) *pipeline.Parser {
	opts := e.opts
	if batch.SplitX > 0 {
		opts.SplitXOverride = batch.SplitX
	}
	return pipeline.NewParser(opts)
}

func (e *Engine) direction(batch CaptureBatch, opts ImportOptions) pipeline.ScanDirection {
	if opts.Direction != "" {
		return pipeline.ScanDirection(opts.Direction)
	}
	if batch.Direction != "" {
		return pipeline.ScanDirection(batch.Direction)
	}
	if opts.DefaultDirection != "" {
		return pipeline.ScanDirection(opts.DefaultDirection)
	}
	return pipeline.DirectionUp
}

// FormatImportResult renders a human-readable import summary.
func FormatImportResult(r *ImportResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Files scanned:      %d\n", r.FilesScanned)
	fmt.Fprintf(&b, "Files imported:     %d\n", r.FilesImported)
	fmt.Fprintf(&b, "Files skipped:      %d\n", r.FilesSkipped)
	fmt.Fprintf(&b, "Batches parsed:     %d\n", r.BatchesParsed)
	fmt.Fprintf(&b, "Messages new:       %d\n", r.MessagesNew)
	fmt.Fprintf(&b, "Messages duplicate: %d\n", r.MessagesDuplicate)
	if len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "Warnings:           %d\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  %s\n", w)
		}
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "Errors:             %d\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  %s %s: %s\n", e.File, e.Section, e.Message)
		}
	}
	return b.String()
}
