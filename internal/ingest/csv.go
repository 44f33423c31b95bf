package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hurttlocker/chatlift/internal/pipeline"
)

// CSVImporter handles .csv and .tsv capture files.
//
// The first row is a header; recognized columns are text, x, y, w, h,
// confidence and hint. Each subsequent row is one fragment. The whole file
// becomes a single capture batch named after the file.
type CSVImporter struct{}

// CanHandle returns true for CSV/TSV file extensions.
func (c *CSVImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".csv" || ext == ".tsv"
}

// Import parses a CSV capture file into one batch.
func (c *CSVImporter) Import(ctx context.Context, path string) ([]CaptureBatch, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if strings.ToLower(filepath.Ext(path)) == ".tsv" {
		reader.Comma = '\t'
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV %s: %w", path, err)
	}
	if len(records) < 2 {
		// Need at least the header plus one fragment row.
		return nil, nil
	}

	col := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["text"]; !ok {
		return nil, fmt.Errorf("parsing CSV %s: missing text column", path)
	}

	var frags []pipeline.Fragment
	for rowNum, row := range records[1:] {
		frag := pipeline.Fragment{
			Text: cell(row, col, "text"),
			Box: pipeline.Rectangle{
				X: intCell(row, col, "x"),
				Y: intCell(row, col, "y"),
				W: intCell(row, col, "w"),
				H: intCell(row, col, "h"),
			},
			Hint: pipeline.KindHint(cell(row, col, "hint")),
		}
		if v := cell(row, col, "confidence"); v != "" {
			conf, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing CSV %s row %d: bad confidence %q", path, rowNum+2, v)
			}
			frag.Confidence = conf
		}
		if frag.Text == "" && frag.Box.Area() == 0 {
			continue
		}
		frags = append(frags, frag)
	}

	if len(frags) == 0 {
		return nil, nil
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return []CaptureBatch{{
		ChatName:      name,
		Fragments:     frags,
		SourceFile:    absPath,
		SourceSection: "rows",
	}}, nil
}

func cell(row []string, col map[string]int, key string) string {
	i, ok := col[key]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func intCell(row []string, col map[string]int, key string) int {
	v := cell(row, col, key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
