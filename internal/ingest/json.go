package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// JSONImporter handles .json capture files.
type JSONImporter struct{}

// CanHandle returns true for JSON file extensions.
func (j *JSONImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".json"
}

// Import parses a JSON capture file.
// - Single object: one capture batch.
// - Array of objects: one batch per element, imported in array order.
func (j *JSONImporter) Import(ctx context.Context, path string) ([]CaptureBatch, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}

	var batches []CaptureBatch
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &batches); err != nil {
			return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
		}
	} else {
		var one CaptureBatch
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
		}
		batches = []CaptureBatch{one}
	}

	for i := range batches {
		batches[i].SourceFile = absPath
		batches[i].SourceSection = fmt.Sprintf("[%d]", i)
	}
	return batches, nil
}
