package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLImporter handles .yaml and .yml capture files.
type YAMLImporter struct{}

// CanHandle returns true for YAML file extensions.
func (y *YAMLImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Import parses a YAML capture file. Multi-document YAML (separated by ---)
// produces one capture batch per document, imported in document order.
func (y *YAMLImporter) Import(ctx context.Context, path string) ([]CaptureBatch, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var batches []CaptureBatch
	docNum := 0

	for {
		var doc CaptureBatch
		err := decoder.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid YAML in %s (document %d): %w", path, docNum+1, err)
		}
		docNum++
		if len(doc.Fragments) == 0 && doc.ChatName == "" {
			continue
		}
		doc.SourceFile = absPath
		doc.SourceSection = fmt.Sprintf("document-%d", docNum)
		batches = append(batches, doc)
	}

	return batches, nil
}
