// Package ingest provides the capture import engine for chatlift.
//
// Each supported format (JSON, YAML, CSV) has its own importer that
// implements the Importer interface. The engine auto-detects formats by
// file extension, runs each capture batch through the reconstruction
// pipeline, and stores the resulting messages with cross-capture dedup.
//
// Capture batches within one file are processed in order, threading the
// evolving parse context (anchor time, scan direction) from one batch to
// the next so that time separators seen early carry forward.
package ingest
