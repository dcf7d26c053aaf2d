package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Sink persists tick records and the final summary.
type Sink interface {
	Append(rec TickRecord) error
	WriteSummary(s Summary) error
	Close() error
}

// FileSink writes session_<id>.jsonl and session_<id>_summary.json into a directory.
type FileSink struct {
	dir         string
	recordsPath string
	summaryPath string

	file *os.File
	w    *bufio.Writer
	enc  *json.Encoder
}

// NewFileSink creates dir if needed and opens the records file for appending.
func NewFileSink(dir string, sessionID int64) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	recordsPath := filepath.Join(dir, fmt.Sprintf("session_%d.jsonl", sessionID))
	f, err := os.OpenFile(recordsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	w := bufio.NewWriter(f)
	return &FileSink{
		dir:         dir,
		recordsPath: recordsPath,
		summaryPath: filepath.Join(dir, fmt.Sprintf("session_%d_summary.json", sessionID)),
		file:        f,
		w:           w,
		enc:         json.NewEncoder(w),
	}, nil
}

// Append writes one JSON line and flushes it.
func (s *FileSink) Append(rec TickRecord) error {
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode tick record: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("write tick record: %w", err)
	}
	return nil
}

// WriteSummary writes the indented summary file.
func (s *FileSink) WriteSummary(sum Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(s.summaryPath, data, 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// Close flushes and closes the records file.
func (s *FileSink) Close() error {
	return errors.Join(s.w.Flush(), s.file.Close())
}

// RecordsPath returns the JSONL file path.
func (s *FileSink) RecordsPath() string { return s.recordsPath }

// SummaryPath returns the summary file path.
func (s *FileSink) SummaryPath() string { return s.summaryPath }

// Verify FileSink implements Sink at compile time.
var _ Sink = (*FileSink)(nil)
