package findings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	defaultOutputDir = "out"
	defaultFilename  = "findings.jsonl"
	defaultMaxBytes  = 10 << 20
	defaultKeep      = 5
)

// DefaultPath returns where findings go when no path is given:
// $SCRDEC_OUT/findings.jsonl, or out/findings.jsonl.
func DefaultPath() string {
	dir := strings.TrimSpace(os.Getenv("SCRDEC_OUT"))
	if dir == "" {
		dir = defaultOutputDir
	}
	return filepath.Join(dir, defaultFilename)
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithMaxBytes sets the size at which the file is rotated. Values <= 0
// disable rotation.
func WithMaxBytes(limit int64) WriterOption {
	return func(w *Writer) { w.maxBytes = limit }
}

// WithMaxRotations sets how many rotated files (path.1, path.2, ...) are kept.
func WithMaxRotations(count int) WriterOption {
	return func(w *Writer) { w.keep = max(count, 1) }
}

// WithSync fsyncs the file after every finding.
func WithSync() WriterOption {
	return func(w *Writer) { w.sync = true }
}

// Writer appends findings to a JSON Lines file, one finding per line, and
// rotates the file once it grows past a size limit. The file is opened on
// the first write.
type Writer struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	keep     int
	sync     bool

	file *os.File
	size int64
}

// NewWriter returns a writer for path, or for DefaultPath when path is empty.
func NewWriter(path string, opts ...WriterOption) *Writer {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	w := &Writer{path: path, maxBytes: defaultMaxBytes, keep: defaultKeep}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the file the writer appends to.
func (w *Writer) Path() string {
	return w.path
}

// Write validates f and appends it as one line.
func (w *Writer) Write(f Finding) error {
	if strings.TrimSpace(f.Version) == "" {
		f.Version = SchemaVersion
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid finding: %w", err)
	}
	line, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode finding: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		if err := w.open(); err != nil {
			return err
		}
	}
	if w.maxBytes > 0 && w.size > 0 && w.size+int64(len(line)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	n, err := w.file.Write(line)
	w.size += int64(n)
	if err != nil {
		return fmt.Errorf("write finding: %w", err)
	}
	if w.sync {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("sync findings: %w", err)
		}
	}
	return nil
}

// Close closes the file. A later Write reopens it in append mode.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file, w.size = nil, 0
	return err
}

func (w *Writer) open() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create findings directory: %w", err)
	}
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open findings file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("stat findings file: %w", err)
	}
	w.file, w.size = file, info.Size()
	return nil
}

// rotate shifts path.N to path.N+1, dropping the oldest, moves the live file
// to path.1 and opens a fresh one.
func (w *Writer) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close findings file: %w", err)
	}
	w.file = nil

	numbered := func(i int) string { return fmt.Sprintf("%s.%d", w.path, i) }
	if err := os.Remove(numbered(w.keep)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("drop oldest findings file: %w", err)
	}
	for i := w.keep - 1; i >= 1; i-- {
		if err := os.Rename(numbered(i), numbered(i+1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("rotate findings file: %w", err)
		}
	}
	if err := os.Rename(w.path, numbered(1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("rotate findings file: %w", err)
	}
	return w.open()
}
