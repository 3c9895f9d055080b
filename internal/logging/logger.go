// Package logging builds the slog loggers used by the command-line tools.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// maxLogSize is the log file size that triggers rotation (5 MB).
	maxLogSize = 5 * 1024 * 1024
	// maxLogBackups is the number of rotated log files kept.
	maxLogBackups = 3
)

// Options selects the handler.
type Options struct {
	// Debug lowers the level to DEBUG and adds source locations.
	Debug bool
	// JSON switches from text to JSON output.
	JSON bool
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	ho := &slog.HandlerOptions{Level: slog.LevelInfo}
	if opts.Debug {
		ho.Level = slog.LevelDebug
		ho.AddSource = true
	}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, ho))
	}
	return slog.New(slog.NewTextHandler(w, ho))
}

// OpenFile returns a JSON logger appending to path, rotating the file first
// when it has grown past 5 MB. The caller closes the returned file.
func OpenFile(path string, debug bool) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := rotateIfNeeded(path); err != nil {
		return nil, nil, fmt.Errorf("rotate log file: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return New(f, Options{Debug: debug, JSON: true}), f, nil
}

// rotateIfNeeded shifts path → path.1 → path.2 …, keeping maxLogBackups.
func rotateIfNeeded(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < maxLogSize {
		return nil
	}

	_ = os.Remove(fmt.Sprintf("%s.%d", path, maxLogBackups))
	for i := maxLogBackups - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", path, i), fmt.Sprintf("%s.%d", path, i+1))
	}
	return os.Rename(path, path+".1")
}
