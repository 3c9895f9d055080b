// Package store persists collector reports and moves events in and out of
// line-delimited JSON.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/armatrix/agent-lessons/telemetry"
)

const (
	filePermission = 0o644
	dirPermission  = 0o755
	reportExt      = ".json"
)

// ErrNotFound is returned when a named report does not exist.
var ErrNotFound = errors.New("store: report not found")

// FileStore keeps reports as individual JSON files in a directory.
// Each report is stored as {name}.json.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates a FileStore rooted at dir, creating the directory if
// needed. A nil logger discards output.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, dirPermission); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Dir returns the directory the store writes to.
func (f *FileStore) Dir() string { return f.dir }

// Save writes r under name, replacing any previous report atomically.
func (f *FileStore) Save(ctx context.Context, name string, r telemetry.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return fmt.Errorf("invalid report name: %w", err)
	}

	data, err := json.MarshalIndent(Portable(r), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	path := f.path(name)
	if err := atomicWriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}

	f.logger.Debug("saved report",
		slog.String("name", name),
		slog.String("path", path),
		slog.Int("timeline", len(r.Timeline)))
	return nil
}

// Load reads the report stored under name. Payloads come back as decoded
// JSON values.
func (f *FileStore) Load(ctx context.Context, name string) (*telemetry.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, fmt.Errorf("invalid report name: %w", err)
	}

	b, err := os.ReadFile(f.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read report file: %w", err)
	}

	var r telemetry.Report
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("unmarshal report %s: %w", name, err)
	}
	if r.Metrics.PerKind == nil {
		r.Metrics.PerKind = map[string]telemetry.KindStats{}
	}
	return &r, nil
}

// List returns the names of all stored reports in lexical order.
func (f *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read report dir: %w", err)
	}

	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if filepath.Ext(entry.Name()) == reportExt {
			names = append(names, strings.TrimSuffix(entry.Name(), reportExt))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the report stored under name.
func (f *FileStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return fmt.Errorf("invalid report name: %w", err)
	}
	if err := os.Remove(f.path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("remove report file: %w", err)
	}
	f.logger.Debug("deleted report", slog.String("name", name))
	return nil
}

func (f *FileStore) path(name string) string {
	return filepath.Join(f.dir, name+reportExt)
}

// Portable returns a copy of r whose opaque payloads all encode as JSON.
// Errors become their message and values json cannot encode become their
// fmt rendering. r itself is not modified.
func Portable(r telemetry.Report) telemetry.Report {
	out := r
	out.Timeline = make([]telemetry.Entry, len(r.Timeline))
	for i, e := range r.Timeline {
		out.Timeline[i] = PortableEntry(e)
	}
	if r.Pending != nil {
		out.Pending = make([]telemetry.PendingCall, len(r.Pending))
		for i, p := range r.Pending {
			p.Input = portableValue(p.Input)
			out.Pending[i] = p
		}
	}
	return out
}

// PortableEntry is [Portable] for a single timeline entry.
func PortableEntry(e telemetry.Entry) telemetry.Entry {
	if e.Call != nil {
		c := *e.Call
		c.Input = portableValue(c.Input)
		c.Output = portableValue(c.Output)
		c.Error = portableValue(c.Error)
		e.Call = &c
	}
	if e.Orphan != nil {
		o := *e.Orphan
		o.Payload = portableValue(o.Payload)
		e.Orphan = &o
	}
	return e
}

func portableValue(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case error:
		return v.Error()
	case json.RawMessage:
		if json.Valid(v) {
			return v
		}
		return string(v)
	case []byte:
		return string(v)
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprint(v)
	}
	return v
}

// atomicWriteFile writes data to a temp file in the same directory, syncs
// it, then renames it over path.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}

// validateName checks that a report name is safe for use as a filename.
func validateName(name string) error {
	switch {
	case name == "":
		return errors.New("name must not be empty")
	case strings.HasPrefix(name, "."):
		return errors.New("name must not start with a dot")
	case strings.Contains(name, ".."):
		return fmt.Errorf("name must not contain %q", "..")
	case strings.ContainsAny(name, "/\\"):
		return errors.New("name must not contain path separators")
	case strings.ContainsRune(name, 0):
		return errors.New("name must not contain null bytes")
	}
	return nil
}
