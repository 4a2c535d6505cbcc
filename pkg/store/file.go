package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/matzehuels/compkgs/pkg/errors"
	"github.com/matzehuels/compkgs/pkg/report"
)

// fileTimeFormat sorts lexically in creation order.
const fileTimeFormat = "20060102T150405.000000000Z"

// FileStore keeps reports as JSON files named <created>-<run id>.json.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

// NewFileStore creates a store in dir, creating it if needed. An empty dir
// selects [DefaultDir].
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		var err error
		if dir, err = DefaultDir(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// DefaultDir returns $XDG_DATA_HOME/compkgs/reports, falling back to
// ~/.local/share/compkgs/reports.
func DefaultDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "compkgs", "reports"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "compkgs", "reports"), nil
}

// Dir returns the report directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Save(ctx context.Context, rep *report.Report) error {
	if rep.RunID == "" || strings.ContainsAny(rep.RunID, `/\`) {
		return errors.New(errors.ErrCodeInvalidInput, "report has invalid run id %q", rep.RunID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	name := rep.CreatedAt.UTC().Format(fileTimeFormat) + "-" + rep.RunID + ".json"
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := rep.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

// files returns report file names, newest first.
func (s *FileStore) files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read report dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	slices.Reverse(names)
	return names, nil
}

func (s *FileStore) Latest(ctx context.Context) (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names, err := s.files()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "no reports in %s", s.dir)
	}
	return report.ReadFile(filepath.Join(s.dir, names[0]))
}

func (s *FileStore) Get(ctx context.Context, runID string) (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names, err := s.files()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if strings.HasSuffix(name, "-"+runID+".json") {
			return report.ReadFile(filepath.Join(s.dir, name))
		}
	}
	return nil, errors.New(errors.ErrCodeNotFound, "run %s not found", runID)
}

func (s *FileStore) List(ctx context.Context, limit int) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names, err := s.files()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	out := make([]Info, 0, len(names))
	for _, name := range names {
		rep, err := report.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, infoOf(rep))
	}
	return out, nil
}

func (s *FileStore) Close() error { return nil }

// Discard drops every report.
type Discard struct{}

func (Discard) Save(context.Context, *report.Report) error { return nil }

func (Discard) Latest(context.Context) (*report.Report, error) {
	return nil, errors.New(errors.ErrCodeNotFound, "report storage is disabled")
}

func (Discard) Get(_ context.Context, runID string) (*report.Report, error) {
	return nil, errors.New(errors.ErrCodeNotFound, "run %s not found", runID)
}

func (Discard) List(context.Context, int) ([]Info, error) { return nil, nil }

func (Discard) Close() error { return nil }

var (
	_ Store = (*FileStore)(nil)
	_ Store = Discard{}
)
