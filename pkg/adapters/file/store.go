package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/agentflow/pkg/domain"
)

const (
	runsDir   = "runs"
	graphsDir = "graphs"
)

// errInvalidID marks an ID that cannot name a file under BasePath.
var errInvalidID = errors.New("invalid id")

// Store implements ports.RunStore and ports.GraphStore using the local filesystem.
// It stores runs and graph definitions as JSON files under a configured directory.
type Store struct {
	BasePath string

	// graphMu makes the existence check and write of SaveGraph atomic within the process.
	graphMu sync.Mutex
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".agentflow".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = ".agentflow"
	}
	return &Store{BasePath: basePath}
}

// SaveRun persists the run record to a JSON file atomically.
func (s *Store) SaveRun(ctx context.Context, run *domain.Run) error {
	path, err := s.path(runsDir, run.ID)
	if err != nil {
		return err
	}
	return writeJSON(path, run)
}

// LoadRun retrieves the run record from its JSON file.
func (s *Store) LoadRun(ctx context.Context, runID string) (*domain.Run, error) {
	path, err := s.path(runsDir, runID)
	if errors.Is(err, errInvalidID) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	var run domain.Run
	if err := readJSON(path, &run); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// DeleteRun removes the run file.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	path, err := s.path(runsDir, runID)
	if errors.Is(err, errInvalidID) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete run file: %w", err)
	}
	return nil
}

// ListRuns returns all stored run IDs.
func (s *Store) ListRuns(ctx context.Context) ([]string, error) {
	return s.list(runsDir)
}

// SaveGraph writes the definition unless a file for its ID already exists.
func (s *Store) SaveGraph(ctx context.Context, spec domain.GraphSpec) error {
	path, err := s.path(graphsDir, spec.ID)
	if err != nil {
		return err
	}

	s.graphMu.Lock()
	defer s.graphMu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return domain.ErrGraphExists
	}
	return writeJSON(path, spec)
}

// LoadGraph reads a definition from its JSON file.
func (s *Store) LoadGraph(ctx context.Context, graphID string) (domain.GraphSpec, error) {
	path, err := s.path(graphsDir, graphID)
	if errors.Is(err, errInvalidID) {
		return domain.GraphSpec{}, domain.ErrGraphNotFound
	}
	if err != nil {
		return domain.GraphSpec{}, err
	}

	var spec domain.GraphSpec
	if err := readJSON(path, &spec); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.GraphSpec{}, domain.ErrGraphNotFound
		}
		return domain.GraphSpec{}, err
	}
	return spec, nil
}

// ListGraphs returns every definition ordered by ID.
func (s *Store) ListGraphs(ctx context.Context) ([]domain.GraphSpec, error) {
	ids, err := s.list(graphsDir)
	if err != nil {
		return nil, err
	}

	specs := make([]domain.GraphSpec, 0, len(ids))
	for _, id := range ids {
		spec, err := s.LoadGraph(ctx, id)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (s *Store) path(kind, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%s id cannot be empty", strings.TrimSuffix(kind, "s"))
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: %s %q", errInvalidID, strings.TrimSuffix(kind, "s"), id)
	}
	return filepath.Join(s.BasePath, kind, id+".json"), nil
}

func (s *Store) list(kind string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.BasePath, kind))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON writes to a temporary file in the destination directory, syncs it,
// and renames it over the destination.
func writeJSON(destPath string, v any) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	// Same directory keeps the rename on one filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
