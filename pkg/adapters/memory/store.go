package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/agentflow/pkg/domain"
)

// Store implements ports.RunStore and ports.GraphStore in memory.
// Safe for concurrent use. Nothing is ever evicted.
type Store struct {
	runs   map[string]*domain.Run
	graphs map[string]domain.GraphSpec
	mu     sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		runs:   make(map[string]*domain.Run),
		graphs: make(map[string]domain.GraphSpec),
	}
}

// SaveRun persists the run in memory.
func (s *Store) SaveRun(ctx context.Context, run *domain.Run) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := run.Copy()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = copied
	return nil
}

// LoadRun retrieves the run from memory.
func (s *Store) LoadRun(ctx context.Context, runID string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}

	// Create a copy on read so caller can't mutate store state directly by pointer
	return run.Copy(), nil
}

// DeleteRun removes the run.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
	return nil
}

// ListRuns returns the stored run IDs.
func (s *Store) ListRuns(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// SaveGraph stores the definition unless its ID is taken.
func (s *Store) SaveGraph(ctx context.Context, spec domain.GraphSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.graphs[spec.ID]; exists {
		return domain.ErrGraphExists
	}
	s.graphs[spec.ID] = spec.Copy()
	return nil
}

// LoadGraph retrieves a definition.
func (s *Store) LoadGraph(ctx context.Context, graphID string) (domain.GraphSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	spec, ok := s.graphs[graphID]
	if !ok {
		return domain.GraphSpec{}, domain.ErrGraphNotFound
	}
	return spec.Copy(), nil
}

// ListGraphs returns every definition ordered by ID.
func (s *Store) ListGraphs(ctx context.Context) ([]domain.GraphSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	specs := make([]domain.GraphSpec, 0, len(s.graphs))
	for _, spec := range s.graphs {
		specs = append(specs, spec.Copy())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs, nil
}
