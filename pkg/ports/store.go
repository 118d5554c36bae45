package ports

import (
	"context"

	"github.com/aretw0/agentflow/pkg/domain"
)

// RunStore defines the interface for persisting run records.
// Implementations must be safe for concurrent use; writes for distinct run IDs never contend.
type RunStore interface {
	// SaveRun creates or replaces the record for run.ID.
	SaveRun(ctx context.Context, run *domain.Run) error

	// LoadRun retrieves the record for a given run ID.
	// Returns domain.ErrRunNotFound if the run does not exist.
	LoadRun(ctx context.Context, runID string) (*domain.Run, error)

	// DeleteRun removes the record for a given run ID. Deleting an unknown run is not an error.
	DeleteRun(ctx context.Context, runID string) error

	// ListRuns returns the IDs of the stored runs.
	ListRuns(ctx context.Context) ([]string, error)
}

// GraphStore defines the interface for persisting graph definitions.
// Definitions are immutable: a saved ID can never be overwritten.
type GraphStore interface {
	// SaveGraph stores spec under spec.ID.
	// Returns domain.ErrGraphExists if the ID is already taken.
	SaveGraph(ctx context.Context, spec domain.GraphSpec) error

	// LoadGraph retrieves the definition stored under graphID.
	// Returns domain.ErrGraphNotFound if the graph does not exist.
	LoadGraph(ctx context.Context, graphID string) (domain.GraphSpec, error)

	// ListGraphs returns every stored definition ordered by ID.
	ListGraphs(ctx context.Context) ([]domain.GraphSpec, error)
}
