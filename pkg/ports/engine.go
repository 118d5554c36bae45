package ports

import (
	"context"

	"github.com/aretw0/agentflow/pkg/domain"
)

// Engine defines the three operations the outer adapters (HTTP, MCP, CLI) drive,
// plus read-only introspection of the stored graphs.
type Engine interface {
	// CreateGraph validates and stores a graph definition, returning its ID.
	CreateGraph(ctx context.Context, spec domain.GraphSpec) (string, error)

	// Run executes a graph synchronously and returns the recorded run.
	Run(ctx context.Context, graphID string, initial map[string]any) (*domain.Run, error)

	// GetRun returns the recorded run for runID.
	GetRun(ctx context.Context, runID string) (*domain.Run, error)

	// Graph returns the definition stored under graphID.
	Graph(ctx context.Context, graphID string) (domain.GraphSpec, error)

	// ListGraphs returns every stored definition.
	ListGraphs(ctx context.Context) ([]domain.GraphSpec, error)
}
