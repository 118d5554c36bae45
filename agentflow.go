package agentflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/agentflow/internal/logging"
	"github.com/aretw0/agentflow/internal/runtime"
	"github.com/aretw0/agentflow/pkg/adapters/memory"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/ports"
	"github.com/aretw0/agentflow/pkg/registry"
	"github.com/aretw0/agentflow/pkg/runs"
	"github.com/google/uuid"
)

// DefaultMaxSteps is the step limit applied when WithMaxSteps is not used.
const DefaultMaxSteps = runtime.DefaultMaxSteps

// Engine is the high-level entry point for the agentflow library.
// It owns the node registry, the graph and run stores, and the execution loop.
type Engine struct {
	registry *registry.Registry
	runtime  *runtime.Engine
	recorder *runs.Manager

	runStore   ports.RunStore
	graphStore ports.GraphStore
	locker     ports.DistributedLocker

	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	maxSteps int
	newID    func() string
}

var _ ports.Engine = (*Engine)(nil)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxSteps sets the step limit for every run.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// WithRegistry injects a pre-populated node registry.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithRunStore sets where run records are persisted (default: in memory).
func WithRunStore(store ports.RunStore) Option {
	return func(e *Engine) {
		e.runStore = store
	}
}

// WithGraphStore sets where graph definitions are persisted (default: in memory).
func WithGraphStore(store ports.GraphStore) Option {
	return func(e *Engine) {
		e.graphStore = store
	}
}

// WithLocker enables cross-replica serialization of run writes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithIDGenerator overrides how graph and run IDs are generated.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// New initializes a new Engine.
// Without store options both graphs and runs live in a single in-memory store.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		maxSteps: DefaultMaxSteps,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.maxSteps < 1 {
		return nil, fmt.Errorf("max steps must be at least 1, got %d", eng.maxSteps)
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.registry == nil {
		eng.registry = registry.NewRegistry()
	}
	if eng.runStore == nil || eng.graphStore == nil {
		mem := memory.NewStore()
		if eng.runStore == nil {
			eng.runStore = mem
		}
		if eng.graphStore == nil {
			eng.graphStore = mem
		}
	}

	managerOpts := []runs.Option{runs.WithLogger(eng.logger)}
	if eng.locker != nil {
		managerOpts = append(managerOpts, runs.WithLocker(eng.locker))
	}
	eng.recorder = runs.NewManager(eng.runStore, managerOpts...)

	eng.runtime = runtime.NewEngine(
		runtime.WithMaxSteps(eng.maxSteps),
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithStepObserver(eng.recorder.Save),
	)

	return eng, nil
}

// Register adds a node implementation under a unique name.
func (e *Engine) Register(name string, fn domain.NodeFunc) error {
	return e.registry.Register(name, fn)
}

// Registry returns the node registry backing the engine.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// MaxSteps returns the step limit applied to every run.
func (e *Engine) MaxSteps() int {
	return e.maxSteps
}

// CreateGraph validates spec against the registry and stores it.
// An empty ID is replaced with a generated one. Nothing is stored when validation fails.
func (e *Engine) CreateGraph(ctx context.Context, spec domain.GraphSpec) (string, error) {
	spec = spec.Copy()
	if spec.ID == "" {
		spec.ID = e.newID()
	} else if err := domain.ValidateName(spec.ID); err != nil {
		return "", err
	}

	if _, err := domain.NewGraph(spec, e.registry.Resolver()); err != nil {
		return "", err
	}
	if spec.CreatedAt.IsZero() {
		spec.CreatedAt = time.Now().UTC()
	}

	if err := e.graphStore.SaveGraph(ctx, spec); err != nil {
		if errors.Is(err, domain.ErrGraphExists) {
			return "", err
		}
		return "", fmt.Errorf("failed to store graph %q: %w", spec.ID, err)
	}

	e.logger.Info("graph created", "graph_id", spec.ID, "nodes", len(spec.Nodes), "entry", spec.Entry)
	return spec.ID, nil
}

// Run executes the stored graph synchronously from its entry node.
//
// Execution failures (node errors, invalid control values, the step limit) are
// recorded in the returned run and do not produce an error. The error is
// reserved for an unknown graph, a definition that no longer resolves, and
// storage failures.
func (e *Engine) Run(ctx context.Context, graphID string, initial map[string]any) (*domain.Run, error) {
	spec, err := e.graphStore.LoadGraph(ctx, graphID)
	if err != nil {
		if errors.Is(err, domain.ErrGraphNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load graph %q: %w", graphID, err)
	}

	graph, err := domain.NewGraph(spec, e.registry.Resolver())
	if err != nil {
		return nil, err
	}

	state := domain.NewState(initial).Clone()
	run := &domain.Run{
		ID:        e.newID(),
		GraphID:   graph.ID(),
		Status:    domain.StatusRunning,
		State:     state.Domain(),
		StartedAt: time.Now().UTC(),
	}
	if err := e.recorder.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	// The outcome is carried by run; the returned error only mirrors run.Error.
	_ = e.runtime.Execute(ctx, graph, run, state)

	// The final record must land even when ctx was canceled mid-run.
	if err := e.recorder.Save(context.WithoutCancel(ctx), run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return run.Copy(), nil
}

// GetRun returns the recorded run, finished or in progress.
func (e *Engine) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	return e.recorder.Load(ctx, runID)
}

// ListRuns returns the IDs of the recorded runs.
func (e *Engine) ListRuns(ctx context.Context) ([]string, error) {
	return e.recorder.List(ctx)
}

// Graph returns the definition stored under graphID.
func (e *Engine) Graph(ctx context.Context, graphID string) (domain.GraphSpec, error) {
	return e.graphStore.LoadGraph(ctx, graphID)
}

// ListGraphs returns every stored definition ordered by ID.
func (e *Engine) ListGraphs(ctx context.Context) ([]domain.GraphSpec, error) {
	return e.graphStore.ListGraphs(ctx)
}
