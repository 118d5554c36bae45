package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/agentflow/internal/logging"
	"github.com/aretw0/agentflow/pkg/domain"
)

// DefaultMaxSteps bounds the node invocations of a single run.
const DefaultMaxSteps = 100

// StepObserver is called after every successful step with the run as it stands.
// A non-nil error aborts the run.
type StepObserver func(ctx context.Context, run *domain.Run) error

// Engine is the execution loop: it dispatches nodes of a graph until one decides to stop.
type Engine struct {
	maxSteps int
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	observer StepObserver
	now      func() time.Time
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithMaxSteps sets the step limit. Values below 1 keep the default.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithStepObserver registers a callback invoked after each successful step.
func WithStepObserver(observer StepObserver) EngineOption {
	return func(e *Engine) {
		e.observer = observer
	}
}

// NewEngine creates a new execution loop.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		maxSteps: DefaultMaxSteps,
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxSteps returns the configured step limit.
func (e *Engine) MaxSteps() int {
	return e.maxSteps
}

// Execute runs graph from its entry node, starting from initial, and records the outcome in run.
//
// The loop owns the state for the whole run and lends it to one node at a time.
// On return run holds a terminal status, the step log and the last successful
// state without control keys. The returned error is the run-time failure (nil
// for a completed run); it is also recorded in run.Error.
func (e *Engine) Execute(ctx context.Context, graph *domain.Graph, run *domain.Run, initial domain.State) error {
	state := initial
	if state == nil {
		state = domain.State{}
	}
	// Leftover control keys from the caller must not steer the first dispatch.
	state.ClearControl()

	run.GraphID = graph.ID()
	run.Status = domain.StatusRunning
	run.StepCount = 0
	run.Log = nil
	run.State = state.Domain()
	if run.StartedAt.IsZero() {
		run.StartedAt = e.now()
	}

	logger := e.logger.With("run_id", run.ID, "graph_id", run.GraphID)
	e.runStart(ctx, run)

	current := graph.Entry()
	steps := 0

	for {
		if err := ctx.Err(); err != nil {
			return e.finish(ctx, logger, run, state, domain.StatusFailed, err)
		}

		fn, ok := graph.Node(current)
		if !ok {
			return e.finish(ctx, logger, run, state, domain.StatusFailed, &domain.UnknownNodeError{Name: current, Step: steps})
		}

		before := state.Clone()
		e.nodeEnter(ctx, run, current, steps+1)
		start := e.now()

		out, err := invoke(ctx, fn, state)
		duration := e.now().Sub(start)
		if err != nil {
			e.nodeLeave(ctx, run, current, steps+1, duration, err)
			return e.finish(ctx, logger, run, before, domain.StatusFailed,
				&domain.NodeExecutionError{Node: current, Step: steps + 1, Err: err})
		}
		if out != nil {
			state = out
		}

		decision, err := domain.Decide(state, current, graph.StaticNext(current))
		if err != nil {
			e.nodeLeave(ctx, run, current, steps+1, duration, err)
			return e.finish(ctx, logger, run, before, domain.StatusFailed, err)
		}
		state.ClearControl()
		e.nodeLeave(ctx, run, current, steps+1, duration, nil)

		steps++
		run.StepCount = steps
		run.Log = append(run.Log, domain.Step{
			Number:   steps,
			Node:     current,
			Next:     decision.Next,
			Changes:  domain.Changes(before, state),
			Duration: duration,
		})
		run.State = state.Domain()

		logger.Debug("step completed", "node", current, "step", steps, "decision", decision.String())

		if decision.Kind == domain.DecisionStop {
			return e.finish(ctx, logger, run, state, domain.StatusCompleted, nil)
		}
		// An unregistered target fails the run even on the last allowed step.
		if _, ok := graph.Node(decision.Next); !ok {
			return e.finish(ctx, logger, run, state, domain.StatusFailed, &domain.UnknownNodeError{Name: decision.Next, Step: steps})
		}
		if steps >= e.maxSteps {
			return e.finish(ctx, logger, run, state, domain.StatusStepLimitExceeded,
				&domain.StepLimitExceededError{Limit: e.maxSteps, Next: decision.Next})
		}

		if e.observer != nil {
			if err := e.observer(ctx, run); err != nil {
				return e.finish(ctx, logger, run, state, domain.StatusFailed, fmt.Errorf("failed to record step %d: %w", steps, err))
			}
		}

		current = decision.Next
	}
}

// invoke calls fn, turning a panic into an error.
func invoke(ctx context.Context, fn domain.NodeFunc, state domain.State) (out domain.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, state)
}

func (e *Engine) finish(ctx context.Context, logger *slog.Logger, run *domain.Run, state domain.State, status domain.RunStatus, err error) error {
	run.Status = status
	run.State = state.Domain()
	run.FinishedAt = e.now()
	if err != nil {
		run.Error = err.Error()
		run.ErrorCode = domain.ErrorCode(err)
	} else {
		run.Error = ""
		run.ErrorCode = ""
	}

	if err != nil {
		logger.Warn("run aborted", "status", status, "steps", run.StepCount, "error", err)
	} else {
		logger.Info("run completed", "status", status, "steps", run.StepCount)
	}

	if e.hooks.OnRunFinish != nil {
		e.hooks.OnRunFinish(ctx, &domain.RunEvent{
			EventBase: e.base(domain.EventRunFinish, run),
			Status:    status,
			StepCount: run.StepCount,
			Err:       err,
		})
	}
	return err
}

func (e *Engine) base(t domain.EventType, run *domain.Run) domain.EventBase {
	return domain.EventBase{
		Timestamp: e.now(),
		Type:      t,
		RunID:     run.ID,
		GraphID:   run.GraphID,
	}
}

func (e *Engine) runStart(ctx context.Context, run *domain.Run) {
	if e.hooks.OnRunStart != nil {
		e.hooks.OnRunStart(ctx, &domain.RunEvent{EventBase: e.base(domain.EventRunStart, run)})
	}
}

func (e *Engine) nodeEnter(ctx context.Context, run *domain.Run, node string, step int) {
	if e.hooks.OnNodeEnter != nil {
		e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
			EventBase: e.base(domain.EventNodeEnter, run),
			NodeID:    node,
			Step:      step,
		})
	}
}

func (e *Engine) nodeLeave(ctx context.Context, run *domain.Run, node string, step int, d time.Duration, err error) {
	if e.hooks.OnNodeLeave != nil {
		e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
			EventBase: e.base(domain.EventNodeLeave, run),
			NodeID:    node,
			Step:      step,
			Duration:  d,
			Err:       err,
		})
	}
}
