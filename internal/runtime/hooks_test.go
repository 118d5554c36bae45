package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/agentflow/internal/runtime"
	"github.com/aretw0/agentflow/pkg/domain"
)

func TestEngine_LifecycleHooks(t *testing.T) {
	g := buildGraph(t, "start", map[string]domain.NodeFunc{
		"start": func(ctx context.Context, s domain.State) (domain.State, error) {
			s.GoTo("step_2")
			return s, nil
		},
		"step_2": func(ctx context.Context, s domain.State) (domain.State, error) {
			return s, nil
		},
	}, nil)

	// Capture events
	var entered, left []string
	var started, finished int
	var finalStatus domain.RunStatus

	hooks := domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			started++
		},
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			entered = append(entered, e.NodeID)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			left = append(left, e.NodeID)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			finished++
			finalStatus = e.Status
			if e.RunID != "run-1" || e.GraphID != "test-graph" {
				t.Errorf("unexpected event identity: %+v", e.EventBase)
			}
		},
	}

	engine := runtime.NewEngine(runtime.WithLifecycleHooks(hooks))
	if _, err := execute(t, engine, g, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if started != 1 || finished != 1 {
		t.Errorf("Expected one start and one finish, got %d/%d", started, finished)
	}
	if len(entered) != 2 || entered[0] != "start" || entered[1] != "step_2" {
		t.Errorf("Unexpected enter sequence: %v", entered)
	}
	if len(left) != 2 || left[1] != "step_2" {
		t.Errorf("Unexpected leave sequence: %v", left)
	}
	if finalStatus != domain.StatusCompleted {
		t.Errorf("Expected completed, got %s", finalStatus)
	}
}

func TestEngine_CombinedHooks(t *testing.T) {
	g := buildGraph(t, "only", map[string]domain.NodeFunc{
		"only": func(ctx context.Context, s domain.State) (domain.State, error) { return s, nil },
	}, nil)

	var a, b int
	hooks := domain.Combine(
		domain.LifecycleHooks{OnNodeEnter: func(context.Context, *domain.NodeEvent) { a++ }},
		domain.LifecycleHooks{OnNodeEnter: func(context.Context, *domain.NodeEvent) { b++ }},
	)

	if _, err := execute(t, runtime.NewEngine(runtime.WithLifecycleHooks(hooks)), g, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if a != 1 || b != 1 {
		t.Errorf("Expected both hooks to fire once, got %d/%d", a, b)
	}
}
