package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRunStart  EventType = "run_start"
	EventRunFinish EventType = "run_finish"
	EventNodeEnter EventType = "node_enter"
	EventNodeLeave EventType = "node_leave"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	GraphID   string    `json:"graph_id"`
}

// NodeEvent represents entry into or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID   string        `json:"node_id"`
	Step     int           `json:"step"`
	Duration time.Duration `json:"duration,omitempty"` // Leave only
	Err      error         `json:"-"`                  // Leave only
}

// RunEvent represents the start or end of a run.
type RunEvent struct {
	EventBase
	Status    RunStatus `json:"status,omitempty"`
	StepCount int       `json:"step_count"`
	Err       error     `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Any field may be nil.
type LifecycleHooks struct {
	OnRunStart  func(context.Context, *RunEvent)
	OnRunFinish func(context.Context, *RunEvent)
	OnNodeEnter func(context.Context, *NodeEvent)
	OnNodeLeave func(context.Context, *NodeEvent)
}

// Combine returns hooks that invoke every non-nil callback of each argument in order.
func Combine(hooks ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *RunEvent) {
			for _, h := range hooks {
				if h.OnRunStart != nil {
					h.OnRunStart(ctx, e)
				}
			}
		},
		OnRunFinish: func(ctx context.Context, e *RunEvent) {
			for _, h := range hooks {
				if h.OnRunFinish != nil {
					h.OnRunFinish(ctx, e)
				}
			}
		},
		OnNodeEnter: func(ctx context.Context, e *NodeEvent) {
			for _, h := range hooks {
				if h.OnNodeEnter != nil {
					h.OnNodeEnter(ctx, e)
				}
			}
		},
		OnNodeLeave: func(ctx context.Context, e *NodeEvent) {
			for _, h := range hooks {
				if h.OnNodeLeave != nil {
					h.OnNodeLeave(ctx, e)
				}
			}
		},
	}
}
