package domain

import (
	"time"

	"github.com/mohae/deepcopy"
)

// RunStatus describes where a run is in its lifecycle.
type RunStatus string

const (
	StatusRunning           RunStatus = "running"             // Steps are still being dispatched
	StatusCompleted         RunStatus = "completed"           // A node decided to stop
	StatusFailed            RunStatus = "failed"              // A run-time error aborted the run
	StatusStepLimitExceeded RunStatus = "step_limit_exceeded" // The safety bound was hit
)

// Terminal reports whether the run can no longer change.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStepLimitExceeded
}

// Step records one successful node invocation.
type Step struct {
	Number int    `json:"step_number"`
	Node   string `json:"node"`
	Next   string `json:"next,omitempty"`

	// Changes holds the keys the node added or modified; deleted keys map to nil.
	Changes map[string]any `json:"changes,omitempty"`

	Duration time.Duration `json:"duration_ns"`
}

// Run is the record of one execution of a graph.
type Run struct {
	ID        string    `json:"run_id"`
	GraphID   string    `json:"graph_id"`
	Status    RunStatus `json:"status"`
	StepCount int       `json:"step_count"`

	// State is the last successful state with control keys stripped.
	State State  `json:"state"`
	Log   []Step `json:"log"`

	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Copy returns a deep copy of the run.
func (r *Run) Copy() *Run {
	if r == nil {
		return nil
	}
	out := *r
	out.State = r.State.Clone()
	if r.Log != nil {
		out.Log = make([]Step, len(r.Log))
		for i, step := range r.Log {
			out.Log[i] = step
			if step.Changes != nil {
				out.Log[i].Changes, _ = deepcopy.Copy(step.Changes).(map[string]any)
			}
		}
	}
	return &out
}
