package http

import (
	"github.com/aretw0/agentflow/pkg/domain"
)

// RootResponse is returned by GET /.
type RootResponse struct {
	Message        string `json:"message"`
	ExampleGraphID string `json:"example_graph_id,omitempty"`
	Hint           string `json:"hint"`
}

// CreateGraphRequest is the body of POST /graph/create.
// A null edge target means the node has no static successor.
type CreateGraphRequest struct {
	GraphID   string             `json:"graph_id,omitempty"`
	Nodes     []string           `json:"nodes"`
	Edges     map[string]*string `json:"edges,omitempty"`
	StartNode string             `json:"start_node"`
}

// Spec converts the request into a graph definition.
func (r CreateGraphRequest) Spec() domain.GraphSpec {
	spec := domain.GraphSpec{
		ID:    r.GraphID,
		Entry: r.StartNode,
		Nodes: r.Nodes,
	}
	for from, to := range r.Edges {
		if to == nil || *to == "" {
			continue
		}
		if spec.Edges == nil {
			spec.Edges = make(map[string]string)
		}
		spec.Edges[from] = *to
	}
	return spec
}

type CreateGraphResponse struct {
	GraphID string `json:"graph_id"`
}

// RunGraphRequest is the body of POST /graph/run.
type RunGraphRequest struct {
	GraphID      string         `json:"graph_id"`
	InitialState map[string]any `json:"initial_state"`
}

// RunGraphResponse reports a finished run.
type RunGraphResponse struct {
	RunID      string         `json:"run_id"`
	GraphID    string         `json:"graph_id"`
	Status     string         `json:"status"`
	StepCount  int            `json:"step_count"`
	FinalState map[string]any `json:"final_state"`
	Log        []domain.Step  `json:"log"`
	Error      string         `json:"error,omitempty"`
	ErrorCode  string         `json:"error_code,omitempty"`
}

// RunStateResponse reports a recorded run, finished or in progress.
type RunStateResponse struct {
	RunID        string         `json:"run_id"`
	GraphID      string         `json:"graph_id"`
	Status       string         `json:"status"`
	StepCount    int            `json:"step_count"`
	CurrentState map[string]any `json:"current_state"`
	Log          []domain.Step  `json:"log"`
	Error        string         `json:"error,omitempty"`
	ErrorCode    string         `json:"error_code,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newRunGraphResponse(run *domain.Run) RunGraphResponse {
	return RunGraphResponse{
		RunID:      run.ID,
		GraphID:    run.GraphID,
		Status:     string(run.Status),
		StepCount:  run.StepCount,
		FinalState: stateOrEmpty(run.State),
		Log:        logOrEmpty(run.Log),
		Error:      run.Error,
		ErrorCode:  run.ErrorCode,
	}
}

func newRunStateResponse(run *domain.Run) RunStateResponse {
	return RunStateResponse{
		RunID:        run.ID,
		GraphID:      run.GraphID,
		Status:       string(run.Status),
		StepCount:    run.StepCount,
		CurrentState: stateOrEmpty(run.State),
		Log:          logOrEmpty(run.Log),
		Error:        run.Error,
		ErrorCode:    run.ErrorCode,
	}
}

func stateOrEmpty(s domain.State) map[string]any {
	if s == nil {
		return map[string]any{}
	}
	return s
}

func logOrEmpty(log []domain.Step) []domain.Step {
	if log == nil {
		return []domain.Step{}
	}
	return log
}
