package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/agentflow"
	api "github.com/aretw0/agentflow/pkg/adapters/http"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine  *agentflow.Engine
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	eng, err := agentflow.New(
		agentflow.WithMaxSteps(10),
		agentflow.WithLifecycleHooks(metrics.Hooks()),
	)
	require.NoError(t, err)

	require.NoError(t, eng.Register("count", func(ctx context.Context, s domain.State) (domain.State, error) {
		n, _ := s["counter"].(float64)
		s.Set("counter", n+1)
		if n+1 < 3 {
			s.GoTo("count")
		}
		return s, nil
	}))
	require.NoError(t, eng.Register("loop", func(ctx context.Context, s domain.State) (domain.State, error) {
		s.GoTo("loop")
		return s, nil
	}))
	require.NoError(t, eng.Register("fail", func(ctx context.Context, s domain.State) (domain.State, error) {
		return nil, errors.New("boom")
	}))

	handler, err := api.NewHandler(eng,
		api.WithDefaultGraph("counter"),
		api.WithGatherer(reg),
	)
	require.NoError(t, err)

	_, err = eng.CreateGraph(context.Background(), domain.GraphSpec{ID: "counter", Entry: "count", Nodes: []string{"count"}})
	require.NoError(t, err)

	return &fixture{engine: eng, handler: handler}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRootAndHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	root := decodeBody[api.RootResponse](t, w)
	assert.Equal(t, "counter", root.ExampleGraphID)

	w = f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCreateGraph(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{
			name:   "valid with null edge",
			body:   map[string]any{"nodes": []string{"count", "loop"}, "edges": map[string]any{"count": "loop", "loop": nil}, "start_node": "count"},
			status: http.StatusOK,
		},
		{
			name:   "unknown entry",
			body:   api.CreateGraphRequest{Nodes: []string{"count"}, StartNode: "missing"},
			status: http.StatusBadRequest,
			code:   domain.CodeUnknownEntryNode,
		},
		{
			name:   "unregistered node",
			body:   api.CreateGraphRequest{Nodes: []string{"ghost"}, StartNode: "ghost"},
			status: http.StatusBadRequest,
			code:   domain.CodeUnknownNode,
		},
		{
			name:   "duplicate node",
			body:   api.CreateGraphRequest{Nodes: []string{"count", "count"}, StartNode: "count"},
			status: http.StatusBadRequest,
			code:   domain.CodeDuplicateNode,
		},
		{
			name:   "taken id",
			body:   api.CreateGraphRequest{GraphID: "counter", Nodes: []string{"count"}, StartNode: "count"},
			status: http.StatusConflict,
			code:   domain.CodeGraphExists,
		},
		{
			name:   "path separator in id",
			body:   api.CreateGraphRequest{GraphID: "a/b", Nodes: []string{"count"}, StartNode: "count"},
			status: http.StatusBadRequest,
			code:   domain.CodeInvalidName,
		},
		{
			name:   "schema violation",
			body:   map[string]any{"nodes": "count", "start_node": "count"},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/graph/create", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			if tt.status == http.StatusOK {
				resp := decodeBody[api.CreateGraphResponse](t, w)
				assert.NotEmpty(t, resp.GraphID)

				spec, err := f.engine.Graph(context.Background(), resp.GraphID)
				require.NoError(t, err)
				assert.Equal(t, map[string]string{"count": "loop"}, spec.Edges)
				return
			}
			resp := decodeBody[api.ErrorResponse](t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestRunGraph(t *testing.T) {
	f := newFixture(t)

	t.Run("completes", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/graph/run", api.RunGraphRequest{GraphID: "counter", InitialState: map[string]any{"counter": 0}})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decodeBody[api.RunGraphResponse](t, w)
		assert.Equal(t, "completed", resp.Status)
		assert.Equal(t, 3, resp.StepCount)
		assert.Equal(t, 3.0, resp.FinalState["counter"])
		require.Len(t, resp.Log, 3)
		assert.Equal(t, 1, resp.Log[0].Number)
		assert.Empty(t, resp.Error)
	})

	t.Run("unknown graph", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/graph/run", api.RunGraphRequest{GraphID: "ghost"})
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, domain.CodeGraphNotFound, decodeBody[api.ErrorResponse](t, w).Code)
	})

	t.Run("node failure answers 200", func(t *testing.T) {
		_, err := f.engine.CreateGraph(context.Background(), domain.GraphSpec{ID: "failing", Entry: "fail", Nodes: []string{"fail"}})
		require.NoError(t, err)

		w := f.do(t, http.MethodPost, "/graph/run", api.RunGraphRequest{GraphID: "failing", InitialState: map[string]any{"keep": "me"}})
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeBody[api.RunGraphResponse](t, w)
		assert.Equal(t, "failed", resp.Status)
		assert.Equal(t, domain.CodeNodeExecution, resp.ErrorCode)
		assert.Equal(t, map[string]any{"keep": "me"}, resp.FinalState)
	})

	t.Run("step limit answers 200", func(t *testing.T) {
		_, err := f.engine.CreateGraph(context.Background(), domain.GraphSpec{ID: "forever", Entry: "loop", Nodes: []string{"loop"}})
		require.NoError(t, err)

		w := f.do(t, http.MethodPost, "/graph/run", api.RunGraphRequest{GraphID: "forever"})
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeBody[api.RunGraphResponse](t, w)
		assert.Equal(t, "step_limit_exceeded", resp.Status)
		assert.Equal(t, 10, resp.StepCount)
	})

	t.Run("missing graph id", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/graph/run", map[string]any{"initial_state": map[string]any{}})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_request", decodeBody[api.ErrorResponse](t, w).Code)
	})
}

func TestGetRunState(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/graph/run", api.RunGraphRequest{GraphID: "counter", InitialState: map[string]any{"counter": 1}})
	require.Equal(t, http.StatusOK, w.Code)
	runID := decodeBody[api.RunGraphResponse](t, w).RunID

	for i := 0; i < 2; i++ {
		w = f.do(t, http.MethodGet, "/graph/state/"+runID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeBody[api.RunStateResponse](t, w)
		assert.Equal(t, runID, resp.RunID)
		assert.Equal(t, "counter", resp.GraphID)
		assert.Equal(t, "completed", resp.Status)
		assert.Equal(t, 3.0, resp.CurrentState["counter"])
		assert.NotContains(t, resp.CurrentState, domain.KeyNextNode)
	}

	w = f.do(t, http.MethodGet, "/graph/state/unknown", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.CodeRunNotFound, decodeBody[api.ErrorResponse](t, w).Code)
}

func TestListGraphs(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/graphs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	specs := decodeBody[[]domain.GraphSpec](t, w)
	require.Len(t, specs, 1)
	assert.Equal(t, "counter", specs[0].ID)
	assert.Equal(t, "count", specs[0].Entry)
}

func TestGraphMermaid(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/graph/counter/mermaid", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "graph TD"))
	assert.NotContains(t, w.Body.String(), "classDef")

	run := f.do(t, http.MethodPost, "/graph/run", api.RunGraphRequest{GraphID: "counter"})
	runID := decodeBody[api.RunGraphResponse](t, run).RunID

	w = f.do(t, http.MethodGet, "/graph/counter/mermaid?run_id="+runID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "class n_count visited;")

	w = f.do(t, http.MethodGet, "/graph/ghost/mermaid", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsAndSpec(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/graph/run", api.RunGraphRequest{GraphID: "counter"})

	w := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `agentflow_runs_finished_total{graph_id="counter",status="completed"} 1`)

	w = f.do(t, http.MethodGet, "/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/graph/run")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodOptions, "/graph/run", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, api.StatusFor(domain.ErrGraphExists))
	assert.Equal(t, http.StatusNotFound, api.StatusFor(domain.ErrRunNotFound))
	assert.Equal(t, http.StatusBadRequest, api.StatusFor(&domain.UnknownEntryNodeError{Entry: "x"}))
	assert.Equal(t, http.StatusInternalServerError, api.StatusFor(errors.New("disk on fire")))
}

func TestSpecIsValid(t *testing.T) {
	doc, err := api.Spec()
	require.NoError(t, err)
	assert.NotNil(t, doc.Paths.Find("/graph/run"))
}
