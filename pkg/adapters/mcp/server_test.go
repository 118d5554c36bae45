package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aretw0/agentflow"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	eng, err := agentflow.New()
	require.NoError(t, err)
	require.NoError(t, eng.Register("double", func(ctx context.Context, s domain.State) (domain.State, error) {
		n, _ := s["n"].(float64)
		s.Set("n", n*2)
		return s, nil
	}))
	require.NoError(t, eng.Register("fail", func(ctx context.Context, s domain.State) (domain.State, error) {
		return nil, errors.New("boom")
	}))
	return NewServer(eng)
}

func TestTools_CreateRunAndFetch(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	created, err := s.handleCreateGraph(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"graph_id":   "doubler",
		"nodes":      []interface{}{"double"},
		"start_node": "double",
	})
	require.NoError(t, err)
	assert.Equal(t, "doubler", created.GraphID)

	run, err := s.handleRunGraph(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"graph_id":      "doubler",
		"initial_state": map[string]interface{}{"n": 21.0},
	})
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, 42.0, run.State["n"])

	fetched, err := s.handleGetRunState(ctx, mcp.CallToolRequest{}, map[string]interface{}{"run_id": run.RunID})
	require.NoError(t, err)
	assert.Equal(t, run.RunID, fetched.RunID)
	assert.Equal(t, 42.0, fetched.State["n"])
}

func TestTools_JSONStringArguments(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	created, err := s.handleCreateGraph(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"nodes":      `["double", "fail"]`,
		"edges":      `{"double": "fail", "fail": null}`,
		"start_node": "double",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.GraphID)

	run, err := s.handleRunGraph(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"graph_id":      created.GraphID,
		"initial_state": `{"n": 2}`,
	})
	require.NoError(t, err, "execution failures are reported in the result")
	assert.Equal(t, "failed", run.Status)
	assert.Equal(t, domain.CodeNodeExecution, run.ErrorCode)
	assert.Equal(t, 4.0, run.State["n"])
	assert.Equal(t, 1, run.StepCount)
}

func TestTools_Errors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleCreateGraph(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"nodes":      []interface{}{"double"},
		"start_node": "nowhere",
	})
	assert.ErrorIs(t, err, domain.ErrUnknownEntryNode)

	_, err = s.handleRunGraph(ctx, mcp.CallToolRequest{}, map[string]interface{}{"graph_id": "ghost"})
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)

	_, err = s.handleGetRunState(ctx, mcp.CallToolRequest{}, map[string]interface{}{"run_id": "ghost"})
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestGraphsJSON(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	data, err := s.graphsJSON(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	_, err = s.handleCreateGraph(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"graph_id":   "g",
		"nodes":      []interface{}{"double"},
		"start_node": "double",
	})
	require.NoError(t, err)

	data, err = s.graphsJSON(ctx)
	require.NoError(t, err)

	var specs []domain.GraphSpec
	require.NoError(t, json.Unmarshal(data, &specs))
	require.Len(t, specs, 1)
	assert.Equal(t, "g", specs[0].ID)
}
