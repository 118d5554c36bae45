package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405.000000000")

	newRun := func(id string) *domain.Run {
		return &domain.Run{
			ID:        id,
			GraphID:   "contract-graph",
			Status:    domain.StatusCompleted,
			StepCount: 2,
			State:     domain.State{"foo": "bar", "count": 42},
			Log: []domain.Step{
				{Number: 1, Node: "a", Next: "b", Changes: map[string]any{"foo": "bar"}},
				{Number: 2, Node: "b", Changes: map[string]any{"count": 42}},
			},
			StartedAt:  time.Now().UTC().Truncate(time.Millisecond),
			FinishedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		run := newRun(runID)

		err := store.SaveRun(ctx, run)
		require.NoError(t, err, "SaveRun should not return error")

		loaded, err := store.LoadRun(ctx, runID)
		require.NoError(t, err, "LoadRun should not return error")
		assert.Equal(t, run.ID, loaded.ID)
		assert.Equal(t, run.GraphID, loaded.GraphID)
		assert.Equal(t, domain.StatusCompleted, loaded.Status)
		assert.Equal(t, 2, loaded.StepCount)
		assert.Equal(t, "bar", loaded.State["foo"])
		// JSON-backed stores turn ints into float64; compare by value.
		assert.EqualValues(t, 42, loaded.State["count"])
		require.Len(t, loaded.Log, 2)
		assert.Equal(t, "b", loaded.Log[0].Next)
		assert.True(t, run.StartedAt.Equal(loaded.StartedAt), "StartedAt should round-trip")
	})

	t.Run("Save Replaces", func(t *testing.T) {
		run := newRun(runID)
		run.Status = domain.StatusFailed
		run.Error = "node execution failed"
		run.ErrorCode = domain.CodeNodeExecution
		require.NoError(t, store.SaveRun(ctx, run))

		loaded, err := store.LoadRun(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, loaded.Status)
		assert.Equal(t, domain.CodeNodeExecution, loaded.ErrorCode)
	})

	t.Run("Load Is Isolated", func(t *testing.T) {
		loaded, err := store.LoadRun(ctx, runID)
		require.NoError(t, err)
		loaded.State["foo"] = "mutated"

		again, err := store.LoadRun(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, "bar", again.State["foo"], "callers must not mutate stored state")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.LoadRun(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Load Unaddressable", func(t *testing.T) {
		for _, id := range []string{"a/b", "..", `..\..\etc`} {
			_, err := store.LoadRun(ctx, id)
			assert.ErrorIs(t, err, domain.ErrRunNotFound, "id %q", id)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.SaveRun(ctx, newRun(runID)))

		err := store.DeleteRun(ctx, runID)
		require.NoError(t, err, "DeleteRun should not return error")

		_, err = store.LoadRun(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "LoadRun after DeleteRun should return ErrRunNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		_ = store.SaveRun(ctx, newRun(id1))
		_ = store.SaveRun(ctx, newRun(id2))

		// Ensure cleanup
		defer func() {
			_ = store.DeleteRun(ctx, id1)
			_ = store.DeleteRun(ctx, id2)
		}()

		runs, err := store.ListRuns(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}

// GraphStoreContract runs a suite of tests to verify that a GraphStore implementation
// adheres to the defined interface contract.
func GraphStoreContract(t *testing.T, store GraphStore) {
	ctx := context.Background()
	graphID := "contract-test-graph-" + time.Now().Format("20060102150405.000000000")

	spec := domain.GraphSpec{
		ID:        graphID,
		Entry:     "a",
		Nodes:     []string{"a", "b"},
		Edges:     map[string]string{"a": "b"},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, store.SaveGraph(ctx, spec))

		loaded, err := store.LoadGraph(ctx, graphID)
		require.NoError(t, err)
		assert.Equal(t, spec.ID, loaded.ID)
		assert.Equal(t, spec.Entry, loaded.Entry)
		assert.Equal(t, spec.Nodes, loaded.Nodes)
		assert.Equal(t, spec.Edges, loaded.Edges)
	})

	t.Run("Save Existing", func(t *testing.T) {
		other := spec.Copy()
		other.Entry = "b"
		err := store.SaveGraph(ctx, other)
		assert.ErrorIs(t, err, domain.ErrGraphExists)

		loaded, err := store.LoadGraph(ctx, graphID)
		require.NoError(t, err)
		assert.Equal(t, "a", loaded.Entry, "existing definition must be kept")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.LoadGraph(ctx, "non-existent-"+graphID)
		assert.ErrorIs(t, err, domain.ErrGraphNotFound)
	})

	t.Run("Load Unaddressable", func(t *testing.T) {
		for _, id := range []string{"a/b", "..", `..\..\etc`} {
			_, err := store.LoadGraph(ctx, id)
			assert.ErrorIs(t, err, domain.ErrGraphNotFound, "id %q", id)
		}
	})

	t.Run("List", func(t *testing.T) {
		second := spec.Copy()
		second.ID = graphID + "-2"
		require.NoError(t, store.SaveGraph(ctx, second))

		graphs, err := store.ListGraphs(ctx)
		require.NoError(t, err)

		ids := make([]string, 0, len(graphs))
		for _, g := range graphs {
			ids = append(ids, g.ID)
		}
		assert.Contains(t, ids, graphID)
		assert.Contains(t, ids, second.ID)
	})
}
