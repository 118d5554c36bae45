package domain_test

import (
	"context"
	"testing"

	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context, s domain.State) (domain.State, error) { return s, nil }

func resolveAll(names ...string) domain.NodeResolver {
	known := map[string]bool{}
	for _, n := range names {
		known[n] = true
	}
	return func(name string) (domain.NodeFunc, bool) {
		if !known[name] {
			return nil, false
		}
		return noop, true
	}
}

func TestNewGraph(t *testing.T) {
	resolve := resolveAll("a", "b", "c")

	t.Run("Entry Among Nodes", func(t *testing.T) {
		for _, entry := range []string{"a", "b", "c"} {
			g, err := domain.NewGraph(domain.GraphSpec{ID: "g", Entry: entry, Nodes: []string{"a", "b", "c"}}, resolve)
			require.NoError(t, err)
			assert.Equal(t, entry, g.Entry())
		}
	})

	t.Run("Unknown Entry", func(t *testing.T) {
		_, err := domain.NewGraph(domain.GraphSpec{Entry: "z", Nodes: []string{"a"}}, resolve)
		assert.ErrorIs(t, err, domain.ErrUnknownEntryNode)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := domain.NewGraph(domain.GraphSpec{Entry: "a"}, resolve)
		assert.ErrorIs(t, err, domain.ErrEmptyGraph)
	})

	t.Run("Duplicate", func(t *testing.T) {
		_, err := domain.NewGraph(domain.GraphSpec{Entry: "a", Nodes: []string{"a", "a"}}, resolve)
		assert.ErrorIs(t, err, domain.ErrDuplicateNode)
	})

	t.Run("Unregistered Node", func(t *testing.T) {
		_, err := domain.NewGraph(domain.GraphSpec{Entry: "a", Nodes: []string{"a", "ghost"}}, resolve)
		assert.ErrorIs(t, err, domain.ErrUnknownNode)
	})

	t.Run("Edge Outside Graph", func(t *testing.T) {
		_, err := domain.NewGraph(domain.GraphSpec{
			Entry: "a",
			Nodes: []string{"a", "b"},
			Edges: map[string]string{"a": "c"},
		}, resolve)
		assert.ErrorIs(t, err, domain.ErrUnknownNode)
	})

	t.Run("Invalid Name", func(t *testing.T) {
		_, err := domain.NewGraph(domain.GraphSpec{Entry: "_a", Nodes: []string{"_a"}}, resolve)
		assert.ErrorIs(t, err, domain.ErrInvalidName)
	})

	t.Run("Immutable Spec", func(t *testing.T) {
		spec := domain.GraphSpec{Entry: "a", Nodes: []string{"a", "b"}, Edges: map[string]string{"a": "b"}}
		g, err := domain.NewGraph(spec, resolve)
		require.NoError(t, err)

		spec.Nodes[1] = "c"
		spec.Edges["a"] = ""
		assert.Equal(t, "b", g.StaticNext("a"))
		assert.Equal(t, []string{"a", "b"}, g.Spec().Nodes)
	})
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, domain.CodeNodeExecution, domain.ErrorCode(&domain.NodeExecutionError{Node: "a", Err: assert.AnError}))
	assert.Equal(t, domain.CodeStepLimitExceeded, domain.ErrorCode(&domain.StepLimitExceededError{Limit: 3}))
	assert.Equal(t, domain.CodeRunNotFound, domain.ErrorCode(domain.ErrRunNotFound))
	assert.Equal(t, domain.CodeInternal, domain.ErrorCode(assert.AnError))
	assert.Equal(t, "", domain.ErrorCode(nil))
	assert.True(t, domain.IsDefinitionError(&domain.UnknownEntryNodeError{Entry: "x"}))
	assert.False(t, domain.IsDefinitionError(domain.ErrRunNotFound))
}
