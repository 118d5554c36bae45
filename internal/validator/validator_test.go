package validator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, names ...string) *registry.Registry {
	t.Helper()
	r := registry.NewRegistry()
	for _, name := range names {
		r.MustRegister(name, func(ctx context.Context, s domain.State) (domain.State, error) { return s, nil })
	}
	return r
}

func TestValidateGraph(t *testing.T) {
	reg := newRegistry(t, "start", "a", "b", "fixup")

	t.Run("Valid chain", func(t *testing.T) {
		spec := domain.GraphSpec{
			ID:    "g",
			Entry: "start",
			Nodes: []string{"start", "a", "b", "fixup"},
			Edges: map[string]string{"start": "a", "a": "b"},
		}
		report, err := ValidateGraph(spec, reg.Resolver())
		require.NoError(t, err)

		assert.Equal(t, []string{"start", "a", "b"}, report.Reachable)
		assert.Equal(t, []string{"fixup"}, report.Unreachable)
		assert.Equal(t, []string{"b", "fixup"}, report.Terminals)
	})

	t.Run("Static cycle terminates", func(t *testing.T) {
		spec := domain.GraphSpec{
			ID:    "g",
			Entry: "a",
			Nodes: []string{"a", "b"},
			Edges: map[string]string{"a": "b", "b": "a"},
		}
		report, err := ValidateGraph(spec, reg.Resolver())
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, report.Reachable)
		assert.Empty(t, report.Terminals)
	})

	t.Run("Broken edge", func(t *testing.T) {
		spec := domain.GraphSpec{
			ID:    "g",
			Entry: "start",
			Nodes: []string{"start"},
			Edges: map[string]string{"start": "ghost_node"},
		}
		_, err := ValidateGraph(spec, reg.Resolver())
		require.Error(t, err)
		assert.True(t, domain.IsDefinitionError(err))
	})

	t.Run("Unregistered node", func(t *testing.T) {
		spec := domain.GraphSpec{ID: "g", Entry: "missing", Nodes: []string{"missing"}}
		_, err := ValidateGraph(spec, reg.Resolver())
		var unknown *domain.UnknownNodeError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "missing", unknown.Name)
	})
}

func TestLoadSpec(t *testing.T) {
	dir := t.TempDir()

	t.Run("YAML", func(t *testing.T) {
		path := filepath.Join(dir, "graph.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`id: review
start_node: start
nodes: [start, a]
edges:
  start: a
`), 0644))

		spec, err := LoadSpec(path)
		require.NoError(t, err)
		assert.Equal(t, "review", spec.ID)
		assert.Equal(t, "start", spec.Entry)
		assert.Equal(t, []string{"start", "a"}, spec.Nodes)
		assert.Equal(t, "a", spec.Edges["start"])
	})

	t.Run("JSON", func(t *testing.T) {
		path := filepath.Join(dir, "graph.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"id":"j","start_node":"a","nodes":["a"]}`), 0644))

		spec, err := LoadSpec(path)
		require.NoError(t, err)
		assert.Equal(t, "a", spec.Entry)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := LoadSpec(filepath.Join(dir, "none.yaml"))
		require.Error(t, err)
	})
}
