package domain

import (
	"context"
	"time"
)

// NodeFunc is the executable unit behind a node name.
// It may mutate state in place and return it, or return a replacement.
// Returning a nil State keeps the (possibly mutated) input.
type NodeFunc func(ctx context.Context, state State) (State, error)

// NodeResolver maps a node name to its implementation.
type NodeResolver func(name string) (NodeFunc, bool)

// GraphSpec is the persistable description of a graph: nodes are referenced by name only.
type GraphSpec struct {
	ID    string   `json:"id" yaml:"id" mapstructure:"id"`
	Entry string   `json:"start_node" yaml:"start_node" mapstructure:"start_node"`
	Nodes []string `json:"nodes" yaml:"nodes" mapstructure:"nodes"`

	// Edges declares a static successor per node, used when a node leaves the control keys unset.
	Edges map[string]string `json:"edges,omitempty" yaml:"edges,omitempty" mapstructure:"edges"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty" mapstructure:"-"`
}

// Copy returns a copy that shares no slices or maps with s.
func (s GraphSpec) Copy() GraphSpec {
	out := s
	out.Nodes = append([]string(nil), s.Nodes...)
	if s.Edges != nil {
		out.Edges = make(map[string]string, len(s.Edges))
		for k, v := range s.Edges {
			out.Edges[k] = v
		}
	}
	return out
}

// Graph is a GraphSpec resolved against a node registry. It is immutable.
type Graph struct {
	spec  GraphSpec
	nodes map[string]NodeFunc
}

// NewGraph validates spec and resolves every node through resolve.
// No partial graph is ever returned.
func NewGraph(spec GraphSpec, resolve NodeResolver) (*Graph, error) {
	if len(spec.Nodes) == 0 {
		return nil, ErrEmptyGraph
	}

	nodes := make(map[string]NodeFunc, len(spec.Nodes))
	for _, name := range spec.Nodes {
		if err := ValidateName(name); err != nil {
			return nil, err
		}
		if _, dup := nodes[name]; dup {
			return nil, &DuplicateNodeError{Name: name}
		}
		fn, ok := resolve(name)
		if !ok || fn == nil {
			return nil, &UnknownNodeError{Name: name}
		}
		nodes[name] = fn
	}

	if _, ok := nodes[spec.Entry]; !ok {
		return nil, &UnknownEntryNodeError{Entry: spec.Entry}
	}

	for from, to := range spec.Edges {
		if _, ok := nodes[from]; !ok {
			return nil, &UnknownNodeError{Name: from}
		}
		if to == "" {
			continue
		}
		if _, ok := nodes[to]; !ok {
			return nil, &UnknownNodeError{Name: to}
		}
	}

	return &Graph{spec: spec.Copy(), nodes: nodes}, nil
}

// ID returns the graph identifier.
func (g *Graph) ID() string { return g.spec.ID }

// Entry returns the name of the first node to run.
func (g *Graph) Entry() string { return g.spec.Entry }

// Node returns the implementation registered under name.
func (g *Graph) Node(name string) (NodeFunc, bool) {
	fn, ok := g.nodes[name]
	return fn, ok
}

// StaticNext returns the declared successor of name, or "" when none is declared.
func (g *Graph) StaticNext(name string) string {
	return g.spec.Edges[name]
}

// Spec returns a copy of the definition the graph was built from.
func (g *Graph) Spec() GraphSpec {
	return g.spec.Copy()
}
