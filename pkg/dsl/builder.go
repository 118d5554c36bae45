package dsl

import (
	"context"
	"fmt"

	"github.com/aretw0/agentflow/pkg/domain"
)

// Registrar is the subset of a node registry used by Register.
type Registrar interface {
	Register(name string, fn domain.NodeFunc) error
}

// Installer registers nodes and stores graph definitions, as the engine does.
type Installer interface {
	Registrar
	CreateGraph(ctx context.Context, spec domain.GraphSpec) (string, error)
}

// Builder manages the graph construction.
type Builder struct {
	id    string
	entry string
	order []string
	nodes map[string]*NodeBuilder
}

// New creates a new graph builder. An empty id lets the store assign one.
func New(id string) *Builder {
	return &Builder{
		id:    id,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder.
// The first node added is the entry unless Start says otherwise.
func (b *Builder) Add(name string) *NodeBuilder {
	if nb, ok := b.nodes[name]; ok {
		return nb
	}
	nb := &NodeBuilder{name: name, builder: b}
	b.nodes[name] = nb
	b.order = append(b.order, name)
	if b.entry == "" {
		b.entry = name
	}
	return nb
}

// Start sets the entry node.
func (b *Builder) Start(name string) *Builder {
	b.entry = name
	return b
}

// Spec compiles the builder into a validated definition.
// Every node needs a function and every edge a declared target.
func (b *Builder) Spec() (domain.GraphSpec, error) {
	spec := domain.GraphSpec{
		ID:    b.id,
		Entry: b.entry,
		Nodes: append([]string(nil), b.order...),
		Edges: make(map[string]string),
	}
	for _, name := range b.order {
		if next := b.nodes[name].next; next != "" {
			spec.Edges[name] = next
		}
	}

	if _, err := domain.NewGraph(spec, b.resolve); err != nil {
		return domain.GraphSpec{}, fmt.Errorf("invalid graph %q: %w", b.id, err)
	}
	return spec, nil
}

// Register adds every node function to r, in declaration order.
func (b *Builder) Register(r Registrar) error {
	for _, name := range b.order {
		fn := b.nodes[name].fn
		if fn == nil {
			return &domain.UnknownNodeError{Name: name}
		}
		if err := r.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// Install registers the nodes and stores the definition, returning its ID.
func (b *Builder) Install(ctx context.Context, eng Installer) (string, error) {
	spec, err := b.Spec()
	if err != nil {
		return "", err
	}
	if err := b.Register(eng); err != nil {
		return "", err
	}
	return eng.CreateGraph(ctx, spec)
}

func (b *Builder) resolve(name string) (domain.NodeFunc, bool) {
	nb, ok := b.nodes[name]
	if !ok || nb.fn == nil {
		return nil, false
	}
	return nb.fn, true
}
