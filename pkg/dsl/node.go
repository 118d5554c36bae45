package dsl

import "github.com/aretw0/agentflow/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	name    string
	fn      domain.NodeFunc
	next    string
	builder *Builder
}

// Do sets the function the node runs.
func (n *NodeBuilder) Do(fn domain.NodeFunc) *NodeBuilder {
	n.fn = fn
	return n
}

// Go sets the static edge followed when the node leaves the control keys unset.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.next = target
	return n
}

// Then is Go(target) followed by Add(target), for declaring chains.
func (n *NodeBuilder) Then(target string) *NodeBuilder {
	n.Go(target)
	return n.builder.Add(target)
}

// Terminal removes the static edge: the run stops here unless the node jumps.
func (n *NodeBuilder) Terminal() *NodeBuilder {
	n.next = ""
	return n
}

// Name returns the node name.
func (n *NodeBuilder) Name() string {
	return n.name
}

// Builder returns the graph builder the node belongs to.
func (n *NodeBuilder) Builder() *Builder {
	return n.builder
}
