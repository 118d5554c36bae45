package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/agentflow/pkg/domain"
)

// ErrNilNode is returned when a node is registered without an implementation.
var ErrNilNode = errors.New("node function is nil")

// Registry maps node names to their implementations.
// Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]domain.NodeFunc
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes: make(map[string]domain.NodeFunc),
	}
}

// Register associates a unique name with a node implementation.
// Registering a name twice fails with a *domain.DuplicateNodeError.
func (r *Registry) Register(name string, fn domain.NodeFunc) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("%w: %q", ErrNilNode, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[name]; exists {
		return &domain.DuplicateNodeError{Name: name}
	}
	r.nodes[name] = fn
	return nil
}

// MustRegister is like Register but panics on error. Intended for package init wiring.
func (r *Registry) MustRegister(name string, fn domain.NodeFunc) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the implementation registered under name.
func (r *Registry) Lookup(name string) (domain.NodeFunc, bool) {
	r.mu.RLock()
	fn, ok := r.nodes[name]
	r.mu.RUnlock()
	return fn, ok
}

// Resolver exposes Lookup as a domain.NodeResolver.
func (r *Registry) Resolver() domain.NodeResolver {
	return r.Lookup
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
