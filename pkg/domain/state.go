package domain

import (
	"strings"

	"github.com/mohae/deepcopy"
)

// Control keys are reserved state fields interpreted by the engine.
// Every key starting with ControlPrefix is treated as engine-owned.
const (
	ControlPrefix = "_"

	// KeyNextNode names the node to dispatch next. A null or empty value stops the run.
	KeyNextNode = "_next_node"

	// KeyStop halts the run after the current node when set to true.
	KeyStop = "_stop"
)

// State is the mutable container that flows between nodes.
// It is semantically a JSON object: values should be JSON-representable.
type State map[string]any

// NewState creates an empty state, optionally seeded with the given values.
func NewState(seed map[string]any) State {
	s := make(State, len(seed))
	for k, v := range seed {
		s[k] = v
	}
	return s
}

// Get returns the value stored under key.
func (s State) Get(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// Set stores value under key.
func (s State) Set(key string, value any) {
	s[key] = value
}

// Delete removes key from the state.
func (s State) Delete(key string) {
	delete(s, key)
}

// GoTo asks the engine to dispatch to the named node after the current one.
// Passing the current node's name loops.
func (s State) GoTo(node string) {
	s[KeyNextNode] = node
}

// Halt asks the engine to stop after the current node.
func (s State) Halt() {
	s[KeyStop] = true
}

// Merge copies every entry of other over s.
func (s State) Merge(other map[string]any) {
	for k, v := range other {
		s[k] = v
	}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	cp, _ := deepcopy.Copy(map[string]any(s)).(map[string]any)
	if cp == nil {
		return State{}
	}
	return State(cp)
}

// Domain returns a deep copy without control keys.
func (s State) Domain() State {
	out := s.Clone()
	for k := range out {
		if IsControlKey(k) {
			delete(out, k)
		}
	}
	return out
}

// ClearControl removes the keys the engine reads to pick the next node.
func (s State) ClearControl() {
	delete(s, KeyNextNode)
	delete(s, KeyStop)
}

// IsControlKey reports whether key belongs to the engine-reserved namespace.
func IsControlKey(key string) bool {
	return strings.HasPrefix(key, ControlPrefix)
}
