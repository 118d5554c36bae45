package domain

import (
	"context"
	"errors"
	"fmt"
)

// Construction-time errors.
var (
	// ErrDuplicateNode is returned when a node name is registered or listed twice.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrUnknownEntryNode is returned when the entry node is not part of the graph.
	ErrUnknownEntryNode = errors.New("unknown entry node")

	// ErrEmptyGraph is returned when a graph is defined without nodes.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrInvalidName is returned when a node or graph name is not a valid identifier.
	ErrInvalidName = errors.New("invalid name")
)

// Run-time errors.
var (
	// ErrUnknownNode is returned when dispatch targets a node the graph does not contain.
	ErrUnknownNode = errors.New("unknown node")

	// ErrInvalidControlValue is returned when a control key holds a value of the wrong type.
	ErrInvalidControlValue = errors.New("invalid control value")

	// ErrNodeExecution is returned when a node implementation fails or panics.
	ErrNodeExecution = errors.New("node execution failed")

	// ErrStepLimitExceeded is returned when a run reaches its step limit without stopping.
	ErrStepLimitExceeded = errors.New("step limit exceeded")
)

// Lookup errors.
var (
	// ErrRunNotFound is returned when a run ID cannot be found in the store.
	ErrRunNotFound = errors.New("run not found")

	// ErrGraphNotFound is returned when a graph ID cannot be found in the store.
	ErrGraphNotFound = errors.New("graph not found")

	// ErrGraphExists is returned when creating a graph under an ID already in use.
	ErrGraphExists = errors.New("graph already exists")
)

// DuplicateNodeError reports a node name that is already taken.
type DuplicateNodeError struct {
	Name string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("%v: %q", ErrDuplicateNode, e.Name)
}

func (e *DuplicateNodeError) Is(target error) bool { return target == ErrDuplicateNode }

// UnknownEntryNodeError reports an entry node missing from the graph's nodes.
type UnknownEntryNodeError struct {
	Entry string
}

func (e *UnknownEntryNodeError) Error() string {
	return fmt.Sprintf("%v: %q", ErrUnknownEntryNode, e.Entry)
}

func (e *UnknownEntryNodeError) Is(target error) bool { return target == ErrUnknownEntryNode }

// UnknownNodeError reports a node name that cannot be resolved.
// Step is the number of completed steps when the error occurred (0 at construction time).
type UnknownNodeError struct {
	Name string
	Step int
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("%v: %q", ErrUnknownNode, e.Name)
}

func (e *UnknownNodeError) Is(target error) bool { return target == ErrUnknownNode }

// InvalidControlValueError reports a control key holding a value of the wrong type.
type InvalidControlValueError struct {
	Node  string
	Key   string
	Value any
}

func (e *InvalidControlValueError) Error() string {
	return fmt.Sprintf("%v: node %q set %s to %T", ErrInvalidControlValue, e.Node, e.Key, e.Value)
}

func (e *InvalidControlValueError) Is(target error) bool { return target == ErrInvalidControlValue }

// NodeExecutionError wraps the failure of a node implementation.
type NodeExecutionError struct {
	Node string
	Step int
	Err  error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("%v: node %q at step %d: %v", ErrNodeExecution, e.Node, e.Step, e.Err)
}

func (e *NodeExecutionError) Is(target error) bool { return target == ErrNodeExecution }

func (e *NodeExecutionError) Unwrap() error { return e.Err }

// StepLimitExceededError reports a run halted by the safety bound.
type StepLimitExceededError struct {
	Limit int
	Next  string
}

func (e *StepLimitExceededError) Error() string {
	return fmt.Sprintf("%v: limit %d reached before dispatching %q", ErrStepLimitExceeded, e.Limit, e.Next)
}

func (e *StepLimitExceededError) Is(target error) bool { return target == ErrStepLimitExceeded }

// Stable error codes exposed in run records and API responses.
const (
	CodeDuplicateNode       = "duplicate_node"
	CodeUnknownEntryNode    = "unknown_entry_node"
	CodeEmptyGraph          = "empty_graph"
	CodeInvalidName         = "invalid_name"
	CodeUnknownNode         = "unknown_node"
	CodeInvalidControlValue = "invalid_control_value"
	CodeNodeExecution       = "node_execution"
	CodeStepLimitExceeded   = "step_limit_exceeded"
	CodeRunNotFound         = "run_not_found"
	CodeGraphNotFound       = "graph_not_found"
	CodeGraphExists         = "graph_exists"
	CodeCanceled            = "canceled"
	CodeInternal            = "internal"
)

// ErrorCode maps err to its stable code. Unrecognized errors map to CodeInternal.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateNode):
		return CodeDuplicateNode
	case errors.Is(err, ErrUnknownEntryNode):
		return CodeUnknownEntryNode
	case errors.Is(err, ErrEmptyGraph):
		return CodeEmptyGraph
	case errors.Is(err, ErrInvalidName):
		return CodeInvalidName
	case errors.Is(err, ErrUnknownNode):
		return CodeUnknownNode
	case errors.Is(err, ErrInvalidControlValue):
		return CodeInvalidControlValue
	case errors.Is(err, ErrNodeExecution):
		return CodeNodeExecution
	case errors.Is(err, ErrStepLimitExceeded):
		return CodeStepLimitExceeded
	case errors.Is(err, ErrRunNotFound):
		return CodeRunNotFound
	case errors.Is(err, ErrGraphNotFound):
		return CodeGraphNotFound
	case errors.Is(err, ErrGraphExists):
		return CodeGraphExists
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	default:
		return CodeInternal
	}
}

// IsDefinitionError reports whether err rejects a graph definition (a client error).
func IsDefinitionError(err error) bool {
	return errors.Is(err, ErrDuplicateNode) ||
		errors.Is(err, ErrUnknownEntryNode) ||
		errors.Is(err, ErrEmptyGraph) ||
		errors.Is(err, ErrUnknownNode) ||
		errors.Is(err, ErrInvalidName)
}
