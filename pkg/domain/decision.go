package domain

import "fmt"

// DecisionKind enumerates what the engine does after a node returns.
type DecisionKind int

const (
	DecisionStop DecisionKind = iota
	DecisionContinue
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionContinue:
		return "continue"
	default:
		return "stop"
	}
}

// Decision is the engine's reading of the control keys after a node ran.
type Decision struct {
	Kind DecisionKind
	Next string // Set only when Kind == DecisionContinue
}

// Continue returns a decision to dispatch to node next.
func Continue(node string) Decision {
	return Decision{Kind: DecisionContinue, Next: node}
}

// Stop returns a terminal decision.
func Stop() Decision {
	return Decision{Kind: DecisionStop}
}

func (d Decision) String() string {
	if d.Kind == DecisionContinue {
		return fmt.Sprintf("continue(%s)", d.Next)
	}
	return "stop"
}

// Decide reads the control keys written by node and resolves the next dispatch target.
// When neither key is present, staticNext (the graph's declared edge, possibly empty) is used.
// Values of the wrong type are never coerced.
func Decide(state State, node string, staticNext string) (Decision, error) {
	if raw, ok := state[KeyStop]; ok {
		halt, isBool := raw.(bool)
		if !isBool {
			return Decision{}, &InvalidControlValueError{Node: node, Key: KeyStop, Value: raw}
		}
		if halt {
			return Stop(), nil
		}
	}

	if raw, ok := state[KeyNextNode]; ok {
		switch v := raw.(type) {
		case nil:
			return Stop(), nil
		case string:
			if v == "" {
				return Stop(), nil
			}
			return Continue(v), nil
		default:
			return Decision{}, &InvalidControlValueError{Node: node, Key: KeyNextNode, Value: raw}
		}
	}

	if staticNext != "" {
		return Continue(staticNext), nil
	}
	return Stop(), nil
}
