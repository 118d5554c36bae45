package domain

import (
	"reflect"
)

// Changes calculates the difference between two states.
// It returns only added or modified keys; deleted keys are present with a nil value.
// Control keys are ignored. A nil result means nothing changed.
func Changes(before, after State) map[string]any {
	delta := make(map[string]any)

	// Check for Added or Modified
	for k, newVal := range after {
		if IsControlKey(k) {
			continue
		}
		oldVal, exists := before[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	// Check for Deletions
	for k := range before {
		if IsControlKey(k) {
			continue
		}
		if _, exists := after[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}
