package domain

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength bounds node and graph identifiers.
const MaxNameLength = 128

// ValidateName checks that name can be used as a node or graph identifier:
// non-empty, bounded, valid UTF-8, free of whitespace, control characters and
// path separators, and outside the reserved control namespace.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: size=%d limit=%d", ErrInvalidName, len(name), MaxNameLength)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: invalid UTF-8", ErrInvalidName)
	}
	if IsControlKey(name) {
		return fmt.Errorf("%w: %q uses the reserved prefix %q", ErrInvalidName, name, ControlPrefix)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q is not a single path segment", ErrInvalidName, name)
	}
	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: %q contains whitespace or control characters", ErrInvalidName, name)
		}
	}
	return nil
}
