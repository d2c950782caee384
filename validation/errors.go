package validation

import (
	"strings"
)

// Error is returned when a candidate entity violates one or more rules. It
// carries all violations in rule order.
type Error struct {
	Violations []Violation
}

// Error implements the error interface
func (e *Error) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}
