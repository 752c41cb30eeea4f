package sim

import "fmt"

// ValidationError reports a command whose payload failed semantic checks
// against the current world: unknown entities, foreign units, coordinates
// outside the map, malformed numbers.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid command: " + e.Reason
	}
	return fmt.Sprintf("invalid command: %s: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// LifecycleError reports an operation attempted against a player or loop
// that is not in a state to accept it, such as a command from a player who
// already left or a Run call on a stopped loop.
type LifecycleError struct {
	Op     string
	Reason string
}

func (e *LifecycleError) Error() string {
	return e.Op + ": " + e.Reason
}
