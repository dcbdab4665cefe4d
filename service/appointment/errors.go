package appointment

import "fmt"

// ValidationError reports malformed input or a business-rule violation
// (lead time, business hours, daily limit). Always surfaced synchronously
// with a human-readable reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ConflictError means the requested slot is already taken. Distinct from
// ValidationError so callers can offer "pick another time".
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// InvalidTransitionError guards the status state machine.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}
