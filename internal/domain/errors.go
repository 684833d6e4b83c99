package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when an operation is attempted from
// a lifecycle state that forbids it. Callers surface it; it is never
// fatal and never silently swallowed.
var ErrInvalidTransition = errors.New("invalid state transition")

// InvalidTransitionError wraps ErrInvalidTransition with the attempted
// operation and the state it was attempted from.
func InvalidTransitionError(op string, from SessionStatus) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, from)
}
