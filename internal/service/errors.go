// Package service provides business logic implementations.
package service

import (
	"errors"
	"fmt"

	"one-travel-working/internal/withdraw"
)

// Common errors for service operations.
var (
	ErrInvalidAmount   = errors.New("invalid amount: must be positive")
	ErrNotRequestOwner = errors.New("withdrawal request belongs to another user")
	// ErrTooManyConflicts means repeated optimistic-lock conflicts
	// exhausted the retry budget. Callers may retry the whole request.
	ErrTooManyConflicts = errors.New("too many concurrent updates, retry")
)

// GateError is a state-lock rejection: the operation was attempted
// while a queryable blocking state (negative balance, incomplete sets,
// terminal position, unapproved account) was in effect. It carries the
// gate's reason code so callers can surface the specific lock instead
// of a generic failure.
type GateError struct {
	Reason withdraw.Reason
}

func (e *GateError) Error() string {
	return fmt.Sprintf("operation blocked: %s", e.Reason)
}

// AsGateError unwraps a GateError from err, if one is there.
func AsGateError(err error) (*GateError, bool) {
	var ge *GateError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
