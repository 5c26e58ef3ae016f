package project

import (
	"context"
	"errors"
	"fmt"
)

// Lookup and precondition errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrNotAMember      = errors.New("user is not a member of the project")
	ErrTaskNotAttached = errors.New("task is not attached to the project")
	ErrTaskAttached    = errors.New("task is attached to another project")
)

// Access errors.
var (
	ErrUnauthorized = errors.New("caller identity is missing")
	ErrForbidden    = errors.New("caller has no access to the project")
)

// Validation errors.
var (
	ErrInvalidStatus  = errors.New("invalid status")
	ErrInvalidProject = errors.New("invalid project")
	ErrInvalidTask    = errors.New("invalid task")
	ErrEmptyID        = errors.New("id cannot be empty")
)

// Infrastructure errors.
var (
	ErrTimeout  = errors.New("operation timed out")
	ErrInternal = errors.New("internal error")
)

// classify maps a store error onto the error kinds callers see. Errors that
// already carry a kind pass through with the operation name prepended.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrInternal),
		errors.Is(err, ErrNotAMember),
		errors.Is(err, ErrTaskNotAttached),
		errors.Is(err, ErrTaskAttached):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
	}
}
