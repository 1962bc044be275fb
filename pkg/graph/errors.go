package graph

import (
	"errors"
	"fmt"
)

// Invariant violations. Invalid connection requests are not errors; they are
// absorbed as no-ops.
var (
	ErrLastTrigger     = errors.New("cannot delete the only trigger step")
	ErrTriggerExists   = errors.New("workflow already has a trigger step")
	ErrNoTrigger       = errors.New("workflow must have a trigger step")
	ErrStepNotFound    = errors.New("step not found")
	ErrInvalidStepType = errors.New("invalid step type")
	ErrDuplicateStepID = errors.New("duplicate step id")
	ErrInvalidWorkflow = errors.New("invalid workflow document")
)

// StepError wraps a graph error with the operation and step it concerns.
type StepError struct {
	Op     string
	StepID string
	Err    error
}

func (e *StepError) Error() string {
	if e.StepID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s step %s: %v", e.Op, e.StepID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func (e *StepError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError reports whether err is a rejected edit the user should be
// told about, as opposed to a lookup failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrLastTrigger) ||
		errors.Is(err, ErrTriggerExists) ||
		errors.Is(err, ErrNoTrigger) ||
		errors.Is(err, ErrInvalidStepType) ||
		errors.Is(err, ErrDuplicateStepID) ||
		errors.Is(err, ErrInvalidWorkflow)
}

// IsStepNotFound reports whether err is caused by an unknown step id.
func IsStepNotFound(err error) bool {
	return errors.Is(err, ErrStepNotFound)
}
