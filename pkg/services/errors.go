// Package services implements the workflow editing sessions exposed by the API.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/stepflow/pkg/canvas"
	"github.com/dukex/stepflow/pkg/graph"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/templates"
)

var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")

	// Not Found Errors (404 Not Found).
	ErrSessionNotFound = errors.New("workflow is not open for editing")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, canvas.ErrUnknownEvent) ||
		errors.Is(err, templates.ErrInvalidDocument) ||
		errors.Is(err, persistence.ErrInvalidWorkflowID) ||
		(graph.IsValidationError(err) && !IsConflictError(err))
}

// IsConflictError checks if an edit was rejected because it would break a
// graph invariant; it should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, graph.ErrLastTrigger) ||
		errors.Is(err, graph.ErrTriggerExists)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, templates.ErrTemplateNotFound) ||
		persistence.IsWorkflowNotFound(err) ||
		graph.IsStepNotFound(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
