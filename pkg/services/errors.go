// Package services wires the engine packages to persistence, the event bus and
// tracing. Every state change runs inside a repository Update so a rejected
// operation leaves the stored record unchanged.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/signoff/pkg/fsm"
	"github.com/dukex/signoff/pkg/persistence"
	"github.com/dukex/signoff/pkg/workflow"
	"github.com/go-playground/validator/v10"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")

	// Authorization Errors (403 Forbidden).
	ErrNotAuthorized = errors.New("actor is not authorized for this operation")

	// Business Logic Conflicts (409 Conflict).
	ErrSubmittableLocked = errors.New("submittable is locked by another user")
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

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// invalid turns validator failures into a 400 ServiceError.
func invalid(op string, err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return NewValidationError(op, "INVALID_REQUEST", validationErrors.Error(), errors.Join(ErrInvalidRequest, err))
	}

	return NewValidationError(op, "INVALID_REQUEST", err.Error(), errors.Join(ErrInvalidRequest, err))
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, workflow.ErrCommentRequired) ||
		errors.Is(err, workflow.ErrActorRequired) ||
		errors.Is(err, workflow.ErrInvalidStepPosition) ||
		errors.Is(err, workflow.ErrStepNotInTemplate)
}

// IsForbiddenError checks if an error should return HTTP 403.
func IsForbiddenError(err error) bool {
	return errors.Is(err, ErrNotAuthorized) ||
		errors.Is(err, workflow.ErrNotAssignee)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, fsm.ErrInvalidTransition) ||
		errors.Is(err, ErrSubmittableLocked) ||
		errors.Is(err, workflow.ErrDuplicateActiveSubmission) ||
		errors.Is(err, workflow.ErrTemplateNotActive) ||
		errors.Is(err, workflow.ErrTemplateNotEditable) ||
		errors.Is(err, workflow.ErrStepInUse) ||
		errors.Is(err, workflow.ErrAlreadyApproved) ||
		errors.Is(err, workflow.ErrNoNextStep) ||
		errors.Is(err, persistence.ErrAlreadyExists)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsNotFound(err)
}
