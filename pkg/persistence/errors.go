package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrTemplateNotFound indicates a workflow template was not found by the given identifier.
	ErrTemplateNotFound = errors.New("workflow template not found")

	// ErrSubmissionNotFound indicates a submission was not found by the given identifier.
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrDocumentNotFound indicates a document was not found by the given identifier.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrAlreadyExists indicates a record with the same identifier already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// EntityError wraps repository errors with the operation and record involved.
type EntityError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Update")
	Entity string // "template", "submission" or "document"
	ID     string
	Err    error
}

func (e *EntityError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Entity, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for entity errors.
func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewTemplateError(op, id string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "template", ID: id, Err: err}
}

func NewSubmissionError(op, id string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "submission", ID: id, Err: err}
}

func NewDocumentError(op, id string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "document", ID: id, Err: err}
}

// IsNotFound checks if an error indicates any record was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrSubmissionNotFound) ||
		errors.Is(err, ErrDocumentNotFound)
}

// IsTemplateNotFound checks if an error indicates a template was not found.
func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

// IsSubmissionNotFound checks if an error indicates a submission was not found.
func IsSubmissionNotFound(err error) bool {
	return errors.Is(err, ErrSubmissionNotFound)
}

// IsDocumentNotFound checks if an error indicates a document was not found.
func IsDocumentNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound)
}
