// Package persistence provides the data storage abstraction for templates,
// submissions and documents.
//
// Every state change goes through a repository Update: the backend loads the
// current record under a row lock (or file mutex), hands a copy to the callback
// and writes the copy back only when the callback returns nil.
package persistence

import (
	"context"

	"github.com/dukex/signoff/pkg/models"
)

type Persistence interface {
	Templates() TemplateRepository
	Submissions() SubmissionRepository
	Documents() DocumentRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// UpdateFunc mutates a copy of a loaded record. Returning an error aborts the
// update and leaves the stored record untouched.
type UpdateFunc[T any] func(current T) error

// CreateSubmissionGuard runs inside the creation transaction with the template
// locked and every stored submission for the same template and submittable.
type CreateSubmissionGuard func(template *models.WorkflowTemplate, existing []*models.Submission) error

type TemplateRepository interface {
	Create(ctx context.Context, template *models.WorkflowTemplate) error
	GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error)
	List(ctx context.Context, opts ListTemplatesOptions) ([]*models.WorkflowTemplate, error)
	Update(ctx context.Context, id string, fn UpdateFunc[*models.WorkflowTemplate]) (*models.WorkflowTemplate, error)
}

type SubmissionRepository interface {
	// Create stores a new submission and assigns its Sequence.
	Create(ctx context.Context, submission *models.Submission, guard CreateSubmissionGuard) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, opts ListSubmissionsOptions) ([]*models.Submission, error)
	Update(ctx context.Context, id string, fn UpdateFunc[*models.Submission]) (*models.Submission, error)
}

type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, opts ListDocumentsOptions) ([]*models.Document, error)
	Update(ctx context.Context, id string, fn UpdateFunc[*models.Document]) (*models.Document, error)
}

// ListTemplatesOptions filters template listings. Results are ordered by creation time.
type ListTemplatesOptions struct {
	Status *models.TemplateStatus
}

// ListSubmissionsOptions filters submission listings. Results are ordered by Sequence.
type ListSubmissionsOptions struct {
	TemplateID  string
	Submittable *models.SubmittableRef
	Statuses    []models.SubmissionStatus
	SubmittedBy string
}

// ListDocumentsOptions filters document listings. Results are ordered by creation time.
type ListDocumentsOptions struct {
	Status  *models.DocumentStatus
	OwnerID string
}

// MatchTemplate reports whether template passes the filter.
func (o ListTemplatesOptions) MatchTemplate(template *models.WorkflowTemplate) bool {
	return o.Status == nil || template.Status == *o.Status
}

// MatchSubmission reports whether submission passes the filter.
func (o ListSubmissionsOptions) MatchSubmission(submission *models.Submission) bool {
	if o.TemplateID != "" && submission.TemplateID != o.TemplateID {
		return false
	}

	if o.Submittable != nil && submission.Submittable != *o.Submittable {
		return false
	}

	if o.SubmittedBy != "" && submission.SubmittedBy != o.SubmittedBy {
		return false
	}

	if len(o.Statuses) == 0 {
		return true
	}

	for _, status := range o.Statuses {
		if submission.Status == status {
			return true
		}
	}

	return false
}

// MatchDocument reports whether doc passes the filter.
func (o ListDocumentsOptions) MatchDocument(doc *models.Document) bool {
	if o.Status != nil && doc.Lock.Status != *o.Status {
		return false
	}

	return o.OwnerID == "" || doc.OwnerID == o.OwnerID
}
