// Package web provides the HTTP API for templates, submissions and documents.
package web

import (
	"time"

	"github.com/dukex/signoff/pkg/document"
	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/services"
)

// ActorHeader carries the principal performing a request. Authentication is
// done in front of the API.
const ActorHeader = "X-Actor"

// CreateTemplateRequest represents the request body for creating a draft template.
// The creator is the request actor.
type CreateTemplateRequest struct {
	Name        string               `json:"name"        validate:"required,min=3"`
	Description string               `json:"description"`
	Steps       []services.StepInput `json:"steps"       validate:"dive"`
}

// TemplateActionRequest runs one template state machine operation.
type TemplateActionRequest struct {
	Operation models.TemplateOperation `json:"operation" validate:"required,oneof=activate pause resume complete cancel"`
}

// CreateSubmissionRequest represents the request body for submitting an item.
// The submitter is the request actor.
type CreateSubmissionRequest struct {
	TemplateID  string                `json:"template_id"        validate:"required"`
	Submittable models.SubmittableRef `json:"submittable"`
	Priority    models.Priority       `json:"priority"           validate:"omitempty,oneof=low normal high urgent"`
	DueDate     *time.Time            `json:"due_date,omitempty"`
	Notes       string                `json:"notes"`
}

// SubmissionActionRequest runs one submission state machine operation.
type SubmissionActionRequest struct {
	Operation models.SubmissionOperation `json:"operation" validate:"required"`
	Comment   string                     `json:"comment"`
}

// ProgressResponse reports how far a submission has moved through its template.
type ProgressResponse struct {
	SubmissionID string  `json:"submission_id"`
	Percentage   float64 `json:"percentage"`
}

// CreateDocumentRequest represents the request body for a new draft document.
// The owner is the request actor.
type CreateDocumentRequest struct {
	Title   string   `json:"title"   validate:"required"`
	Writers []string `json:"writers" validate:"omitempty,dive,required"`
}

// LockResponse is the body of lock and unlock calls, refused or not.
type LockResponse struct {
	Result   document.LockResult `json:"result"`
	Document *models.Document    `json:"document"`
}
