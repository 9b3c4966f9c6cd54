// Package models defines the core domain models for approval workflows and document locking.
package models

import "time"

// TemplateStatus represents the lifecycle state of a workflow template.
type TemplateStatus string

const (
	TemplateStatusDraft     TemplateStatus = "draft"     // Editable, cannot receive submissions
	TemplateStatusActive    TemplateStatus = "active"    // Accepts submissions
	TemplateStatusPaused    TemplateStatus = "paused"    // Temporarily closed, steps editable
	TemplateStatusCompleted TemplateStatus = "completed" // Closed for good
	TemplateStatusCancelled TemplateStatus = "cancelled" // Abandoned
)

// TemplateOperation names a transition of the template state machine.
type TemplateOperation string

const (
	TemplateActivate TemplateOperation = "activate"
	TemplatePause    TemplateOperation = "pause"
	TemplateResume   TemplateOperation = "resume"
	TemplateComplete TemplateOperation = "complete"
	TemplateCancel   TemplateOperation = "cancel"
)

// WorkflowTemplate is a reusable, ordered sequence of approval steps.
type WorkflowTemplate struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Status      TemplateStatus `json:"status"      validate:"required,oneof=draft active paused completed cancelled"`
	Steps       []*StepDef     `json:"steps"       validate:"dive"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// StepByID returns the step with the given ID or nil.
func (t *WorkflowTemplate) StepByID(id string) *StepDef {
	for _, step := range t.Steps {
		if step.ID == id {
			return step
		}
	}

	return nil
}

// Clone returns a deep copy of the template so callers can mutate it without
// touching the original.
func (t *WorkflowTemplate) Clone() *WorkflowTemplate {
	if t == nil {
		return nil
	}

	clone := *t
	clone.Steps = make([]*StepDef, 0, len(t.Steps))

	for _, step := range t.Steps {
		clone.Steps = append(clone.Steps, step.Clone())
	}

	return &clone
}
