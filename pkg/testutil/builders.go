// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"fmt"
	"time"

	"github.com/dukex/signoff/pkg/models"
	"github.com/google/uuid"
)

// Now is the fixed clock reading shared by tests.
var Now = time.Date(2026, time.March, 10, 14, 30, 0, 0, time.UTC)

// CreateTestTemplate creates a draft template with n manual steps at positions 1..n.
func CreateTestTemplate(n int, overrides ...func(*models.WorkflowTemplate)) *models.WorkflowTemplate {
	template := &models.WorkflowTemplate{
		ID:          uuid.New().String(),
		Name:        "Test Template",
		Description: "Test template description",
		Status:      models.TemplateStatusDraft,
		CreatedBy:   "author",
		CreatedAt:   Now,
		UpdatedAt:   Now,
	}

	for i := 1; i <= n; i++ {
		template.Steps = append(template.Steps, &models.StepDef{
			ID:         uuid.New().String(),
			TemplateID: template.ID,
			Name:       fmt.Sprintf("Step %d", i),
			Position:   i,
			Type:       models.StepTypeManual,
		})
	}

	for _, override := range overrides {
		override(template)
	}

	return template
}

// WithStatus sets the template status.
func WithStatus(status models.TemplateStatus) func(*models.WorkflowTemplate) {
	return func(t *models.WorkflowTemplate) {
		t.Status = status
	}
}

// WithAssignee restricts the step at position to a single assignee.
func WithAssignee(position int, assignee string) func(*models.WorkflowTemplate) {
	return func(t *models.WorkflowTemplate) {
		for _, step := range t.Steps {
			if step.Position == position {
				step.Assignee = &assignee
			}
		}
	}
}

// WithParallelStep turns the step at position into a parallel step for the given assignees.
func WithParallelStep(position int, assignees ...string) func(*models.WorkflowTemplate) {
	return func(t *models.WorkflowTemplate) {
		for _, step := range t.Steps {
			if step.Position == position {
				step.Type = models.StepTypeParallel
				step.Assignees = assignees
			}
		}
	}
}

// CreateTestDocument creates a published document owned by owner.
func CreateTestDocument(owner string, overrides ...func(*models.Document)) *models.Document {
	doc := &models.Document{
		ID:        uuid.New().String(),
		Title:     "Test Document",
		OwnerID:   owner,
		Lock:      models.LockState{Status: models.DocumentStatusPublished},
		CreatedAt: Now,
		UpdatedAt: Now,
	}

	for _, override := range overrides {
		override(doc)
	}

	return doc
}

// WithWriters grants write capability on the document.
func WithWriters(writers ...string) func(*models.Document) {
	return func(d *models.Document) {
		d.Writers = writers
	}
}

// LockedBy puts the document in the locked state held by holder, optionally
// with a scheduled unlock.
func LockedBy(holder string, unlockAt *time.Time) func(*models.Document) {
	return func(d *models.Document) {
		reason := "editing"
		d.Lock.Status = models.DocumentStatusLocked
		d.Lock.Set(&holder, Now.Add(-time.Hour), &reason, unlockAt)
	}
}

// CreateTestSubmission creates a pending submission of a document through template.
func CreateTestSubmission(templateID string, overrides ...func(*models.Submission)) *models.Submission {
	submission := &models.Submission{
		ID:          uuid.New().String(),
		TemplateID:  templateID,
		Submittable: models.SubmittableRef{Kind: models.SubmittableDocument, ID: uuid.New().String()},
		SubmittedBy: "submitter",
		Status:      models.SubmissionStatusPending,
		Priority:    models.PriorityNormal,
		SubmittedAt: Now,
		UpdatedAt:   Now,
	}

	for _, override := range overrides {
		override(submission)
	}

	return submission
}
