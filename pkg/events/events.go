// Package events defines the notifications the engine emits on submission and
// document transitions. Delivery is entirely the receiver's concern.
package events

import (
	"time"

	"github.com/dukex/signoff/pkg/models"
)

type EventType string

// Topic carries every engine event.
const Topic = "signoff.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Submission lifecycle events.
	SubmissionStartedEvent              EventType = "submission.started"
	SubmissionSubmittedForApprovalEvent EventType = "submission.submitted_for_approval"
	SubmissionApprovedEvent             EventType = "submission.approved"
	SubmissionRejectedEvent             EventType = "submission.rejected"
	SubmissionReturnedForRevisionEvent  EventType = "submission.returned_for_revision"
	SubmissionCompletedEvent            EventType = "submission.completed"
	SubmissionCancelledEvent            EventType = "submission.cancelled"
	SubmissionOverdueEvent              EventType = "submission.overdue"

	// Document lock events.
	DocumentLockedEvent        EventType = "document.locked"
	DocumentUnlockedEvent      EventType = "document.unlocked"
	DocumentUnlockExpiredEvent EventType = "document.unlock_expired"

	// Template lifecycle events.
	TemplateActivatedEvent EventType = "template.activated"
)

// Types lists every event the engine emits.
var Types = []EventType{
	SubmissionStartedEvent,
	SubmissionSubmittedForApprovalEvent,
	SubmissionApprovedEvent,
	SubmissionRejectedEvent,
	SubmissionReturnedForRevisionEvent,
	SubmissionCompletedEvent,
	SubmissionCancelledEvent,
	SubmissionOverdueEvent,
	DocumentLockedEvent,
	DocumentUnlockedEvent,
	DocumentUnlockExpiredEvent,
	TemplateActivatedEvent,
}

// SubmissionEventTypes maps a reached submission status to its event, if any.
var SubmissionEventTypes = map[models.SubmissionStatus]EventType{
	models.SubmissionStatusInProgress:          SubmissionStartedEvent,
	models.SubmissionStatusWaitingForApproval:  SubmissionSubmittedForApprovalEvent,
	models.SubmissionStatusApproved:            SubmissionApprovedEvent,
	models.SubmissionStatusRejected:            SubmissionRejectedEvent,
	models.SubmissionStatusReturnedForRevision: SubmissionReturnedForRevisionEvent,
	models.SubmissionStatusCompleted:           SubmissionCompletedEvent,
	models.SubmissionStatusCancelled:           SubmissionCancelledEvent,
}

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SubmissionTransitioned is emitted for every submission state change.
type SubmissionTransitioned struct {
	BaseEvent

	SubmissionID string                  `json:"submission_id"`
	TemplateID   string                  `json:"template_id"`
	Submittable  models.SubmittableRef   `json:"submittable"`
	From         models.SubmissionStatus `json:"from"`
	To           models.SubmissionStatus `json:"to"`
	Decision     *models.Decision        `json:"decision,omitempty"`
	Comment      string                  `json:"comment,omitempty"`
}

func (e SubmissionTransitioned) GetType() EventType {
	return e.Type
}

// SubmissionOverdue is a reminder raised by the deadline scanner.
type SubmissionOverdue struct {
	BaseEvent

	SubmissionID string                `json:"submission_id"`
	TemplateID   string                `json:"template_id"`
	Submittable  models.SubmittableRef `json:"submittable"`
	DueDate      time.Time             `json:"due_date"`
	DaysOverdue  int                   `json:"days_overdue"`
}

func (e SubmissionOverdue) GetType() EventType {
	return SubmissionOverdueEvent
}

// DocumentLockChanged is emitted when a document lock is taken or released.
type DocumentLockChanged struct {
	BaseEvent

	DocumentID        string     `json:"document_id"`
	LockedBy          *string    `json:"locked_by,omitempty"`
	LockReason        *string    `json:"lock_reason,omitempty"`
	UnlockScheduledAt *time.Time `json:"unlock_scheduled_at,omitempty"`
}

func (e DocumentLockChanged) GetType() EventType {
	return e.Type
}

// TemplateActivated is emitted when a template starts accepting submissions.
type TemplateActivated struct {
	BaseEvent

	TemplateID string `json:"template_id"`
	StepCount  int    `json:"step_count"`
}

func (e TemplateActivated) GetType() EventType {
	return TemplateActivatedEvent
}
