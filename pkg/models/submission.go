package models

import "time"

// SubmissionStatus represents the lifecycle state of a submission.
type SubmissionStatus string

const (
	SubmissionStatusPending             SubmissionStatus = "pending"
	SubmissionStatusInProgress          SubmissionStatus = "in_progress"
	SubmissionStatusWaitingForApproval  SubmissionStatus = "waiting_for_approval"
	SubmissionStatusApproved            SubmissionStatus = "approved"
	SubmissionStatusRejected            SubmissionStatus = "rejected"
	SubmissionStatusReturnedForRevision SubmissionStatus = "returned_for_revision"
	SubmissionStatusCompleted           SubmissionStatus = "completed"
	SubmissionStatusCancelled           SubmissionStatus = "cancelled"
)

// Terminal reports whether no further ordinary transition is expected from the status.
// approved may still be completed.
func (s SubmissionStatus) Terminal() bool {
	switch s {
	case SubmissionStatusApproved,
		SubmissionStatusRejected,
		SubmissionStatusReturnedForRevision,
		SubmissionStatusCompleted,
		SubmissionStatusCancelled:
		return true
	default:
		return false
	}
}

// SubmissionOperation names a transition of the submission state machine.
type SubmissionOperation string

const (
	SubmissionStart             SubmissionOperation = "start"
	SubmissionSubmitForApproval SubmissionOperation = "submit_for_approval"
	SubmissionApprove           SubmissionOperation = "approve"
	SubmissionReject            SubmissionOperation = "reject"
	SubmissionReturnForRevision SubmissionOperation = "return_for_revision"
	SubmissionComplete          SubmissionOperation = "complete"
	SubmissionCancel            SubmissionOperation = "cancel"
	SubmissionAdvance           SubmissionOperation = "advance"
)

// Decision is the outcome recorded on a decided submission.
type Decision string

const (
	DecisionApproved            Decision = "approved"
	DecisionRejected            Decision = "rejected"
	DecisionReturnedForRevision Decision = "returned_for_revision"
)

// Priority orders submissions in reviewer queues.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank returns the queue rank of the priority; higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// Submission is one instance of an item moving through a template.
type Submission struct {
	ID              string           `json:"id"`
	TemplateID      string           `json:"template_id"                validate:"required"`
	Submittable     SubmittableRef   `json:"submittable"`
	SubmittedBy     string           `json:"submitted_by"               validate:"required"`
	Status          SubmissionStatus `json:"status"`
	Priority        Priority         `json:"priority"                   validate:"required,oneof=low normal high urgent"`
	CurrentStepID   *string          `json:"current_step_id,omitempty"`
	SubmittedAt     time.Time        `json:"submitted_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	DecidedAt       *time.Time       `json:"decided_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	Decision        *Decision        `json:"decision,omitempty"`
	DecisionComment string           `json:"decision_comment,omitempty"`
	DecidedBy       *string          `json:"decided_by,omitempty"`
	DueDate         *time.Time       `json:"due_date,omitempty"`
	Approvals       []string         `json:"approvals,omitempty"` // parallel step sign-offs
	Notes           string           `json:"notes,omitempty"`
	Sequence        int64            `json:"sequence"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Clone returns a deep copy of the submission.
func (s *Submission) Clone() *Submission {
	if s == nil {
		return nil
	}

	clone := *s
	clone.CurrentStepID = clonePtr(s.CurrentStepID)
	clone.StartedAt = clonePtr(s.StartedAt)
	clone.DecidedAt = clonePtr(s.DecidedAt)
	clone.CompletedAt = clonePtr(s.CompletedAt)
	clone.Decision = clonePtr(s.Decision)
	clone.DecidedBy = clonePtr(s.DecidedBy)
	clone.DueDate = clonePtr(s.DueDate)

	if s.Approvals != nil {
		clone.Approvals = append([]string(nil), s.Approvals...)
	}

	return &clone
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}

	c := *v

	return &c
}
