package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/signoff/pkg/document"
	"github.com/dukex/signoff/pkg/eventbus"
	"github.com/dukex/signoff/pkg/events"
	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/otelhelper"
	"github.com/dukex/signoff/pkg/persistence"
	"github.com/dukex/signoff/pkg/workflow"
	"go.opentelemetry.io/otel/attribute"
)

// ReminderStatuses are the statuses the deadline scanner sends reminders for:
// work that is still expected to move.
var ReminderStatuses = []models.SubmissionStatus{
	models.SubmissionStatusPending,
	models.SubmissionStatusInProgress,
	models.SubmissionStatusWaitingForApproval,
	models.SubmissionStatusApproved,
}

type Submissions struct {
	base
}

// NewSubmissions creates a new submission service.
func NewSubmissions(p persistence.Persistence, publisher eventbus.EventPublisher, opts ...Option) *Submissions {
	return &Submissions{base: newBase(p, publisher, "submissions", opts)}
}

// CreateSubmissionRequest contains the fields of a new pending submission.
type CreateSubmissionRequest struct {
	TemplateID  string                `json:"template_id"  validate:"required"`
	Submittable models.SubmittableRef `json:"submittable"`
	SubmittedBy string                `json:"submitted_by" validate:"required"`
	Priority    models.Priority       `json:"priority"     validate:"omitempty,oneof=low normal high urgent"`
	DueDate     *time.Time            `json:"due_date,omitempty"`
	Notes       string                `json:"notes"`
}

// Create stores a pending submission. The template must be active and must not
// already have a live submission for the same item; both checks run inside the
// creation transaction.
func (s *Submissions) Create(ctx context.Context, req CreateSubmissionRequest) (*models.Submission, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "submissions.create",
		attribute.String(otelhelper.TemplateIDKey, req.TemplateID),
		attribute.String(otelhelper.ActorKey, req.SubmittedBy),
	)
	defer span.End()

	err := s.validate.StructCtx(ctx, req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, invalid("Submissions.Create", err)
	}

	now := s.clock()
	submission := workflow.NewSubmission(req.TemplateID, req.Submittable, req.SubmittedBy, req.Priority, req.DueDate, now)
	submission.Notes = req.Notes
	submission.UpdatedAt = now

	err = s.persistence.Submissions().Create(ctx, submission, func(template *models.WorkflowTemplate, existing []*models.Submission) error {
		if template.Status != models.TemplateStatusActive {
			return fmt.Errorf("%w: template %s is %s", workflow.ErrTemplateNotActive, template.ID, template.Status)
		}

		return workflow.CheckNoActiveSubmission(existing, template.ID, submission.Submittable)
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.SubmissionIDKey, submission.ID))
	s.log(ctx).InfoContext(ctx, "submission created",
		"submission_id", submission.ID,
		"template_id", submission.TemplateID,
		"submittable", submission.Submittable.String(),
	)

	return submission, nil
}

func (s *Submissions) Get(ctx context.Context, id string) (*models.Submission, error) {
	return s.persistence.Submissions().GetByID(ctx, id)
}

// Queue lists submissions matching opts in reviewer order: priority first, then
// insertion order.
func (s *Submissions) Queue(ctx context.Context, opts persistence.ListSubmissionsOptions) ([]*models.Submission, error) {
	submissions, err := s.persistence.Submissions().List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	workflow.SortByPriority(submissions)

	return submissions, nil
}

// ActionRequest is one operation requested against a submission.
type ActionRequest struct {
	Operation models.SubmissionOperation `json:"operation" validate:"required,oneof=start submit_for_approval approve reject return_for_revision complete cancel advance"`
	Actor     string                     `json:"-"         validate:"required"`
	Comment   string                     `json:"comment"`
}

// ActionResult is the stored submission after an action and what the action did.
type ActionResult struct {
	Submission *models.Submission `json:"submission"`
	Outcome    workflow.Outcome   `json:"outcome"`
}

// Apply runs one state machine operation. A failed operation returns an error
// and leaves the stored submission unchanged.
func (s *Submissions) Apply(ctx context.Context, id string, req ActionRequest) (*ActionResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "submissions.apply",
		attribute.String(otelhelper.SubmissionIDKey, id),
		attribute.String(otelhelper.OperationKey, string(req.Operation)),
		attribute.String(otelhelper.ActorKey, req.Actor),
	)
	defer span.End()

	err := s.validate.StructCtx(ctx, req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, invalid("Submissions.Apply", err)
	}

	current, err := s.persistence.Submissions().GetByID(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	template, err := s.persistence.Templates().GetByID(ctx, current.TemplateID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	now := s.clock()

	var outcome workflow.Outcome

	if req.Operation == models.SubmissionSubmitForApproval && workflow.CanApply(current, req.Operation) {
		err := s.checkSubmittableLock(ctx, current.Submittable, req.Actor, now)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}
	}

	updated, err := s.persistence.Submissions().Update(ctx, id, func(sub *models.Submission) error {
		var err error

		outcome, err = workflow.Apply(sub, template, workflow.Action{
			Operation: req.Operation,
			Actor:     req.Actor,
			Comment:   req.Comment,
			Now:       now,
		})
		if err != nil {
			return err
		}

		sub.UpdatedAt = now

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)
		s.log(ctx).InfoContext(ctx, "submission operation refused", "submission_id", id, "operation", req.Operation, "error", err)

		return nil, err
	}

	otelhelper.SetTransition(span, string(req.Operation), string(outcome.From), string(outcome.To))
	s.log(ctx).InfoContext(ctx, "submission transitioned",
		"submission_id", id,
		"operation", req.Operation,
		"from", outcome.From,
		"to", outcome.To,
		"applied", outcome.Applied,
	)

	if eventType, ok := events.SubmissionEventTypes[outcome.To]; ok && outcome.Applied && outcome.From != outcome.To {
		s.emit(ctx, updated.ID, events.SubmissionTransitioned{
			BaseEvent:    s.eventBase(eventType, req.Actor, now),
			SubmissionID: updated.ID,
			TemplateID:   updated.TemplateID,
			Submittable:  updated.Submittable,
			From:         outcome.From,
			To:           outcome.To,
			Decision:     updated.Decision,
			Comment:      updated.DecisionComment,
		})
	}

	return &ActionResult{Submission: updated, Outcome: outcome}, nil
}

// checkSubmittableLock refuses to put a document up for approval while someone
// else holds an unexpired edit lock on it.
func (s *Submissions) checkSubmittableLock(ctx context.Context, ref models.SubmittableRef, actor string, now time.Time) error {
	if ref.Kind != models.SubmittableDocument {
		return nil
	}

	doc, err := s.persistence.Documents().GetByID(ctx, ref.ID)
	if err != nil {
		if persistence.IsDocumentNotFound(err) {
			return nil
		}

		return err
	}

	if document.IsLocked(doc) && !document.LockedByUser(doc, actor) && !document.LockExpired(doc, now) {
		return fmt.Errorf("%w: document %s is locked by %s", ErrSubmittableLocked, doc.ID, *doc.Lock.LockedBy)
	}

	return nil
}

// Progress returns how far the submission has moved through its template, in percent.
func (s *Submissions) Progress(ctx context.Context, id string) (float64, error) {
	sub, err := s.persistence.Submissions().GetByID(ctx, id)
	if err != nil {
		return 0, err
	}

	template, err := s.persistence.Templates().GetByID(ctx, sub.TemplateID)
	if err != nil {
		return 0, err
	}

	return workflow.ProgressPercentage(template, sub), nil
}

// Overdue lists submissions still expected to move whose due date has passed.
func (s *Submissions) Overdue(ctx context.Context) ([]*models.Submission, error) {
	submissions, err := s.persistence.Submissions().List(ctx, persistence.ListSubmissionsOptions{Statuses: ReminderStatuses})
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	overdue := workflow.Overdue(submissions, s.clock())
	workflow.SortByPriority(overdue)

	return overdue, nil
}

// RemindOverdue emits a submission.overdue event for each overdue submission and
// returns how many reminders were sent.
func (s *Submissions) RemindOverdue(ctx context.Context, actor string) (int, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "submissions.remind_overdue")
	defer span.End()

	overdue, err := s.Overdue(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return 0, err
	}

	now := s.clock()

	for _, sub := range overdue {
		daysOverdue := 0
		if days := workflow.DaysUntilDue(sub, now); days != nil {
			daysOverdue = -*days
		}

		s.emit(ctx, sub.ID, events.SubmissionOverdue{
			BaseEvent:    s.eventBase(events.SubmissionOverdueEvent, actor, now),
			SubmissionID: sub.ID,
			TemplateID:   sub.TemplateID,
			Submittable:  sub.Submittable,
			DueDate:      *sub.DueDate,
			DaysOverdue:  daysOverdue,
		})
	}

	span.SetAttributes(attribute.Int("signoff.overdue.count", len(overdue)))

	return len(overdue), nil
}
