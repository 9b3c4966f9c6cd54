package workflow

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/dukex/signoff/pkg/fsm"
	"github.com/dukex/signoff/pkg/models"
)

// change carries everything a submission transition may need. The table's guards
// and effects only ever see this value.
type change struct {
	sub      *models.Submission
	template *models.WorkflowTemplate
	actor    string
	comment  string
	now      time.Time
}

type submissionTransition = fsm.Transition[models.SubmissionStatus, *change]

var decisionStates = []models.SubmissionStatus{models.SubmissionStatusWaitingForApproval}

var submissionTable = fsm.NewTable[models.SubmissionStatus, models.SubmissionOperation, *change]("submission").
	Add(models.SubmissionStart, []models.SubmissionStatus{models.SubmissionStatusPending}, submissionTransition{
		To: models.SubmissionStatusInProgress,
		Effect: func(c *change) {
			c.sub.StartedAt = &c.now

			if c.template != nil {
				if first := FirstStep(c.template.Steps); first != nil {
					id := first.ID
					c.sub.CurrentStepID = &id
				}
			}
		},
	}).
	Add(models.SubmissionSubmitForApproval, []models.SubmissionStatus{models.SubmissionStatusInProgress}, submissionTransition{
		To: models.SubmissionStatusWaitingForApproval,
	}).
	Add(models.SubmissionAdvance, []models.SubmissionStatus{models.SubmissionStatusInProgress}, submissionTransition{
		To: models.SubmissionStatusInProgress,
	}).
	Add(models.SubmissionApprove, decisionStates, submissionTransition{
		To:     models.SubmissionStatusApproved,
		Effect: decide(models.DecisionApproved),
	}).
	Add(models.SubmissionReject, decisionStates, submissionTransition{
		To:     models.SubmissionStatusRejected,
		Effect: decide(models.DecisionRejected),
	}).
	Add(models.SubmissionReturnForRevision, decisionStates, submissionTransition{
		To:     models.SubmissionStatusReturnedForRevision,
		Effect: decide(models.DecisionReturnedForRevision),
	}).
	Add(models.SubmissionComplete, []models.SubmissionStatus{models.SubmissionStatusApproved}, submissionTransition{
		To: models.SubmissionStatusCompleted,
		Effect: func(c *change) {
			c.sub.CompletedAt = &c.now
		},
	}).
	Add(models.SubmissionCancel, []models.SubmissionStatus{
		models.SubmissionStatusPending,
		models.SubmissionStatusInProgress,
		models.SubmissionStatusWaitingForApproval,
	}, submissionTransition{
		To: models.SubmissionStatusCancelled,
	})

func decide(decision models.Decision) fsm.Effect[*change] {
	return func(c *change) {
		actor := c.actor
		c.sub.Decision = &decision
		c.sub.DecidedAt = &c.now
		c.sub.DecidedBy = &actor
		c.sub.DecisionComment = c.comment
	}
}

// NewSubmission returns a pending submission for ref through the template.
func NewSubmission(templateID string, ref models.SubmittableRef, submittedBy string, priority models.Priority, due *time.Time, now time.Time) *models.Submission {
	if priority == "" {
		priority = models.PriorityNormal
	}

	return &models.Submission{
		TemplateID:  templateID,
		Submittable: ref,
		SubmittedBy: submittedBy,
		Status:      models.SubmissionStatusPending,
		Priority:    priority,
		SubmittedAt: now,
		DueDate:     due,
	}
}

// Action is one request against the submission state machine.
type Action struct {
	Operation models.SubmissionOperation
	Actor     string
	Comment   string
	Now       time.Time
}

// Outcome reports what an action did. Applied is false only when a parallel step
// recorded a partial approval and is still waiting for other assignees.
type Outcome struct {
	From             models.SubmissionStatus
	To               models.SubmissionStatus
	Applied          bool
	PendingApprovers []string
}

// Apply dispatches action against sub. The template is needed for step lookups
// and may be nil only for operations that do not touch steps. Every validation
// runs before the first write, so a returned error means sub is unchanged.
func Apply(sub *models.Submission, template *models.WorkflowTemplate, action Action) (Outcome, error) {
	outcome := Outcome{From: sub.Status, To: sub.Status}
	c := &change{sub: sub, template: template, actor: action.Actor, comment: strings.TrimSpace(action.Comment), now: action.Now}

	transition, err := submissionTable.Fire(sub.Status, action.Operation, c)
	if err != nil {
		return outcome, err
	}

	switch action.Operation {
	case models.SubmissionApprove, models.SubmissionReject, models.SubmissionReturnForRevision:
		pending, err := validateDecision(c, action.Operation)
		if err != nil {
			return outcome, err
		}

		if action.Operation == models.SubmissionApprove && len(pending) > 0 {
			sub.Approvals = append(sub.Approvals, action.Actor)
			outcome.PendingApprovers = pending

			return outcome, nil
		}
	case models.SubmissionAdvance:
		if err := advance(c); err != nil {
			return outcome, err
		}

		outcome.Applied = true

		return outcome, nil
	}

	sub.Status = transition.To

	if transition.Effect != nil {
		transition.Effect(c)
	}

	outcome.To = sub.Status
	outcome.Applied = true

	return outcome, nil
}

// CanApply reports whether op is defined from sub's current state.
func CanApply(sub *models.Submission, op models.SubmissionOperation) bool {
	_, ok := submissionTable.Lookup(sub.Status, op)

	return ok
}

// PermittedOperations lists the operations defined from sub's current state.
func PermittedOperations(sub *models.Submission) []models.SubmissionOperation {
	return submissionTable.Permitted(sub.Status)
}

// validateDecision checks the comment and assignee rules and returns, for an
// approval of a parallel step, the assignees still missing after this actor.
func validateDecision(c *change, op models.SubmissionOperation) ([]string, error) {
	if c.actor == "" {
		return nil, ErrActorRequired
	}

	if op != models.SubmissionApprove && c.comment == "" {
		return nil, ErrCommentRequired
	}

	step, err := currentStep(c)
	if err != nil {
		return nil, err
	}

	if !CanBeCompletedBy(step, c.actor) {
		return nil, fmt.Errorf("%w: %s", ErrNotAssignee, c.actor)
	}

	if op != models.SubmissionApprove || step == nil || step.Type != models.StepTypeParallel || len(step.Assignees) == 0 {
		return nil, nil
	}

	if slices.Contains(c.sub.Approvals, c.actor) {
		return nil, ErrAlreadyApproved
	}

	pending := make([]string, 0, len(step.Assignees))

	for _, assignee := range step.Assignees {
		if assignee != c.actor && !slices.Contains(c.sub.Approvals, assignee) {
			pending = append(pending, assignee)
		}
	}

	return pending, nil
}

func advance(c *change) error {
	step, err := currentStep(c)
	if err != nil {
		return err
	}

	if step == nil {
		return ErrNoNextStep
	}

	if !CanBeCompletedBy(step, c.actor) {
		return fmt.Errorf("%w: %s", ErrNotAssignee, c.actor)
	}

	next, err := NextStep(c.template.Steps, step)
	if err != nil {
		return err
	}

	if next == nil {
		return ErrNoNextStep
	}

	id := next.ID
	c.sub.CurrentStepID = &id
	c.sub.Approvals = nil

	return nil
}

func currentStep(c *change) (*models.StepDef, error) {
	if c.sub.CurrentStepID == nil {
		return nil, nil
	}

	if c.template == nil {
		return nil, ErrStepNotInTemplate
	}

	step := c.template.StepByID(*c.sub.CurrentStepID)
	if step == nil {
		return nil, ErrStepNotInTemplate
	}

	return step, nil
}

// IsActive reports whether sub still counts against the one-live-submission rule.
func IsActive(sub *models.Submission) bool {
	return !sub.Status.Terminal()
}

// IsOverdue reports whether sub has a due date in the past and is still under
// consideration. It is evaluated from the current status every time.
func IsOverdue(sub *models.Submission, now time.Time) bool {
	if sub.DueDate == nil || !sub.DueDate.Before(now) {
		return false
	}

	return sub.Status != models.SubmissionStatusCompleted && sub.Status != models.SubmissionStatusCancelled
}

// DaysUntilDue is the signed number of calendar days (UTC) from now to the due
// date, or nil without a due date.
func DaysUntilDue(sub *models.Submission, now time.Time) *int {
	if sub.DueDate == nil {
		return nil
	}

	days := int(math.Round(truncateDay(*sub.DueDate).Sub(truncateDay(now)).Hours() / 24))

	return &days
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CheckNoActiveSubmission returns ErrDuplicateActiveSubmission when existing
// holds a live submission for the same template and item.
func CheckNoActiveSubmission(existing []*models.Submission, templateID string, ref models.SubmittableRef) error {
	for _, sub := range existing {
		if sub.TemplateID == templateID && sub.Submittable == ref && IsActive(sub) {
			return fmt.Errorf("%w: submission %s is %s", ErrDuplicateActiveSubmission, sub.ID, sub.Status)
		}
	}

	return nil
}

// CheckStepNotInUse returns ErrStepInUse when a live submission in existing has
// stepID as its current step.
func CheckStepNotInUse(existing []*models.Submission, stepID string) error {
	for _, sub := range existing {
		if IsActive(sub) && sub.CurrentStepID != nil && *sub.CurrentStepID == stepID {
			return fmt.Errorf("%w: submission %s is %s", ErrStepInUse, sub.ID, sub.Status)
		}
	}

	return nil
}
