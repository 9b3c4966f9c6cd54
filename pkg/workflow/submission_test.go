package workflow_test

import (
	"testing"
	"time"

	"github.com/dukex/signoff/pkg/fsm"
	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func newPending(t *testing.T) (*models.Submission, *models.WorkflowTemplate) {
	t.Helper()

	tmpl := templateWithSteps(2)
	require.NoError(t, workflow.Activate(tmpl))

	sub := workflow.NewSubmission(tmpl.ID, models.SubmittableRef{Kind: models.SubmittableDocument, ID: "doc-1"}, "alice", "", nil, testNow)
	sub.ID = "sub-1"

	return sub, tmpl
}

func apply(t *testing.T, sub *models.Submission, tmpl *models.WorkflowTemplate, op models.SubmissionOperation, actor, comment string) {
	t.Helper()

	_, err := workflow.Apply(sub, tmpl, workflow.Action{Operation: op, Actor: actor, Comment: comment, Now: testNow})
	require.NoError(t, err)
}

func TestNewSubmission_Defaults(t *testing.T) {
	t.Parallel()

	sub, _ := newPending(t)

	assert.Equal(t, models.SubmissionStatusPending, sub.Status)
	assert.Equal(t, models.PriorityNormal, sub.Priority)
	assert.Equal(t, testNow, sub.SubmittedAt)
	assert.Nil(t, sub.StartedAt)
	assert.Nil(t, sub.Decision)
}

func TestSubmission_RejectScenario(t *testing.T) {
	t.Parallel()

	sub, tmpl := newPending(t)

	outcome, err := workflow.Apply(sub, tmpl, workflow.Action{Operation: models.SubmissionStart, Actor: "alice", Now: testNow})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusPending, outcome.From)
	assert.Equal(t, models.SubmissionStatusInProgress, outcome.To)
	require.NotNil(t, sub.StartedAt)
	assert.Equal(t, testNow, *sub.StartedAt)
	require.NotNil(t, sub.CurrentStepID)
	assert.Equal(t, "step-a", *sub.CurrentStepID)

	apply(t, sub, tmpl, models.SubmissionSubmitForApproval, "alice", "")
	assert.Equal(t, models.SubmissionStatusWaitingForApproval, sub.Status)

	_, err = workflow.Apply(sub, tmpl, workflow.Action{Operation: models.SubmissionReject, Actor: "reviewer", Now: testNow})
	require.ErrorIs(t, err, workflow.ErrCommentRequired)
	assert.Equal(t, models.SubmissionStatusWaitingForApproval, sub.Status)
	assert.Nil(t, sub.Decision)
	assert.Nil(t, sub.DecidedAt)

	apply(t, sub, tmpl, models.SubmissionReject, "reviewer", "issues found")
	assert.Equal(t, models.SubmissionStatusRejected, sub.Status)
	require.NotNil(t, sub.Decision)
	assert.Equal(t, models.DecisionRejected, *sub.Decision)
	require.NotNil(t, sub.DecidedAt)
	assert.Equal(t, "issues found", sub.DecisionComment)
	require.NotNil(t, sub.DecidedBy)
	assert.Equal(t, "reviewer", *sub.DecidedBy)
}

func TestSubmission_ExactlyOneDecision(t *testing.T) {
	t.Parallel()

	decisions := map[models.SubmissionOperation]struct {
		status   models.SubmissionStatus
		decision models.Decision
	}{
		models.SubmissionApprove:           {models.SubmissionStatusApproved, models.DecisionApproved},
		models.SubmissionReject:            {models.SubmissionStatusRejected, models.DecisionRejected},
		models.SubmissionReturnForRevision: {models.SubmissionStatusReturnedForRevision, models.DecisionReturnedForRevision},
	}

	for op, expected := range decisions {
		t.Run(string(op), func(t *testing.T) {
			t.Parallel()

			sub, tmpl := newPending(t)
			apply(t, sub, tmpl, models.SubmissionStart, "alice", "")
			apply(t, sub, tmpl, models.SubmissionSubmitForApproval, "alice", "")
			apply(t, sub, tmpl, op, "reviewer", "looked at it")

			assert.Equal(t, expected.status, sub.Status)
			assert.Equal(t, expected.decision, *sub.Decision)
			assert.Equal(t, testNow, *sub.DecidedAt)

			decidedAt := *sub.DecidedAt

			for other := range decisions {
				_, err := workflow.Apply(sub, tmpl, workflow.Action{Operation: other, Actor: "reviewer", Comment: "again", Now: testNow.Add(time.Hour)})
				require.ErrorIs(t, err, fsm.ErrInvalidTransition)
			}

			assert.Equal(t, expected.status, sub.Status)
			assert.Equal(t, decidedAt, *sub.DecidedAt)
		})
	}
}

func TestSubmission_ApproveThenComplete(t *testing.T) {
	t.Parallel()

	sub, tmpl := newPending(t)
	apply(t, sub, tmpl, models.SubmissionStart, "alice", "")
	apply(t, sub, tmpl, models.SubmissionSubmitForApproval, "alice", "")
	apply(t, sub, tmpl, models.SubmissionApprove, "reviewer", "")

	assert.Nil(t, sub.CompletedAt)
	apply(t, sub, tmpl, models.SubmissionComplete, "reviewer", "")
	assert.Equal(t, models.SubmissionStatusCompleted, sub.Status)
	require.NotNil(t, sub.CompletedAt)
}

func TestSubmission_TransitionTableIsTotal(t *testing.T) {
	t.Parallel()

	allOps := []models.SubmissionOperation{
		models.SubmissionStart,
		models.SubmissionSubmitForApproval,
		models.SubmissionApprove,
		models.SubmissionReject,
		models.SubmissionReturnForRevision,
		models.SubmissionComplete,
		models.SubmissionCancel,
	}

	valid := map[models.SubmissionStatus]map[models.SubmissionOperation]models.SubmissionStatus{
		models.SubmissionStatusPending: {
			models.SubmissionStart:  models.SubmissionStatusInProgress,
			models.SubmissionCancel: models.SubmissionStatusCancelled,
		},
		models.SubmissionStatusInProgress: {
			models.SubmissionSubmitForApproval: models.SubmissionStatusWaitingForApproval,
			models.SubmissionCancel:            models.SubmissionStatusCancelled,
		},
		models.SubmissionStatusWaitingForApproval: {
			models.SubmissionApprove:           models.SubmissionStatusApproved,
			models.SubmissionReject:            models.SubmissionStatusRejected,
			models.SubmissionReturnForRevision: models.SubmissionStatusReturnedForRevision,
			models.SubmissionCancel:            models.SubmissionStatusCancelled,
		},
		models.SubmissionStatusApproved: {
			models.SubmissionComplete: models.SubmissionStatusCompleted,
		},
		models.SubmissionStatusRejected:            {},
		models.SubmissionStatusReturnedForRevision: {},
		models.SubmissionStatusCompleted:           {},
		models.SubmissionStatusCancelled:           {},
	}

	for from, row := range valid {
		for _, op := range allOps {
			t.Run(string(from)+"/"+string(op), func(t *testing.T) {
				t.Parallel()

				sub, tmpl := newPending(t)
				sub.Status = from
				before := sub.Clone()

				_, err := workflow.Apply(sub, tmpl, workflow.Action{Operation: op, Actor: "reviewer", Comment: "ok", Now: testNow})

				if to, ok := row[op]; ok {
					require.NoError(t, err)
					assert.Equal(t, to, sub.Status)
					assert.True(t, workflow.CanApply(before, op))

					return
				}

				require.ErrorIs(t, err, fsm.ErrInvalidTransition)
				assert.Equal(t, before, sub)
				assert.False(t, workflow.CanApply(before, op))
			})
		}
	}
}

func TestSubmission_DecisionRequiresAssignee(t *testing.T) {
	t.Parallel()

	sub, tmpl := newPending(t)
	reviewer := "reviewer"
	tmpl.Steps[0].Assignee = &reviewer

	apply(t, sub, tmpl, models.SubmissionStart, "alice", "")
	apply(t, sub, tmpl, models.SubmissionSubmitForApproval, "alice", "")

	_, err := workflow.Apply(sub, tmpl, workflow.Action{Operation: models.SubmissionApprove, Actor: "mallory", Now: testNow})
	require.ErrorIs(t, err, workflow.ErrNotAssignee)
	assert.Equal(t, models.SubmissionStatusWaitingForApproval, sub.Status)

	_, err = workflow.Apply(sub, tmpl, workflow.Action{Operation: models.SubmissionApprove, Now: testNow})
	require.ErrorIs(t, err, workflow.ErrActorRequired)

	apply(t, sub, tmpl, models.SubmissionApprove, "reviewer", "")
	assert.Equal(t, models.SubmissionStatusApproved, sub.Status)
}

func TestSubmission_ParallelApprovalNeedsEveryAssignee(t *testing.T) {
	t.Parallel()

	sub, tmpl := newPending(t)
	tmpl.Steps[0].Type = models.StepTypeParallel
	tmpl.Steps[0].Assignees = []string{"legal", "finance"}

	apply(t, sub, tmpl, models.SubmissionStart, "alice", "")
	apply(t, sub, tmpl, models.SubmissionSubmitForApproval, "alice", "")

	outcome, err := workflow.Apply(sub, tmpl, workflow.Action{Operation: models.SubmissionApprove, Actor: "legal", Now: testNow})
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Equal(t, []string{"finance"}, outcome.PendingApprovers)
	assert.Equal(t, models.SubmissionStatusWaitingForApproval, sub.Status)
	assert.Equal(t, []string{"legal"}, sub.Approvals)
	assert.Nil(t, sub.Decision)

	_, err = workflow.Apply(sub, tmpl, workflow.Action{Operation: models.SubmissionApprove, Actor: "legal", Now: testNow})
	require.ErrorIs(t, err, workflow.ErrAlreadyApproved)

	outcome, err = workflow.Apply(sub, tmpl, workflow.Action{Operation: models.SubmissionApprove, Actor: "finance", Now: testNow})
	require.NoError(t, err)
	assert.True(t, outcome.Applied)
	assert.Equal(t, models.SubmissionStatusApproved, sub.Status)
}

func TestSubmission_Advance(t *testing.T) {
	t.Parallel()

	sub, tmpl := newPending(t)
	apply(t, sub, tmpl, models.SubmissionStart, "alice", "")

	apply(t, sub, tmpl, models.SubmissionAdvance, "alice", "")
	assert.Equal(t, "step-b", *sub.CurrentStepID)
	assert.Equal(t, models.SubmissionStatusInProgress, sub.Status)

	_, err := workflow.Apply(sub, tmpl, workflow.Action{Operation: models.SubmissionAdvance, Actor: "alice", Now: testNow})
	require.ErrorIs(t, err, workflow.ErrNoNextStep)
	assert.Equal(t, "step-b", *sub.CurrentStepID)
}

func TestIsOverdue(t *testing.T) {
	t.Parallel()

	past := testNow.Add(-48 * time.Hour)
	future := testNow.Add(48 * time.Hour)

	tests := []struct {
		name     string
		due      *time.Time
		status   models.SubmissionStatus
		expected bool
	}{
		{name: "no due date", due: nil, status: models.SubmissionStatusInProgress, expected: false},
		{name: "due in future", due: &future, status: models.SubmissionStatusInProgress, expected: false},
		{name: "past and active", due: &past, status: models.SubmissionStatusInProgress, expected: true},
		{name: "past and waiting", due: &past, status: models.SubmissionStatusWaitingForApproval, expected: true},
		{name: "past and completed", due: &past, status: models.SubmissionStatusCompleted, expected: false},
		{name: "past and cancelled", due: &past, status: models.SubmissionStatusCancelled, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sub := &models.Submission{DueDate: tt.due, Status: tt.status}
			first := workflow.IsOverdue(sub, testNow)
			assert.Equal(t, tt.expected, first)
			assert.Equal(t, first, workflow.IsOverdue(sub, testNow))
		})
	}
}

func TestIsOverdue_FollowsCurrentStatus(t *testing.T) {
	t.Parallel()

	past := testNow.Add(-time.Hour)
	sub := &models.Submission{DueDate: &past, Status: models.SubmissionStatusPending}
	assert.True(t, workflow.IsOverdue(sub, testNow))

	_, err := workflow.Apply(sub, nil, workflow.Action{Operation: models.SubmissionCancel, Actor: "alice", Now: testNow})
	require.NoError(t, err)
	assert.False(t, workflow.IsOverdue(sub, testNow))
}

func TestDaysUntilDue(t *testing.T) {
	t.Parallel()

	assert.Nil(t, workflow.DaysUntilDue(&models.Submission{}, testNow))

	inFive := testNow.Add(5 * 24 * time.Hour)
	days := workflow.DaysUntilDue(&models.Submission{DueDate: &inFive}, testNow)
	require.NotNil(t, days)
	assert.Equal(t, 5, *days)

	threeAgo := testNow.Add(-3 * 24 * time.Hour)
	days = workflow.DaysUntilDue(&models.Submission{DueDate: &threeAgo}, testNow)
	require.NotNil(t, days)
	assert.Equal(t, -3, *days)

	laterToday := testNow.Add(2 * time.Hour)
	days = workflow.DaysUntilDue(&models.Submission{DueDate: &laterToday}, testNow)
	require.NotNil(t, days)
	assert.Equal(t, 0, *days)
}

func TestCheckNoActiveSubmission(t *testing.T) {
	t.Parallel()

	ref := models.SubmittableRef{Kind: models.SubmittableDocument, ID: "doc-1"}
	existing := []*models.Submission{
		{ID: "old", TemplateID: "tmpl-1", Submittable: ref, Status: models.SubmissionStatusRejected},
		{ID: "other-item", TemplateID: "tmpl-1", Submittable: models.SubmittableRef{Kind: models.SubmittablePermit, ID: "doc-1"}, Status: models.SubmissionStatusPending},
	}

	require.NoError(t, workflow.CheckNoActiveSubmission(existing, "tmpl-1", ref))

	existing = append(existing, &models.Submission{ID: "live", TemplateID: "tmpl-1", Submittable: ref, Status: models.SubmissionStatusInProgress})
	require.ErrorIs(t, workflow.CheckNoActiveSubmission(existing, "tmpl-1", ref), workflow.ErrDuplicateActiveSubmission)
	require.NoError(t, workflow.CheckNoActiveSubmission(existing, "tmpl-2", ref))
}
