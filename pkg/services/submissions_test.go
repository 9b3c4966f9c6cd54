package services_test

import (
	"testing"
	"time"

	"github.com/dukex/signoff/pkg/events"
	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/persistence"
	"github.com/dukex/signoff/pkg/services"
	"github.com/dukex/signoff/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissions_CreateRequiresActiveTemplate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	draft, err := f.templates.Create(t.Context(), services.CreateTemplateRequest{
		Name:      "Draft template",
		CreatedBy: "author",
		Steps:     []services.StepInput{step("Intake")},
	})
	require.NoError(t, err)

	_, err = f.submissions.Create(t.Context(), services.CreateSubmissionRequest{
		TemplateID:  draft.ID,
		Submittable: docRef("doc-1"),
		SubmittedBy: "submitter",
	})
	assert.ErrorIs(t, err, workflow.ErrTemplateNotActive)
	assert.True(t, services.IsConflictError(err))

	_, err = f.submissions.Create(t.Context(), services.CreateSubmissionRequest{
		TemplateID:  draft.ID,
		Submittable: models.SubmittableRef{Kind: "invoice", ID: "x"},
		SubmittedBy: "submitter",
	})
	assert.True(t, services.IsValidationError(err))
}

func TestSubmissions_OneLiveSubmissionPerItem(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	template := f.activeTemplate(t, step("Intake"))

	first := f.submission(t, template.ID, docRef("doc-1"))
	assert.Equal(t, models.PriorityNormal, first.Priority)
	assert.Equal(t, models.SubmissionStatusPending, first.Status)

	_, err := f.submissions.Create(t.Context(), services.CreateSubmissionRequest{
		TemplateID:  template.ID,
		Submittable: docRef("doc-1"),
		SubmittedBy: "someone-else",
	})
	assert.ErrorIs(t, err, workflow.ErrDuplicateActiveSubmission)

	// A different kind with the same ID is a different item.
	f.submission(t, template.ID, models.SubmittableRef{Kind: models.SubmittablePermit, ID: "doc-1"})

	_, err = f.apply(t, first.ID, models.SubmissionCancel, "submitter", "")
	require.NoError(t, err)

	f.submission(t, template.ID, docRef("doc-1"))
}

func TestSubmissions_ApprovalFlow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	template := f.activeTemplate(t, step("Review", "alice"))
	sub := f.submission(t, template.ID, docRef("doc-1"))

	result, err := f.apply(t, sub.ID, models.SubmissionStart, "submitter", "")
	require.NoError(t, err)
	assert.Equal(t, template.Steps[0].ID, *result.Submission.CurrentStepID)
	assert.Equal(t, f.now, *result.Submission.StartedAt)

	_, err = f.apply(t, sub.ID, models.SubmissionSubmitForApproval, "submitter", "")
	require.NoError(t, err)

	_, err = f.apply(t, sub.ID, models.SubmissionApprove, "bob", "")
	assert.ErrorIs(t, err, workflow.ErrNotAssignee)
	assert.True(t, services.IsForbiddenError(err))

	result, err = f.apply(t, sub.ID, models.SubmissionApprove, "alice", "looks good")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusApproved, result.Submission.Status)
	assert.Equal(t, models.DecisionApproved, *result.Submission.Decision)
	assert.Equal(t, "alice", *result.Submission.DecidedBy)

	result, err = f.apply(t, sub.ID, models.SubmissionComplete, "submitter", "")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusCompleted, result.Submission.Status)

	assert.Equal(t, []events.EventType{
		events.TemplateActivatedEvent,
		events.SubmissionStartedEvent,
		events.SubmissionSubmittedForApprovalEvent,
		events.SubmissionApprovedEvent,
		events.SubmissionCompletedEvent,
	}, f.publishedTypes())

	approved := f.bus.Published()[3].(events.SubmissionTransitioned)
	assert.Equal(t, "alice", approved.Actor)
	assert.Equal(t, models.SubmissionStatusWaitingForApproval, approved.From)
}

func TestSubmissions_RejectNeedsComment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	template := f.activeTemplate(t, step("Review"))
	sub := f.submission(t, template.ID, docRef("doc-1"))

	for _, op := range []models.SubmissionOperation{models.SubmissionStart, models.SubmissionSubmitForApproval} {
		_, err := f.apply(t, sub.ID, op, "submitter", "")
		require.NoError(t, err)
	}

	_, err := f.apply(t, sub.ID, models.SubmissionReject, "reviewer", "   ")
	assert.ErrorIs(t, err, workflow.ErrCommentRequired)
	assert.True(t, services.IsValidationError(err))

	stored, err := f.submissions.Get(t.Context(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusWaitingForApproval, stored.Status)
	assert.Nil(t, stored.Decision)

	result, err := f.apply(t, sub.ID, models.SubmissionReturnForRevision, "reviewer", "missing receipts")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusReturnedForRevision, result.Submission.Status)
	assert.Equal(t, "missing receipts", result.Submission.DecisionComment)

	_, err = f.apply(t, sub.ID, models.SubmissionApprove, "reviewer", "")
	assert.True(t, services.IsConflictError(err))
}

func TestSubmissions_ParallelStep(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	template := f.activeTemplate(t, step("Board", "ann", "ben"))
	sub := f.submission(t, template.ID, docRef("doc-1"))

	for _, op := range []models.SubmissionOperation{models.SubmissionStart, models.SubmissionSubmitForApproval} {
		_, err := f.apply(t, sub.ID, op, "submitter", "")
		require.NoError(t, err)
	}

	result, err := f.apply(t, sub.ID, models.SubmissionApprove, "ann", "")
	require.NoError(t, err)
	assert.False(t, result.Outcome.Applied)
	assert.Equal(t, []string{"ben"}, result.Outcome.PendingApprovers)
	assert.Equal(t, models.SubmissionStatusWaitingForApproval, result.Submission.Status)
	assert.Equal(t, []string{"ann"}, result.Submission.Approvals)

	result, err = f.apply(t, sub.ID, models.SubmissionApprove, "ben", "")
	require.NoError(t, err)
	assert.True(t, result.Outcome.Applied)
	assert.Equal(t, models.SubmissionStatusApproved, result.Submission.Status)
}

func TestSubmissions_SubmitForApprovalRespectsDocumentLock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	template := f.activeTemplate(t, step("Review"))

	doc, err := f.documents.Create(t.Context(), services.CreateDocumentRequest{Title: "Policy", OwnerID: "owner", Writers: []string{"editor"}})
	require.NoError(t, err)
	_, err = f.documents.Publish(t.Context(), doc.ID, "owner")
	require.NoError(t, err)

	unlockAt := f.now.Add(time.Hour)
	lock, _, err := f.documents.Lock(t.Context(), doc.ID, "editor", services.LockRequest{ScheduledUnlock: &unlockAt})
	require.NoError(t, err)
	require.True(t, lock.OK)

	sub := f.submission(t, template.ID, docRef(doc.ID))
	_, err = f.apply(t, sub.ID, models.SubmissionStart, "submitter", "")
	require.NoError(t, err)

	_, err = f.apply(t, sub.ID, models.SubmissionSubmitForApproval, "submitter", "")
	assert.ErrorIs(t, err, services.ErrSubmittableLocked)
	assert.True(t, services.IsConflictError(err))

	stored, err := f.submissions.Get(t.Context(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusInProgress, stored.Status)

	// The lock holder may submit.
	result, err := f.apply(t, sub.ID, models.SubmissionSubmitForApproval, "editor", "")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusWaitingForApproval, result.Submission.Status)
}

func TestSubmissions_SubmitForApprovalIgnoresExpiredLock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	template := f.activeTemplate(t, step("Review"))

	doc, err := f.documents.Create(t.Context(), services.CreateDocumentRequest{Title: "Policy", OwnerID: "owner"})
	require.NoError(t, err)
	_, err = f.documents.Publish(t.Context(), doc.ID, "owner")
	require.NoError(t, err)

	unlockAt := f.now.Add(time.Minute)
	_, _, err = f.documents.Lock(t.Context(), doc.ID, "owner", services.LockRequest{ScheduledUnlock: &unlockAt})
	require.NoError(t, err)

	sub := f.submission(t, template.ID, docRef(doc.ID))
	_, err = f.apply(t, sub.ID, models.SubmissionStart, "submitter", "")
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)

	_, err = f.apply(t, sub.ID, models.SubmissionSubmitForApproval, "submitter", "")
	require.NoError(t, err)
}

func TestSubmissions_AdvanceAndProgress(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	template := f.activeTemplate(t, step("One"), step("Two"), step("Three"), step("Four"))
	sub := f.submission(t, template.ID, docRef("doc-1"))

	progress, err := f.submissions.Progress(t.Context(), sub.ID)
	require.NoError(t, err)
	assert.Zero(t, progress)

	_, err = f.apply(t, sub.ID, models.SubmissionStart, "submitter", "")
	require.NoError(t, err)

	progress, err = f.submissions.Progress(t.Context(), sub.ID)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, progress, 0.001)

	result, err := f.apply(t, sub.ID, models.SubmissionAdvance, "submitter", "")
	require.NoError(t, err)
	assert.Equal(t, template.Steps[1].ID, *result.Submission.CurrentStepID)
	assert.Equal(t, models.SubmissionStatusInProgress, result.Submission.Status)

	progress, err = f.submissions.Progress(t.Context(), sub.ID)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, progress, 0.001)

	// advance does not notify
	assert.Equal(t, []events.EventType{events.TemplateActivatedEvent, events.SubmissionStartedEvent}, f.publishedTypes())
}

func TestSubmissions_QueueOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	template := f.activeTemplate(t, step("Review"))

	create := func(id string, priority models.Priority) *models.Submission {
		sub, err := f.submissions.Create(t.Context(), services.CreateSubmissionRequest{
			TemplateID:  template.ID,
			Submittable: docRef(id),
			SubmittedBy: "submitter",
			Priority:    priority,
		})
		require.NoError(t, err)

		return sub
	}

	low := create("a", models.PriorityLow)
	normal := create("b", models.PriorityNormal)
	urgent := create("c", models.PriorityUrgent)
	high := create("d", models.PriorityHigh)
	urgent2 := create("e", models.PriorityUrgent)

	queue, err := f.submissions.Queue(t.Context(), persistence.ListSubmissionsOptions{
		Statuses: []models.SubmissionStatus{models.SubmissionStatusPending},
	})
	require.NoError(t, err)

	ids := make([]string, 0, len(queue))
	for _, sub := range queue {
		ids = append(ids, sub.ID)
	}

	assert.Equal(t, []string{urgent.ID, urgent2.ID, high.ID, normal.ID, low.ID}, ids)
}

func TestSubmissions_RemindOverdue(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	template := f.activeTemplate(t, step("Review"))

	due := f.now.Add(24 * time.Hour)

	for _, id := range []string{"late", "cancelled"} {
		_, err := f.submissions.Create(t.Context(), services.CreateSubmissionRequest{
			TemplateID:  template.ID,
			Submittable: docRef(id),
			SubmittedBy: "submitter",
			DueDate:     &due,
		})
		require.NoError(t, err)
	}

	f.submission(t, template.ID, docRef("no-due-date"))

	queue, err := f.submissions.Queue(t.Context(), persistence.ListSubmissionsOptions{Submittable: &models.SubmittableRef{Kind: models.SubmittableDocument, ID: "cancelled"}})
	require.NoError(t, err)
	_, err = f.apply(t, queue[0].ID, models.SubmissionCancel, "submitter", "")
	require.NoError(t, err)

	count, err := f.submissions.RemindOverdue(t.Context(), "scanner")
	require.NoError(t, err)
	assert.Zero(t, count)

	f.now = f.now.Add(72 * time.Hour)

	count, err = f.submissions.RemindOverdue(t.Context(), "scanner")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	published := f.bus.Published()
	reminder := published[len(published)-1].(events.SubmissionOverdue)
	assert.Equal(t, 2, reminder.DaysOverdue)
	assert.Equal(t, "scanner", reminder.Actor)
}
