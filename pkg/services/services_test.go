package services_test

import (
	"testing"
	"time"

	"github.com/dukex/signoff/pkg/capability"
	"github.com/dukex/signoff/pkg/events"
	"github.com/dukex/signoff/pkg/mocks"
	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/persistence"
	"github.com/dukex/signoff/pkg/persistence/file"
	"github.com/dukex/signoff/pkg/services"
	"github.com/dukex/signoff/pkg/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	persistence persistence.Persistence
	bus         *mocks.MockEventBus
	now         time.Time
	templates   *services.Templates
	submissions *services.Submissions
	documents   *services.Documents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		persistence: file.NewPersistence(t.TempDir()),
		bus:         &mocks.MockEventBus{},
		now:         testutil.Now,
	}
	f.bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	clock := services.WithClock(func() time.Time { return f.now })

	f.templates = services.NewTemplates(f.persistence, f.bus, clock)
	f.submissions = services.NewSubmissions(f.persistence, f.bus, clock)
	f.documents = services.NewDocuments(f.persistence, capability.NewRoles("admin"), f.bus, clock)

	return f
}

// activeTemplate stores an active template with the given steps.
func (f *fixture) activeTemplate(t *testing.T, steps ...services.StepInput) *models.WorkflowTemplate {
	t.Helper()

	template, err := f.templates.Create(t.Context(), services.CreateTemplateRequest{
		Name:      "Expense approval",
		CreatedBy: "author",
		Steps:     steps,
	})
	require.NoError(t, err)

	template, err = f.templates.Apply(t.Context(), template.ID, models.TemplateActivate, "author")
	require.NoError(t, err)

	return template
}

func (f *fixture) submission(t *testing.T, templateID string, ref models.SubmittableRef) *models.Submission {
	t.Helper()

	sub, err := f.submissions.Create(t.Context(), services.CreateSubmissionRequest{
		TemplateID:  templateID,
		Submittable: ref,
		SubmittedBy: "submitter",
	})
	require.NoError(t, err)

	return sub
}

func (f *fixture) apply(t *testing.T, id string, op models.SubmissionOperation, actor, comment string) (*services.ActionResult, error) {
	t.Helper()

	return f.submissions.Apply(t.Context(), id, services.ActionRequest{Operation: op, Actor: actor, Comment: comment})
}

func (f *fixture) publishedTypes() []events.EventType {
	types := make([]events.EventType, 0)
	for _, event := range f.bus.Published() {
		types = append(types, event.GetType())
	}

	return types
}

func step(name string, assignee ...string) services.StepInput {
	in := services.StepInput{Name: name}
	if len(assignee) == 1 {
		in.Assignee = &assignee[0]
	}

	if len(assignee) > 1 {
		in.Type = models.StepTypeParallel
		in.Assignees = assignee
	}

	return in
}

func docRef(id string) models.SubmittableRef {
	return models.SubmittableRef{Kind: models.SubmittableDocument, ID: id}
}
