package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukex/signoff/pkg/capability"
	"github.com/dukex/signoff/pkg/document"
	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/persistence/file"
	"github.com/dukex/signoff/pkg/services"
	"github.com/dukex/signoff/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())

	handlers := web.NewAPIHandlers(
		persistence,
		services.NewTemplates(persistence, nil),
		services.NewSubmissions(persistence, nil),
		services.NewDocuments(persistence, capability.NewRoles("admin"), nil),
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()
	handlers.Register(app)

	return app
}

// call sends body as JSON (or raw when it is a string) and decodes the reply
// into out when out is non-nil.
func call(t *testing.T, app *fiber.App, method, path, actor string, body any, out any) int {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	if actor != "" {
		req.Header.Set(web.ActorHeader, actor)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}

	return resp.StatusCode
}

func activeTemplate(t *testing.T, app *fiber.App, steps ...services.StepInput) *models.WorkflowTemplate {
	t.Helper()

	var template models.WorkflowTemplate

	status := call(t, app, http.MethodPost, "/templates", "author", web.CreateTemplateRequest{
		Name:  "Expense approval",
		Steps: steps,
	}, &template)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "author", template.CreatedBy)

	status = call(t, app, http.MethodPost, "/templates/"+template.ID+"/actions", "author",
		web.TemplateActionRequest{Operation: models.TemplateActivate}, &template)
	require.Equal(t, http.StatusOK, status)

	return &template
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	assert.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/health", "", nil, nil))
}

func TestAPIHandlers_RequiresActor(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	var problem map[string]any

	status := call(t, app, http.MethodPost, "/templates", "", web.CreateTemplateRequest{Name: "Expenses"}, &problem)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", problem["type"])
}

func TestAPIHandlers_CreateTemplate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           any
		expectedStatus int
	}{
		{
			name:           "successful creation",
			body:           web.CreateTemplateRequest{Name: "Expenses", Steps: []services.StepInput{{Name: "Review"}}},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "name too short",
			body:           web.CreateTemplateRequest{Name: "Ex"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "step out of range",
			body:           web.CreateTemplateRequest{Name: "Expenses", Steps: []services.StepInput{{Name: "Review", Position: 4}}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid json",
			body:           "{",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := setupTestApp(t)

			assert.Equal(t, tt.expectedStatus, call(t, app, http.MethodPost, "/templates", "author", tt.body, nil))
		})
	}
}

func TestAPIHandlers_ImportTemplate(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	definition := "name: Permits\nactivate: true\nsteps:\n  - name: Inspection\n    assignee: inspector\n"

	var template models.WorkflowTemplate

	status := call(t, app, http.MethodPost, "/templates/import", "clerk", definition, &template)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, models.TemplateStatusActive, template.Status)
	assert.Equal(t, "clerk", template.CreatedBy)
	require.Len(t, template.Steps, 1)

	status = call(t, app, http.MethodPost, "/templates/import", "clerk", "name: x", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_TemplateSteps(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	template := activeTemplate(t, app, services.StepInput{Name: "Review"})

	// Active templates do not accept step edits.
	status := call(t, app, http.MethodPost, "/templates/"+template.ID+"/steps", "author", services.StepInput{Name: "Audit"}, nil)
	assert.Equal(t, http.StatusConflict, status)

	status = call(t, app, http.MethodPost, "/templates/"+template.ID+"/actions", "author",
		web.TemplateActionRequest{Operation: models.TemplatePause}, nil)
	require.Equal(t, http.StatusOK, status)

	var updated models.WorkflowTemplate

	status = call(t, app, http.MethodPost, "/templates/"+template.ID+"/steps", "author", services.StepInput{Name: "Audit"}, &updated)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, updated.Steps, 2)

	status = call(t, app, http.MethodDelete, "/templates/"+template.ID+"/steps/"+updated.Steps[0].ID, "author", nil, &updated)
	require.Equal(t, http.StatusOK, status)

	status = call(t, app, http.MethodPost, "/templates/"+template.ID+"/steps/resequence", "author", nil, &updated)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, updated.Steps, 1)
	assert.Equal(t, 1, updated.Steps[0].Position)

	status = call(t, app, http.MethodPost, "/templates/"+template.ID+"/actions", "author",
		web.TemplateActionRequest{Operation: "explode"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_SubmissionFlow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	template := activeTemplate(t, app, services.StepInput{Name: "Review", Assignee: ptr("alice")})

	create := web.CreateSubmissionRequest{
		TemplateID:  template.ID,
		Submittable: models.SubmittableRef{Kind: models.SubmittablePermit, ID: "permit-7"},
		Priority:    models.PriorityHigh,
	}

	var sub models.Submission

	status := call(t, app, http.MethodPost, "/submissions", "applicant", create, &sub)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "applicant", sub.SubmittedBy)

	status = call(t, app, http.MethodPost, "/submissions", "applicant", create, nil)
	assert.Equal(t, http.StatusConflict, status)

	action := func(actor string, op models.SubmissionOperation, comment string) int {
		return call(t, app, http.MethodPost, "/submissions/"+sub.ID+"/actions", actor,
			web.SubmissionActionRequest{Operation: op, Comment: comment}, nil)
	}

	assert.Equal(t, http.StatusConflict, action("applicant", models.SubmissionApprove, ""))
	assert.Equal(t, http.StatusOK, action("applicant", models.SubmissionStart, ""))

	var progress web.ProgressResponse

	status = call(t, app, http.MethodGet, "/submissions/"+sub.ID+"/progress", "", nil, &progress)
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 100.0, progress.Percentage, 0.001)

	assert.Equal(t, http.StatusOK, action("applicant", models.SubmissionSubmitForApproval, ""))
	assert.Equal(t, http.StatusBadRequest, action("alice", models.SubmissionReject, ""))
	assert.Equal(t, http.StatusForbidden, action("mallory", models.SubmissionApprove, ""))

	var result services.ActionResult

	status = call(t, app, http.MethodPost, "/submissions/"+sub.ID+"/actions", "alice",
		web.SubmissionActionRequest{Operation: models.SubmissionApprove}, &result)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.SubmissionStatusApproved, result.Submission.Status)

	var queue struct {
		Submissions []*models.Submission `json:"submissions"`
	}

	status = call(t, app, http.MethodGet, "/submissions?status=approved,completed&kind=permit&item_id=permit-7", "", nil, &queue)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, queue.Submissions, 1)
	assert.Equal(t, sub.ID, queue.Submissions[0].ID)

	assert.Equal(t, http.StatusBadRequest, call(t, app, http.MethodGet, "/submissions?kind=permit", "", nil, nil))
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/submissions/overdue", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodGet, "/submissions/missing", "", nil, nil))
}

func TestAPIHandlers_DocumentLocking(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	var doc models.Document

	status := call(t, app, http.MethodPost, "/documents", "owner", web.CreateDocumentRequest{Title: "Handbook", Writers: []string{"alice", "bob"}}, &doc)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "owner", doc.OwnerID)

	path := "/documents/" + doc.ID

	// Drafts cannot be locked.
	var lock web.LockResponse

	status = call(t, app, http.MethodPost, path+"/lock", "alice", nil, &lock)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, document.ReasonInvalidState, lock.Result.Reason)

	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, path+"/publish", "alice", nil, nil))

	status = call(t, app, http.MethodPost, path+"/lock", "alice", services.LockRequest{Reason: ptr("editing")}, &lock)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, lock.Result.OK)
	assert.Equal(t, models.DocumentStatusLocked, lock.Document.Lock.Status)

	status = call(t, app, http.MethodPost, path+"/lock", "bob", nil, &lock)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, document.ReasonAlreadyLocked, lock.Result.Reason)
	assert.Equal(t, "alice", *lock.Result.LockedBy)

	status = call(t, app, http.MethodPost, path+"/unlock", "mallory", nil, &lock)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, models.DocumentStatusLocked, lock.Document.Lock.Status)

	var editable services.Editability

	status = call(t, app, http.MethodGet, path+"/editable", "bob", nil, &editable)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, editable.Editable)

	status = call(t, app, http.MethodPost, path+"/unlock", "owner", nil, &lock)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.DocumentStatusPublished, lock.Document.Lock.Status)

	assert.Equal(t, http.StatusForbidden, call(t, app, http.MethodPost, path+"/archive", "bob", nil, nil))
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodPost, path+"/archive", "admin", nil, nil))

	var listed struct {
		Documents []*models.Document `json:"documents"`
	}

	status = call(t, app, http.MethodGet, "/documents?status=archived", "", nil, &listed)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, listed.Documents, 1)

	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodPost, "/documents/missing/lock", "alice", nil, nil))
}

func ptr[T any](v T) *T {
	return &v
}
