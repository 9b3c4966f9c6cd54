package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/persistence"
	"github.com/dukex/signoff/pkg/services"
	"github.com/dukex/signoff/pkg/templatefile"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	persistence persistence.Persistence
	templates   *services.Templates
	submissions *services.Submissions
	documents   *services.Documents
	validator   *validator.Validate
}

func NewAPIHandlers(
	persistence persistence.Persistence,
	templates *services.Templates,
	submissions *services.Submissions,
	documents *services.Documents,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		persistence: persistence,
		templates:   templates,
		submissions: submissions,
		documents:   documents,
		validator:   validator,
	}
}

// Register mounts every route on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	t := router.Group("/templates")
	t.Get("/", h.GetTemplates)
	t.Post("/", h.CreateTemplate)
	t.Post("/import", h.ImportTemplate)
	t.Get("/:id", h.GetTemplate)
	t.Post("/:id/actions", h.ApplyTemplateAction)
	t.Post("/:id/steps", h.AddStep)
	t.Post("/:id/steps/resequence", h.ResequenceSteps)
	t.Delete("/:id/steps/:stepId", h.RemoveStep)

	s := router.Group("/submissions")
	s.Get("/", h.GetSubmissions)
	s.Post("/", h.CreateSubmission)
	s.Get("/overdue", h.GetOverdueSubmissions)
	s.Get("/:id", h.GetSubmission)
	s.Post("/:id/actions", h.ApplySubmissionAction)
	s.Get("/:id/progress", h.GetSubmissionProgress)

	d := router.Group("/documents")
	d.Get("/", h.GetDocuments)
	d.Post("/", h.CreateDocument)
	d.Get("/:id", h.GetDocument)
	d.Post("/:id/publish", h.PublishDocument)
	d.Post("/:id/archive", h.ArchiveDocument)
	d.Post("/:id/lock", h.LockDocument)
	d.Post("/:id/unlock", h.UnlockDocument)
	d.Get("/:id/editable", h.GetDocumentEditable)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK
	check := "ok"

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
		check = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"persistence": check,
		},
		"timestamp": time.Now().UTC(),
	})
}

// actor reads the acting principal. Handlers that change state require one.
func actor(c fiber.Ctx) string {
	return strings.TrimSpace(c.Get(ActorHeader))
}

func requireActor(c fiber.Ctx) (string, error) {
	a := actor(c)
	if a == "" {
		return "", badRequest(c, ActorHeader+" header is required")
	}

	return a, nil
}

// bind decodes and validates a JSON body. A non-nil error means the response
// has already been written.
func (h *APIHandlers) bind(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return false, badRequest(c, err.Error())
	}

	return true, nil
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	var status *models.TemplateStatus

	if s := c.Query("status"); s != "" {
		st := models.TemplateStatus(s)
		status = &st
	}

	templates, err := h.templates.List(c.Context(), status)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"templates": templates})
}

func (h *APIHandlers) CreateTemplate(c fiber.Ctx) error {
	a, err := requireActor(c)
	if a == "" {
		return err
	}

	var req CreateTemplateRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	template, err := h.templates.Create(c.Context(), services.CreateTemplateRequest{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   a,
		Steps:       req.Steps,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(template)
}

// ImportTemplate accepts a YAML template definition as the request body.
func (h *APIHandlers) ImportTemplate(c fiber.Ctx) error {
	a, err := requireActor(c)
	if a == "" {
		return err
	}

	def, err := templatefile.Parse(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	if def.Template.CreatedBy == "" {
		def.Template.CreatedBy = a
	}

	template, err := h.templates.Import(c.Context(), def.Template, def.Activate)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(template)
}

func (h *APIHandlers) GetTemplate(c fiber.Ctx) error {
	template, err := h.templates.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(template)
}

func (h *APIHandlers) ApplyTemplateAction(c fiber.Ctx) error {
	a, err := requireActor(c)
	if a == "" {
		return err
	}

	var req TemplateActionRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	template, err := h.templates.Apply(c.Context(), c.Params("id"), req.Operation, a)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(template)
}

func (h *APIHandlers) AddStep(c fiber.Ctx) error {
	var req services.StepInput
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	template, err := h.templates.AddStep(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(template)
}

func (h *APIHandlers) RemoveStep(c fiber.Ctx) error {
	template, err := h.templates.RemoveStep(c.Context(), c.Params("id"), c.Params("stepId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(template)
}

func (h *APIHandlers) ResequenceSteps(c fiber.Ctx) error {
	template, err := h.templates.ResequenceSteps(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(template)
}
