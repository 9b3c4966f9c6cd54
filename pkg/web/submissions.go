package web

import (
	"strings"

	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/persistence"
	"github.com/dukex/signoff/pkg/services"
	"github.com/gofiber/fiber/v3"
)

// GetSubmissions returns the review queue: urgent first, then insertion order.
// status takes a comma separated list; kind and item_id select one item.
func (h *APIHandlers) GetSubmissions(c fiber.Ctx) error {
	opts := persistence.ListSubmissionsOptions{
		TemplateID:  c.Query("template_id"),
		SubmittedBy: c.Query("submitted_by"),
	}

	if status := c.Query("status"); status != "" {
		for _, s := range strings.Split(status, ",") {
			opts.Statuses = append(opts.Statuses, models.SubmissionStatus(strings.TrimSpace(s)))
		}
	}

	kind, itemID := c.Query("kind"), c.Query("item_id")
	if (kind == "") != (itemID == "") {
		return badRequest(c, "kind and item_id must be given together")
	}

	if kind != "" {
		opts.Submittable = &models.SubmittableRef{Kind: models.SubmittableKind(kind), ID: itemID}
	}

	submissions, err := h.submissions.Queue(c.Context(), opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"submissions": submissions})
}

func (h *APIHandlers) GetOverdueSubmissions(c fiber.Ctx) error {
	submissions, err := h.submissions.Overdue(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"submissions": submissions})
}

func (h *APIHandlers) CreateSubmission(c fiber.Ctx) error {
	a, err := requireActor(c)
	if a == "" {
		return err
	}

	var req CreateSubmissionRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	submission, err := h.submissions.Create(c.Context(), services.CreateSubmissionRequest{
		TemplateID:  req.TemplateID,
		Submittable: req.Submittable,
		SubmittedBy: a,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		Notes:       req.Notes,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(submission)
}

func (h *APIHandlers) GetSubmission(c fiber.Ctx) error {
	submission, err := h.submissions.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(submission)
}

func (h *APIHandlers) ApplySubmissionAction(c fiber.Ctx) error {
	a, err := requireActor(c)
	if a == "" {
		return err
	}

	var req SubmissionActionRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	result, err := h.submissions.Apply(c.Context(), c.Params("id"), services.ActionRequest{
		Operation: req.Operation,
		Actor:     a,
		Comment:   req.Comment,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetSubmissionProgress(c fiber.Ctx) error {
	id := c.Params("id")

	percentage, err := h.submissions.Progress(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ProgressResponse{SubmissionID: id, Percentage: percentage})
}
