package services

import (
	"context"
	"fmt"

	"github.com/dukex/signoff/pkg/eventbus"
	"github.com/dukex/signoff/pkg/events"
	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/otelhelper"
	"github.com/dukex/signoff/pkg/persistence"
	"github.com/dukex/signoff/pkg/workflow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type Templates struct {
	base
}

// NewTemplates creates a new template service.
func NewTemplates(p persistence.Persistence, publisher eventbus.EventPublisher, opts ...Option) *Templates {
	return &Templates{base: newBase(p, publisher, "templates", opts)}
}

// StepInput describes a step to add to a template.
type StepInput struct {
	Name              string          `json:"name"                         validate:"required"`
	Description       string          `json:"description"`
	Position          int             `json:"position"                     validate:"min=0"`
	Type              models.StepType `json:"step_type"                    validate:"omitempty,oneof=manual automatic conditional parallel"`
	Assignee          *string         `json:"assignee,omitempty"`
	Assignees         []string        `json:"assignees,omitempty"          validate:"omitempty,dive,required"`
	EstimatedDuration *int64          `json:"estimated_duration,omitempty" validate:"omitempty,min=0"`
}

func (in StepInput) step() *models.StepDef {
	return &models.StepDef{
		ID:                uuid.NewString(),
		Name:              in.Name,
		Description:       in.Description,
		Position:          in.Position,
		Type:              in.Type,
		Assignee:          in.Assignee,
		Assignees:         in.Assignees,
		EstimatedDuration: in.EstimatedDuration,
	}
}

// CreateTemplateRequest contains the fields of a new draft template.
type CreateTemplateRequest struct {
	Name        string      `json:"name"        validate:"required,min=3"`
	Description string      `json:"description"`
	CreatedBy   string      `json:"created_by"  validate:"required"`
	Steps       []StepInput `json:"steps"       validate:"dive"`
}

// Create stores a new draft template with the given steps appended in order.
func (s *Templates) Create(ctx context.Context, req CreateTemplateRequest) (*models.WorkflowTemplate, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "templates.create")
	defer span.End()

	err := s.validate.StructCtx(ctx, req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, invalid("Templates.Create", err)
	}

	template := workflow.NewTemplate(req.Name, req.Description, req.CreatedBy)

	for _, in := range req.Steps {
		err := workflow.AddStep(template, in.step())
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, fmt.Errorf("failed to add step %q: %w", in.Name, err)
		}
	}

	return s.store(ctx, template)
}

// Import stores a fully built draft template, such as one decoded from a
// definition file, optionally activating it.
func (s *Templates) Import(ctx context.Context, template *models.WorkflowTemplate, activate bool) (*models.WorkflowTemplate, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "templates.import")
	defer span.End()

	template.Status = models.TemplateStatusDraft

	for _, step := range template.Steps {
		if step.ID == "" {
			step.ID = uuid.NewString()
		}
	}

	err := workflow.ValidateStepSequence(template.Steps)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	err = s.validate.StructCtx(ctx, template)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, invalid("Templates.Import", err)
	}

	created, err := s.store(ctx, template)
	if err != nil || !activate {
		return created, err
	}

	return s.Apply(ctx, created.ID, models.TemplateActivate, created.CreatedBy)
}

func (s *Templates) store(ctx context.Context, template *models.WorkflowTemplate) (*models.WorkflowTemplate, error) {
	now := s.clock()
	template.CreatedAt = now
	template.UpdatedAt = now

	err := s.persistence.Templates().Create(ctx, template)
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	s.log(ctx).InfoContext(ctx, "template created", "template_id", template.ID, "steps", len(template.Steps))

	return template, nil
}

func (s *Templates) Get(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	return s.persistence.Templates().GetByID(ctx, id)
}

func (s *Templates) List(ctx context.Context, status *models.TemplateStatus) ([]*models.WorkflowTemplate, error) {
	return s.persistence.Templates().List(ctx, persistence.ListTemplatesOptions{Status: status})
}

// Apply runs a template lifecycle operation.
func (s *Templates) Apply(ctx context.Context, id string, op models.TemplateOperation, actor string) (*models.WorkflowTemplate, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "templates.apply",
		attribute.String(otelhelper.TemplateIDKey, id),
		attribute.String(otelhelper.OperationKey, string(op)),
	)
	defer span.End()

	var from models.TemplateStatus

	now := s.clock()

	template, err := s.persistence.Templates().Update(ctx, id, func(current *models.WorkflowTemplate) error {
		from = current.Status

		err := workflow.ApplyTemplateOperation(current, op)
		if err != nil {
			return err
		}

		current.UpdatedAt = now

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	otelhelper.SetTransition(span, string(op), string(from), string(template.Status))
	s.log(ctx).InfoContext(ctx, "template transitioned", "template_id", id, "operation", op, "from", from, "to", template.Status)

	if template.Status == models.TemplateStatusActive && from != models.TemplateStatusActive {
		s.emit(ctx, template.ID, events.TemplateActivated{
			BaseEvent:  s.eventBase(events.TemplateActivatedEvent, actor, now),
			TemplateID: template.ID,
			StepCount:  len(template.Steps),
		})
	}

	return template, nil
}

// AddStep appends a step; only draft and paused templates accept changes.
func (s *Templates) AddStep(ctx context.Context, id string, in StepInput) (*models.WorkflowTemplate, error) {
	err := s.validate.StructCtx(ctx, in)
	if err != nil {
		return nil, invalid("Templates.AddStep", err)
	}

	return s.editSteps(ctx, id, "templates.add_step", func(t *models.WorkflowTemplate) error {
		return workflow.AddStep(t, in.step())
	})
}

// RemoveStep drops a step and leaves its position as a gap. A step that is the
// current step of a live submission cannot be removed.
func (s *Templates) RemoveStep(ctx context.Context, id, stepID string) (*models.WorkflowTemplate, error) {
	submissions, err := s.persistence.Submissions().List(ctx, persistence.ListSubmissionsOptions{TemplateID: id})
	if err != nil {
		return nil, err
	}

	err = workflow.CheckStepNotInUse(submissions, stepID)
	if err != nil {
		return nil, err
	}

	return s.editSteps(ctx, id, "templates.remove_step", func(t *models.WorkflowTemplate) error {
		return workflow.RemoveStep(t, stepID)
	})
}

// ResequenceSteps closes gaps so positions run 1..n again.
func (s *Templates) ResequenceSteps(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	return s.editSteps(ctx, id, "templates.resequence", workflow.ResequenceSteps)
}

func (s *Templates) editSteps(ctx context.Context, id, name string, edit func(*models.WorkflowTemplate) error) (*models.WorkflowTemplate, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, name, attribute.String(otelhelper.TemplateIDKey, id))
	defer span.End()

	now := s.clock()

	template, err := s.persistence.Templates().Update(ctx, id, func(current *models.WorkflowTemplate) error {
		err := edit(current)
		if err != nil {
			return err
		}

		current.UpdatedAt = now

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return template, nil
}
