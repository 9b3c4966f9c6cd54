package workflow

import (
	"fmt"
	"strings"

	"github.com/dukex/signoff/pkg/fsm"
	"github.com/dukex/signoff/pkg/models"
)

var templateTable = fsm.NewTable[models.TemplateStatus, models.TemplateOperation, *models.WorkflowTemplate]("template").
	Add(models.TemplateActivate, []models.TemplateStatus{models.TemplateStatusDraft}, fsm.Transition[models.TemplateStatus, *models.WorkflowTemplate]{
		To:    models.TemplateStatusActive,
		Guard: runnable,
	}).
	Add(models.TemplatePause, []models.TemplateStatus{models.TemplateStatusActive}, fsm.Transition[models.TemplateStatus, *models.WorkflowTemplate]{
		To: models.TemplateStatusPaused,
	}).
	Add(models.TemplateResume, []models.TemplateStatus{models.TemplateStatusPaused}, fsm.Transition[models.TemplateStatus, *models.WorkflowTemplate]{
		To:    models.TemplateStatusActive,
		Guard: runnable,
	}).
	Add(models.TemplateComplete, []models.TemplateStatus{models.TemplateStatusActive}, fsm.Transition[models.TemplateStatus, *models.WorkflowTemplate]{
		To: models.TemplateStatusCompleted,
	}).
	Add(models.TemplateCancel, []models.TemplateStatus{
		models.TemplateStatusDraft,
		models.TemplateStatusActive,
		models.TemplateStatusPaused,
	}, fsm.Transition[models.TemplateStatus, *models.WorkflowTemplate]{
		To: models.TemplateStatusCancelled,
	})

// runnable requires at least one step and positions running 1..n.
func runnable(t *models.WorkflowTemplate) string {
	if len(t.Steps) == 0 {
		return "template has no steps"
	}

	if err := ValidateStepSequence(t.Steps); err != nil {
		return err.Error() + "; resequence the steps first"
	}

	return ""
}

// NewTemplate returns a draft template.
func NewTemplate(name, description, createdBy string) *models.WorkflowTemplate {
	return &models.WorkflowTemplate{
		Name:        strings.TrimSpace(name),
		Description: description,
		Status:      models.TemplateStatusDraft,
		Steps:       make([]*models.StepDef, 0),
		CreatedBy:   createdBy,
	}
}

// ApplyTemplateOperation moves t through op. On failure t is left unchanged.
func ApplyTemplateOperation(t *models.WorkflowTemplate, op models.TemplateOperation) error {
	transition, err := templateTable.Fire(t.Status, op, t)
	if err != nil {
		return err
	}

	t.Status = transition.To

	if transition.Effect != nil {
		transition.Effect(t)
	}

	return nil
}

// CanApplyTemplateOperation reports whether op would succeed on t.
func CanApplyTemplateOperation(t *models.WorkflowTemplate, op models.TemplateOperation) bool {
	return templateTable.Can(t.Status, op, t)
}

// PermittedTemplateOperations lists the operations defined from t's current state.
func PermittedTemplateOperations(t *models.WorkflowTemplate) []models.TemplateOperation {
	return templateTable.Permitted(t.Status)
}

// Activate opens a draft template for submissions. The steps must run 1..n.
func Activate(t *models.WorkflowTemplate) error {
	return ApplyTemplateOperation(t, models.TemplateActivate)
}

// Pause stops new submissions and allows step edits.
func Pause(t *models.WorkflowTemplate) error {
	return ApplyTemplateOperation(t, models.TemplatePause)
}

// Resume reopens a paused template once its steps run 1..n again.
func Resume(t *models.WorkflowTemplate) error {
	return ApplyTemplateOperation(t, models.TemplateResume)
}

// CompleteTemplate closes an active template.
func CompleteTemplate(t *models.WorkflowTemplate) error {
	return ApplyTemplateOperation(t, models.TemplateComplete)
}

// CancelTemplate abandons a template that is not yet closed.
func CancelTemplate(t *models.WorkflowTemplate) error {
	return ApplyTemplateOperation(t, models.TemplateCancel)
}

// AddStep appends step to t. A zero position means "append"; any other position
// must be exactly one past the highest position in use.
func AddStep(t *models.WorkflowTemplate, step *models.StepDef) error {
	if !stepsEditable(t) {
		return ErrTemplateNotEditable
	}

	next := 1
	for _, existing := range t.Steps {
		next = max(next, existing.Position+1)
	}
	if step.Position == 0 {
		step.Position = next
	}

	for _, existing := range t.Steps {
		if existing.Position == step.Position {
			return fmt.Errorf("%w: position %d already taken", ErrInvalidStepPosition, step.Position)
		}
	}

	if step.Position != next {
		return fmt.Errorf("%w: expected position %d, got %d", ErrInvalidStepPosition, next, step.Position)
	}

	if step.Type == "" {
		step.Type = models.StepTypeManual
	}

	step.TemplateID = t.ID
	t.Steps = append(t.Steps, step)

	return nil
}

// RemoveStep drops the step from t without renumbering the others. Callers must
// check that no live submission sits on the step (CheckStepNotInUse).
func RemoveStep(t *models.WorkflowTemplate, stepID string) error {
	if !stepsEditable(t) {
		return ErrTemplateNotEditable
	}

	for i, step := range t.Steps {
		if step.ID == stepID {
			t.Steps = append(t.Steps[:i], t.Steps[i+1:]...)

			return nil
		}
	}

	return ErrStepNotInTemplate
}

// ResequenceSteps renumbers t's steps 1..n, closing gaps left by RemoveStep.
func ResequenceSteps(t *models.WorkflowTemplate) error {
	if !stepsEditable(t) {
		return ErrTemplateNotEditable
	}

	Resequence(t.Steps)

	return nil
}

// ProgressPercentage is the share of t's steps at or before the submission's
// current step, clamped to [0, 100].
func ProgressPercentage(t *models.WorkflowTemplate, sub *models.Submission) float64 {
	if len(t.Steps) == 0 || sub.CurrentStepID == nil {
		return 0
	}

	current := t.StepByID(*sub.CurrentStepID)
	if current == nil {
		return 0
	}

	reached := 0

	for _, step := range t.Steps {
		if step.Position <= current.Position {
			reached++
		}
	}

	percentage := float64(reached) / float64(len(t.Steps)) * 100

	return min(max(percentage, 0), 100)
}

func stepsEditable(t *models.WorkflowTemplate) bool {
	return t.Status == models.TemplateStatusDraft || t.Status == models.TemplateStatusPaused
}
