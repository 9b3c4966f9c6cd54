package workflow

import (
	"fmt"
	"slices"

	"github.com/dukex/signoff/pkg/models"
)

// NextStep returns the step with the smallest position strictly greater than
// step's, or nil when step is last.
func NextStep(steps []*models.StepDef, step *models.StepDef) (*models.StepDef, error) {
	if err := belongs(steps, step); err != nil {
		return nil, err
	}

	var next *models.StepDef

	for _, candidate := range steps {
		if candidate.Position > step.Position && (next == nil || candidate.Position < next.Position) {
			next = candidate
		}
	}

	return next, nil
}

// PreviousStep returns the step with the largest position strictly lesser than
// step's, or nil when step is first.
func PreviousStep(steps []*models.StepDef, step *models.StepDef) (*models.StepDef, error) {
	if err := belongs(steps, step); err != nil {
		return nil, err
	}

	var previous *models.StepDef

	for _, candidate := range steps {
		if candidate.Position < step.Position && (previous == nil || candidate.Position > previous.Position) {
			previous = candidate
		}
	}

	return previous, nil
}

// FirstStep returns the step with the lowest position, or nil for an empty list.
func FirstStep(steps []*models.StepDef) *models.StepDef {
	var first *models.StepDef

	for _, step := range steps {
		if first == nil || step.Position < first.Position {
			first = step
		}
	}

	return first
}

// CanBeCompletedBy reports whether actor may complete step. Unassigned steps can
// be completed by anyone. Parallel steps accept any of their assignees.
func CanBeCompletedBy(step *models.StepDef, actor string) bool {
	if step == nil {
		return true
	}

	if step.Type == models.StepTypeParallel && len(step.Assignees) > 0 {
		return slices.Contains(step.Assignees, actor)
	}

	if step.Assignee == nil || *step.Assignee == "" {
		return true
	}

	return *step.Assignee == actor
}

// SortSteps orders steps by position in place.
func SortSteps(steps []*models.StepDef) {
	slices.SortStableFunc(steps, func(a, b *models.StepDef) int {
		return a.Position - b.Position
	})
}

// ValidateStepSequence checks positions form 1..n without duplicates.
func ValidateStepSequence(steps []*models.StepDef) error {
	seen := make(map[int]bool, len(steps))

	for _, step := range steps {
		if step.Position < 1 || step.Position > len(steps) {
			return fmt.Errorf("%w: position %d outside 1..%d", ErrInvalidStepPosition, step.Position, len(steps))
		}

		if seen[step.Position] {
			return fmt.Errorf("%w: duplicate position %d", ErrInvalidStepPosition, step.Position)
		}

		seen[step.Position] = true
	}

	return nil
}

// Resequence renumbers steps 1..n keeping their relative order.
func Resequence(steps []*models.StepDef) {
	SortSteps(steps)

	for i, step := range steps {
		step.Position = i + 1
	}
}

func belongs(steps []*models.StepDef, step *models.StepDef) error {
	if step == nil {
		return ErrStepNotInTemplate
	}

	for _, candidate := range steps {
		if candidate == step || (candidate.ID != "" && candidate.ID == step.ID) {
			return nil
		}
	}

	return ErrStepNotInTemplate
}
