package models

// StepType is the kind of work a step represents.
type StepType string

const (
	StepTypeManual      StepType = "manual"
	StepTypeAutomatic   StepType = "automatic"
	StepTypeConditional StepType = "conditional"
	StepTypeParallel    StepType = "parallel"
)

// StepDef is a single stage in a workflow template.
type StepDef struct {
	ID                string   `json:"id"`
	TemplateID        string   `json:"template_id"`
	Name              string   `json:"name"                         validate:"required"`
	Description       string   `json:"description,omitempty"`
	Position          int      `json:"position"                     validate:"min=1"`
	Type              StepType `json:"step_type"                    validate:"required,oneof=manual automatic conditional parallel"`
	Assignee          *string  `json:"assignee,omitempty"`
	Assignees         []string `json:"assignees,omitempty"`                                     // parallel steps only
	EstimatedDuration *int64   `json:"estimated_duration,omitempty" validate:"omitempty,min=0"` // seconds
}

// Clone returns a deep copy of the step.
func (s *StepDef) Clone() *StepDef {
	if s == nil {
		return nil
	}

	clone := *s

	if s.Assignee != nil {
		assignee := *s.Assignee
		clone.Assignee = &assignee
	}

	if s.Assignees != nil {
		clone.Assignees = append([]string(nil), s.Assignees...)
	}

	if s.EstimatedDuration != nil {
		duration := *s.EstimatedDuration
		clone.EstimatedDuration = &duration
	}

	return &clone
}
