// Package templatefile loads workflow templates from YAML definition files.
//
// A definition looks like:
//
//	name: Expense approval
//	created_by: finance
//	activate: true
//	steps:
//	  - name: Manager review
//	    assignee: alice
//	    estimated_duration: 48h
//	  - name: Board sign-off
//	    type: parallel
//	    assignees: [ann, ben]
//
// Steps without a position are numbered in file order.
package templatefile

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dukex/signoff/pkg/models"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schema string

var schemaLoader = gojsonschema.NewStringLoader(schema)

// File is the structure of a template definition file.
type File struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	CreatedBy   string     `yaml:"created_by"`
	Activate    bool       `yaml:"activate"`
	Steps       []StepFile `yaml:"steps"`
}

// StepFile is one step in a definition file.
type StepFile struct {
	Name              string   `yaml:"name"`
	Description       string   `yaml:"description"`
	Position          int      `yaml:"position"`
	Type              string   `yaml:"type"`
	Assignee          string   `yaml:"assignee"`
	Assignees         []string `yaml:"assignees"`
	EstimatedDuration string   `yaml:"estimated_duration"`
}

// Definition is a decoded template ready for import.
type Definition struct {
	Template *models.WorkflowTemplate
	Activate bool
}

// Load reads and parses the definition at path.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file %s: %w", path, err)
	}

	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return def, nil
}

// Parse validates data against the definition schema and converts it into a
// draft template. An empty created_by is left for the caller to fill.
func Parse(data []byte) (*Definition, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("template definition is empty")
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML template: %w", err)
	}

	if err := validate(raw); err != nil {
		return nil, err
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML template: %w", err)
	}

	template, err := file.template()
	if err != nil {
		return nil, err
	}

	return &Definition{Template: template, Activate: file.Activate}, nil
}

func validate(raw any) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("failed to validate template: %w", err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return fmt.Errorf("template schema validation failed: %s", strings.Join(problems, "; "))
	}

	return nil
}

func (f File) template() (*models.WorkflowTemplate, error) {
	template := &models.WorkflowTemplate{
		Name:        f.Name,
		Description: f.Description,
		Status:      models.TemplateStatusDraft,
		CreatedBy:   f.CreatedBy,
		Steps:       make([]*models.StepDef, 0, len(f.Steps)),
	}

	for i, s := range f.Steps {
		step := &models.StepDef{
			Name:        s.Name,
			Description: s.Description,
			Position:    s.Position,
			Type:        models.StepType(s.Type),
			Assignees:   s.Assignees,
		}

		if step.Position == 0 {
			step.Position = i + 1
		}

		if step.Type == "" {
			step.Type = models.StepTypeManual
		}

		if s.Assignee != "" {
			assignee := s.Assignee
			step.Assignee = &assignee
		}

		if step.Type == models.StepTypeParallel && len(step.Assignees) == 0 {
			return nil, fmt.Errorf("step %q: parallel steps need assignees", s.Name)
		}

		if s.EstimatedDuration != "" {
			duration, err := time.ParseDuration(s.EstimatedDuration)
			if err != nil {
				return nil, fmt.Errorf("step %q: invalid estimated_duration: %w", s.Name, err)
			}

			seconds := int64(duration.Seconds())
			step.EstimatedDuration = &seconds
		}

		template.Steps = append(template.Steps, step)
	}

	return template, nil
}
