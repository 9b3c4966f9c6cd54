package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/persistence"
)

// TemplateRepository handles workflow template and step rows.
type TemplateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const templateColumns = `id, name, description, status, created_by, created_at, updated_at`

func (r *TemplateRepository) Create(ctx context.Context, template *models.WorkflowTemplate) error {
	if template.ID == "" {
		id, err := newID()
		if err != nil {
			return persistence.NewTemplateError("Create", "", err)
		}

		template.ID = id
	}

	stampCreated(&template.CreatedAt, &template.UpdatedAt)

	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workflow_templates (`+templateColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			template.ID,
			template.Name,
			template.Description,
			template.Status,
			template.CreatedBy,
			template.CreatedAt,
			template.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return persistence.ErrAlreadyExists
			}

			return fmt.Errorf("failed to insert template: %w", err)
		}

		return r.saveSteps(ctx, tx, template)
	})
	if err != nil {
		return persistence.NewTemplateError("Create", template.ID, err)
	}

	return nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	return r.get(ctx, r.db, "GetByID", id, false)
}

func (r *TemplateRepository) get(ctx context.Context, q queryer, op, id string, forUpdate bool) (*models.WorkflowTemplate, error) {
	row := q.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM workflow_templates WHERE id = $1`+lockClause(forUpdate), id)

	template, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewTemplateError(op, id, persistence.ErrTemplateNotFound)
		}

		return nil, persistence.NewTemplateError(op, id, err)
	}

	err = r.loadSteps(ctx, q, template)
	if err != nil {
		return nil, persistence.NewTemplateError(op, id, err)
	}

	return template, nil
}

func (r *TemplateRepository) List(ctx context.Context, opts persistence.ListTemplatesOptions) ([]*models.WorkflowTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM workflow_templates`
	args := make([]any, 0, 1)

	if opts.Status != nil {
		query += ` WHERE status = $1`

		args = append(args, *opts.Status)
	}

	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewTemplateError("List", "", fmt.Errorf("failed to query templates: %w", err))
	}

	defer closeRows(ctx, r.logger, rows)

	templates := make([]*models.WorkflowTemplate, 0)

	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, persistence.NewTemplateError("List", "", err)
		}

		templates = append(templates, template)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewTemplateError("List", "", fmt.Errorf("error iterating templates: %w", err))
	}

	for _, template := range templates {
		err := r.loadSteps(ctx, r.db, template)
		if err != nil {
			return nil, persistence.NewTemplateError("List", template.ID, err)
		}
	}

	return templates, nil
}

// Update locks the template row, applies fn and rewrites the template and its steps.
func (r *TemplateRepository) Update(ctx context.Context, id string, fn persistence.UpdateFunc[*models.WorkflowTemplate]) (*models.WorkflowTemplate, error) {
	var updated *models.WorkflowTemplate

	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		template, err := r.get(ctx, tx, "Update", id, true)
		if err != nil {
			return err
		}

		err = fn(template)
		if err != nil {
			return err
		}

		template.ID = id

		_, err = tx.ExecContext(ctx, `
			UPDATE workflow_templates
			SET name = $2, description = $3, status = $4, updated_at = $5
			WHERE id = $1
		`, id, template.Name, template.Description, template.Status, template.UpdatedAt)
		if err != nil {
			return persistence.NewTemplateError("Update", id, fmt.Errorf("failed to update template: %w", err))
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM workflow_steps WHERE template_id = $1`, id)
		if err != nil {
			return persistence.NewTemplateError("Update", id, fmt.Errorf("failed to delete existing steps: %w", err))
		}

		err = r.saveSteps(ctx, tx, template)
		if err != nil {
			return persistence.NewTemplateError("Update", id, err)
		}

		updated = template

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *TemplateRepository) saveSteps(ctx context.Context, tx *sql.Tx, template *models.WorkflowTemplate) error {
	for _, step := range template.Steps {
		step.TemplateID = template.ID

		assigneesJSON, err := json.Marshal(step.Assignees)
		if err != nil {
			return fmt.Errorf("failed to marshal step assignees: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO workflow_steps (template_id, id, name, description, position, step_type, assignee, assignees, estimated_duration)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			template.ID,
			step.ID,
			step.Name,
			step.Description,
			step.Position,
			step.Type,
			step.Assignee,
			assigneesJSON,
			step.EstimatedDuration,
		)
		if err != nil {
			return fmt.Errorf("failed to save step %s: %w", step.ID, err)
		}
	}

	return nil
}

func (r *TemplateRepository) loadSteps(ctx context.Context, q queryer, template *models.WorkflowTemplate) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, description, position, step_type, assignee, assignees, estimated_duration
		FROM workflow_steps
		WHERE template_id = $1
		ORDER BY position, id
	`, template.ID)
	if err != nil {
		return fmt.Errorf("failed to query workflow steps: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	steps := make([]*models.StepDef, 0)

	for rows.Next() {
		var (
			step          models.StepDef
			assigneesJSON []byte
		)

		err := rows.Scan(
			&step.ID,
			&step.Name,
			&step.Description,
			&step.Position,
			&step.Type,
			&step.Assignee,
			&assigneesJSON,
			&step.EstimatedDuration,
		)
		if err != nil {
			return fmt.Errorf("failed to scan step: %w", err)
		}

		if assigneesJSON != nil {
			err := json.Unmarshal(assigneesJSON, &step.Assignees)
			if err != nil {
				return fmt.Errorf("failed to unmarshal step assignees: %w", err)
			}
		}

		step.TemplateID = template.ID
		steps = append(steps, &step)
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("error iterating steps: %w", err)
	}

	template.Steps = steps

	return nil
}

func scanTemplate(row rowScanner) (*models.WorkflowTemplate, error) {
	var template models.WorkflowTemplate

	err := row.Scan(
		&template.ID,
		&template.Name,
		&template.Description,
		&template.Status,
		&template.CreatedBy,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &template, nil
}
