package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/persistence"
	"github.com/lib/pq"
)

// SubmissionRepository handles submission rows.
type SubmissionRepository struct {
	db        *sql.DB
	logger    *slog.Logger
	templates *TemplateRepository
}

const submissionColumns = `
	id, sequence, template_id, submittable_kind, submittable_id, submitted_by, status, priority,
	current_step_id, submitted_at, started_at, decided_at, completed_at, decision, decision_comment,
	decided_by, due_date, approvals, notes, updated_at`

// Create locks the template row so concurrent creations for the same template
// serialise, then runs guard against the stored submissions before inserting.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission, guard persistence.CreateSubmissionGuard) error {
	if submission.ID == "" {
		id, err := newID()
		if err != nil {
			return persistence.NewSubmissionError("Create", "", err)
		}

		submission.ID = id
	}

	stampCreated(&submission.SubmittedAt, &submission.UpdatedAt)

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		template, err := r.templates.get(ctx, tx, "Create", submission.TemplateID, true)
		if err != nil {
			return err
		}

		existing, err := r.list(ctx, tx, persistence.ListSubmissionsOptions{
			TemplateID:  submission.TemplateID,
			Submittable: &submission.Submittable,
		})
		if err != nil {
			return persistence.NewSubmissionError("Create", submission.ID, err)
		}

		if guard != nil {
			err = guard(template, existing)
			if err != nil {
				return err
			}
		}

		approvalsJSON, err := json.Marshal(submission.Approvals)
		if err != nil {
			return persistence.NewSubmissionError("Create", submission.ID, fmt.Errorf("failed to marshal approvals: %w", err))
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO workflow_submissions (
				id, template_id, submittable_kind, submittable_id, submitted_by, status, priority,
				current_step_id, submitted_at, started_at, decided_at, completed_at, decision, decision_comment,
				decided_by, due_date, approvals, notes, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			RETURNING sequence
		`,
			submission.ID,
			submission.TemplateID,
			submission.Submittable.Kind,
			submission.Submittable.ID,
			submission.SubmittedBy,
			submission.Status,
			submission.Priority,
			submission.CurrentStepID,
			submission.SubmittedAt,
			submission.StartedAt,
			submission.DecidedAt,
			submission.CompletedAt,
			submission.Decision,
			submission.DecisionComment,
			submission.DecidedBy,
			submission.DueDate,
			approvalsJSON,
			submission.Notes,
			submission.UpdatedAt,
		).Scan(&submission.Sequence)
		if err != nil {
			if isUniqueViolation(err) {
				return persistence.NewSubmissionError("Create", submission.ID, persistence.ErrAlreadyExists)
			}

			return persistence.NewSubmissionError("Create", submission.ID, fmt.Errorf("failed to insert submission: %w", err))
		}

		return nil
	})
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	return r.get(ctx, r.db, "GetByID", id, false)
}

func (r *SubmissionRepository) get(ctx context.Context, q queryer, op, id string, forUpdate bool) (*models.Submission, error) {
	row := q.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM workflow_submissions WHERE id = $1`+lockClause(forUpdate), id)

	submission, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewSubmissionError(op, id, persistence.ErrSubmissionNotFound)
		}

		return nil, persistence.NewSubmissionError(op, id, err)
	}

	return submission, nil
}

func (r *SubmissionRepository) List(ctx context.Context, opts persistence.ListSubmissionsOptions) ([]*models.Submission, error) {
	submissions, err := r.list(ctx, r.db, opts)
	if err != nil {
		return nil, persistence.NewSubmissionError("List", "", err)
	}

	return submissions, nil
}

func (r *SubmissionRepository) list(ctx context.Context, q queryer, opts persistence.ListSubmissionsOptions) ([]*models.Submission, error) {
	var (
		conditions []string
		args       []any
	)

	where := func(condition string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, strings.ReplaceAll(condition, "?", "$"+strconv.Itoa(len(args))))
	}

	if opts.TemplateID != "" {
		where("template_id = ?", opts.TemplateID)
	}

	if opts.Submittable != nil {
		where("submittable_kind = ?", opts.Submittable.Kind)
		where("submittable_id = ?", opts.Submittable.ID)
	}

	if opts.SubmittedBy != "" {
		where("submitted_by = ?", opts.SubmittedBy)
	}

	if len(opts.Statuses) > 0 {
		statuses := make([]string, 0, len(opts.Statuses))
		for _, status := range opts.Statuses {
			statuses = append(statuses, string(status))
		}

		where("status = ANY(?)", pq.Array(statuses))
	}

	query := `SELECT ` + submissionColumns + ` FROM workflow_submissions`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}

	query += ` ORDER BY sequence`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	submissions := make([]*models.Submission, 0)

	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}

		submissions = append(submissions, submission)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	return submissions, nil
}

// Update locks the submission row, applies fn and writes the result back.
// Identity, template, submittable and sequence are never rewritten.
func (r *SubmissionRepository) Update(ctx context.Context, id string, fn persistence.UpdateFunc[*models.Submission]) (*models.Submission, error) {
	var updated *models.Submission

	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		submission, err := r.get(ctx, tx, "Update", id, true)
		if err != nil {
			return err
		}

		err = fn(submission)
		if err != nil {
			return err
		}

		approvalsJSON, err := json.Marshal(submission.Approvals)
		if err != nil {
			return persistence.NewSubmissionError("Update", id, fmt.Errorf("failed to marshal approvals: %w", err))
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE workflow_submissions SET
				submitted_by = $2,
				status = $3,
				priority = $4,
				current_step_id = $5,
				started_at = $6,
				decided_at = $7,
				completed_at = $8,
				decision = $9,
				decision_comment = $10,
				decided_by = $11,
				due_date = $12,
				approvals = $13,
				notes = $14,
				updated_at = $15
			WHERE id = $1
		`,
			id,
			submission.SubmittedBy,
			submission.Status,
			submission.Priority,
			submission.CurrentStepID,
			submission.StartedAt,
			submission.DecidedAt,
			submission.CompletedAt,
			submission.Decision,
			submission.DecisionComment,
			submission.DecidedBy,
			submission.DueDate,
			approvalsJSON,
			submission.Notes,
			submission.UpdatedAt,
		)
		if err != nil {
			return persistence.NewSubmissionError("Update", id, fmt.Errorf("failed to update submission: %w", err))
		}

		reloaded, err := r.get(ctx, tx, "Update", id, false)
		if err != nil {
			return err
		}

		updated = reloaded

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var (
		submission    models.Submission
		approvalsJSON []byte
	)

	err := row.Scan(
		&submission.ID,
		&submission.Sequence,
		&submission.TemplateID,
		&submission.Submittable.Kind,
		&submission.Submittable.ID,
		&submission.SubmittedBy,
		&submission.Status,
		&submission.Priority,
		&submission.CurrentStepID,
		&submission.SubmittedAt,
		&submission.StartedAt,
		&submission.DecidedAt,
		&submission.CompletedAt,
		&submission.Decision,
		&submission.DecisionComment,
		&submission.DecidedBy,
		&submission.DueDate,
		&approvalsJSON,
		&submission.Notes,
		&submission.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if approvalsJSON != nil {
		err := json.Unmarshal(approvalsJSON, &submission.Approvals)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal approvals: %w", err)
		}
	}

	return &submission, nil
}
