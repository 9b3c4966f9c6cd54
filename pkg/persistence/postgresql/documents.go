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
)

// DocumentRepository handles document rows, including the embedded lock group.
type DocumentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const documentColumns = `
	id, title, owner_id, writers, status, locked_by, locked_at, lock_reason,
	unlock_scheduled_at, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		id, err := newID()
		if err != nil {
			return persistence.NewDocumentError("Create", "", err)
		}

		doc.ID = id
	}

	stampCreated(&doc.CreatedAt, &doc.UpdatedAt)

	writersJSON, err := json.Marshal(doc.Writers)
	if err != nil {
		return persistence.NewDocumentError("Create", doc.ID, fmt.Errorf("failed to marshal writers: %w", err))
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		doc.ID,
		doc.Title,
		doc.OwnerID,
		writersJSON,
		doc.Lock.Status,
		doc.Lock.LockedBy,
		doc.Lock.LockedAt,
		doc.Lock.LockReason,
		doc.Lock.UnlockScheduledAt,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewDocumentError("Create", doc.ID, persistence.ErrAlreadyExists)
		}

		return persistence.NewDocumentError("Create", doc.ID, fmt.Errorf("failed to insert document: %w", err))
	}

	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	return r.get(ctx, r.db, "GetByID", id, false)
}

func (r *DocumentRepository) get(ctx context.Context, q queryer, op, id string, forUpdate bool) (*models.Document, error) {
	row := q.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`+lockClause(forUpdate), id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewDocumentError(op, id, persistence.ErrDocumentNotFound)
		}

		return nil, persistence.NewDocumentError(op, id, err)
	}

	return doc, nil
}

func (r *DocumentRepository) List(ctx context.Context, opts persistence.ListDocumentsOptions) ([]*models.Document, error) {
	var (
		conditions []string
		args       []any
	)

	if opts.Status != nil {
		args = append(args, *opts.Status)
		conditions = append(conditions, "status = $"+strconv.Itoa(len(args)))
	}

	if opts.OwnerID != "" {
		args = append(args, opts.OwnerID)
		conditions = append(conditions, "owner_id = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + documentColumns + ` FROM documents`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}

	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewDocumentError("List", "", fmt.Errorf("failed to query documents: %w", err))
	}

	defer closeRows(ctx, r.logger, rows)

	docs := make([]*models.Document, 0)

	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, persistence.NewDocumentError("List", "", err)
		}

		docs = append(docs, doc)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewDocumentError("List", "", fmt.Errorf("error iterating documents: %w", err))
	}

	return docs, nil
}

// Update locks the document row, applies fn and writes the whole lock group back
// in a single statement.
func (r *DocumentRepository) Update(ctx context.Context, id string, fn persistence.UpdateFunc[*models.Document]) (*models.Document, error) {
	var updated *models.Document

	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		doc, err := r.get(ctx, tx, "Update", id, true)
		if err != nil {
			return err
		}

		err = fn(doc)
		if err != nil {
			return err
		}

		doc.ID = id

		writersJSON, err := json.Marshal(doc.Writers)
		if err != nil {
			return persistence.NewDocumentError("Update", id, fmt.Errorf("failed to marshal writers: %w", err))
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE documents SET
				title = $2,
				owner_id = $3,
				writers = $4,
				status = $5,
				locked_by = $6,
				locked_at = $7,
				lock_reason = $8,
				unlock_scheduled_at = $9,
				updated_at = $10
			WHERE id = $1
		`,
			id,
			doc.Title,
			doc.OwnerID,
			writersJSON,
			doc.Lock.Status,
			doc.Lock.LockedBy,
			doc.Lock.LockedAt,
			doc.Lock.LockReason,
			doc.Lock.UnlockScheduledAt,
			doc.UpdatedAt,
		)
		if err != nil {
			return persistence.NewDocumentError("Update", id, fmt.Errorf("failed to update document: %w", err))
		}

		updated = doc

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc         models.Document
		writersJSON []byte
	)

	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.OwnerID,
		&writersJSON,
		&doc.Lock.Status,
		&doc.Lock.LockedBy,
		&doc.Lock.LockedAt,
		&doc.Lock.LockReason,
		&doc.Lock.UnlockScheduledAt,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if writersJSON != nil {
		err := json.Unmarshal(writersJSON, &doc.Writers)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal writers: %w", err)
		}
	}

	return &doc, nil
}
