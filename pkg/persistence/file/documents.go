package file

import (
	"context"
	"errors"
	"sort"

	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/persistence"
)

// DocumentRepository handles document files.
type DocumentRepository struct {
	fp    *Persistence
	store *store[models.Document]
}

func (r *DocumentRepository) Create(_ context.Context, doc *models.Document) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	if doc.ID == "" {
		id, err := newID()
		if err != nil {
			return persistence.NewDocumentError("Create", "", err)
		}

		doc.ID = id
	}

	if r.store.exists(doc.ID) {
		return persistence.NewDocumentError("Create", doc.ID, persistence.ErrAlreadyExists)
	}

	stampCreated(&doc.CreatedAt, &doc.UpdatedAt)

	err := r.store.write(doc.ID, doc)
	if err != nil {
		return persistence.NewDocumentError("Create", doc.ID, err)
	}

	return nil
}

func (r *DocumentRepository) GetByID(_ context.Context, id string) (*models.Document, error) {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	return r.get("GetByID", id)
}

func (r *DocumentRepository) get(op, id string) (*models.Document, error) {
	doc, err := r.store.read(id)
	if err != nil {
		if errors.Is(err, errRecordNotFound) {
			return nil, persistence.NewDocumentError(op, id, persistence.ErrDocumentNotFound)
		}

		return nil, persistence.NewDocumentError(op, id, err)
	}

	return doc, nil
}

func (r *DocumentRepository) List(_ context.Context, opts persistence.ListDocumentsOptions) ([]*models.Document, error) {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	all, err := r.store.all()
	if err != nil {
		return nil, persistence.NewDocumentError("List", "", err)
	}

	docs := make([]*models.Document, 0, len(all))

	for _, doc := range all {
		if opts.MatchDocument(doc) {
			docs = append(docs, doc)
		}
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})

	return docs, nil
}

func (r *DocumentRepository) Update(_ context.Context, id string, fn persistence.UpdateFunc[*models.Document]) (*models.Document, error) {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	doc, err := r.get("Update", id)
	if err != nil {
		return nil, err
	}

	err = fn(doc)
	if err != nil {
		return nil, err
	}

	doc.ID = id

	err = r.store.write(id, doc)
	if err != nil {
		return nil, persistence.NewDocumentError("Update", id, err)
	}

	return doc, nil
}
