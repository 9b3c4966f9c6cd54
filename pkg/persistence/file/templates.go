package file

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/persistence"
)

// TemplateRepository handles workflow template files.
type TemplateRepository struct {
	fp    *Persistence
	store *store[models.WorkflowTemplate]
}

func (r *TemplateRepository) Create(_ context.Context, template *models.WorkflowTemplate) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	if template.ID == "" {
		id, err := newID()
		if err != nil {
			return persistence.NewTemplateError("Create", "", err)
		}

		template.ID = id
	}

	if r.store.exists(template.ID) {
		return persistence.NewTemplateError("Create", template.ID, persistence.ErrAlreadyExists)
	}

	stampCreated(&template.CreatedAt, &template.UpdatedAt)

	for _, step := range template.Steps {
		step.TemplateID = template.ID
	}

	err := r.store.write(template.ID, template)
	if err != nil {
		return persistence.NewTemplateError("Create", template.ID, err)
	}

	return nil
}

func (r *TemplateRepository) GetByID(_ context.Context, id string) (*models.WorkflowTemplate, error) {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	return r.get("GetByID", id)
}

func (r *TemplateRepository) get(op, id string) (*models.WorkflowTemplate, error) {
	template, err := r.store.read(id)
	if err != nil {
		if errors.Is(err, errRecordNotFound) {
			return nil, persistence.NewTemplateError(op, id, persistence.ErrTemplateNotFound)
		}

		return nil, persistence.NewTemplateError(op, id, err)
	}

	return template, nil
}

func (r *TemplateRepository) List(_ context.Context, opts persistence.ListTemplatesOptions) ([]*models.WorkflowTemplate, error) {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	all, err := r.store.all()
	if err != nil {
		return nil, persistence.NewTemplateError("List", "", err)
	}

	templates := make([]*models.WorkflowTemplate, 0, len(all))

	for _, template := range all {
		if opts.MatchTemplate(template) {
			templates = append(templates, template)
		}
	}

	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].CreatedAt.Before(templates[j].CreatedAt)
	})

	return templates, nil
}

func (r *TemplateRepository) Update(_ context.Context, id string, fn persistence.UpdateFunc[*models.WorkflowTemplate]) (*models.WorkflowTemplate, error) {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	template, err := r.get("Update", id)
	if err != nil {
		return nil, err
	}

	err = fn(template)
	if err != nil {
		return nil, err
	}

	template.ID = id

	for _, step := range template.Steps {
		step.TemplateID = id
	}

	err = r.store.write(id, template)
	if err != nil {
		return nil, persistence.NewTemplateError("Update", id, err)
	}

	return template, nil
}

func stampCreated(createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()

	if createdAt.IsZero() {
		*createdAt = now
	}

	if updatedAt.IsZero() {
		*updatedAt = *createdAt
	}
}
