package file

import (
	"context"
	"errors"
	"sort"

	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/persistence"
)

// SubmissionRepository handles submission files.
type SubmissionRepository struct {
	fp    *Persistence
	store *store[models.Submission]
}

// Create runs guard and assigns the next Sequence while holding the store mutex,
// so two concurrent creations for the same submittable cannot both pass.
func (r *SubmissionRepository) Create(_ context.Context, submission *models.Submission, guard persistence.CreateSubmissionGuard) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	template, err := r.fp.templates.get("Create", submission.TemplateID)
	if err != nil {
		return err
	}

	all, err := r.store.all()
	if err != nil {
		return persistence.NewSubmissionError("Create", submission.ID, err)
	}

	var (
		existing []*models.Submission
		sequence int64
	)

	for _, sub := range all {
		sequence = max(sequence, sub.Sequence)

		if sub.TemplateID == submission.TemplateID && sub.Submittable == submission.Submittable {
			existing = append(existing, sub)
		}
	}

	if guard != nil {
		err = guard(template, existing)
		if err != nil {
			return err
		}
	}

	if submission.ID == "" {
		id, err := newID()
		if err != nil {
			return persistence.NewSubmissionError("Create", "", err)
		}

		submission.ID = id
	}

	if r.store.exists(submission.ID) {
		return persistence.NewSubmissionError("Create", submission.ID, persistence.ErrAlreadyExists)
	}

	submission.Sequence = sequence + 1
	stampCreated(&submission.SubmittedAt, &submission.UpdatedAt)

	err = r.store.write(submission.ID, submission)
	if err != nil {
		return persistence.NewSubmissionError("Create", submission.ID, err)
	}

	return nil
}

func (r *SubmissionRepository) GetByID(_ context.Context, id string) (*models.Submission, error) {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	return r.get("GetByID", id)
}

func (r *SubmissionRepository) get(op, id string) (*models.Submission, error) {
	submission, err := r.store.read(id)
	if err != nil {
		if errors.Is(err, errRecordNotFound) {
			return nil, persistence.NewSubmissionError(op, id, persistence.ErrSubmissionNotFound)
		}

		return nil, persistence.NewSubmissionError(op, id, err)
	}

	return submission, nil
}

func (r *SubmissionRepository) List(_ context.Context, opts persistence.ListSubmissionsOptions) ([]*models.Submission, error) {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	all, err := r.store.all()
	if err != nil {
		return nil, persistence.NewSubmissionError("List", "", err)
	}

	submissions := make([]*models.Submission, 0, len(all))

	for _, submission := range all {
		if opts.MatchSubmission(submission) {
			submissions = append(submissions, submission)
		}
	}

	sort.Slice(submissions, func(i, j int) bool {
		return submissions[i].Sequence < submissions[j].Sequence
	})

	return submissions, nil
}

func (r *SubmissionRepository) Update(_ context.Context, id string, fn persistence.UpdateFunc[*models.Submission]) (*models.Submission, error) {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	submission, err := r.get("Update", id)
	if err != nil {
		return nil, err
	}

	sequence := submission.Sequence

	err = fn(submission)
	if err != nil {
		return nil, err
	}

	submission.ID = id
	submission.Sequence = sequence

	err = r.store.write(id, submission)
	if err != nil {
		return nil, persistence.NewSubmissionError("Update", id, err)
	}

	return submission, nil
}
