// Package document implements the document lifecycle and the exclusive edit lock.
//
// The package has two layers. Publish, Lock, Unlock and Archive are bare state
// machine moves with no authorization. LockDocument and UnlockDocument are the
// guarded operations callers normally use: they consult a CapabilityChecker and
// report routine contention as a LockResult instead of an error.
package document

import (
	"time"

	"github.com/dukex/signoff/pkg/fsm"
	"github.com/dukex/signoff/pkg/models"
)

type documentTransition = fsm.Transition[models.DocumentStatus, *lockChange]

type lockChange struct {
	doc      *models.Document
	actor    *string
	reason   *string
	unlockAt *time.Time
	now      time.Time
}

var lifecycle = fsm.NewTable[models.DocumentStatus, models.DocumentOperation, *lockChange]("document").
	Add(models.DocumentPublish, []models.DocumentStatus{models.DocumentStatusDraft}, documentTransition{
		To: models.DocumentStatusPublished,
	}).
	Add(models.DocumentLock, []models.DocumentStatus{models.DocumentStatusPublished}, documentTransition{
		To: models.DocumentStatusLocked,
		Effect: func(c *lockChange) {
			c.doc.Lock.Set(c.actor, c.now, c.reason, c.unlockAt)
		},
	}).
	Add(models.DocumentUnlock, []models.DocumentStatus{models.DocumentStatusLocked}, documentTransition{
		To: models.DocumentStatusPublished,
		Effect: func(c *lockChange) {
			c.doc.Lock.Clear()
		},
	}).
	Add(models.DocumentArchive, []models.DocumentStatus{models.DocumentStatusPublished, models.DocumentStatusLocked}, documentTransition{
		To: models.DocumentStatusArchived,
		Effect: func(c *lockChange) {
			c.doc.Lock.Clear()
		},
	})

func apply(c *lockChange, op models.DocumentOperation) error {
	transition, err := lifecycle.Fire(c.doc.Lock.Status, op, c)
	if err != nil {
		return err
	}

	c.doc.Lock.Status = transition.To

	if transition.Effect != nil {
		transition.Effect(c)
	}

	return nil
}

// New returns a draft document.
func New(title, ownerID string) *models.Document {
	return &models.Document{
		Title:   title,
		OwnerID: ownerID,
		Lock:    models.LockState{Status: models.DocumentStatusDraft},
	}
}

// Publish moves a draft document to published.
func Publish(doc *models.Document) error {
	return apply(&lockChange{doc: doc}, models.DocumentPublish)
}

// Lock moves a published document to locked and stamps LockedAt. It performs no
// authorization.
func Lock(doc *models.Document, now time.Time) error {
	return apply(&lockChange{doc: doc, now: now}, models.DocumentLock)
}

// Unlock moves a locked document back to published and clears every lock field.
// It performs no authorization.
func Unlock(doc *models.Document) error {
	return apply(&lockChange{doc: doc}, models.DocumentUnlock)
}

// Archive retires a published or locked document. Any lock is released.
func Archive(doc *models.Document) error {
	return apply(&lockChange{doc: doc}, models.DocumentArchive)
}

// PermittedOperations lists the bare operations defined from doc's current state.
func PermittedOperations(doc *models.Document) []models.DocumentOperation {
	return lifecycle.Permitted(doc.Lock.Status)
}

// IsLocked reports whether doc is currently locked.
func IsLocked(doc *models.Document) bool {
	return doc.Lock.Status == models.DocumentStatusLocked
}

// LockedByUser reports whether actor holds doc's lock.
func LockedByUser(doc *models.Document, actor string) bool {
	return IsLocked(doc) && doc.Lock.LockedBy != nil && *doc.Lock.LockedBy == actor
}

// LockExpired reports whether doc is locked with a scheduled unlock in the past.
func LockExpired(doc *models.Document, now time.Time) bool {
	return IsLocked(doc) && doc.Lock.UnlockScheduledAt != nil && doc.Lock.UnlockScheduledAt.Before(now)
}
