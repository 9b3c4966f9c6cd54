package models

import "time"

// DocumentStatus represents the lifecycle state of a document.
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "draft"
	DocumentStatusPublished DocumentStatus = "published"
	DocumentStatusLocked    DocumentStatus = "locked"
	DocumentStatusArchived  DocumentStatus = "archived"
)

// DocumentOperation names a transition of the document state machine.
type DocumentOperation string

const (
	DocumentPublish DocumentOperation = "publish"
	DocumentLock    DocumentOperation = "lock"
	DocumentUnlock  DocumentOperation = "unlock"
	DocumentArchive DocumentOperation = "archive"
)

// LockState is embedded in the document record. LockedBy, LockedAt, LockReason and
// UnlockScheduledAt form one group: they are only ever written together.
type LockState struct {
	Status            DocumentStatus `json:"status"`
	LockedBy          *string        `json:"locked_by,omitempty"`
	LockedAt          *time.Time     `json:"locked_at,omitempty"`
	LockReason        *string        `json:"lock_reason,omitempty"`
	UnlockScheduledAt *time.Time     `json:"unlock_scheduled_at,omitempty"`
}

// Set writes the full lock group at once.
func (l *LockState) Set(by *string, at time.Time, reason *string, unlockAt *time.Time) {
	l.LockedBy = clonePtr(by)
	l.LockedAt = &at
	l.LockReason = clonePtr(reason)
	l.UnlockScheduledAt = clonePtr(unlockAt)
}

// Clear resets the full lock group at once.
func (l *LockState) Clear() {
	l.LockedBy = nil
	l.LockedAt = nil
	l.LockReason = nil
	l.UnlockScheduledAt = nil
}

// Document is the subset of a managed document the engine works with.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"             validate:"required"`
	OwnerID   string    `json:"owner_id"          validate:"required"`
	Writers   []string  `json:"writers,omitempty"`
	Lock      LockState `json:"lock"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubmittableRef implements Submittable.
func (d *Document) SubmittableRef() SubmittableRef {
	return SubmittableRef{Kind: SubmittableDocument, ID: d.ID}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}

	clone := *d

	if d.Writers != nil {
		clone.Writers = append([]string(nil), d.Writers...)
	}

	clone.Lock.LockedBy = clonePtr(d.Lock.LockedBy)
	clone.Lock.LockedAt = clonePtr(d.Lock.LockedAt)
	clone.Lock.LockReason = clonePtr(d.Lock.LockReason)
	clone.Lock.UnlockScheduledAt = clonePtr(d.Lock.UnlockScheduledAt)

	return &clone
}
