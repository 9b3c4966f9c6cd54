package document

import (
	"context"
	"time"

	"github.com/dukex/signoff/pkg/fsm"
	"github.com/dukex/signoff/pkg/models"
)

// CapabilityChecker answers the authorization questions the lock guards need.
// The engine never decides authorization itself.
type CapabilityChecker interface {
	HasWriteCapability(ctx context.Context, actor string, doc *models.Document) bool
	IsOwner(ctx context.Context, actor string, doc *models.Document) bool
	IsAdministrator(ctx context.Context, actor string) bool
}

// FailureReason explains why a guarded lock operation did nothing.
type FailureReason string

const (
	ReasonAlreadyLocked FailureReason = "already_locked"
	ReasonNotAuthorized FailureReason = "not_authorized"
	ReasonNotLocked     FailureReason = "not_locked"
	ReasonInvalidState  FailureReason = "invalid_state"
)

// LockResult is the outcome of LockDocument or UnlockDocument.
type LockResult struct {
	OK       bool          `json:"ok"`
	Reason   FailureReason `json:"reason,omitempty"`
	LockedBy *string       `json:"locked_by,omitempty"` // current holder when Reason is already_locked
}

func failed(reason FailureReason, doc *models.Document) LockResult {
	result := LockResult{Reason: reason}
	if reason == ReasonAlreadyLocked && doc.Lock.LockedBy != nil {
		holder := *doc.Lock.LockedBy
		result.LockedBy = &holder
	}

	return result
}

// LockOptions are the optional inputs of LockDocument.
type LockOptions struct {
	Reason          *string
	ScheduledUnlock *time.Time
}

// CanLock reports whether actor may lock doc: it is not locked and actor is the
// owner, an administrator or holds write capability.
func CanLock(ctx context.Context, checker CapabilityChecker, doc *models.Document, actor string) bool {
	return lockRefusal(ctx, checker, doc, actor) == ""
}

// CanUnlock reports whether actor may unlock doc: it is locked and actor is the
// lock holder, the owner or an administrator.
func CanUnlock(ctx context.Context, checker CapabilityChecker, doc *models.Document, actor string) bool {
	return unlockRefusal(ctx, checker, doc, actor) == ""
}

// EditableBy reports whether actor may edit doc right now. An unlocked document
// is editable with write capability; a locked one only by its holder.
func EditableBy(ctx context.Context, checker CapabilityChecker, doc *models.Document, actor string) bool {
	switch doc.Lock.Status {
	case models.DocumentStatusLocked:
		return LockedByUser(doc, actor)
	case models.DocumentStatusArchived:
		return false
	default:
		return checker.HasWriteCapability(ctx, actor, doc)
	}
}

// LockDocument takes the exclusive edit lock for actor. Contention and missing
// rights are reported in the result; doc is only modified when OK is true.
func LockDocument(ctx context.Context, checker CapabilityChecker, doc *models.Document, actor string, opts LockOptions, now time.Time) LockResult {
	if reason := lockRefusal(ctx, checker, doc, actor); reason != "" {
		return failed(reason, doc)
	}

	holder := actor

	err := apply(&lockChange{doc: doc, actor: &holder, reason: opts.Reason, unlockAt: opts.ScheduledUnlock, now: now}, models.DocumentLock)
	if err != nil {
		return failed(ReasonInvalidState, doc)
	}

	return LockResult{OK: true, LockedBy: &holder}
}

// UnlockDocument releases doc's lock on behalf of actor and clears every lock field.
func UnlockDocument(ctx context.Context, checker CapabilityChecker, doc *models.Document, actor string) LockResult {
	if reason := unlockRefusal(ctx, checker, doc, actor); reason != "" {
		return failed(reason, doc)
	}

	if err := apply(&lockChange{doc: doc}, models.DocumentUnlock); err != nil {
		return failed(ReasonNotLocked, doc)
	}

	return LockResult{OK: true}
}

func lockRefusal(ctx context.Context, checker CapabilityChecker, doc *models.Document, actor string) FailureReason {
	if IsLocked(doc) {
		return ReasonAlreadyLocked
	}

	if actor == "" || !(checker.IsOwner(ctx, actor, doc) ||
		checker.IsAdministrator(ctx, actor) ||
		checker.HasWriteCapability(ctx, actor, doc)) {
		return ReasonNotAuthorized
	}

	if _, ok := lifecycle.Lookup(doc.Lock.Status, models.DocumentLock); !ok {
		return ReasonInvalidState
	}

	return ""
}

func unlockRefusal(ctx context.Context, checker CapabilityChecker, doc *models.Document, actor string) FailureReason {
	if !IsLocked(doc) {
		return ReasonNotLocked
	}

	if actor == "" || !(LockedByUser(doc, actor) ||
		checker.IsOwner(ctx, actor, doc) ||
		checker.IsAdministrator(ctx, actor)) {
		return ReasonNotAuthorized
	}

	return ""
}

// IsInvalidTransition re-exports the shared check for callers of the bare operations.
func IsInvalidTransition(err error) bool {
	return fsm.IsInvalidTransition(err)
}
