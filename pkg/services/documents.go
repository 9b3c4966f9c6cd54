package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/signoff/pkg/document"
	"github.com/dukex/signoff/pkg/eventbus"
	"github.com/dukex/signoff/pkg/events"
	"github.com/dukex/signoff/pkg/models"
	"github.com/dukex/signoff/pkg/otelhelper"
	"github.com/dukex/signoff/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// errLockRefused aborts an Update whose guarded lock call did nothing, so no
// write happens. It never leaves this file.
var errLockRefused = errors.New("lock refused")

type Documents struct {
	base

	checker document.CapabilityChecker
}

// NewDocuments creates a new document service.
func NewDocuments(p persistence.Persistence, checker document.CapabilityChecker, publisher eventbus.EventPublisher, opts ...Option) *Documents {
	return &Documents{
		base:    newBase(p, publisher, "documents", opts),
		checker: checker,
	}
}

// CreateDocumentRequest contains the fields of a new draft document.
type CreateDocumentRequest struct {
	Title   string   `json:"title"    validate:"required"`
	OwnerID string   `json:"owner_id" validate:"required"`
	Writers []string `json:"writers"  validate:"omitempty,dive,required"`
}

func (s *Documents) Create(ctx context.Context, req CreateDocumentRequest) (*models.Document, error) {
	err := s.validate.StructCtx(ctx, req)
	if err != nil {
		return nil, invalid("Documents.Create", err)
	}

	now := s.clock()
	doc := document.New(req.Title, req.OwnerID)
	doc.Writers = req.Writers
	doc.CreatedAt = now
	doc.UpdatedAt = now

	err = s.persistence.Documents().Create(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	return doc, nil
}

func (s *Documents) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.persistence.Documents().GetByID(ctx, id)
}

func (s *Documents) List(ctx context.Context, opts persistence.ListDocumentsOptions) ([]*models.Document, error) {
	return s.persistence.Documents().List(ctx, opts)
}

// Publish moves a draft to published. The actor needs write capability.
func (s *Documents) Publish(ctx context.Context, id, actor string) (*models.Document, error) {
	return s.transition(ctx, id, actor, models.DocumentPublish, document.Publish)
}

// Archive retires a document and releases any lock. The actor must be the owner
// or an administrator.
func (s *Documents) Archive(ctx context.Context, id, actor string) (*models.Document, error) {
	return s.transition(ctx, id, actor, models.DocumentArchive, document.Archive)
}

func (s *Documents) transition(ctx context.Context, id, actor string, op models.DocumentOperation, move func(*models.Document) error) (*models.Document, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "documents."+string(op),
		attribute.String(otelhelper.DocumentIDKey, id),
		attribute.String(otelhelper.ActorKey, actor),
	)
	defer span.End()

	now := s.clock()

	doc, err := s.persistence.Documents().Update(ctx, id, func(current *models.Document) error {
		if !s.allowed(ctx, op, current, actor) {
			return fmt.Errorf("%w: %s on document %s", ErrNotAuthorized, op, id)
		}

		err := move(current)
		if err != nil {
			return err
		}

		current.UpdatedAt = now

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	s.log(ctx).InfoContext(ctx, "document transitioned", "document_id", id, "operation", op, "status", doc.Lock.Status)

	return doc, nil
}

func (s *Documents) allowed(ctx context.Context, op models.DocumentOperation, doc *models.Document, actor string) bool {
	if actor == "" {
		return false
	}

	if op == models.DocumentArchive {
		return s.checker.IsOwner(ctx, actor, doc) || s.checker.IsAdministrator(ctx, actor)
	}

	return s.checker.HasWriteCapability(ctx, actor, doc)
}

// LockRequest carries the optional inputs of a lock call.
type LockRequest struct {
	Reason          *string    `json:"reason,omitempty"`
	ScheduledUnlock *time.Time `json:"unlock_scheduled_at,omitempty"`
}

// Lock takes the exclusive edit lock. Contention and missing rights come back
// in the LockResult with a nil error; errors are reserved for lookup and storage
// failures.
func (s *Documents) Lock(ctx context.Context, id, actor string, req LockRequest) (document.LockResult, *models.Document, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "documents.lock",
		attribute.String(otelhelper.DocumentIDKey, id),
		attribute.String(otelhelper.ActorKey, actor),
	)
	defer span.End()

	now := s.clock()

	var result document.LockResult

	doc, err := s.persistence.Documents().Update(ctx, id, func(current *models.Document) error {
		result = document.LockDocument(ctx, s.checker, current, actor, document.LockOptions{
			Reason:          req.Reason,
			ScheduledUnlock: req.ScheduledUnlock,
		}, now)
		if !result.OK {
			return errLockRefused
		}

		current.UpdatedAt = now

		return nil
	})

	var lock models.LockState
	if doc != nil {
		lock = doc.Lock
	}

	return s.lockOutcome(ctx, span, id, actor, events.DocumentLockedEvent, result, lock, doc, err, now)
}

// Unlock releases the lock on behalf of actor.
func (s *Documents) Unlock(ctx context.Context, id, actor string) (document.LockResult, *models.Document, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "documents.unlock",
		attribute.String(otelhelper.DocumentIDKey, id),
		attribute.String(otelhelper.ActorKey, actor),
	)
	defer span.End()

	now := s.clock()

	var (
		result   document.LockResult
		previous models.LockState
	)

	doc, err := s.persistence.Documents().Update(ctx, id, func(current *models.Document) error {
		previous = current.Clone().Lock
		result = document.UnlockDocument(ctx, s.checker, current, actor)
		if !result.OK {
			return errLockRefused
		}

		current.UpdatedAt = now

		return nil
	})

	return s.lockOutcome(ctx, span, id, actor, events.DocumentUnlockedEvent, result, previous, doc, err, now)
}

// ReleaseExpired unlocks, as actor, every locked document whose scheduled unlock
// time has passed. Each document is re-checked under its row lock, so a lock
// renewed in the meantime is left alone. Returns the IDs released.
func (s *Documents) ReleaseExpired(ctx context.Context, actor string) ([]string, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "documents.release_expired", attribute.String(otelhelper.ActorKey, actor))
	defer span.End()

	locked := models.DocumentStatusLocked

	docs, err := s.persistence.Documents().List(ctx, persistence.ListDocumentsOptions{Status: &locked})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to list locked documents: %w", err)
	}

	now := s.clock()
	released := make([]string, 0)

	for _, candidate := range docs {
		if !document.LockExpired(candidate, now) {
			continue
		}

		var (
			result   document.LockResult
			previous models.LockState
		)

		_, err := s.persistence.Documents().Update(ctx, candidate.ID, func(current *models.Document) error {
			if !document.LockExpired(current, now) {
				return errLockRefused
			}

			previous = current.Clone().Lock
			result = document.UnlockDocument(ctx, s.checker, current, actor)
			if !result.OK {
				return errLockRefused
			}

			current.UpdatedAt = now

			return nil
		})
		if err != nil {
			if errors.Is(err, errLockRefused) {
				if result.Reason != "" {
					s.log(ctx).WarnContext(ctx, "expired lock not released", "document_id", candidate.ID, "reason", result.Reason)
				}

				continue
			}

			otelhelper.SetError(span, err)

			return released, fmt.Errorf("failed to release document %s: %w", candidate.ID, err)
		}

		released = append(released, candidate.ID)
		s.log(ctx).InfoContext(ctx, "expired lock released", "document_id", candidate.ID, "locked_by", deref(previous.LockedBy))
		s.emit(ctx, candidate.ID, events.DocumentLockChanged{
			BaseEvent:         s.eventBase(events.DocumentUnlockExpiredEvent, actor, now),
			DocumentID:        candidate.ID,
			LockedBy:          previous.LockedBy,
			LockReason:        previous.LockReason,
			UnlockScheduledAt: previous.UnlockScheduledAt,
		})
	}

	span.SetAttributes(attribute.Int("signoff.released.count", len(released)))

	return released, nil
}

// Editability answers whether an actor may edit a document right now.
type Editability struct {
	Editable bool    `json:"editable"`
	LockedBy *string `json:"locked_by,omitempty"`
	// AwaitingApproval is the submission currently waiting for approval of this
	// document, if any. Such a document is not editable.
	AwaitingApproval *string `json:"awaiting_approval,omitempty"`
}

func (s *Documents) Editable(ctx context.Context, id, actor string) (*Editability, error) {
	doc, err := s.persistence.Documents().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ref := doc.SubmittableRef()

	waiting, err := s.persistence.Submissions().List(ctx, persistence.ListSubmissionsOptions{
		Submittable: &ref,
		Statuses:    []models.SubmissionStatus{models.SubmissionStatusWaitingForApproval},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	result := &Editability{
		Editable: document.EditableBy(ctx, s.checker, doc, actor),
		LockedBy: doc.Lock.LockedBy,
	}

	if len(waiting) > 0 {
		result.Editable = false
		result.AwaitingApproval = &waiting[0].ID
	}

	return result, nil
}

// lockOutcome turns the Update result of a guarded lock call into the public
// return values. lock is the lock group the event reports.
func (s *Documents) lockOutcome(ctx context.Context, span trace.Span, id, actor string, eventType events.EventType,
	result document.LockResult, lock models.LockState, doc *models.Document, err error, now time.Time,
) (document.LockResult, *models.Document, error) {
	if err != nil {
		if !errors.Is(err, errLockRefused) {
			otelhelper.SetError(span, err)

			return document.LockResult{}, nil, err
		}

		span.SetAttributes(attribute.String(otelhelper.LockResultKey, string(result.Reason)))
		s.log(ctx).InfoContext(ctx, "lock operation refused", "document_id", id, "actor", actor, "reason", result.Reason)

		current, getErr := s.persistence.Documents().GetByID(ctx, id)
		if getErr != nil {
			return result, nil, getErr
		}

		return result, current, nil
	}

	span.SetAttributes(attribute.String(otelhelper.LockResultKey, "ok"))
	s.log(ctx).InfoContext(ctx, "document lock changed", "document_id", id, "actor", actor, "event", eventType)

	s.emit(ctx, id, events.DocumentLockChanged{
		BaseEvent:         s.eventBase(eventType, actor, now),
		DocumentID:        id,
		LockedBy:          lock.LockedBy,
		LockReason:        lock.LockReason,
		UnlockScheduledAt: lock.UnlockScheduledAt,
	})

	return result, doc, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
