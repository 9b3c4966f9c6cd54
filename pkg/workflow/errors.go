// Package workflow implements the approval workflow engine: step sequencing, the
// template lifecycle and the submission state machine.
package workflow

import "errors"

var (
	// ErrStepNotInTemplate indicates a step that does not belong to the loaded template.
	ErrStepNotInTemplate = errors.New("step does not belong to template")

	// ErrInvalidStepPosition indicates a step position that would break the 1..n sequence.
	ErrInvalidStepPosition = errors.New("invalid step position")

	// ErrTemplateNotEditable indicates steps were changed outside draft or paused.
	ErrTemplateNotEditable = errors.New("template steps can only change while draft or paused")

	// ErrStepInUse indicates a step removal while live submissions still sit on it.
	ErrStepInUse = errors.New("step is the current step of a live submission")

	// ErrTemplateNotActive indicates a submission was created against a template that is not active.
	ErrTemplateNotActive = errors.New("template is not active")

	// ErrDuplicateActiveSubmission indicates a live submission already exists for the template and item.
	ErrDuplicateActiveSubmission = errors.New("an active submission already exists for this item")

	// ErrCommentRequired indicates a rejection or return without justification.
	ErrCommentRequired = errors.New("a comment is required for this decision")

	// ErrNotAssignee indicates the actor cannot decide the current step.
	ErrNotAssignee = errors.New("actor is not assigned to the current step")

	// ErrAlreadyApproved indicates a parallel assignee approving twice.
	ErrAlreadyApproved = errors.New("actor has already approved this step")

	// ErrNoNextStep indicates an advance past the last step.
	ErrNoNextStep = errors.New("submission is already on the last step")

	// ErrActorRequired indicates a guarded operation called without an actor.
	ErrActorRequired = errors.New("actor is required")
)
