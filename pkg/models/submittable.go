package models

import "fmt"

// SubmittableKind tags the kind of item a submission carries.
type SubmittableKind string

const (
	SubmittableDocument SubmittableKind = "document"
	SubmittablePermit   SubmittableKind = "permit"
	SubmittableBudget   SubmittableKind = "budget"
)

// SubmittableRef identifies the item a submission moves through a template.
type SubmittableRef struct {
	Kind SubmittableKind `json:"kind" validate:"required,oneof=document permit budget"`
	ID   string          `json:"id"   validate:"required"`
}

func (r SubmittableRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// Submittable is anything that can be submitted through a workflow template.
type Submittable interface {
	SubmittableRef() SubmittableRef
}
