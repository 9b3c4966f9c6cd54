// Package fsm provides explicit finite-state transition tables shared by the
// template, submission and document state machines.
package fsm

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidTransition indicates an operation was invoked from a state that does not permit it.
var ErrInvalidTransition = errors.New("invalid transition")

// TransitionError describes which entity, state and operation were rejected.
type TransitionError struct {
	Entity    string // "template", "submission", "document"
	From      string
	Operation string
	Reason    string // failed guard, if any
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s %s in state %s: %s", e.Operation, e.Entity, e.From, e.Reason)
	}

	return fmt.Sprintf("cannot %s %s in state %s", e.Operation, e.Entity, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Guard is a pure predicate evaluated before a transition. A non-empty return
// value rejects the transition with that reason.
type Guard[E any] func(entity E) string

// Effect mutates the entity after the state has been moved.
type Effect[E any] func(entity E)

// Transition is one row of a table.
type Transition[S ~string, E any] struct {
	To     S
	Guard  Guard[E]
	Effect Effect[E]
}

// Table maps state × operation to a transition. Any pair missing from the table
// is rejected with ErrInvalidTransition.
type Table[S ~string, O ~string, E any] struct {
	entity string
	rows   map[S]map[O]Transition[S, E]
}

// NewTable creates an empty table for the named entity.
func NewTable[S ~string, O ~string, E any](entity string) *Table[S, O, E] {
	return &Table[S, O, E]{
		entity: entity,
		rows:   make(map[S]map[O]Transition[S, E]),
	}
}

// Add registers op as valid from every state in from.
func (t *Table[S, O, E]) Add(op O, from []S, transition Transition[S, E]) *Table[S, O, E] {
	for _, state := range from {
		if t.rows[state] == nil {
			t.rows[state] = make(map[O]Transition[S, E])
		}

		t.rows[state][op] = transition
	}

	return t
}

// Lookup returns the transition for the pair, if any.
func (t *Table[S, O, E]) Lookup(from S, op O) (Transition[S, E], bool) {
	transition, ok := t.rows[from][op]

	return transition, ok
}

// Can reports whether op is permitted from state for entity, including its guard.
func (t *Table[S, O, E]) Can(from S, op O, entity E) bool {
	transition, ok := t.Lookup(from, op)
	if !ok {
		return false
	}

	return transition.Guard == nil || transition.Guard(entity) == ""
}

// Permitted returns the operations valid from state, ignoring guards.
func (t *Table[S, O, E]) Permitted(from S) []O {
	ops := make([]O, 0, len(t.rows[from]))
	for op := range t.rows[from] {
		ops = append(ops, op)
	}

	slices.Sort(ops)

	return ops
}

// Fire validates op from the current state and returns the target state. It
// never mutates entity; the caller applies the returned transition with Apply.
func (t *Table[S, O, E]) Fire(from S, op O, entity E) (Transition[S, E], error) {
	transition, ok := t.Lookup(from, op)
	if !ok {
		return transition, &TransitionError{Entity: t.entity, From: string(from), Operation: string(op)}
	}

	if transition.Guard != nil {
		if reason := transition.Guard(entity); reason != "" {
			return transition, &TransitionError{Entity: t.entity, From: string(from), Operation: string(op), Reason: reason}
		}
	}

	return transition, nil
}

// IsInvalidTransition checks if an error indicates a rejected transition.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
