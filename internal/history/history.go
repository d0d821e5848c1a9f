// Package history provides the bounded undo/redo history of editing states.
//
// History stores whole state snapshots rather than diffs. Both stacks are
// bounded by the same capacity: insertion and retrieval happen at the back,
// eviction of the oldest entry happens at the front. Eviction is silent.
//
//	h := history.New[Snapshot](2)
//	h.Record(current)          // before applying a mutation
//	prev, err := h.Undo(current)
//	next, err := h.Redo(prev)
//
// A Record can be reverted with Rollback when the mutation it guarded never
// produced a new state.
package history

import "errors"

// DefaultCapacity is the number of states retained on each stack when no
// positive capacity is configured.
const DefaultCapacity = 2

// Common errors for history operations.
var (
	ErrNothingToUndo     = errors.New("history: nothing to undo")
	ErrNothingToRedo     = errors.New("history: nothing to redo")
	ErrNothingToRollback = errors.New("history: no pending record to roll back")
)

// pendingRecord remembers what a Record displaced so Rollback can restore it.
type pendingRecord[S any] struct {
	evicted     []S
	clearedRedo []S
}

// History manages bounded undo/redo stacks of states of type S.
// It is not safe for concurrent use; callers serialize access.
type History[S any] struct {
	undoStack []S
	redoStack []S
	capacity  int

	pending *pendingRecord[S]
}

// New creates a history that keeps at most capacity states per stack.
// A non-positive capacity selects DefaultCapacity.
func New[S any](capacity int) *History[S] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History[S]{capacity: capacity}
}

// Record pushes the current state onto the undo stack before a mutation.
// The redo stack is cleared and the oldest undo entry is evicted when the
// stack exceeds capacity.
func (h *History[S]) Record(current S) {
	p := &pendingRecord[S]{clearedRedo: h.redoStack}
	h.redoStack = nil

	h.undoStack = append(h.undoStack, current)
	if excess := len(h.undoStack) - h.capacity; excess > 0 {
		p.evicted = append([]S(nil), h.undoStack[:excess]...)
		h.undoStack = append([]S(nil), h.undoStack[excess:]...)
	}
	h.pending = p
}

// Rollback reverts the most recent Record: the pushed state is popped, any
// evicted entry returns to the front of the undo stack and the cleared redo
// stack is restored. It must directly follow Record.
func (h *History[S]) Rollback() error {
	p := h.pending
	if p == nil || len(h.undoStack) == 0 {
		return ErrNothingToRollback
	}
	h.pending = nil

	h.undoStack = h.undoStack[:len(h.undoStack)-1]
	if len(p.evicted) > 0 {
		h.undoStack = append(append([]S(nil), p.evicted...), h.undoStack...)
	}
	h.redoStack = p.clearedRedo
	return nil
}

// Undo returns the most recent undo state and pushes current onto the redo
// stack. Returns ErrNothingToUndo and leaves both stacks untouched when there
// is nothing to undo.
func (h *History[S]) Undo(current S) (S, error) {
	var zero S
	if len(h.undoStack) == 0 {
		return zero, ErrNothingToUndo
	}
	h.pending = nil

	prev := h.undoStack[len(h.undoStack)-1]
	h.undoStack = h.undoStack[:len(h.undoStack)-1]
	h.redoStack = h.pushBounded(h.redoStack, current)
	return prev, nil
}

// Redo returns the most recently undone state and pushes current onto the
// undo stack. Returns ErrNothingToRedo when the redo stack is empty.
func (h *History[S]) Redo(current S) (S, error) {
	var zero S
	if len(h.redoStack) == 0 {
		return zero, ErrNothingToRedo
	}
	h.pending = nil

	next := h.redoStack[len(h.redoStack)-1]
	h.redoStack = h.redoStack[:len(h.redoStack)-1]
	h.undoStack = h.pushBounded(h.undoStack, current)
	return next, nil
}

// pushBounded appends s and drops entries from the front past capacity.
func (h *History[S]) pushBounded(stack []S, s S) []S {
	stack = append(stack, s)
	if excess := len(stack) - h.capacity; excess > 0 {
		stack = append([]S(nil), stack[excess:]...)
	}
	return stack
}

// UndoDepth returns the number of states available to undo.
func (h *History[S]) UndoDepth() int {
	return len(h.undoStack)
}

// RedoDepth returns the number of states available to redo.
func (h *History[S]) RedoDepth() int {
	return len(h.redoStack)
}

// Capacity returns the per-stack bound.
func (h *History[S]) Capacity() int {
	return h.capacity
}

// Entries returns every state held on either stack, undo entries first.
func (h *History[S]) Entries() []S {
	out := make([]S, 0, len(h.undoStack)+len(h.redoStack))
	out = append(out, h.undoStack...)
	return append(out, h.redoStack...)
}

// Clear removes all undo/redo history.
func (h *History[S]) Clear() {
	h.undoStack = nil
	h.redoStack = nil
	h.pending = nil
}
