package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New[int](0).Capacity())
	assert.Equal(t, DefaultCapacity, New[int](-3).Capacity())
	assert.Equal(t, 7, New[int](7).Capacity())
}

func TestUndoRedo_RoundTrip(t *testing.T) {
	h := New[string](2)

	h.Record("original")
	current := "fast"

	prev, err := h.Undo(current)
	require.NoError(t, err)
	assert.Equal(t, "original", prev)
	assert.Equal(t, 0, h.UndoDepth())
	assert.Equal(t, 1, h.RedoDepth())

	next, err := h.Redo(prev)
	require.NoError(t, err)
	assert.Equal(t, "fast", next)
	assert.Equal(t, 1, h.UndoDepth())
	assert.Equal(t, 0, h.RedoDepth())
}

func TestUndo_Empty(t *testing.T) {
	h := New[string](2)

	_, err := h.Undo("current")
	assert.ErrorIs(t, err, ErrNothingToUndo)
	assert.Equal(t, 0, h.RedoDepth(), "failed undo must not touch the redo stack")

	_, err = h.Redo("current")
	assert.ErrorIs(t, err, ErrNothingToRedo)
	assert.Equal(t, 0, h.UndoDepth())
}

func TestRecord_EvictsOldest(t *testing.T) {
	h := New[int](2)

	// states 0..4 become current in turn, recording the previous one each time
	current := 0
	for next := 1; next <= 4; next++ {
		h.Record(current)
		current = next
	}
	assert.Equal(t, 2, h.UndoDepth())

	var err error
	current, err = h.Undo(current)
	require.NoError(t, err)
	assert.Equal(t, 3, current)

	current, err = h.Undo(current)
	require.NoError(t, err)
	assert.Equal(t, 2, current)

	_, err = h.Undo(current)
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestRecord_ClearsRedo(t *testing.T) {
	h := New[int](2)

	h.Record(1)
	prev, err := h.Undo(2)
	require.NoError(t, err)
	require.Equal(t, 1, h.RedoDepth())

	h.Record(prev)
	assert.Equal(t, 0, h.RedoDepth())

	_, err = h.Redo(3)
	assert.ErrorIs(t, err, ErrNothingToRedo)
}

func TestDepthsNeverExceedCapacity(t *testing.T) {
	h := New[int](2)
	current := 0
	steps := []string{"rec", "rec", "rec", "undo", "undo", "undo", "redo", "redo", "redo", "rec", "undo"}

	for i, step := range steps {
		switch step {
		case "rec":
			h.Record(current)
			current = i + 100
		case "undo":
			if prev, err := h.Undo(current); err == nil {
				current = prev
			}
		case "redo":
			if next, err := h.Redo(current); err == nil {
				current = next
			}
		}
		assert.LessOrEqual(t, h.UndoDepth(), 2, "step %d (%s)", i, step)
		assert.LessOrEqual(t, h.RedoDepth(), 2, "step %d (%s)", i, step)
	}
}

func TestRollback_RestoresEvicted(t *testing.T) {
	h := New[int](2)
	h.Record(1)
	h.Record(2)
	prev, err := h.Undo(3)
	require.NoError(t, err)
	require.Equal(t, 2, prev)

	// stacks now: undo=[1] redo=[3]
	h.Record(prev)
	h.Record(4) // evicts 1, undo=[2,4], redo cleared
	require.Equal(t, 2, h.UndoDepth())

	require.NoError(t, h.Rollback())
	assert.Equal(t, []int{1, 2}, h.Entries()[:2], "evicted entry restored at the front")
	assert.Equal(t, 0, h.RedoDepth(), "redo was already empty before the rolled back record")
}

func TestRollback_RestoresRedoPath(t *testing.T) {
	h := New[int](2)
	h.Record(1)
	prev, err := h.Undo(2)
	require.NoError(t, err)

	h.Record(prev)
	require.Equal(t, 0, h.RedoDepth())

	require.NoError(t, h.Rollback())
	assert.Equal(t, 0, h.UndoDepth())
	assert.Equal(t, 1, h.RedoDepth())

	next, err := h.Redo(prev)
	require.NoError(t, err)
	assert.Equal(t, 2, next)
}

func TestRollback_WithoutRecord(t *testing.T) {
	h := New[int](2)
	assert.ErrorIs(t, h.Rollback(), ErrNothingToRollback)

	h.Record(1)
	require.NoError(t, h.Rollback())
	assert.ErrorIs(t, h.Rollback(), ErrNothingToRollback, "rollback is single shot")

	h.Record(1)
	_, err := h.Undo(2)
	require.NoError(t, err)
	assert.ErrorIs(t, h.Rollback(), ErrNothingToRollback, "undo consumes the pending record")
}

func TestEntriesAndClear(t *testing.T) {
	h := New[int](3)
	h.Record(1)
	h.Record(2)
	prev, err := h.Undo(3)
	require.NoError(t, err)
	require.Equal(t, 2, prev)

	assert.Equal(t, []int{1, 3}, h.Entries())

	h.Clear()
	assert.Empty(t, h.Entries())
	assert.Equal(t, 0, h.UndoDepth())
	assert.Equal(t, 0, h.RedoDepth())
}
