package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/clipedit/internal/macro"
)

func TestChooseFragment_SplitsAndReintegrates(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()

	require.NoError(t, e.ChooseFragment(ctx, 3, 7))
	s := e.Current()
	require.NotNil(t, s.Left)
	require.NotNil(t, s.Right)
	assert.InDelta(t, 4.0, s.Active.Duration(), 1e-9)
	assert.InDelta(t, 3.0, s.Left.Duration(), 1e-9)
	assert.InDelta(t, 3.0, s.Right.Duration(), 1e-9)
	assert.Equal(t, 1, e.UndoDepth())

	require.NoError(t, e.EditFullVideo(ctx))
	s = e.Current()
	assert.False(t, s.HasFragments())
	assert.InDelta(t, 10.0, s.Active.Duration(), 1e-9)
	assert.Equal(t, 2, e.UndoDepth())
}

func TestChooseFragment_EditsOnlyTheMiddle(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()

	require.NoError(t, e.ChooseFragment(ctx, 3, 7))
	require.NoError(t, e.ChangeSpeed(ctx, 2))

	s := e.Current()
	assert.InDelta(t, 2.0, s.Active.Duration(), 1e-9)
	assert.InDelta(t, 8.0, s.Duration(), 1e-9)

	require.NoError(t, e.EditFullVideo(ctx))
	assert.InDelta(t, 8.0, activeDuration(e), 1e-9)
}

func TestEditFullVideo_MixedFrameSizes(t *testing.T) {
	ctx := context.Background()

	t.Run("cropped middle is centred on the original frame", func(t *testing.T) {
		f := openedFixture(t)
		e := f.editor
		require.NoError(t, e.ChooseFragment(ctx, 3, 7))
		require.NoError(t, e.CropVideo(ctx, 0, 0, 320, 180))

		w, h := e.Current().Active.Size()
		assert.Equal(t, []int{320, 180}, []int{w, h})

		require.NoError(t, e.EditFullVideo(ctx))
		full := e.Current().Active
		w, h = full.Size()
		assert.Equal(t, []int{640, 360}, []int{w, h})
		assert.InDelta(t, 10.0, full.Duration(), 1e-9)
	})

	t.Run("rotated middle widens the canvas", func(t *testing.T) {
		f := openedFixture(t)
		e := f.editor
		require.NoError(t, e.ChooseFragment(ctx, 3, 7))
		require.NoError(t, e.RotateVideo(ctx, macro.Left))

		require.NoError(t, e.EditFullVideo(ctx))
		w, h := e.Current().Active.Size()
		assert.Equal(t, []int{640, 640}, []int{w, h})
	})

	t.Run("save of the split timeline", func(t *testing.T) {
		f := openedFixture(t)
		e := f.editor
		require.NoError(t, e.ChooseFragment(ctx, 3, 7))
		require.NoError(t, e.CropVideo(ctx, 0, 0, 320, 180))

		require.NoError(t, e.Save(ctx))
		written := f.provider.Written(tenSeconds)
		require.NotNil(t, written)
		w, h := written.Size()
		assert.Equal(t, []int{640, 360}, []int{w, h})
	})
}

func TestChooseFragment_Boundaries(t *testing.T) {
	ctx := context.Background()

	t.Run("start at zero has no left fragment", func(t *testing.T) {
		f := openedFixture(t)
		require.NoError(t, f.editor.ChooseFragment(ctx, 0, 4))
		s := f.editor.Current()
		assert.Nil(t, s.Left)
		require.NotNil(t, s.Right)
		assert.InDelta(t, 6.0, s.Right.Duration(), 1e-9)
	})

	t.Run("end at duration has no right fragment", func(t *testing.T) {
		f := openedFixture(t)
		require.NoError(t, f.editor.ChooseFragment(ctx, 6, 10))
		s := f.editor.Current()
		assert.Nil(t, s.Right)
		require.NotNil(t, s.Left)
		assert.InDelta(t, 6.0, s.Left.Duration(), 1e-9)
	})

	t.Run("whole clip has no fragments", func(t *testing.T) {
		f := openedFixture(t)
		require.NoError(t, f.editor.ChooseFragment(ctx, 0, 10))
		assert.False(t, f.editor.Current().HasFragments())
		assert.Equal(t, 1, f.editor.UndoDepth())
	})
}

func TestChooseFragment_Nested(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()

	require.NoError(t, e.ChooseFragment(ctx, 2, 8))
	require.NoError(t, e.ChooseFragment(ctx, 1, 5))

	s := e.Current()
	assert.InDelta(t, 3.0, s.Left.Duration(), 1e-9)
	assert.InDelta(t, 4.0, s.Active.Duration(), 1e-9)
	assert.InDelta(t, 3.0, s.Right.Duration(), 1e-9)

	require.NoError(t, e.Undo(ctx))
	s = e.Current()
	assert.InDelta(t, 6.0, s.Active.Duration(), 1e-9)
}

func TestEditFullVideo_WithoutFragmentsIsNoop(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	before := e.Current()

	require.NoError(t, e.EditFullVideo(context.Background()))
	assert.Equal(t, before, e.Current())
	assert.Equal(t, 0, e.UndoDepth())
}

func TestChooseFragment_ProviderFailure(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	before := e.Current()
	live := f.provider.Live()

	f.provider.FailOn("Slice", errors.New("boom"))
	err := e.ChooseFragment(context.Background(), 3, 7)
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.Equal(t, before, e.Current())
	assert.Equal(t, 0, e.UndoDepth())
	assert.Equal(t, live, f.provider.Live())
}

func TestUndo_RestoresFragments(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()

	require.NoError(t, e.ChooseFragment(ctx, 3, 7))
	split := e.Current()
	require.NoError(t, e.EditFullVideo(ctx))

	require.NoError(t, e.Undo(ctx))
	assert.Equal(t, split, e.Current())
	assert.True(t, e.Current().HasFragments())
}
