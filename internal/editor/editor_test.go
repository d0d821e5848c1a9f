package editor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/clipedit/internal/history"
	"github.com/maauso/clipedit/internal/macro"
	"github.com/maauso/clipedit/internal/media"
	"github.com/maauso/clipedit/internal/storage"
)

const (
	tenSeconds  = "/videos/ten.mp4"
	fourSeconds = "/videos/four.mp4"
)

type fixture struct {
	editor   *Editor
	provider *media.MemoryProvider
	store    *storage.MemoryTemplateStore
}

func newFixture(t *testing.T, stored []byte, opts ...Option) *fixture {
	t.Helper()
	p := media.NewMemoryProvider()
	p.Register(tenSeconds, 10, 640, 360)
	p.Register(fourSeconds, 4, 640, 360)
	store := storage.NewMemoryTemplateStore(stored)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := New(context.Background(), p, store, logger, opts...)
	require.NoError(t, err)
	return &fixture{editor: e, provider: p, store: store}
}

func openedFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := newFixture(t, nil, opts...)
	require.NoError(t, f.editor.Open(context.Background(), tenSeconds))
	return f
}

func activeDuration(e *Editor) float64 {
	return e.Current().Active.Duration()
}

func TestNew_Templates(t *testing.T) {
	t.Run("missing store yields unset slots", func(t *testing.T) {
		f := newFixture(t, nil)
		table := f.editor.Templates()
		assert.Len(t, table, macro.DefaultSlots)
		for _, slot := range table {
			assert.Nil(t, slot)
		}
	})

	t.Run("loads stored slots", func(t *testing.T) {
		f := newFixture(t, []byte(`[null,[["change_speed",2]],null]`), WithTemplateSlots(3))
		table := f.editor.Templates()
		require.Len(t, table, 3)
		require.Len(t, table[1], 1)
		assert.Equal(t, macro.OpChangeSpeed, table[1][0].Op)
	})

	t.Run("corrupt store fails construction", func(t *testing.T) {
		store := storage.NewMemoryTemplateStore([]byte(`[null,null]`))
		_, err := New(context.Background(), media.NewMemoryProvider(), store, nil)
		assert.ErrorIs(t, err, macro.ErrCorruptStore)
	})

	t.Run("store error fails construction", func(t *testing.T) {
		store := storage.NewMemoryTemplateStore(nil)
		store.SetError(errors.New("disk gone"))
		_, err := New(context.Background(), media.NewMemoryProvider(), store, nil)
		assert.ErrorIs(t, err, ErrStoreFailure)
	})
}

func TestOperations_RequireOpenVideo(t *testing.T) {
	f := newFixture(t, nil)
	e := f.editor
	ctx := context.Background()

	calls := map[string]func() error{
		"speed":     func() error { return e.ChangeSpeed(ctx, 2) },
		"cut":       func() error { return e.CutFragment(ctx, 0, 1) },
		"image":     func() error { return e.InsertImage(ctx, "a.png", 0, 1) },
		"concat":    func() error { return e.ConcatenateVideos(ctx, []string{fourSeconds}) },
		"rotate":    func() error { return e.RotateVideo(ctx, macro.Left) },
		"crop":      func() error { return e.CropVideo(ctx, 0, 0, 1, 1) },
		"fade":      func() error { return e.AddFadeInOut(ctx, media.FadeDark, 1, 1) },
		"fragment":  func() error { return e.ChooseFragment(ctx, 0, 1) },
		"full":      func() error { return e.EditFullVideo(ctx) },
		"undo":      func() error { return e.Undo(ctx) },
		"redo":      func() error { return e.Redo(ctx) },
		"save":      func() error { return e.Save(ctx) },
		"save as":   func() error { return e.SaveAs(ctx, "/out.mp4") },
		"set slot0": func() error { return e.UseTemplate(ctx, 0) },
	}
	for name, call := range calls {
		err := call()
		if name == "set slot0" {
			assert.NoError(t, err, "replaying an unset slot is a no-op even without a video")
			continue
		}
		assert.ErrorIs(t, err, ErrNoVideo, name)
	}
}

func TestOpen(t *testing.T) {
	f := newFixture(t, nil)
	e := f.editor
	ctx := context.Background()

	require.NoError(t, e.Open(ctx, tenSeconds))
	first := e.SessionID()
	assert.Contains(t, first, "session-")
	assert.Equal(t, tenSeconds, e.SourcePath())
	assert.Equal(t, tenSeconds, e.OutputPath())
	assert.InDelta(t, 10.0, activeDuration(e), 1e-9)

	require.NoError(t, e.ChangeSpeed(ctx, 2))
	require.Equal(t, 1, e.UndoDepth())

	t.Run("failure keeps the session", func(t *testing.T) {
		err := e.Open(ctx, "/videos/missing.mp4")
		assert.ErrorIs(t, err, ErrProviderFailure)
		assert.ErrorIs(t, err, media.ErrSourceNotFound)
		assert.Equal(t, first, e.SessionID())
		assert.Equal(t, 1, e.UndoDepth())
	})

	t.Run("new source resets history", func(t *testing.T) {
		require.NoError(t, e.Open(ctx, fourSeconds))
		assert.NotEqual(t, first, e.SessionID())
		assert.Equal(t, 0, e.UndoDepth())
		assert.Equal(t, 0, e.RedoDepth())
		assert.InDelta(t, 4.0, activeDuration(e), 1e-9)
	})

	assert.ErrorIs(t, e.Open(ctx, ""), ErrInvalidArgument)
}

func TestChangeSpeed_UndoRedo(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()

	require.NoError(t, e.ChangeSpeed(ctx, 2))
	assert.InDelta(t, 5.0, activeDuration(e), 1e-9)

	require.NoError(t, e.Undo(ctx))
	assert.InDelta(t, 10.0, activeDuration(e), 1e-9)

	require.NoError(t, e.Redo(ctx))
	assert.InDelta(t, 5.0, activeDuration(e), 1e-9)
}

func TestUndoRedo_ExactSnapshots(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()

	before := e.Current()
	require.NoError(t, e.RotateVideo(ctx, macro.Right))
	after := e.Current()
	require.NotEqual(t, before, after)

	require.NoError(t, e.Undo(ctx))
	assert.Equal(t, before, e.Current())

	require.NoError(t, e.Redo(ctx))
	assert.Equal(t, after, e.Current())
}

func TestUndo_BoundedByCapacity(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, e.ChangeSpeed(ctx, 2))
	}
	require.Equal(t, history.DefaultCapacity, e.UndoDepth())

	require.NoError(t, e.Undo(ctx))
	require.NoError(t, e.Undo(ctx))
	assert.ErrorIs(t, e.Undo(ctx), history.ErrNothingToUndo)
	assert.InDelta(t, 10.0/4, activeDuration(e), 1e-9)
}

func TestUndo_ConfigurableCapacity(t *testing.T) {
	f := openedFixture(t, WithHistoryCapacity(4))
	e := f.editor
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, e.CutFragment(ctx, 0, activeDuration(e)-1))
	}
	assert.Equal(t, 4, e.UndoDepth())
}

func TestMutationAfterUndo_ClearsRedo(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()

	require.NoError(t, e.ChangeSpeed(ctx, 2))
	require.NoError(t, e.Undo(ctx))
	require.Equal(t, 1, e.RedoDepth())

	require.NoError(t, e.CutFragment(ctx, 1, 3))
	assert.Equal(t, 0, e.RedoDepth())
	assert.ErrorIs(t, e.Redo(ctx), history.ErrNothingToRedo)
	assert.InDelta(t, 2.0, activeDuration(e), 1e-9)
}

func TestCutFragment_Duration(t *testing.T) {
	ranges := [][2]float64{{0, 10}, {0, 1}, {3, 7}, {9.5, 10}, {2.25, 8.75}}
	for _, r := range ranges {
		f := openedFixture(t)
		require.NoError(t, f.editor.CutFragment(context.Background(), r[0], r[1]))
		assert.InDelta(t, r[1]-r[0], activeDuration(f.editor), 1e-9, "cut %v", r)
	}
}

func TestPreconditions_LeaveStateUnchanged(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()
	before := e.Current()

	calls := map[string]func() error{
		"zero speed":       func() error { return e.ChangeSpeed(ctx, 0) },
		"negative speed":   func() error { return e.ChangeSpeed(ctx, -1) },
		"cut reversed":     func() error { return e.CutFragment(ctx, 7, 3) },
		"cut empty":        func() error { return e.CutFragment(ctx, 3, 3) },
		"cut past end":     func() error { return e.CutFragment(ctx, 3, 11) },
		"cut negative":     func() error { return e.CutFragment(ctx, -1, 3) },
		"image no path":    func() error { return e.InsertImage(ctx, "", 0, 1) },
		"image past end":   func() error { return e.InsertImage(ctx, "a.png", 5, 12) },
		"concat none":      func() error { return e.ConcatenateVideos(ctx, nil) },
		"concat empty":     func() error { return e.ConcatenateVideos(ctx, []string{""}) },
		"rotate up":        func() error { return e.RotateVideo(ctx, "up") },
		"crop outside":     func() error { return e.CropVideo(ctx, 0, 0, 641, 360) },
		"crop inverted":    func() error { return e.CropVideo(ctx, 100, 0, 50, 360) },
		"crop negative":    func() error { return e.CropVideo(ctx, -1, 0, 50, 360) },
		"fade unknown":     func() error { return e.AddFadeInOut(ctx, "sepia", 1, 1) },
		"fade too long":    func() error { return e.AddFadeInOut(ctx, media.FadeDark, 6, 6) },
		"fade negative":    func() error { return e.AddFadeInOut(ctx, media.FadeLight, -1, 1) },
		"fragment invalid": func() error { return e.ChooseFragment(ctx, 4, 2) },
		"fragment outside": func() error { return e.ChooseFragment(ctx, 0, 10.5) },
		"save as empty":    func() error { return e.SaveAs(ctx, "") },
	}
	for name, call := range calls {
		assert.ErrorIs(t, call(), ErrInvalidArgument, name)
	}
	assert.Equal(t, before, e.Current())
	assert.Equal(t, 0, e.UndoDepth())
}

func TestProviderFailure_RollsBackHistory(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()

	require.NoError(t, e.ChangeSpeed(ctx, 2))
	require.NoError(t, e.ChangeSpeed(ctx, 2))
	require.NoError(t, e.Undo(ctx))
	require.Equal(t, 1, e.UndoDepth())
	require.Equal(t, 1, e.RedoDepth())
	before := e.Current()

	boom := errors.New("encoder crashed")
	f.provider.FailOn("Rotate", boom)

	err := e.RotateVideo(ctx, macro.Left)
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, before, e.Current(), "failed operation never becomes current")
	assert.Equal(t, 1, e.UndoDepth(), "no phantom undo entry")
	assert.Equal(t, 1, e.RedoDepth(), "redo path survives a failed mutation")

	require.NoError(t, e.Redo(ctx))
	assert.InDelta(t, 2.5, activeDuration(e), 1e-9)
}

func TestProviderFailure_RestoresEvictedEntry(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()

	require.NoError(t, e.ChangeSpeed(ctx, 2))
	require.NoError(t, e.ChangeSpeed(ctx, 2))
	require.Equal(t, 2, e.UndoDepth())

	f.provider.FailOn("Speed", errors.New("boom"))
	require.Error(t, e.ChangeSpeed(ctx, 2))
	f.provider.FailOn("Speed", nil)

	require.NoError(t, e.Undo(ctx))
	require.NoError(t, e.Undo(ctx))
	assert.InDelta(t, 10.0, activeDuration(e), 1e-9, "oldest entry was not lost to the failed mutation")
}

func TestRotateAndCrop(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()

	require.NoError(t, e.RotateVideo(ctx, macro.Left))
	w, h := e.Current().Active.Size()
	assert.Equal(t, 360, w)
	assert.Equal(t, 640, h)

	require.NoError(t, e.CropVideo(ctx, 0, 40, 360, 600))
	w, h = e.Current().Active.Size()
	assert.Equal(t, 360, w)
	assert.Equal(t, 560, h)
}

func TestInsertImage_KeepsDuration(t *testing.T) {
	f := openedFixture(t)
	require.NoError(t, f.editor.InsertImage(context.Background(), "/img/logo.png", 1, 4))
	assert.InDelta(t, 10.0, activeDuration(f.editor), 1e-9)
	assert.Equal(t, 1, f.editor.UndoDepth())
}

func TestConcatenateVideos(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()

	require.NoError(t, e.ConcatenateVideos(ctx, []string{fourSeconds, fourSeconds}))
	assert.InDelta(t, 8.0, activeDuration(e), 1e-9)

	require.NoError(t, e.ConcatenateVideos(ctx, []string{fourSeconds}))
	assert.InDelta(t, 4.0, activeDuration(e), 1e-9)

	before := e.Current()
	err := e.ConcatenateVideos(ctx, []string{fourSeconds, "/videos/missing.mp4"})
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.Equal(t, before, e.Current())
	assert.Equal(t, 2, e.UndoDepth())
}

func TestConcatenateVideos_Smooth(t *testing.T) {
	f := openedFixture(t, WithSmoothConcatenation(true))
	e := f.editor
	ctx := context.Background()

	require.NoError(t, e.StartRecording(0))
	require.NoError(t, e.ConcatenateVideos(ctx, []string{fourSeconds, fourSeconds, fourSeconds}))
	assert.InDelta(t, 10.0, activeDuration(e), 1e-9, "two 1s crossfades")
	require.NoError(t, e.StopRecording(ctx))

	table := e.Templates()
	require.Len(t, table[0], 1)
	assert.Equal(t, `["concatenate_video",["/videos/four.mp4","/videos/four.mp4","/videos/four.mp4"]]`, table[0][0].String())

	require.NoError(t, e.ChooseFragment(ctx, 2, 6))
	require.NoError(t, e.EditFullVideo(ctx))
	assert.InDelta(t, 10.0, activeDuration(e), 1e-9, "fragments rejoin without a transition")
}

func TestAddFadeInOut(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()

	for _, kind := range []media.FadeKind{media.FadeDark, media.FadeLight, media.FadeGrayscale} {
		require.NoError(t, e.AddFadeInOut(ctx, kind, 1, 2))
		assert.InDelta(t, 10.0, activeDuration(e), 1e-9)
	}
	assert.Equal(t, 2, e.UndoDepth())
}

func TestReleasesUnreferencedClips(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, e.ChangeSpeed(ctx, 1.5))
	}
	// current plus two undo entries
	assert.Equal(t, 3, f.provider.Live())

	require.NoError(t, e.Undo(ctx))
	assert.Equal(t, 3, f.provider.Live())

	require.NoError(t, e.CutFragment(ctx, 0, 0.5))
	// redo path dropped, current plus two undo entries
	assert.Equal(t, 3, f.provider.Live())
}

func TestConcurrentCallersAreSerialized(t *testing.T) {
	f := openedFixture(t, WithHistoryCapacity(100))
	e := f.editor
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.ChangeSpeed(ctx, 1)
			_ = e.Status()
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, e.UndoDepth())
}

func TestSaveAndSaveAs(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()

	require.NoError(t, e.ChooseFragment(ctx, 3, 7))
	require.NoError(t, e.ChangeSpeed(ctx, 2))
	depth := e.UndoDepth()
	before := e.Current()

	require.NoError(t, e.Save(ctx))
	written := f.provider.Written(tenSeconds)
	require.NotNil(t, written, "save writes to the source path")
	assert.InDelta(t, 8.0, written.Duration(), 1e-9, "left 3s + active 2s + right 3s")
	assert.Equal(t, before, e.Current(), "export does not change edit state")
	assert.Equal(t, depth, e.UndoDepth())

	require.NoError(t, e.SaveAs(ctx, "/exports/final.mp4"))
	assert.Equal(t, "/exports/final.mp4", e.OutputPath())
	require.NotNil(t, f.provider.Written("/exports/final.mp4"))

	require.NoError(t, e.EditFullVideo(ctx))
	require.NoError(t, e.Save(ctx))
	assert.InDelta(t, 8.0, f.provider.Written("/exports/final.mp4").Duration(), 1e-9)

	f.provider.FailOn("Write", errors.New("disk full"))
	err := e.SaveAs(ctx, "/exports/other.mp4")
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.Equal(t, "/exports/final.mp4", e.OutputPath(), "failed save as keeps the output path")
}

func TestStatus(t *testing.T) {
	f := openedFixture(t)
	e := f.editor
	ctx := context.Background()

	require.NoError(t, e.StartRecording(3))
	require.NoError(t, e.ChangeSpeed(ctx, 2))

	st := e.Status()
	assert.True(t, st.Opened)
	assert.Equal(t, e.SessionID(), st.SessionID)
	assert.Equal(t, tenSeconds, st.SourcePath)
	assert.Equal(t, 1, st.UndoDepth)
	assert.Equal(t, 0, st.RedoDepth)
	assert.True(t, st.Recording)
	assert.Equal(t, 3, st.ActiveSlot)
	assert.Equal(t, macro.DefaultSlots, st.Slots)
	assert.InDelta(t, 5.0, st.Current.Duration(), 1e-9)

	require.NoError(t, e.StopRecording(ctx))
	st = e.Status()
	assert.False(t, st.Recording)
	assert.Equal(t, -1, st.ActiveSlot)
}
