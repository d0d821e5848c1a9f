// Package editor implements the non-destructive editing engine.
//
// An Editor owns one editing session at a time: the current Snapshot of the
// loaded video, a bounded undo/redo history of earlier snapshots, and the
// template recorder. Every mutating call records the current snapshot in the
// history, delegates the transform to the media.Provider and, when a
// recording is active and the operation is recordable, appends it to the
// active template slot.
//
// A failed transform never becomes the current state: the history record is
// rolled back and nothing is appended to the recording.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maauso/clipedit/internal/history"
	"github.com/maauso/clipedit/internal/id"
	"github.com/maauso/clipedit/internal/macro"
	"github.com/maauso/clipedit/internal/media"
)

// Common errors for editing operations.
var (
	// ErrNoVideo is returned by operations that need an opened video.
	ErrNoVideo = errors.New("editor: no video opened")
	// ErrInvalidArgument is returned when an operation's preconditions fail.
	// The editor state is unchanged.
	ErrInvalidArgument = errors.New("editor: invalid argument")
	// ErrProviderFailure wraps errors returned by the media provider.
	ErrProviderFailure = errors.New("editor: provider failure")
	// ErrTemplateCorrupt is returned when a template record cannot be replayed.
	ErrTemplateCorrupt = errors.New("editor: template corrupt")
	// ErrStoreFailure wraps errors returned by the template store.
	ErrStoreFailure = errors.New("editor: template store failure")
)

// durationTolerance absorbs container rounding when validating time ranges
// against a probed duration.
const durationTolerance = 0.05

// TemplateStore persists the serialized template table.
type TemplateStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Snapshot is the full editable state at one point in history: the active
// clip plus the optional fragments kept to its left and right.
type Snapshot struct {
	Left   *media.Clip
	Active *media.Clip
	Right  *media.Clip
}

// HasFragments reports whether a fragment is currently chosen.
func (s Snapshot) HasFragments() bool {
	return s.Left != nil || s.Right != nil
}

// Duration returns the length of the composed timeline.
func (s Snapshot) Duration() float64 {
	var d float64
	for _, c := range s.parts() {
		d += c.Duration()
	}
	return d
}

// parts returns the present clips in temporal order.
func (s Snapshot) parts() []*media.Clip {
	parts := make([]*media.Clip, 0, 3)
	for _, c := range []*media.Clip{s.Left, s.Active, s.Right} {
		if c != nil {
			parts = append(parts, c)
		}
	}
	return parts
}

// Option configures an Editor.
type Option func(*Editor)

// WithHistoryCapacity bounds each of the undo and redo stacks.
// Non-positive values select history.DefaultCapacity.
func WithHistoryCapacity(n int) Option {
	return func(e *Editor) {
		e.capacity = n
	}
}

// WithTemplateSlots sets the number of template slots.
// Non-positive values select macro.DefaultSlots.
func WithTemplateSlots(n int) Option {
	return func(e *Editor) {
		if n > 0 {
			e.slots = n
		}
	}
}

// WithSmoothConcatenation makes ConcatenateVideos crossfade consecutive
// videos over media.SmoothOverlap seconds. The setting is not recorded;
// templates replay with the setting of the editor playing them. Fragment
// reintegration always joins without a transition.
func WithSmoothConcatenation(smooth bool) Option {
	return func(e *Editor) {
		e.smooth = smooth
	}
}

// Editor is the editing engine. It is safe for concurrent use; calls are
// serialized so mutations never overlap.
type Editor struct {
	mu       sync.Mutex
	provider media.Provider
	store    TemplateStore
	logger   *slog.Logger

	capacity int
	slots    int
	smooth   bool

	history  *history.History[Snapshot]
	recorder *macro.Recorder
	layout   macro.Layout

	opened     bool
	current    Snapshot
	sessionID  string
	sourcePath string
	outputPath string

	// clips holds every clip referenced by the current snapshot or history.
	clips map[*media.Clip]struct{}
}

// New creates an Editor and loads the template table from store.
// A missing table yields empty slots; a corrupt one fails construction
// with an error wrapping macro.ErrCorruptStore.
func New(ctx context.Context, provider media.Provider, store TemplateStore, logger *slog.Logger, opts ...Option) (*Editor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Editor{
		provider: provider,
		store:    store,
		logger:   logger,
		slots:    macro.DefaultSlots,
		clips:    make(map[*media.Clip]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.history = history.New[Snapshot](e.capacity)

	data, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load templates: %w", ErrStoreFailure, err)
	}
	table, err := macro.Decode(data, e.slots)
	if err != nil {
		return nil, err
	}
	e.recorder = macro.NewRecorder(table)
	e.layout = macro.DetectLayout(data)

	e.logger.Info("editor initialized",
		slog.Int("history_capacity", e.history.Capacity()),
		slog.Int("template_slots", e.slots),
		slog.Bool("smooth_concat", e.smooth),
	)
	return e, nil
}

// Open loads the video at path and starts a new session. History is
// cleared and an active recording is stopped and persisted. On failure the
// previous session is left untouched.
func (e *Editor) Open(ctx context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidArgument)
	}

	clip, err := e.provider.Load(ctx, path)
	if err != nil {
		e.logger.Error("failed to open video",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: open %s: %w", ErrProviderFailure, path, err)
	}

	persistErr := e.stopRecordingLocked(ctx)

	e.history.Clear()
	e.current = Snapshot{Active: clip}
	e.opened = true
	e.sessionID = id.Generate()
	e.sourcePath = path
	e.outputPath = path
	e.collect(ctx)

	w, h := clip.Size()
	e.logger.Info("video opened",
		slog.String("session_id", e.sessionID),
		slog.String("path", path),
		slog.Float64("duration", clip.Duration()),
		slog.Int("width", w),
		slog.Int("height", h),
	)
	return persistErr
}

// Undo restores the previous snapshot. Returns history.ErrNothingToUndo
// when there is nothing to undo.
func (e *Editor) Undo(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.opened {
		return ErrNoVideo
	}
	prev, err := e.history.Undo(e.current)
	if err != nil {
		return err
	}
	e.current = prev
	e.collect(ctx)
	e.logDepths("undo")
	return nil
}

// Redo reinstates the most recently undone snapshot. Returns
// history.ErrNothingToRedo when the redo path is empty.
func (e *Editor) Redo(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.opened {
		return ErrNoVideo
	}
	next, err := e.history.Redo(e.current)
	if err != nil {
		return err
	}
	e.current = next
	e.collect(ctx)
	e.logDepths("redo")
	return nil
}

// transform derives the next snapshot from the current one.
type transform func(ctx context.Context, cur Snapshot) (Snapshot, error)

// apply runs a history-tracked mutation. The current snapshot is recorded
// before fn runs; if fn fails the record is rolled back. On success the
// action, when non-nil, is appended to an active recording.
func (e *Editor) apply(ctx context.Context, op string, action macro.Action, fn transform) error {
	prev := e.current
	e.history.Record(prev)

	next, err := fn(ctx, prev)
	if err != nil {
		if rbErr := e.history.Rollback(); rbErr != nil {
			e.logger.Warn("history rollback failed", slog.String("op", op), slog.String("error", rbErr.Error()))
		}
		e.logger.Error("operation failed",
			slog.String("session_id", e.sessionID),
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %s: %w", ErrProviderFailure, op, err)
	}

	e.current = next
	if action != nil {
		if err := e.recorder.Append(action); err != nil {
			e.logger.Warn("failed to record action", slog.String("op", op), slog.String("error", err.Error()))
		}
	}
	e.collect(ctx)
	e.logDepths(op)
	return nil
}

// collect releases clips that are no longer referenced by the current
// snapshot or either history stack.
func (e *Editor) collect(ctx context.Context) {
	live := make(map[*media.Clip]struct{}, len(e.clips))
	mark := func(s Snapshot) {
		for _, c := range s.parts() {
			live[c] = struct{}{}
		}
	}
	mark(e.current)
	for _, s := range e.history.Entries() {
		mark(s)
	}

	for c := range e.clips {
		if _, ok := live[c]; ok {
			continue
		}
		if err := e.provider.Release(ctx, c); err != nil {
			e.logger.Warn("failed to release clip", slog.String("clip", c.String()), slog.String("error", err.Error()))
		}
	}
	e.clips = live
}

// release frees intermediate clips produced by a transform that are never
// installed in a snapshot.
func (e *Editor) release(ctx context.Context, clips ...*media.Clip) {
	for _, c := range clips {
		if c == nil {
			continue
		}
		if err := e.provider.Release(ctx, c); err != nil {
			e.logger.Warn("failed to release clip", slog.String("clip", c.String()), slog.String("error", err.Error()))
		}
	}
}

func (e *Editor) logDepths(op string) {
	e.logger.Info("operation applied",
		slog.String("session_id", e.sessionID),
		slog.String("op", op),
		slog.Int("undo_depth", e.history.UndoDepth()),
		slog.Int("redo_depth", e.history.RedoDepth()),
	)
}

// Status is a consistent view of the editor state.
type Status struct {
	Opened     bool
	SessionID  string
	SourcePath string
	OutputPath string
	Current    Snapshot
	UndoDepth  int
	RedoDepth  int
	Recording  bool
	ActiveSlot int
	Slots      int
}

// Status returns the current state of the editor.
func (e *Editor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot, recording := e.recorder.ActiveSlot()
	return Status{
		Opened:     e.opened,
		SessionID:  e.sessionID,
		SourcePath: e.sourcePath,
		OutputPath: e.outputPath,
		Current:    e.current,
		UndoDepth:  e.history.UndoDepth(),
		RedoDepth:  e.history.RedoDepth(),
		Recording:  recording,
		ActiveSlot: slot,
		Slots:      e.slots,
	}
}

// Current returns the current snapshot.
func (e *Editor) Current() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// SessionID returns the identifier of the open session, or "" before Open.
func (e *Editor) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// SourcePath returns the path the current session was opened from.
func (e *Editor) SourcePath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sourcePath
}

// UndoDepth returns the number of snapshots available to undo.
func (e *Editor) UndoDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.UndoDepth()
}

// RedoDepth returns the number of snapshots available to redo.
func (e *Editor) RedoDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.RedoDepth()
}
