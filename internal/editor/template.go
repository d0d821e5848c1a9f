package editor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/clipedit/internal/macro"
)

// StartRecording begins recording recordable operations into slot,
// resetting its previous content. Other slots are left untouched.
func (e *Editor) StartRecording(slot int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.recorder.Start(slot); err != nil {
		return err
	}
	e.logger.Info("template recording started",
		slog.String("session_id", e.sessionID),
		slog.Int("slot", slot),
	)
	return nil
}

// StopRecording ends the active recording and persists every slot in the
// layout the store was loaded in. It is a no-op while no recording is active.
func (e *Editor) StopRecording(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopRecordingLocked(ctx)
}

func (e *Editor) stopRecordingLocked(ctx context.Context) error {
	slot, active := e.recorder.ActiveSlot()
	if !active {
		return nil
	}
	e.recorder.Stop()

	data, err := e.recorder.Table().EncodeLayout(e.layout)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	if err := e.store.Save(ctx, data); err != nil {
		e.logger.Error("failed to persist templates",
			slog.Int("slot", slot),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: save templates: %w", ErrStoreFailure, err)
	}

	e.logger.Info("template recording stopped",
		slog.String("session_id", e.sessionID),
		slog.Int("slot", slot),
	)
	return nil
}

// UseTemplate replays the operations recorded in slot against the current
// video. Recording is stopped first so the replay is never recorded. Each
// step goes through the history on its own and can be undone separately.
//
// An unset or empty slot is a no-op. A record that cannot be decoded halts
// the replay with ErrTemplateCorrupt; steps applied before it remain.
func (e *Editor) UseTemplate(ctx context.Context, slot int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	recs, err := e.recorder.Slot(slot)
	if err != nil {
		return err
	}
	if err := e.stopRecordingLocked(ctx); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	if !e.opened {
		return ErrNoVideo
	}

	e.logger.Info("replaying template",
		slog.String("session_id", e.sessionID),
		slog.Int("slot", slot),
		slog.Int("steps", len(recs)),
	)

	for i, rec := range recs {
		action, err := rec.Action()
		if err != nil {
			e.logger.Error("template replay halted",
				slog.Int("slot", slot),
				slog.Int("step", i),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("%w: slot %d step %d: %w", ErrTemplateCorrupt, slot, i, err)
		}
		if err := e.dispatch(ctx, action); err != nil {
			return fmt.Errorf("replay slot %d step %d (%s): %w", slot, i, rec.Op, err)
		}
	}
	return nil
}

// Templates returns a copy of every template slot.
func (e *Editor) Templates() macro.Table {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recorder.Table()
}

// Recording returns the slot being recorded, if any.
func (e *Editor) Recording() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recorder.ActiveSlot()
}
