package editor

import (
	"context"

	"github.com/maauso/clipedit/internal/media"
)

// ChooseFragment narrows editing to [start, end] of the active clip. The
// parts before start and after end are kept as fragments and rejoined by
// EditFullVideo. No fragment is created for an empty side.
//
// When fragments already exist, the new side slices are joined onto them.
func (e *Editor) ChooseFragment(ctx context.Context, start, end float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.opened {
		return ErrNoVideo
	}
	end, err := checkRange(e.current.Active, start, end)
	if err != nil {
		return err
	}

	return e.apply(ctx, "choose_fragment", nil, func(ctx context.Context, cur Snapshot) (Snapshot, error) {
		return e.split(ctx, cur, start, end)
	})
}

func (e *Editor) split(ctx context.Context, cur Snapshot, start, end float64) (Snapshot, error) {
	src := cur.Active
	d := src.Duration()

	var created []*media.Clip
	fail := func(err error) (Snapshot, error) {
		e.release(ctx, created...)
		return Snapshot{}, err
	}

	next := Snapshot{Left: cur.Left, Right: cur.Right}

	if start > 0 {
		left, err := e.provider.Slice(ctx, src, 0, start)
		if err != nil {
			return fail(err)
		}
		created = append(created, left)
		if cur.Left != nil {
			joined, err := e.provider.Concatenate(ctx, []*media.Clip{cur.Left, left}, false)
			if err != nil {
				return fail(err)
			}
			e.release(ctx, left)
			created = append(created[:len(created)-1], joined)
			left = joined
		}
		next.Left = left
	}

	if end < d {
		right, err := e.provider.Slice(ctx, src, end, d)
		if err != nil {
			return fail(err)
		}
		created = append(created, right)
		if cur.Right != nil {
			joined, err := e.provider.Concatenate(ctx, []*media.Clip{right, cur.Right}, false)
			if err != nil {
				return fail(err)
			}
			e.release(ctx, right)
			created = append(created[:len(created)-1], joined)
			right = joined
		}
		next.Right = right
	}

	active, err := e.provider.Slice(ctx, src, start, end)
	if err != nil {
		return fail(err)
	}
	next.Active = active
	return next, nil
}

// EditFullVideo rejoins the fragments with the active clip into a single
// active clip. Without fragments it does nothing and history is untouched.
func (e *Editor) EditFullVideo(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.opened {
		return ErrNoVideo
	}
	if !e.current.HasFragments() {
		return nil
	}

	return e.apply(ctx, "edit_full_video", nil, func(ctx context.Context, cur Snapshot) (Snapshot, error) {
		joined, err := e.provider.Concatenate(ctx, cur.parts(), false)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Active: joined}, nil
	})
}
