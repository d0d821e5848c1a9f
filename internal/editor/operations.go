package editor

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/maauso/clipedit/internal/macro"
	"github.com/maauso/clipedit/internal/media"
)

// ChangeSpeed scales the playback speed of the active clip; the duration
// becomes D / factor.
func (e *Editor) ChangeSpeed(ctx context.Context, factor float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatch(ctx, macro.ChangeSpeed{Factor: factor})
}

// CutFragment keeps the [start, end] range of the active clip.
func (e *Editor) CutFragment(ctx context.Context, start, end float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatch(ctx, macro.CutFragment{Start: start, End: end})
}

// InsertImage overlays the image at path on the active clip from start to end.
func (e *Editor) InsertImage(ctx context.Context, path string, start, end float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatch(ctx, macro.InsertImage{Path: path, Start: start, End: end})
}

// ConcatenateVideos replaces the active clip with the videos at paths
// joined in order, crossfading when the editor was created with
// WithSmoothConcatenation.
func (e *Editor) ConcatenateVideos(ctx context.Context, paths []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatch(ctx, macro.ConcatenateVideo{Paths: append([]string(nil), paths...)})
}

// RotateVideo turns the active clip 90 degrees in direction.
func (e *Editor) RotateVideo(ctx context.Context, direction macro.Direction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatch(ctx, macro.RotateVideo{Direction: direction})
}

// CropVideo keeps the rectangle (x1, y1)-(x2, y2) of the active clip.
func (e *Editor) CropVideo(ctx context.Context, x1, y1, x2, y2 int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatch(ctx, macro.CropVideo{X1: x1, Y1: y1, X2: x2, Y2: y2})
}

// dispatch validates a recordable action and applies it through the
// history-tracked path. Callers hold e.mu.
func (e *Editor) dispatch(ctx context.Context, action macro.Action) error {
	if !e.opened {
		return ErrNoVideo
	}
	active := e.current.Active

	switch a := action.(type) {
	case macro.ChangeSpeed:
		if !(a.Factor > 0) || math.IsInf(a.Factor, 0) {
			return fmt.Errorf("%w: speed factor must be positive, got %v", ErrInvalidArgument, a.Factor)
		}
		return e.apply(ctx, a.Op(), a, e.replaceActive(func(ctx context.Context, c *media.Clip) (*media.Clip, error) {
			return e.provider.Speed(ctx, c, a.Factor)
		}))

	case macro.CutFragment:
		end, err := checkRange(active, a.Start, a.End)
		if err != nil {
			return err
		}
		return e.apply(ctx, a.Op(), a, e.replaceActive(func(ctx context.Context, c *media.Clip) (*media.Clip, error) {
			return e.provider.Slice(ctx, c, a.Start, end)
		}))

	case macro.InsertImage:
		if a.Path == "" {
			return fmt.Errorf("%w: image path is required", ErrInvalidArgument)
		}
		end, err := checkRange(active, a.Start, a.End)
		if err != nil {
			return err
		}
		return e.apply(ctx, a.Op(), a, e.replaceActive(func(ctx context.Context, c *media.Clip) (*media.Clip, error) {
			return e.provider.OverlayImage(ctx, c, a.Path, a.Start, end)
		}))

	case macro.ConcatenateVideo:
		if len(a.Paths) == 0 {
			return fmt.Errorf("%w: at least one video path is required", ErrInvalidArgument)
		}
		for i, p := range a.Paths {
			if p == "" {
				return fmt.Errorf("%w: video path %d is empty", ErrInvalidArgument, i)
			}
		}
		return e.apply(ctx, a.Op(), a, e.replaceActive(func(ctx context.Context, _ *media.Clip) (*media.Clip, error) {
			return e.concatenatePaths(ctx, a.Paths)
		}))

	case macro.RotateVideo:
		if !a.Direction.IsValid() {
			return fmt.Errorf("%w: direction must be left or right, got %q", ErrInvalidArgument, a.Direction)
		}
		return e.apply(ctx, a.Op(), a, e.replaceActive(func(ctx context.Context, c *media.Clip) (*media.Clip, error) {
			return e.provider.Rotate(ctx, c, a.Direction.Degrees())
		}))

	case macro.CropVideo:
		w, h := active.Size()
		if a.X1 < 0 || a.Y1 < 0 || a.X1 >= a.X2 || a.Y1 >= a.Y2 || a.X2 > w || a.Y2 > h {
			return fmt.Errorf("%w: crop (%d,%d)-(%d,%d) outside %dx%d frame", ErrInvalidArgument, a.X1, a.Y1, a.X2, a.Y2, w, h)
		}
		return e.apply(ctx, a.Op(), a, e.replaceActive(func(ctx context.Context, c *media.Clip) (*media.Clip, error) {
			return e.provider.Crop(ctx, c, a.X1, a.Y1, a.X2, a.Y2)
		}))

	default:
		return fmt.Errorf("%w: %s", macro.ErrUnknownOperation, action.Op())
	}
}

// AddFadeInOut fades the start and end of the active clip in the style of
// kind. Fades are tracked in history but never recorded into templates.
func (e *Editor) AddFadeInOut(ctx context.Context, kind media.FadeKind, fadeIn, fadeOut float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.opened {
		return ErrNoVideo
	}
	if !kind.IsValid() {
		return fmt.Errorf("%w: unknown fade kind %q", ErrInvalidArgument, kind)
	}
	d := e.current.Active.Duration()
	if fadeIn < 0 || fadeOut < 0 || fadeIn+fadeOut > d+durationTolerance {
		return fmt.Errorf("%w: fades %.3f+%.3f must be non-negative and fit in %.3f", ErrInvalidArgument, fadeIn, fadeOut, d)
	}

	return e.apply(ctx, "fade_in_out", nil, e.replaceActive(func(ctx context.Context, c *media.Clip) (*media.Clip, error) {
		return e.provider.FadeInOut(ctx, c, kind, fadeIn, fadeOut)
	}))
}

// replaceActive lifts a clip transform to a snapshot transform that keeps
// the fragments and swaps the active clip.
func (e *Editor) replaceActive(fn func(ctx context.Context, c *media.Clip) (*media.Clip, error)) transform {
	return func(ctx context.Context, cur Snapshot) (Snapshot, error) {
		c, err := fn(ctx, cur.Active)
		if err != nil {
			return Snapshot{}, err
		}
		next := cur
		next.Active = c
		return next, nil
	}
}

// concatenatePaths loads each path and joins the clips in order.
func (e *Editor) concatenatePaths(ctx context.Context, paths []string) (*media.Clip, error) {
	loaded := make([]*media.Clip, 0, len(paths))
	defer func() { e.release(ctx, loaded...) }()

	for _, p := range paths {
		c, err := e.provider.Load(ctx, p)
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, c)
	}
	if len(loaded) == 1 {
		// hand the single loaded clip over instead of copying it
		c := loaded[0]
		loaded = nil
		return c, nil
	}
	return e.provider.Concatenate(ctx, loaded, e.smooth)
}

// checkRange validates 0 <= start < end <= D for clip c and returns end
// clamped to D.
func checkRange(c *media.Clip, start, end float64) (float64, error) {
	d := c.Duration()
	if math.IsNaN(start) || math.IsNaN(end) || start < 0 || start >= end || end > d+durationTolerance {
		return 0, fmt.Errorf("%w: range [%v, %v] must satisfy 0 <= start < end <= %.3f", ErrInvalidArgument, start, end, d)
	}
	return math.Min(end, d), nil
}

// Save exports the composed timeline to the current output path.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.opened {
		return ErrNoVideo
	}
	return e.export(ctx, e.outputPath)
}

// SaveAs exports the composed timeline to path and makes it the output
// path for later calls to Save.
func (e *Editor) SaveAs(ctx context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.opened {
		return ErrNoVideo
	}
	if path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidArgument)
	}
	if err := e.export(ctx, path); err != nil {
		return err
	}
	e.outputPath = path
	return nil
}

// OutputPath returns the path Save writes to.
func (e *Editor) OutputPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outputPath
}

// export writes left, active and right joined in order. Edit state and
// history are not changed.
func (e *Editor) export(ctx context.Context, path string) error {
	parts := e.current.parts()
	out := parts[0]
	if len(parts) > 1 {
		joined, err := e.provider.Concatenate(ctx, parts, false)
		if err != nil {
			return fmt.Errorf("%w: compose timeline: %w", ErrProviderFailure, err)
		}
		defer e.release(ctx, joined)
		out = joined
	}

	if err := e.provider.Write(ctx, out, path); err != nil {
		e.logger.Error("failed to save video",
			slog.String("session_id", e.sessionID),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: write %s: %w", ErrProviderFailure, path, err)
	}

	e.logger.Info("video saved",
		slog.String("session_id", e.sessionID),
		slog.String("path", path),
		slog.Float64("duration", out.Duration()),
	)
	return nil
}
