// Package media provides the video operation provider used by the editor.
//
// A Provider executes one transform against a Clip and returns a new Clip.
// Clips are never mutated in place; every operation derives a fresh handle.
// FFmpegProvider shells out to the ffmpeg CLI, MemoryProvider only tracks
// clip metadata and is used for tests and dry runs.
package media

import (
	"context"
	"errors"
	"fmt"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when a crop rectangle is empty or outside the frame.
	ErrInvalidDimensions = errors.New("media: invalid dimensions")
	// ErrInvalidRange is returned when a time range is empty or outside the clip.
	ErrInvalidRange = errors.New("media: invalid time range")
	// ErrInvalidFactor is returned when a speed factor is not positive.
	ErrInvalidFactor = errors.New("media: speed factor must be positive")
	// ErrInvalidRotation is returned when a rotation is not a multiple of 90 degrees.
	ErrInvalidRotation = errors.New("media: rotation must be a multiple of 90 degrees")
	// ErrNoClips is returned when no clips are provided for concatenation.
	ErrNoClips = errors.New("media: no clips provided")
	// ErrUnknownFade is returned for an unsupported fade kind.
	ErrUnknownFade = errors.New("media: unknown fade kind")
	// ErrSourceNotFound is returned when a source file cannot be loaded.
	ErrSourceNotFound = errors.New("media: source not found")
	// ErrNoVideoStream is returned when a probed file has no video stream.
	ErrNoVideoStream = errors.New("media: no video stream found")
)

// SmoothOverlap is the crossfade length in seconds between clips joined with smooth=true.
const SmoothOverlap = 1.0

// FadeKind selects the style of a fade in/out.
type FadeKind string

const (
	// FadeDark fades from and to black.
	FadeDark FadeKind = "dark"
	// FadeLight fades from and to white.
	FadeLight FadeKind = "light"
	// FadeGrayscale fades from and to a desaturated picture.
	FadeGrayscale FadeKind = "grayscale"
)

// IsValid returns true if the fade kind is supported.
func (k FadeKind) IsValid() bool {
	return k == FadeDark || k == FadeLight || k == FadeGrayscale
}

// Clip is an immutable handle to a video's current content.
type Clip struct {
	path     string
	duration float64
	width    int
	height   int
	hasAudio bool
	// owned clips live in the workspace and may be deleted on Release.
	owned bool
}

// Path returns the file backing the clip.
func (c *Clip) Path() string { return c.path }

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 { return c.duration }

// Size returns the frame width and height in pixels.
func (c *Clip) Size() (width, height int) { return c.width, c.height }

// Width returns the frame width in pixels.
func (c *Clip) Width() int { return c.width }

// Height returns the frame height in pixels.
func (c *Clip) Height() int { return c.height }

// HasAudio reports whether the clip carries an audio track.
func (c *Clip) HasAudio() bool { return c.hasAudio }

// String returns a short description for logs.
func (c *Clip) String() string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (%.2fs %dx%d)", c.path, c.duration, c.width, c.height)
}

// Provider defines the video operations the editor delegates to.
// All operations return new clips and leave their inputs untouched.
type Provider interface {
	// Load opens a source file and returns a clip owned by the provider.
	Load(ctx context.Context, path string) (*Clip, error)

	// Slice keeps the [start, end] range of c (seconds).
	Slice(ctx context.Context, c *Clip, start, end float64) (*Clip, error)

	// Speed changes playback speed; the duration becomes D / factor.
	Speed(ctx context.Context, c *Clip, factor float64) (*Clip, error)

	// Rotate turns the picture; positive degrees rotate counter-clockwise.
	Rotate(ctx context.Context, c *Clip, degrees int) (*Clip, error)

	// Crop keeps the rectangle with corners (x1, y1) and (x2, y2).
	Crop(ctx context.Context, c *Clip, x1, y1, x2, y2 int) (*Clip, error)

	// OverlayImage draws the image at the frame origin between start and end.
	OverlayImage(ctx context.Context, c *Clip, imagePath string, start, end float64) (*Clip, error)

	// Concatenate joins clips in order. The result has the largest width
	// and height among clips, with smaller clips centred, and has audio
	// when any clip does. With smooth, consecutive clips crossfade over
	// SmoothOverlap seconds.
	Concatenate(ctx context.Context, clips []*Clip, smooth bool) (*Clip, error)

	// FadeInOut applies a fade of the given kind at both ends of c.
	FadeInOut(ctx context.Context, c *Clip, kind FadeKind, fadeIn, fadeOut float64) (*Clip, error)

	// Write exports c to path.
	Write(ctx context.Context, c *Clip, path string) error

	// Release frees resources held by a clip that is no longer referenced.
	Release(ctx context.Context, c *Clip) error
}

// Workspace provides scratch files for derived clips.
type Workspace interface {
	// CreateTemp reserves a new empty file named after name with extension ext.
	CreateTemp(ctx context.Context, name, ext string) (string, error)

	// CleanupTemp removes the specified temporary files.
	CleanupTemp(ctx context.Context, paths []string) error
}

// checkRange validates 0 <= start < end <= duration.
func checkRange(c *Clip, start, end float64) error {
	if start < 0 || start >= end || end > c.duration+durationTolerance {
		return fmt.Errorf("%w: [%.3f, %.3f] outside [0, %.3f]", ErrInvalidRange, start, end, c.duration)
	}
	return nil
}

// checkCrop validates the crop rectangle against the frame.
func checkCrop(c *Clip, x1, y1, x2, y2 int) error {
	if x1 < 0 || y1 < 0 || x1 >= x2 || y1 >= y2 || x2 > c.width || y2 > c.height {
		return fmt.Errorf("%w: (%d,%d)-(%d,%d) in %dx%d frame", ErrInvalidDimensions, x1, y1, x2, y2, c.width, c.height)
	}
	return nil
}

// normalizeRotation maps degrees to 0, 90, 180 or 270 (counter-clockwise).
func normalizeRotation(degrees int) (int, error) {
	if degrees%90 != 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidRotation, degrees)
	}
	return ((degrees % 360) + 360) % 360, nil
}

// durationTolerance absorbs container rounding when comparing against a probed duration.
const durationTolerance = 0.05

// canvasSize returns the largest width and height among clips.
func canvasSize(clips []*Clip) (int, int) {
	var w, h int
	for _, c := range clips {
		w = max(w, c.width)
		h = max(h, c.height)
	}
	return w, h
}

func sameSize(clips []*Clip) bool {
	for _, c := range clips[1:] {
		if c.width != clips[0].width || c.height != clips[0].height {
			return false
		}
	}
	return true
}

// uniform reports whether clips share frame size and audio presence, so
// they can be joined without rescaling or synthesizing audio.
func uniform(clips []*Clip) bool {
	if !sameSize(clips) {
		return false
	}
	for _, c := range clips[1:] {
		if c.hasAudio != clips[0].hasAudio {
			return false
		}
	}
	return true
}
