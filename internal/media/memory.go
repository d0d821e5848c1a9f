package media

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// MemoryProvider implements Provider over clip metadata only. No media is
// decoded; every operation computes the resulting duration and frame size.
// Sources must be registered before they can be loaded.
type MemoryProvider struct {
	mu       sync.Mutex
	sources  map[string]Clip
	failures map[string]error
	seq      int
	live     map[string]*Clip
	written  map[string]*Clip
	released []*Clip
	probe    func(ctx context.Context, path string) (probeResult, error)
}

// NewMemoryProvider creates an empty MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		sources:  make(map[string]Clip),
		failures: make(map[string]error),
		live:     make(map[string]*Clip),
		written:  make(map[string]*Clip),
	}
}

// Register makes path loadable as a clip with the given metadata.
func (p *MemoryProvider) Register(path string, duration float64, width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources[path] = Clip{path: path, duration: duration, width: width, height: height, hasAudio: true}
}

// ProbeSources makes Load fall back to ffprobe for unregistered paths, so
// edits can be dry-run against real files without rendering them.
func (p *MemoryProvider) ProbeSources() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probe = probeFile
}

// FailOn makes every later call of the named method return err.
// A nil err clears the failure. Method names match the Provider interface.
func (p *MemoryProvider) FailOn(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, method)
		return
	}
	p.failures[method] = err
}

// Written returns the clip last written to path, or nil.
func (p *MemoryProvider) Written(path string) *Clip {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written[path]
}

// Released returns the clips released so far, in order.
func (p *MemoryProvider) Released() []*Clip {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Clip(nil), p.released...)
}

// Live returns the number of derived clips not yet released.
func (p *MemoryProvider) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

func (p *MemoryProvider) Load(ctx context.Context, path string) (*Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("Load"); err != nil {
		return nil, err
	}
	src, ok := p.sources[path]
	if !ok && p.probe != nil {
		info, err := p.probe(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceNotFound, path, err)
		}
		src = Clip{path: path, duration: info.duration, width: info.width, height: info.height, hasAudio: info.hasAudio}
		ok = true
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}
	return p.derive(src.duration, src.width, src.height, src.hasAudio), nil
}

func (p *MemoryProvider) Slice(_ context.Context, c *Clip, start, end float64) (*Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("Slice"); err != nil {
		return nil, err
	}
	if err := checkRange(c, start, end); err != nil {
		return nil, err
	}
	return p.derive(math.Min(end, c.duration)-start, c.width, c.height, c.hasAudio), nil
}

func (p *MemoryProvider) Speed(_ context.Context, c *Clip, factor float64) (*Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("Speed"); err != nil {
		return nil, err
	}
	if factor <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidFactor, factor)
	}
	return p.derive(c.duration/factor, c.width, c.height, c.hasAudio), nil
}

func (p *MemoryProvider) Rotate(_ context.Context, c *Clip, degrees int) (*Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("Rotate"); err != nil {
		return nil, err
	}
	normalized, err := normalizeRotation(degrees)
	if err != nil {
		return nil, err
	}
	w, h := c.width, c.height
	if normalized == 90 || normalized == 270 {
		w, h = h, w
	}
	return p.derive(c.duration, w, h, c.hasAudio), nil
}

func (p *MemoryProvider) Crop(_ context.Context, c *Clip, x1, y1, x2, y2 int) (*Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("Crop"); err != nil {
		return nil, err
	}
	if err := checkCrop(c, x1, y1, x2, y2); err != nil {
		return nil, err
	}
	return p.derive(c.duration, x2-x1, y2-y1, c.hasAudio), nil
}

func (p *MemoryProvider) OverlayImage(_ context.Context, c *Clip, _ string, start, end float64) (*Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("OverlayImage"); err != nil {
		return nil, err
	}
	if err := checkRange(c, start, end); err != nil {
		return nil, err
	}
	return p.derive(c.duration, c.width, c.height, c.hasAudio), nil
}

// Concatenate sums durations, minus SmoothOverlap per join when smooth.
// The result takes the largest width and height among clips and has audio
// when any clip does.
func (p *MemoryProvider) Concatenate(_ context.Context, clips []*Clip, smooth bool) (*Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("Concatenate"); err != nil {
		return nil, err
	}
	if len(clips) == 0 {
		return nil, ErrNoClips
	}
	var total float64
	for _, c := range clips {
		if smooth && len(clips) > 1 && c.duration <= SmoothOverlap {
			return nil, fmt.Errorf("%w: clip %s shorter than the %.1fs crossfade", ErrInvalidRange, c.path, SmoothOverlap)
		}
		total += c.duration
	}
	if smooth {
		total -= float64(len(clips)-1) * SmoothOverlap
	}
	width, height := canvasSize(clips)
	return p.derive(total, width, height, anyHasAudio(clips)), nil
}

func (p *MemoryProvider) FadeInOut(_ context.Context, c *Clip, kind FadeKind, fadeIn, fadeOut float64) (*Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("FadeInOut"); err != nil {
		return nil, err
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFade, kind)
	}
	if fadeIn < 0 || fadeOut < 0 || fadeIn+fadeOut > c.duration+durationTolerance {
		return nil, fmt.Errorf("%w: fade %.3f+%.3f exceeds %.3f", ErrInvalidRange, fadeIn, fadeOut, c.duration)
	}
	return p.derive(c.duration, c.width, c.height, c.hasAudio), nil
}

func (p *MemoryProvider) Write(_ context.Context, c *Clip, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("Write"); err != nil {
		return err
	}
	out := *c
	p.written[path] = &out
	return nil
}

func (p *MemoryProvider) Release(_ context.Context, c *Clip) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c == nil {
		return nil
	}
	if err := p.failure("Release"); err != nil {
		return err
	}
	delete(p.live, c.path)
	p.released = append(p.released, c)
	return nil
}

func (p *MemoryProvider) failure(method string) error {
	return p.failures[method]
}

// derive creates a new owned clip with a unique synthetic path.
func (p *MemoryProvider) derive(duration float64, width, height int, hasAudio bool) *Clip {
	p.seq++
	c := &Clip{
		path:     fmt.Sprintf("mem://clip-%d.mp4", p.seq),
		duration: duration,
		width:    width,
		height:   height,
		hasAudio: hasAudio,
		owned:    true,
	}
	p.live[c.path] = c
	return c
}
