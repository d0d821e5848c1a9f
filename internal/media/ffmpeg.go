package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ErrFFprobeExecution is returned when probing a media file fails.
var ErrFFprobeExecution = errors.New("ffprobe execution failed")

const defaultVideoCodec = "libx264"

// FFmpegProvider implements Provider using the ffmpeg CLI.
// Derived clips are written to files reserved from the workspace.
type FFmpegProvider struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	videoCodec string
	workspace  Workspace

	// probe reads stream metadata; replaced in tests.
	probe func(ctx context.Context, path string) (probeResult, error)
}

// FFmpegOption configures an FFmpegProvider.
type FFmpegOption func(*FFmpegProvider)

// WithVideoCodec sets the encoder used for re-encoded outputs.
func WithVideoCodec(codec string) FFmpegOption {
	return func(p *FFmpegProvider) {
		if codec != "" {
			p.videoCodec = codec
		}
	}
}

// NewFFmpegProvider creates a new FFmpegProvider.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProvider(ffmpegPath string, workspace Workspace, opts ...FFmpegOption) *FFmpegProvider {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	p := &FFmpegProvider{
		ffmpegPath: ffmpegPath,
		videoCodec: defaultVideoCodec,
		workspace:  workspace,
		probe:      probeFile,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load copies the source into the workspace and probes it.
func (p *FFmpegProvider) Load(ctx context.Context, path string) (*Clip, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceNotFound, path, err)
	}

	dst, err := p.workspace.CreateTemp(ctx, "source", filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("reserve workspace file: %w", err)
	}
	if err := copyFile(path, dst); err != nil {
		p.discard(ctx, dst)
		return nil, err
	}

	clip, err := p.clipFrom(ctx, dst)
	if err != nil {
		p.discard(ctx, dst)
		return nil, err
	}
	return clip, nil
}

// Slice keeps [start, end] of c, re-encoding so cuts land on exact frames.
func (p *FFmpegProvider) Slice(ctx context.Context, c *Clip, start, end float64) (*Clip, error) {
	if err := checkRange(c, start, end); err != nil {
		return nil, err
	}
	return p.derive(ctx, c, "slice", func(dst string) []string {
		args := []string{
			"-y",
			"-i", c.path,
			"-ss", formatSeconds(start),
			"-to", formatSeconds(end),
		}
		args = append(args, p.encodeArgs(c.hasAudio)...)
		return append(args, dst)
	})
}

// Speed changes playback speed by factor. Audio tempo follows the video.
func (p *FFmpegProvider) Speed(ctx context.Context, c *Clip, factor float64) (*Clip, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidFactor, factor)
	}
	return p.derive(ctx, c, "speed", func(dst string) []string {
		args := []string{
			"-y",
			"-i", c.path,
			"-filter:v", fmt.Sprintf("setpts=PTS/%s", formatFloat(factor)),
		}
		if c.hasAudio {
			args = append(args, "-filter:a", atempoChain(factor))
		}
		args = append(args, p.encodeArgs(c.hasAudio)...)
		return append(args, dst)
	})
}

// Rotate turns the picture by degrees, counter-clockwise for positive values.
func (p *FFmpegProvider) Rotate(ctx context.Context, c *Clip, degrees int) (*Clip, error) {
	normalized, err := normalizeRotation(degrees)
	if err != nil {
		return nil, err
	}

	var filter string
	switch normalized {
	case 0:
		return p.duplicate(ctx, c, "rotate")
	case 90:
		filter = "transpose=2"
	case 180:
		filter = "transpose=2,transpose=2"
	case 270:
		filter = "transpose=1"
	}

	return p.derive(ctx, c, "rotate", func(dst string) []string {
		args := []string{"-y", "-i", c.path, "-vf", filter}
		args = append(args, p.encodeArgs(c.hasAudio)...)
		return append(args, dst)
	})
}

// Crop keeps the rectangle (x1, y1)-(x2, y2).
func (p *FFmpegProvider) Crop(ctx context.Context, c *Clip, x1, y1, x2, y2 int) (*Clip, error) {
	if err := checkCrop(c, x1, y1, x2, y2); err != nil {
		return nil, err
	}
	filter := fmt.Sprintf("crop=%d:%d:%d:%d", x2-x1, y2-y1, x1, y1)
	return p.derive(ctx, c, "crop", func(dst string) []string {
		args := []string{"-y", "-i", c.path, "-vf", filter}
		args = append(args, p.encodeArgs(c.hasAudio)...)
		return append(args, dst)
	})
}

// OverlayImage draws imagePath at the top-left corner between start and end.
func (p *FFmpegProvider) OverlayImage(ctx context.Context, c *Clip, imagePath string, start, end float64) (*Clip, error) {
	if err := checkRange(c, start, end); err != nil {
		return nil, err
	}
	if _, err := os.Stat(imagePath); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceNotFound, imagePath, err)
	}

	filter := fmt.Sprintf("[0:v][1:v]overlay=0:0:shortest=1:enable='between(t,%s,%s)'[v]",
		formatSeconds(start), formatSeconds(end))
	return p.derive(ctx, c, "overlay", func(dst string) []string {
		args := []string{
			"-y",
			"-i", c.path,
			"-loop", "1", "-i", imagePath,
			"-filter_complex", filter,
			"-map", "[v]",
			"-map", "0:a?",
		}
		args = append(args, p.encodeArgs(c.hasAudio)...)
		return append(args, dst)
	})
}

// Concatenate joins clips in order. Clips that share frame size and audio
// presence are first joined by a fast stream copy, falling back to
// re-encoding. Mixed clips are centred on the largest frame, the way a
// compose concatenation does, with silence standing in for missing audio.
// With smooth consecutive clips crossfade over SmoothOverlap seconds.
func (p *FFmpegProvider) Concatenate(ctx context.Context, clips []*Clip, smooth bool) (*Clip, error) {
	if len(clips) == 0 {
		return nil, ErrNoClips
	}
	if len(clips) == 1 {
		return p.duplicate(ctx, clips[0], "concat")
	}
	if smooth {
		return p.crossfade(ctx, clips)
	}
	if !uniform(clips) {
		return p.compose(ctx, clips)
	}

	paths := make([]string, len(clips))
	for i, c := range clips {
		paths[i] = c.path
	}
	listFile, err := createConcatList(paths)
	if err != nil {
		return nil, fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(listFile) }()

	clip, err := p.derive(ctx, clips[0], "concat", func(dst string) []string {
		return []string{
			"-y",
			"-f", "concat",
			"-safe", "0",
			"-i", listFile,
			"-c", "copy",
			dst,
		}
	})
	if err == nil {
		return clip, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	hasAudio := clips[0].hasAudio
	return p.derive(ctx, clips[0], "concat", func(dst string) []string {
		args := []string{
			"-y",
			"-f", "concat",
			"-safe", "0",
			"-i", listFile,
		}
		args = append(args, p.encodeArgs(hasAudio)...)
		return append(args, dst)
	})
}

// compose joins mixed clips with the concat filter.
func (p *FFmpegProvider) compose(ctx context.Context, clips []*Clip) (*Clip, error) {
	hasAudio := anyHasAudio(clips)
	return p.filterJoin(ctx, clips, "concat", composeGraph(clips, hasAudio), hasAudio)
}

// crossfade joins clips with xfade/acrossfade transitions.
func (p *FFmpegProvider) crossfade(ctx context.Context, clips []*Clip) (*Clip, error) {
	for _, c := range clips {
		if c.duration <= SmoothOverlap {
			return nil, fmt.Errorf("%w: clip %s shorter than the %.1fs crossfade", ErrInvalidRange, c.path, SmoothOverlap)
		}
	}
	hasAudio := anyHasAudio(clips)
	return p.filterJoin(ctx, clips, "xfade", crossfadeGraph(clips, hasAudio), hasAudio)
}

// filterJoin runs graph over every clip as an input. The graph must label
// its outputs [v] and, with audio, [a].
func (p *FFmpegProvider) filterJoin(ctx context.Context, clips []*Clip, name, graph string, hasAudio bool) (*Clip, error) {
	return p.derive(ctx, clips[0], name, func(dst string) []string {
		args := []string{"-y"}
		for _, c := range clips {
			args = append(args, "-i", c.path)
		}
		args = append(args, "-filter_complex", graph, "-map", "[v]")
		if hasAudio {
			args = append(args, "-map", "[a]")
		}
		args = append(args, p.encodeArgs(hasAudio)...)
		return append(args, dst)
	})
}

// joinInputs returns the filters that bring every input to a common frame
// size and, with audio, give every input an audio stream. It also returns
// the video and audio labels to join, one per clip.
func joinInputs(clips []*Clip, hasAudio bool) (parts, video, audio []string) {
	width, height := canvasSize(clips)
	pad := !sameSize(clips)
	for i, c := range clips {
		v := fmt.Sprintf("[%d:v]", i)
		if pad {
			v = fmt.Sprintf("[p%d]", i)
			parts = append(parts, fmt.Sprintf("[%d:v]pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1%s",
				i, width, height, v))
		}
		video = append(video, v)

		if !hasAudio {
			continue
		}
		a := fmt.Sprintf("[%d:a]", i)
		if !c.hasAudio {
			a = fmt.Sprintf("[s%d]", i)
			parts = append(parts, fmt.Sprintf("anullsrc=channel_layout=stereo:sample_rate=44100,atrim=duration=%s%s",
				formatSeconds(c.duration), a))
		}
		audio = append(audio, a)
	}
	return parts, video, audio
}

// composeGraph builds the filter graph joining every input end to end.
func composeGraph(clips []*Clip, hasAudio bool) string {
	parts, video, audio := joinInputs(clips, hasAudio)
	var segments strings.Builder
	for i := range clips {
		segments.WriteString(video[i])
		if hasAudio {
			segments.WriteString(audio[i])
		}
	}
	if hasAudio {
		parts = append(parts, fmt.Sprintf("%sconcat=n=%d:v=1:a=1[v][a]", segments.String(), len(clips)))
	} else {
		parts = append(parts, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[v]", segments.String(), len(clips)))
	}
	return strings.Join(parts, ";")
}

// crossfadeGraph builds the filter graph chaining xfade over every input.
func crossfadeGraph(clips []*Clip, hasAudio bool) string {
	parts, inVideo, inAudio := joinInputs(clips, hasAudio)
	video := inVideo[0]
	var audio string
	if hasAudio {
		audio = inAudio[0]
	}
	elapsed := clips[0].duration
	for i := 1; i < len(clips); i++ {
		outV, outA := fmt.Sprintf("[v%d]", i), fmt.Sprintf("[a%d]", i)
		if i == len(clips)-1 {
			outV, outA = "[v]", "[a]"
		}
		offset := elapsed - SmoothOverlap
		parts = append(parts, fmt.Sprintf("%s%sxfade=transition=fade:duration=%s:offset=%s%s",
			video, inVideo[i], formatFloat(SmoothOverlap), formatSeconds(offset), outV))
		if hasAudio {
			parts = append(parts, fmt.Sprintf("%s%sacrossfade=d=%s%s",
				audio, inAudio[i], formatFloat(SmoothOverlap), outA))
		}
		video, audio = outV, outA
		elapsed += clips[i].duration - SmoothOverlap
	}
	return strings.Join(parts, ";")
}

// FadeInOut fades the start and end of c in the style of kind.
func (p *FFmpegProvider) FadeInOut(ctx context.Context, c *Clip, kind FadeKind, fadeIn, fadeOut float64) (*Clip, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFade, kind)
	}
	if fadeIn < 0 || fadeOut < 0 || fadeIn+fadeOut > c.duration+durationTolerance {
		return nil, fmt.Errorf("%w: fade %.3f+%.3f exceeds %.3f", ErrInvalidRange, fadeIn, fadeOut, c.duration)
	}
	if fadeIn == 0 && fadeOut == 0 {
		return p.duplicate(ctx, c, "fade")
	}

	video, audio := fadeFilters(kind, c.duration, fadeIn, fadeOut)
	return p.derive(ctx, c, "fade", func(dst string) []string {
		args := []string{"-y", "-i", c.path, "-vf", video}
		if c.hasAudio && audio != "" {
			args = append(args, "-af", audio)
		}
		args = append(args, p.encodeArgs(c.hasAudio)...)
		return append(args, dst)
	})
}

// fadeFilters returns the video and audio filter chains for a fade.
func fadeFilters(kind FadeKind, duration, fadeIn, fadeOut float64) (string, string) {
	outStart := formatSeconds(duration - fadeOut)

	if kind == FadeGrayscale {
		// saturation ramps from 0 to 1 over fadeIn and back to 0 over fadeOut
		in, out := "1", "1"
		if fadeIn > 0 {
			in = fmt.Sprintf("t/%s", formatFloat(fadeIn))
		}
		if fadeOut > 0 {
			out = fmt.Sprintf("(%s-t)/%s", formatFloat(duration), formatFloat(fadeOut))
		}
		return fmt.Sprintf("hue=s='max(0,min(1,min(%s,%s)))'", in, out), ""
	}

	color := "black"
	if kind == FadeLight {
		color = "white"
	}
	var video, audio []string
	if fadeIn > 0 {
		video = append(video, fmt.Sprintf("fade=t=in:st=0:d=%s:color=%s", formatFloat(fadeIn), color))
		audio = append(audio, fmt.Sprintf("afade=t=in:st=0:d=%s", formatFloat(fadeIn)))
	}
	if fadeOut > 0 {
		video = append(video, fmt.Sprintf("fade=t=out:st=%s:d=%s:color=%s", outStart, formatFloat(fadeOut), color))
		audio = append(audio, fmt.Sprintf("afade=t=out:st=%s:d=%s", outStart, formatFloat(fadeOut)))
	}
	return strings.Join(video, ","), strings.Join(audio, ",")
}

// Write exports c to path. The output is written next to path under a
// temporary name and renamed into place once complete.
func (p *FFmpegProvider) Write(ctx context.Context, c *Clip, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	ext := filepath.Ext(path)
	partial := filepath.Join(dir, fmt.Sprintf(".%s.partial%s", strings.TrimSuffix(filepath.Base(path), ext), ext))
	defer func() { _ = os.Remove(partial) }()

	if strings.EqualFold(ext, filepath.Ext(c.path)) {
		if err := copyFile(c.path, partial); err != nil {
			return err
		}
	} else {
		args := []string{"-y", "-i", c.path}
		args = append(args, p.encodeArgs(c.hasAudio)...)
		if err := p.runFFmpeg(ctx, append(args, partial)); err != nil {
			return err
		}
	}

	if err := os.Rename(partial, path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

// Release removes the workspace file backing an owned clip.
func (p *FFmpegProvider) Release(ctx context.Context, c *Clip) error {
	if c == nil || !c.owned {
		return nil
	}
	return p.workspace.CleanupTemp(ctx, []string{c.path})
}

// derive reserves an output file, runs ffmpeg and probes the result.
func (p *FFmpegProvider) derive(ctx context.Context, src *Clip, name string, build func(dst string) []string) (*Clip, error) {
	dst, err := p.workspace.CreateTemp(ctx, name, filepath.Ext(src.path))
	if err != nil {
		return nil, fmt.Errorf("reserve workspace file: %w", err)
	}
	if err := p.runFFmpeg(ctx, build(dst)); err != nil {
		p.discard(ctx, dst)
		return nil, err
	}
	clip, err := p.clipFrom(ctx, dst)
	if err != nil {
		p.discard(ctx, dst)
		return nil, err
	}
	return clip, nil
}

// duplicate copies c into a new workspace file so the result is a distinct handle.
func (p *FFmpegProvider) duplicate(ctx context.Context, c *Clip, name string) (*Clip, error) {
	dst, err := p.workspace.CreateTemp(ctx, name, filepath.Ext(c.path))
	if err != nil {
		return nil, fmt.Errorf("reserve workspace file: %w", err)
	}
	if err := copyFile(c.path, dst); err != nil {
		p.discard(ctx, dst)
		return nil, err
	}
	out := *c
	out.path = dst
	out.owned = true
	return &out, nil
}

func (p *FFmpegProvider) discard(ctx context.Context, path string) {
	_ = p.workspace.CleanupTemp(ctx, []string{path})
}

// clipFrom probes path and builds an owned clip.
func (p *FFmpegProvider) clipFrom(ctx context.Context, path string) (*Clip, error) {
	info, err := p.probe(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Clip{
		path:     path,
		duration: info.duration,
		width:    info.width,
		height:   info.height,
		hasAudio: info.hasAudio,
		owned:    true,
	}, nil
}

// encodeArgs returns the encoder flags for re-encoded outputs.
func (p *FFmpegProvider) encodeArgs(hasAudio bool) []string {
	args := []string{
		"-c:v", p.videoCodec,
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
	}
	if !hasAudio {
		return append(args, "-an")
	}
	return append(args, "-c:a", "aac", "-b:a", "128k")
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProvider) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

type probeResult struct {
	duration float64
	width    int
	height   int
	hasAudio bool
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// probeFile reads duration, frame size and audio presence through ffprobe.
func probeFile(ctx context.Context, path string) (probeResult, error) {
	if err := ctx.Err(); err != nil {
		return probeResult{}, fmt.Errorf("ffprobe cancelled: %w", err)
	}
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return probeResult{}, fmt.Errorf("%w: %s: %w", ErrFFprobeExecution, path, err)
	}
	return parseProbe([]byte(out))
}

// parseProbe decodes ffprobe JSON output. The video stream duration is
// preferred; the container duration is used when the stream has none.
func parseProbe(data []byte) (probeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return probeResult{}, fmt.Errorf("parse probe output: %w", err)
	}

	var res probeResult
	foundVideo := false
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if foundVideo {
				continue
			}
			foundVideo = true
			res.width, res.height = s.Width, s.Height
			res.duration = parseSeconds(s.Duration)
		case "audio":
			res.hasAudio = true
		}
	}
	if !foundVideo {
		return probeResult{}, ErrNoVideoStream
	}
	if res.duration == 0 {
		res.duration = parseSeconds(out.Format.Duration)
	}
	return res, nil
}

func parseSeconds(s string) float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return d
}

// atempoChain expresses factor as a chain of atempo filters, each within [0.5, 2].
func atempoChain(factor float64) string {
	var parts []string
	for factor > 2 {
		parts = append(parts, "atempo=2")
		factor /= 2
	}
	for factor < 0.5 {
		parts = append(parts, "atempo=0.5")
		factor /= 0.5
	}
	parts = append(parts, "atempo="+formatFloat(factor))
	return strings.Join(parts, ",")
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func anyHasAudio(clips []*Clip) bool {
	for _, c := range clips {
		if c.hasAudio {
			return true
		}
	}
	return false
}

// createConcatList creates a temporary file containing the list of video files
// in the format required by ffmpeg's concat demuxer.
func createConcatList(videoPaths []string) (string, error) {
	f, err := os.CreateTemp("", "ffmpeg-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range videoPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return "", fmt.Errorf("write to concat list: %w", err)
		}
	}

	return f.Name(), nil
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - src is provided by trusted internal code
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination file: %w", err)
	}
	return nil
}
