// Package media extracts still frames and the audio track from a source video.
package media

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/retention-insights/internal/ffmpeg"
	"github.com/jonathan/retention-insights/internal/throttle"
	"github.com/jonathan/retention-insights/internal/types"
)

// Defaults for frame sampling
const (
	DefaultStepSeconds = 0.5
	DefaultMaxFrames   = 60
	DefaultBaseBackoff = 50 * time.Millisecond
)

// Tool is the transcoding utility the extractor drives. *ffmpeg.Executor implements it.
type Tool interface {
	ProbeVideo(ctx context.Context, filePath string) (*ffmpeg.VideoInfo, error)
	ExtractFrame(ctx context.Context, input string, timestamp float64, output string, opts ffmpeg.FrameOptions) error
	ExtractAudio(ctx context.Context, input, output string, format ffmpeg.AudioFormat, duration float64, progressFunc ffmpeg.ProgressFunc) error
}

// Options configures an Extractor
type Options struct {
	StepSeconds  float64
	MaxFrames    int
	BaseBackoff  time.Duration
	FrameOptions ffmpeg.FrameOptions
	AudioFormat  ffmpeg.AudioFormat
}

// DefaultOptions returns the default extraction options
func DefaultOptions() Options {
	return Options{
		StepSeconds:  DefaultStepSeconds,
		MaxFrames:    DefaultMaxFrames,
		BaseBackoff:  DefaultBaseBackoff,
		FrameOptions: ffmpeg.DefaultFrameOptions(),
		AudioFormat:  ffmpeg.DefaultSpeechFormat(),
	}
}

// SleepFunc pauses for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Extractor pulls frames and audio from a video. Frame extraction is serialized:
// each frame holds a throttle slot for the duration of one subprocess call.
type Extractor struct {
	tool     Tool
	throttle *throttle.Throttle
	opts     Options
	logger   zerolog.Logger
	sleep    SleepFunc
}

// NewExtractor creates an extractor. Zero-valued options fall back to defaults.
func NewExtractor(tool Tool, th *throttle.Throttle, opts Options, logger zerolog.Logger) *Extractor {
	defaults := DefaultOptions()
	if opts.StepSeconds <= 0 {
		opts.StepSeconds = defaults.StepSeconds
	}
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = defaults.MaxFrames
	}
	if opts.BaseBackoff < 0 {
		opts.BaseBackoff = 0
	}
	if opts.FrameOptions == (ffmpeg.FrameOptions{}) {
		opts.FrameOptions = defaults.FrameOptions
	}
	if opts.AudioFormat == (ffmpeg.AudioFormat{}) {
		opts.AudioFormat = defaults.AudioFormat
	}
	if th == nil {
		th = throttle.New("media", throttle.DefaultCapacity)
	}
	return &Extractor{
		tool:     tool,
		throttle: th,
		opts:     opts,
		logger:   logger.With().Str("component", "media").Logger(),
		sleep:    sleepContext,
	}
}

// WithSleep replaces the pause function used between frames
func (e *Extractor) WithSleep(sleep SleepFunc) *Extractor {
	e.sleep = sleep
	return e
}

// Options returns the effective options
func (e *Extractor) Options() Options {
	return e.opts
}

// Probe reads the video's metadata
func (e *Extractor) Probe(ctx context.Context, videoPath string) (*types.VideoMetadata, error) {
	info, err := e.tool.ProbeVideo(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}
	return info.Metadata(), nil
}

// FrameCount returns how many frames are sampled from a video of the given duration
func FrameCount(duration, step float64, maxFrames int) int {
	if duration <= 0 || step <= 0 {
		return 0
	}
	n := int(math.Ceil(duration/step - 1e-9))
	if maxFrames > 0 && n > maxFrames {
		n = maxFrames
	}
	return n
}

// ExtractFrames writes one JPEG per sample index into outDir, in ascending timestamp order.
// Any single failure aborts the extraction with an *ExtractionFailedError.
func (e *Extractor) ExtractFrames(ctx context.Context, videoPath string, duration float64, outDir string) ([]types.Frame, error) {
	count := FrameCount(duration, e.opts.StepSeconds, e.opts.MaxFrames)
	if count == 0 {
		return nil, &ExtractionFailedError{Stream: "frame", Index: -1, Cause: fmt.Errorf("video duration %.2fs yields no frames", duration)}
	}

	e.logger.Info().
		Str("video", videoPath).
		Int("frames", count).
		Float64("step", e.opts.StepSeconds).
		Msg("extracting frames")

	frames := make([]types.Frame, 0, count)
	for i := 0; i < count; i++ {
		ts := types.Round2(float64(i) * e.opts.StepSeconds)
		out := filepath.Join(outDir, fmt.Sprintf("frame_%04d.jpg", i))

		err := e.throttle.Do(ctx, func(ctx context.Context) error {
			return e.tool.ExtractFrame(ctx, videoPath, ts, out, e.opts.FrameOptions)
		})
		if err != nil {
			return nil, &ExtractionFailedError{Stream: "frame", Index: i, Timestamp: ts, Cause: err}
		}
		frames = append(frames, types.Frame{Index: i, Timestamp: ts, Path: out})

		if i < count-1 {
			if err := e.sleep(ctx, e.backoff()); err != nil {
				return nil, err
			}
		}
	}

	e.logger.Debug().Int("frames", len(frames)).Msg("frame extraction completed")
	return frames, nil
}

// backoff grows with the number of slots other operations currently hold
func (e *Extractor) backoff() time.Duration {
	return e.opts.BaseBackoff * time.Duration(1+e.throttle.InUse())
}

// ExtractAudio writes the audio track to outPath, reporting progress as a fraction in [0,1].
func (e *Extractor) ExtractAudio(ctx context.Context, videoPath string, duration float64, outPath string, onProgress func(fraction float64)) error {
	err := e.throttle.Do(ctx, func(ctx context.Context) error {
		return e.tool.ExtractAudio(ctx, videoPath, outPath, e.opts.AudioFormat, duration, func(p *ffmpeg.Progress) {
			if onProgress != nil {
				onProgress(p.Percentage / 100)
			}
		})
	})
	if err != nil {
		return &ExtractionFailedError{Stream: "audio", Index: -1, Cause: err}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
