package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
)

// ExtractFrame writes a single JPEG frame taken at the given timestamp (seconds)
func (e *Executor) ExtractFrame(ctx context.Context, input string, timestamp float64, output string, opts FrameOptions) error {
	if input == "" {
		return fmt.Errorf("input path is required")
	}
	if output == "" {
		return fmt.Errorf("output path is required")
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultFrameOptions().Quality
	}

	args := []string{
		"-ss", FormatSeconds(timestamp),
		"-i", input,
		"-frames:v", "1",
	}
	if opts.Width > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:-2", opts.Width))
	}
	args = append(args, "-q:v", strconv.Itoa(opts.Quality), output)

	return e.Run(ctx, RunOptions{
		Args: args,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("frame extraction")
		},
	})
}

// ExtractAudio extracts the audio stream to a separate compressed file.
// duration is the input length in seconds and drives progress percentages.
func (e *Executor) ExtractAudio(ctx context.Context, input, output string, format AudioFormat, duration float64, progressFunc ProgressFunc) error {
	if input == "" {
		return fmt.Errorf("input path is required")
	}
	if output == "" {
		return fmt.Errorf("output path is required")
	}

	e.logger.Info().
		Str("input", input).
		Str("output", output).
		Str("codec", format.Codec).
		Str("bitrate", format.Bitrate).
		Msg("extracting audio")

	args := []string{
		"-i", input,
		"-vn",
		"-acodec", format.Codec,
	}
	if format.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(format.SampleRate))
	}
	if format.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(format.Channels))
	}
	if format.Bitrate != "" {
		args = append(args, "-b:a", format.Bitrate)
	}
	args = append(args, output)

	return e.Run(ctx, RunOptions{
		Args:            args,
		Duration:        duration,
		ProgressHandler: progressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("audio extraction")
		},
	})
}
