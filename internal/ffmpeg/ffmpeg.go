// Package ffmpeg wraps the ffmpeg and ffprobe binaries used for frame and audio extraction.
package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// stderrTail is the number of trailing stderr lines kept for error reports
const stderrTail = 12

// Executor runs ffmpeg operations with progress streaming
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
}

// New creates a new ffmpeg executor
func New(logger zerolog.Logger, threads int) (*Executor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     threads,
	}, nil
}

// ToolError is returned when the ffmpeg process exits unsuccessfully.
// Stderr holds the last lines the process printed.
type ToolError struct {
	Args   []string
	Stderr string
	Cause  error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("ffmpeg execution failed: %v: %s", e.Cause, e.Stderr)
	}
	return fmt.Sprintf("ffmpeg execution failed: %v", e.Cause)
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

// Run executes ffmpeg with the given arguments and streams progress
func (e *Executor) Run(ctx context.Context, opts RunOptions) error {
	if len(opts.Args) == 0 {
		return fmt.Errorf("no arguments provided")
	}

	// threads must come before the input arguments
	baseArgs := []string{"-y", "-hide_banner", "-loglevel", "error", "-nostdin"}
	if e.threads > 0 {
		baseArgs = append(baseArgs, "-threads", strconv.Itoa(e.threads))
	}
	baseArgs = append(baseArgs, "-progress", "pipe:2")
	args := append(baseArgs, opts.Args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", args).
		Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	tail := newLineTail(stderrTail)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		streamOutput(stderr, opts.Duration, opts.ProgressHandler, func(line string) {
			tail.add(line)
			if opts.LogHandler != nil {
				opts.LogHandler(line)
			}
		})
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &ToolError{Args: args, Stderr: tail.String(), Cause: err}
	}

	e.logger.Debug().Msg("ffmpeg execution completed")
	return nil
}

// streamOutput parses ffmpeg -progress output and calls handlers.
// Non-progress lines are forwarded to logHandler.
func streamOutput(r io.Reader, duration float64, progressHandler ProgressFunc, logHandler func(string)) {
	scanner := bufio.NewScanner(r)
	progressData := &Progress{}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.Contains(key, " ") {
			if line != "" && logHandler != nil {
				logHandler(line)
			}
			continue
		}

		switch key {
		case "frame":
			progressData.Frame, _ = strconv.Atoi(value)
		case "fps":
			progressData.FPS, _ = strconv.ParseFloat(value, 64)
		case "bitrate":
			progressData.Bitrate = value
		case "out_time_us", "out_time_ms":
			// both keys are reported in microseconds
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
				progressData.Seconds = float64(us) / 1e6
			}
		case "out_time":
			progressData.Time = value
		case "speed":
			progressData.Speed = value
		case "progress":
			progressData.Done = value == "end"
			if duration > 0 {
				progressData.Percentage = min(100, progressData.Seconds/duration*100)
			}
			if progressData.Done {
				progressData.Percentage = 100
			}
			if progressHandler != nil {
				progressHandler(progressData)
			}
			progressData = &Progress{}
		default:
			if logHandler != nil {
				logHandler(line)
			}
		}
	}
}

// lineTail keeps the last n lines written to it
type lineTail struct {
	mu    sync.Mutex
	n     int
	lines []string
}

func newLineTail(n int) *lineTail {
	return &lineTail{n: n}
}

func (t *lineTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}

// IsToolError reports whether err came from a failed ffmpeg process
func IsToolError(err error) bool {
	var toolErr *ToolError
	return errors.As(err, &toolErr)
}
