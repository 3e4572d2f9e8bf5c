package analysis

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/retention-insights/internal/llm"
	"github.com/jonathan/retention-insights/internal/prompts"
	"github.com/jonathan/retention-insights/internal/types"
)

// DefaultVisualStride is how many frames apart visual-scene analysis samples are
const DefaultVisualStride = 10

// noTextMarker is what the frame-text prompt asks the model to reply when nothing is on screen
const noTextMarker = "NONE"

// FrameAnalyzer sends extracted frames to the vision capability in bounded batches
type FrameAnalyzer struct {
	vision Vision
	runner *BatchRunner
	tier   llm.ModelTier
	logger zerolog.Logger
}

// NewFrameAnalyzer creates a frame analyzer. A nil runner uses the default batching policy.
func NewFrameAnalyzer(vision Vision, runner *BatchRunner, logger zerolog.Logger) *FrameAnalyzer {
	if runner == nil {
		runner = NewBatchRunner(DefaultBatchOptions())
	}
	return &FrameAnalyzer{
		vision: vision,
		runner: runner,
		tier:   llm.TierLite,
		logger: logger.With().Str("component", "frame_analyzer").Logger(),
	}
}

// AnalyzeText asks for the visible text of every frame. Frames whose call fails
// produce an empty observation; the result has one observation per frame in frame order.
func (a *FrameAnalyzer) AnalyzeText(ctx context.Context, frames []types.Frame) ([]types.Observation, error) {
	texts, errs, err := a.describe(ctx, frames, "frame-text")
	if err != nil {
		return nil, err
	}

	observations := make([]types.Observation, len(frames))
	failed := 0
	for i, frame := range frames {
		text := texts[i]
		if errs[i] != nil {
			failed++
			text = ""
		}
		if strings.EqualFold(text, noTextMarker) {
			text = ""
		}
		observations[i] = types.Observation{Timestamp: frame.Timestamp, Text: text}
	}
	a.logDegraded("text", failed, len(frames), errs)
	return observations, nil
}

// AnalyzeVisual describes every stride-th frame and fills the frames in between
// with the nearest analyzed description.
func (a *FrameAnalyzer) AnalyzeVisual(ctx context.Context, frames []types.Frame, stride int) ([]types.Observation, error) {
	if stride <= 0 {
		stride = DefaultVisualStride
	}
	sampled := SampleIndices(len(frames), stride)
	subset := make([]types.Frame, len(sampled))
	for i, idx := range sampled {
		subset[i] = frames[idx]
	}

	texts, errs, err := a.describe(ctx, subset, "frame-visual")
	if err != nil {
		return nil, err
	}

	analyzed := make(map[int]string, len(sampled))
	failed := 0
	for i, idx := range sampled {
		if errs[i] != nil || texts[i] == "" {
			if errs[i] != nil {
				failed++
			}
			continue
		}
		analyzed[idx] = texts[i]
	}
	a.logDegraded("visual", failed, len(subset), errs)

	return FillNearest(frames, analyzed), nil
}

func (a *FrameAnalyzer) describe(ctx context.Context, frames []types.Frame, promptKey string) ([]string, []error, error) {
	texts := make([]string, len(frames))
	errs, err := a.runner.Run(ctx, len(frames), func(ctx context.Context, i int) error {
		text, err := a.describeFrame(ctx, frames[i], promptKey)
		recordCall(promptKey, err)
		if err != nil {
			return err
		}
		texts[i] = text
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("frame analysis interrupted: %w", err)
	}
	return texts, errs, nil
}

func (a *FrameAnalyzer) describeFrame(ctx context.Context, frame types.Frame, promptKey string) (string, error) {
	image, err := os.ReadFile(frame.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read frame %d: %w", frame.Index, err)
	}
	prompt, err := prompts.Render("analysis.json", promptKey, map[string]string{
		"Timestamp": fmt.Sprintf("%.2f", frame.Timestamp),
	})
	if err != nil {
		return "", err
	}
	raw, err := a.vision.GenerateWithImage(ctx, prompt, image, "jpeg", a.tier)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stripFence(raw)), nil
}

func (a *FrameAnalyzer) logDegraded(kind string, failed, total int, errs []error) {
	if failed == 0 {
		a.logger.Info().Str("kind", kind).Int("frames", total).Msg("frames analyzed")
		return
	}
	var first error
	for _, err := range errs {
		if err != nil {
			first = err
			break
		}
	}
	a.logger.Warn().Err(first).Str("kind", kind).Int("failed", failed).Int("frames", total).Msg("some frame analyses failed")
}

// SampleIndices returns 0, stride, 2*stride... below n
func SampleIndices(n, stride int) []int {
	if stride <= 0 {
		stride = 1
	}
	var indices []int
	for i := 0; i < n; i += stride {
		indices = append(indices, i)
	}
	return indices
}

// FillNearest builds one observation per frame, copying the description of the nearest
// analyzed frame (the earlier one on ties). With nothing analyzed every text is empty.
func FillNearest(frames []types.Frame, analyzed map[int]string) []types.Observation {
	observations := make([]types.Observation, len(frames))
	for i, frame := range frames {
		observations[i] = types.Observation{Timestamp: frame.Timestamp}
		best := -1
		for idx := range analyzed {
			if best == -1 || closer(i, idx, best) {
				best = idx
			}
		}
		if best >= 0 {
			observations[i].Text = analyzed[best]
		}
	}
	return observations
}

// closer reports whether candidate is nearer to i than current, preferring the lower index on ties
func closer(i, candidate, current int) bool {
	dc, dk := abs(i-candidate), abs(i-current)
	if dc != dk {
		return dc < dk
	}
	return candidate < current
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// stripFence removes a surrounding markdown code fence from free-text answers
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
