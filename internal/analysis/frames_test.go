package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/retention-insights/internal/llm"
	"github.com/jonathan/retention-insights/internal/types"
)

// fakeVision answers with a function of the frame bytes, which the tests set to the frame index
type fakeVision struct {
	mu      sync.Mutex
	answer  func(image string, prompt string) (string, error)
	prompts []string
}

func (f *fakeVision) GenerateWithImage(_ context.Context, prompt string, image []byte, format string, _ llm.ModelTier) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if format != "jpeg" {
		return "", fmt.Errorf("unexpected format %s", format)
	}
	return f.answer(string(image), prompt)
}

func (f *fakeVision) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func writeFrames(t *testing.T, n int) []types.Frame {
	t.Helper()
	dir := t.TempDir()
	frames := make([]types.Frame, n)
	for i := range frames {
		path := filepath.Join(dir, fmt.Sprintf("frame_%04d.jpg", i))
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("%d", i)), 0644))
		frames[i] = types.Frame{Index: i, Timestamp: float64(i) * 0.5, Path: path}
	}
	return frames
}

func noPauseRunner() *BatchRunner {
	return NewBatchRunner(BatchOptions{Pause: 0})
}

func TestAnalyzeText_EveryFrameInOrder(t *testing.T) {
	frames := writeFrames(t, 12)
	vision := &fakeVision{answer: func(image, _ string) (string, error) {
		switch image {
		case "3":
			return "", errors.New("rate limited")
		case "4":
			return "NONE", nil
		}
		return "```\ncaption " + image + "\n```", nil
	}}

	analyzer := NewFrameAnalyzer(vision, noPauseRunner(), zerolog.Nop())
	observations, err := analyzer.AnalyzeText(context.Background(), frames)
	require.NoError(t, err)
	require.Len(t, observations, 12)
	assert.Equal(t, 12, vision.callCount())

	for i, obs := range observations {
		assert.Equal(t, frames[i].Timestamp, obs.Timestamp)
	}
	assert.Equal(t, "caption 0", observations[0].Text)
	assert.Equal(t, "", observations[3].Text)
	assert.Equal(t, "", observations[4].Text)
	assert.Equal(t, "caption 11", observations[11].Text)
	assert.Contains(t, vision.prompts[0], "taken at")
}

func TestAnalyzeText_MissingFrameFile(t *testing.T) {
	frames := writeFrames(t, 2)
	frames[1].Path = filepath.Join(t.TempDir(), "gone.jpg")
	vision := &fakeVision{answer: func(image, _ string) (string, error) { return "text", nil }}

	observations, err := NewFrameAnalyzer(vision, noPauseRunner(), zerolog.Nop()).AnalyzeText(context.Background(), frames)
	require.NoError(t, err)
	assert.Equal(t, "text", observations[0].Text)
	assert.Equal(t, "", observations[1].Text)
	assert.Equal(t, 1, vision.callCount())
}

func TestAnalyzeVisual_StrideAndNearestFill(t *testing.T) {
	frames := writeFrames(t, 25)
	vision := &fakeVision{answer: func(image, prompt string) (string, error) {
		if !strings.Contains(prompt, "visual scene") {
			return "", errors.New("wrong prompt")
		}
		return "scene " + image, nil
	}}

	observations, err := NewFrameAnalyzer(vision, noPauseRunner(), zerolog.Nop()).AnalyzeVisual(context.Background(), frames, 10)
	require.NoError(t, err)
	require.Len(t, observations, 25)
	assert.Equal(t, 3, vision.callCount(), "frames 0, 10 and 20 are analyzed")

	assert.Equal(t, "scene 0", observations[0].Text)
	assert.Equal(t, "scene 0", observations[4].Text)
	assert.Equal(t, "scene 0", observations[5].Text, "ties go to the earlier sample")
	assert.Equal(t, "scene 10", observations[6].Text)
	assert.Equal(t, "scene 10", observations[14].Text)
	assert.Equal(t, "scene 20", observations[16].Text)
	assert.Equal(t, "scene 20", observations[24].Text)
	assert.Equal(t, 12.0, observations[24].Timestamp)
}

func TestAnalyzeVisual_FailedSampleFilledFromNeighbour(t *testing.T) {
	frames := writeFrames(t, 21)
	vision := &fakeVision{answer: func(image, _ string) (string, error) {
		if image == "10" {
			return "", errors.New("timeout")
		}
		return "scene " + image, nil
	}}

	observations, err := NewFrameAnalyzer(vision, noPauseRunner(), zerolog.Nop()).AnalyzeVisual(context.Background(), frames, 10)
	require.NoError(t, err)
	assert.Equal(t, "scene 0", observations[10].Text)
	assert.Equal(t, "scene 20", observations[11].Text)
}

func TestAnalyzeVisual_AllFail(t *testing.T) {
	frames := writeFrames(t, 3)
	vision := &fakeVision{answer: func(string, string) (string, error) { return "", errors.New("down") }}

	observations, err := NewFrameAnalyzer(vision, noPauseRunner(), zerolog.Nop()).AnalyzeVisual(context.Background(), frames, 0)
	require.NoError(t, err)
	require.Len(t, observations, 3)
	for _, obs := range observations {
		assert.Empty(t, obs.Text)
	}
}

func TestAnalyze_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	frames := writeFrames(t, 2)
	vision := &fakeVision{answer: func(string, string) (string, error) { return "x", nil }}
	runner := NewBatchRunner(BatchOptions{RequestsPerSecond: 1})

	_, err := NewFrameAnalyzer(vision, runner, zerolog.Nop()).AnalyzeText(ctx, frames)
	assert.Error(t, err)
}

func TestSampleIndices(t *testing.T) {
	assert.Equal(t, []int{0, 10, 20}, SampleIndices(25, 10))
	assert.Equal(t, []int{0, 1, 2}, SampleIndices(3, 0))
	assert.Nil(t, SampleIndices(0, 10))
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, "hello", stripFence("```text\nhello\n```"))
	assert.Equal(t, "plain", stripFence("  plain "))
	assert.Equal(t, "lower third: SALE 50%", stripFence("```\nlower third: SALE 50%\n```\n"))
	assert.Equal(t, "no text visible", stripFence("```text\n  no text visible  \n```"))
}
