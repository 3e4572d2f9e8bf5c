package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/retention-insights/internal/types"
)

type fakeSpeech struct {
	segments []types.TranscriptSegment
	err      error
	paths    []string
}

func (f *fakeSpeech) Transcribe(_ context.Context, audioPath string) ([]types.TranscriptSegment, error) {
	f.paths = append(f.paths, audioPath)
	return f.segments, f.err
}

func TestExpandSegments(t *testing.T) {
	segments := []types.TranscriptSegment{
		{Start: 0, End: 1.2, Text: " Hello there "},
		{Start: 1.2, End: 1.3, Text: "uh"},
		{Start: 1.5, End: 2.5, Text: "welcome back"},
		{Start: 3, End: 3, Text: ""},
	}

	got := ExpandSegments(segments, 0.5)
	want := []types.Observation{
		{Timestamp: 0, Text: "Hello there"},
		{Timestamp: 0.5, Text: "Hello there"},
		{Timestamp: 1, Text: "Hello there"},
		{Timestamp: 1.2, Text: "uh"},
		{Timestamp: 1.5, Text: "welcome back"},
		{Timestamp: 2, Text: "welcome back"},
	}
	assert.Equal(t, want, got)
}

func TestExpandSegments_OutOfOrderInput(t *testing.T) {
	got := ExpandSegments([]types.TranscriptSegment{
		{Start: 2, End: 3, Text: "second"},
		{Start: 0, End: 1, Text: "first"},
	}, 1)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "second", got[1].Text)
}

func TestExpandSegments_InvertedRange(t *testing.T) {
	got := ExpandSegments([]types.TranscriptSegment{{Start: 4, End: 2, Text: "odd"}}, 0.5)
	assert.Equal(t, []types.Observation{{Timestamp: 4, Text: "odd"}}, got)
}

func TestTranscriber_DegradesOnFailure(t *testing.T) {
	speech := &fakeSpeech{err: errors.New("quota exceeded")}
	tr := NewTranscriber(speech, 0.5, zerolog.Nop())

	got := tr.Transcribe(context.Background(), "/tmp/audio.mp3")
	assert.Empty(t, got)
	assert.Equal(t, []string{"/tmp/audio.mp3"}, speech.paths)
}

func TestTranscriber_NoAudio(t *testing.T) {
	speech := &fakeSpeech{}
	tr := NewTranscriber(speech, 0.5, zerolog.Nop())
	assert.Empty(t, tr.Transcribe(context.Background(), ""))
	assert.Empty(t, speech.paths)
}

func TestTranscriber_Expands(t *testing.T) {
	speech := &fakeSpeech{segments: []types.TranscriptSegment{{Start: 0, End: 1, Text: "hi"}}}
	tr := NewTranscriber(speech, 0.5, zerolog.Nop())

	got := tr.Transcribe(context.Background(), "a.mp3")
	assert.Equal(t, []types.Observation{{Timestamp: 0, Text: "hi"}, {Timestamp: 0.5, Text: "hi"}}, got)
}
