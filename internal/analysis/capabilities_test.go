package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/retention-insights/internal/llm"
	"github.com/jonathan/retention-insights/internal/types"
)

type fakeAudioModel struct {
	response string
	err      error
	mimeType string
	size     int
}

func (f *fakeAudioModel) GenerateWithAudio(_ context.Context, _ string, audio []byte, mimeType string, _ llm.ModelTier) (string, error) {
	f.mimeType = mimeType
	f.size = len(audio)
	return f.response, f.err
}

func TestParseTranscript(t *testing.T) {
	segments, err := ParseTranscript("```json\n[{\"start\": 0, \"end\": 1.5, \"text\": \"hi\"}]\n```")
	require.NoError(t, err)
	assert.Equal(t, []types.TranscriptSegment{{Start: 0, End: 1.5, Text: "hi"}}, segments)

	segments, err = ParseTranscript("")
	require.NoError(t, err)
	assert.Empty(t, segments)

	_, err = ParseTranscript(`[{"start": "zero"}]`)
	var parseErr *llm.ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestModelSpeech_Transcribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3"), 0644))

	model := &fakeAudioModel{response: `[{"start": 0, "end": 2, "text": "intro"}]`}
	segments, err := NewModelSpeech(model).Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, segments, 1)
	assert.Equal(t, "audio/mp3", model.mimeType)
	assert.Equal(t, 3, model.size)
}

func TestModelSpeech_Errors(t *testing.T) {
	_, err := NewModelSpeech(&fakeAudioModel{}).Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "audio.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0644))
	model := &fakeAudioModel{err: errors.New("unavailable")}
	_, err = NewModelSpeech(model).Transcribe(context.Background(), path)
	assert.Error(t, err)
	assert.Equal(t, "audio/wav", model.mimeType)
}

func TestAudioMIMEType(t *testing.T) {
	assert.Equal(t, "audio/mp3", AudioMIMEType("a.mp3"))
	assert.Equal(t, "audio/aac", AudioMIMEType("a.M4A"))
	assert.Equal(t, "audio/flac", AudioMIMEType("a.flac"))
}
