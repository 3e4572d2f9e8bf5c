// Package analysis turns extracted media into timestamped observations: transcript
// samples from the audio track and on-screen text and scene descriptions from frames.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jonathan/retention-insights/internal/llm"
	"github.com/jonathan/retention-insights/internal/prompts"
	"github.com/jonathan/retention-insights/internal/schemas"
	"github.com/jonathan/retention-insights/internal/types"
)

var metricCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "retention",
	Name:      "analysis_calls_total",
	Help:      "Calls to AI capabilities made by the analyzers, by capability and outcome.",
}, []string{"capability", "outcome"})

func recordCall(capability string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metricCalls.WithLabelValues(capability, outcome).Inc()
}

// Vision is the vision-language capability. llm.Client implements it.
type Vision interface {
	GenerateWithImage(ctx context.Context, prompt string, image []byte, format string, tier llm.ModelTier) (string, error)
}

// Speech is the speech-to-text capability: ordered segments for an audio file.
type Speech interface {
	Transcribe(ctx context.Context, audioPath string) ([]types.TranscriptSegment, error)
}

// AudioModel is the part of llm.Client the Gemini speech adapter needs
type AudioModel interface {
	GenerateWithAudio(ctx context.Context, prompt string, audio []byte, mimeType string, tier llm.ModelTier) (string, error)
}

// ModelSpeech implements Speech on top of a multimodal language model
type ModelSpeech struct {
	model AudioModel
	tier  llm.ModelTier
}

// NewModelSpeech creates a speech adapter using the standard tier
func NewModelSpeech(model AudioModel) *ModelSpeech {
	return &ModelSpeech{model: model, tier: llm.TierStandard}
}

// Transcribe uploads the audio file and parses the segment list from the response
func (s *ModelSpeech) Transcribe(ctx context.Context, audioPath string) ([]types.TranscriptSegment, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, nil
	}

	prompt, err := prompts.Get("analysis.json", "transcribe-audio")
	if err != nil {
		return nil, err
	}

	raw, err := s.model.GenerateWithAudio(ctx, prompt, audio, AudioMIMEType(audioPath), s.tier)
	if err != nil {
		return nil, err
	}
	return ParseTranscript(raw)
}

// ParseTranscript decodes a model's JSON segment list
func ParseTranscript(raw string) ([]types.TranscriptSegment, error) {
	cleaned := llm.CleanJSONBlock(raw)
	if cleaned == "" {
		return nil, nil
	}
	if err := schemas.Validate(schemas.Transcript, []byte(cleaned)); err != nil {
		return nil, &llm.ParseError{Message: "transcript does not match schema", Cause: err}
	}
	var segments []types.TranscriptSegment
	if err := json.Unmarshal([]byte(cleaned), &segments); err != nil {
		return nil, &llm.ParseError{Message: "failed to decode transcript", Cause: err}
	}
	return segments, nil
}

// AudioMIMEType maps an audio file extension to its MIME type
func AudioMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".m4a", ".aac":
		return "audio/aac"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	default:
		return "audio/mp3"
	}
}
