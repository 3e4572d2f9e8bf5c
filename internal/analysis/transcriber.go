package analysis

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/retention-insights/internal/types"
)

// Transcriber converts an audio track into step-aligned transcript observations
type Transcriber struct {
	speech Speech
	step   float64
	logger zerolog.Logger
}

// NewTranscriber creates a transcriber emitting one sample per step seconds
func NewTranscriber(speech Speech, step float64, logger zerolog.Logger) *Transcriber {
	if step <= 0 {
		step = 0.5
	}
	return &Transcriber{
		speech: speech,
		step:   step,
		logger: logger.With().Str("component", "transcriber").Logger(),
	}
}

// Transcribe never fails: a failed or empty transcription yields no observations.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) []types.Observation {
	if audioPath == "" {
		return nil
	}
	segments, err := t.speech.Transcribe(ctx, audioPath)
	recordCall("speech", err)
	if err != nil {
		t.logger.Warn().Err(err).Msg("transcription failed, continuing without audio observations")
		return nil
	}
	observations := ExpandSegments(segments, t.step)
	t.logger.Info().Int("segments", len(segments)).Int("samples", len(observations)).Msg("audio transcribed")
	return observations
}

// ExpandSegments turns each segment into one observation per step-grid point it covers.
// A segment too short to contain a grid point contributes one observation at its start.
func ExpandSegments(segments []types.TranscriptSegment, step float64) []types.Observation {
	if step <= 0 {
		step = 0.5
	}
	var observations []types.Observation
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" || seg.Start < 0 {
			continue
		}
		end := math.Max(seg.End, seg.Start)

		emitted := false
		for k := math.Max(0, math.Ceil(seg.Start/step-1e-9)); k*step < end; k++ {
			observations = append(observations, types.Observation{
				Timestamp: types.Round2(k * step),
				Text:      text,
			})
			emitted = true
		}
		if !emitted {
			observations = append(observations, types.Observation{
				Timestamp: types.Round2(seg.Start),
				Text:      text,
			})
		}
	}
	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].Timestamp < observations[j].Timestamp
	})
	return observations
}
