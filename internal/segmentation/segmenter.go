// Package segmentation groups one analyzer's timestamped observations into named,
// non-overlapping content blocks.
package segmentation

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/jonathan/retention-insights/internal/llm"
	"github.com/jonathan/retention-insights/internal/prompts"
	"github.com/jonathan/retention-insights/internal/types"
)

var metricFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "retention",
	Name:      "segmentation_fallbacks_total",
	Help:      "Segmentations that fell back to equal-width blocks, by block kind.",
}, []string{"kind"})

// TextModel is the language-model capability. llm.Client implements it.
type TextModel interface {
	GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
}

// Result is the outcome of segmenting one stream
type Result struct {
	Kind         types.BlockKind
	Blocks       []types.ContentBlock
	UsedFallback bool
}

// Segmenter asks the model for a block proposal and makes it safe to use
type Segmenter struct {
	model           TextModel
	fallbackSeconds float64
	tier            llm.ModelTier
	logger          zerolog.Logger
}

// NewSegmenter creates a segmenter. fallbackSeconds is the width of fallback blocks.
func NewSegmenter(model TextModel, fallbackSeconds float64, logger zerolog.Logger) *Segmenter {
	if fallbackSeconds <= 0 {
		fallbackSeconds = DefaultFallbackBlockSeconds
	}
	return &Segmenter{
		model:           model,
		fallbackSeconds: fallbackSeconds,
		tier:            llm.TierStandard,
		logger:          logger.With().Str("component", "segmenter").Logger(),
	}
}

// Segment produces the block set for one timeline. A stream with no observed text yields
// no blocks. Model failures and unusable output fall back to equal-width blocks; the only
// errors returned are an unknown kind or a cancelled context.
func (s *Segmenter) Segment(ctx context.Context, tl Timeline) (Result, error) {
	if !tl.Kind.Valid() {
		return Result{}, fmt.Errorf("unknown block kind %q", tl.Kind)
	}
	result := Result{Kind: tl.Kind}

	transcript := FormatObservations(tl.Observations)
	if transcript == "" {
		s.logger.Info().Str("kind", string(tl.Kind)).Msg("no observations to segment")
		return result, nil
	}

	description, err := prompts.Get("segmentation.json", "segment-"+string(tl.Kind))
	if err != nil {
		return Result{}, err
	}
	prompt := llm.BuildExtractionPrompt(llm.ContentBlocksSchema(description, tl.End()), transcript)

	raw, err := s.model.GenerateJSON(ctx, prompt, s.tier)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		s.logger.Warn().Err(err).Str("kind", string(tl.Kind)).Msg("segmentation call failed, using equal-width blocks")
		raw = ""
	}

	result.Blocks, result.UsedFallback = ParseOrFallback(raw, tl, s.fallbackSeconds)
	if result.UsedFallback {
		metricFallbacks.WithLabelValues(string(tl.Kind)).Inc()
		if err == nil {
			s.logger.Warn().Str("kind", string(tl.Kind)).Msg("segmentation output unusable, using equal-width blocks")
		}
	}
	s.logger.Info().Str("kind", string(tl.Kind)).Int("blocks", len(result.Blocks)).Bool("fallback", result.UsedFallback).Msg("stream segmented")
	return result, nil
}

// FormatObservations renders observations one per line as "[start-end] text", merging
// consecutive samples with identical text. Empty texts are skipped.
func FormatObservations(observations []types.Observation) string {
	var sb strings.Builder
	var current string
	var start, last float64
	flush := func() {
		if current == "" {
			return
		}
		if last > start {
			sb.WriteString(fmt.Sprintf("[%.2f-%.2f] %s\n", start, last, current))
		} else {
			sb.WriteString(fmt.Sprintf("[%.2f] %s\n", start, current))
		}
	}

	for _, obs := range observations {
		text := strings.Join(strings.Fields(obs.Text), " ")
		if text == current && text != "" {
			last = obs.Timestamp
			continue
		}
		flush()
		current, start, last = text, obs.Timestamp, obs.Timestamp
	}
	flush()
	return strings.TrimRight(sb.String(), "\n")
}
