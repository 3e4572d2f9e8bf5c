// Package digitize converts an audience-retention chart image into a sampled retention curve.
package digitize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/jonathan/retention-insights/internal/llm"
	"github.com/jonathan/retention-insights/internal/prompts"
	"github.com/jonathan/retention-insights/internal/schemas"
	"github.com/jonathan/retention-insights/internal/types"
)

// Retry and sanity-check defaults
const (
	DefaultMaxAttempts     = 5
	DefaultBaseBackoff     = time.Second
	DefaultMaxBackoff      = 10 * time.Second
	DefaultStepSeconds     = 0.5
	MinInitialRetentionPct = 90.0
)

var metricAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "retention",
	Name:      "digitize_attempts_total",
	Help:      "Curve digitization attempts by outcome.",
}, []string{"outcome"})

// Vision is the vision-language capability the digitizer needs. llm.Client implements it.
type Vision interface {
	GenerateWithImage(ctx context.Context, prompt string, image []byte, format string, tier llm.ModelTier) (string, error)
}

// Options configures a Digitizer
type Options struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	StepSeconds float64
	Tier        llm.ModelTier
}

// DefaultOptions returns the default retry policy
func DefaultOptions() Options {
	return Options{
		MaxAttempts: DefaultMaxAttempts,
		BaseBackoff: DefaultBaseBackoff,
		MaxBackoff:  DefaultMaxBackoff,
		StepSeconds: DefaultStepSeconds,
		Tier:        llm.TierAdvanced,
	}
}

// SleepFunc pauses for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Digitizer asks the vision capability for a sample table and retries until the
// result passes the sanity checks or the attempts run out.
type Digitizer struct {
	vision Vision
	opts   Options
	logger zerolog.Logger
	sleep  SleepFunc
}

// New creates a digitizer. Zero-valued options fall back to defaults.
func New(vision Vision, opts Options, logger zerolog.Logger) *Digitizer {
	defaults := DefaultOptions()
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaults.MaxAttempts
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = defaults.BaseBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaults.MaxBackoff
	}
	if opts.StepSeconds <= 0 {
		opts.StepSeconds = defaults.StepSeconds
	}
	if opts.Tier == "" {
		opts.Tier = defaults.Tier
	}
	return &Digitizer{
		vision: vision,
		opts:   opts,
		logger: logger.With().Str("component", "digitize").Logger(),
		sleep:  sleepContext,
	}
}

// WithSleep replaces the pause function used between attempts
func (d *Digitizer) WithSleep(sleep SleepFunc) *Digitizer {
	d.sleep = sleep
	return d
}

// Backoff returns the pause after the given failed attempt (1-based): base*2^(n-1), capped.
func (d *Digitizer) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := d.opts.BaseBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= d.opts.MaxBackoff {
			return d.opts.MaxBackoff
		}
	}
	if backoff > d.opts.MaxBackoff {
		return d.opts.MaxBackoff
	}
	return backoff
}

// DigitizeFile reads a chart image from disk and digitizes it
func (d *Digitizer) DigitizeFile(ctx context.Context, imagePath string, knownDuration float64) (*types.RetentionCurve, error) {
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read curve image: %w", err)
	}
	return d.Digitize(ctx, image, ImageFormat(imagePath), knownDuration)
}

// Digitize converts chart image bytes into a normalized retention curve.
// knownDuration may be 0 when the video length is unknown.
func (d *Digitizer) Digitize(ctx context.Context, image []byte, format string, knownDuration float64) (*types.RetentionCurve, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("curve image is empty")
	}

	description, err := prompts.Get("curve.json", "digitize-curve")
	if err != nil {
		return nil, fmt.Errorf("failed to load digitize prompt: %w", err)
	}
	prompt := llm.BuildExtractionPrompt(llm.RetentionCurveSchema(description, d.opts.StepSeconds, knownDuration), "")

	var lastErr error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		curve, err := d.attempt(ctx, prompt, image, format, knownDuration)
		if err == nil {
			metricAttempts.WithLabelValues("success").Inc()
			d.logger.Info().Int("attempt", attempt).Int("samples", curve.Len()).Msg("curve digitized")
			return curve, nil
		}
		metricAttempts.WithLabelValues("failure").Inc()
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == d.opts.MaxAttempts {
			break
		}

		backoff := d.Backoff(attempt)
		d.logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("curve digitization attempt failed, retrying")
		if err := d.sleep(ctx, backoff); err != nil {
			return nil, fmt.Errorf("curve digitization interrupted: %w", err)
		}
	}

	return nil, &AttemptsExhaustedError{Attempts: d.opts.MaxAttempts, Cause: lastErr}
}

// attempt performs one model call and checks the result
func (d *Digitizer) attempt(ctx context.Context, prompt string, image []byte, format string, knownDuration float64) (*types.RetentionCurve, error) {
	raw, err := d.vision.GenerateWithImage(ctx, prompt, image, format, d.opts.Tier)
	if err != nil {
		var apiErr *llm.APICallError
		if errors.As(err, &apiErr) {
			return nil, err
		}
		return nil, &llm.APICallError{Message: "curve digitization call failed", Cause: err}
	}

	parsed, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	if err := Check(parsed.Samples); err != nil {
		return nil, err
	}
	return Normalize(parsed, d.opts.StepSeconds, knownDuration), nil
}

// RawSample is a sample as returned by the model; dropout may be omitted
type RawSample struct {
	Timestamp    float64  `json:"timestamp"`
	RetentionPct float64  `json:"retention_pct"`
	DropoutPct   *float64 `json:"dropout_pct"`
}

// RawCurve is the model's response before normalization
type RawCurve struct {
	Samples       []RawSample `json:"samples"`
	StepSeconds   *float64    `json:"step_seconds"`
	TotalDuration *float64    `json:"total_duration"`
}

// ParseResponse strips fences, validates against the curve schema and decodes.
// Samples are returned sorted by timestamp.
func ParseResponse(raw string) (*RawCurve, error) {
	cleaned := llm.CleanJSONBlock(raw)
	if cleaned == "" {
		return nil, &llm.ParseError{Message: "empty model response"}
	}
	if err := schemas.Validate(schemas.RetentionCurve, []byte(cleaned)); err != nil {
		return nil, &llm.ParseError{Message: "response does not match curve schema", Cause: err}
	}

	var parsed RawCurve
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, &llm.ParseError{Message: "failed to decode curve", Cause: err}
	}
	sort.SliceStable(parsed.Samples, func(i, j int) bool {
		return parsed.Samples[i].Timestamp < parsed.Samples[j].Timestamp
	})
	return &parsed, nil
}

// Check applies the sanity checks that make an attempt retryable
func Check(samples []RawSample) error {
	if len(samples) == 0 {
		return ErrEmptyCurve
	}
	first := samples[0].RetentionPct
	if first < MinInitialRetentionPct {
		return fmt.Errorf("%w: %.2f%% < %.0f%%", ErrLowInitialRetention, first, MinInitialRetentionPct)
	}
	last := samples[len(samples)-1].RetentionPct
	if last >= first {
		return fmt.Errorf("%w: last %.2f%% >= first %.2f%%", ErrNotDecreasing, last, first)
	}
	return nil
}

// ImageFormat returns the genai image format for a file path, defaulting to png
func ImageFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".webp":
		return "webp"
	case ".gif":
		return "gif"
	default:
		return "png"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
