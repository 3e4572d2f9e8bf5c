// Package pipeline provides the high-level orchestration for a retention analysis run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jonathan/retention-insights/internal/analysis"
	"github.com/jonathan/retention-insights/internal/digitize"
	"github.com/jonathan/retention-insights/internal/llm"
	"github.com/jonathan/retention-insights/internal/media"
	"github.com/jonathan/retention-insights/internal/observability"
	"github.com/jonathan/retention-insights/internal/progress"
	"github.com/jonathan/retention-insights/internal/segmentation"
	"github.com/jonathan/retention-insights/internal/store"
	"github.com/jonathan/retention-insights/internal/throttle"
	"github.com/jonathan/retention-insights/internal/types"
)

// StateFailed is the terminal state reported when any stage aborts the run
const StateFailed = "failed"

// DefaultTopDropoffs is how many blocks per kind the report summary keeps
const DefaultTopDropoffs = 3

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	RunID   string         `json:"run_id"`
	Stage   string         `json:"stage"`
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Model is the AI surface the pipeline needs: vision for the curve and frames,
// JSON text generation for segmentation. llm.Client implements it.
type Model interface {
	GenerateWithImage(ctx context.Context, prompt string, image []byte, format string, tier llm.ModelTier) (string, error)
	GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
}

// Dependencies are the collaborators shared by every run
type Dependencies struct {
	Store    store.Store
	Tool     media.Tool
	Throttle *throttle.Throttle
	Model    Model
	// Speech may be nil, in which case audio is neither extracted nor transcribed.
	Speech analysis.Speech
}

// Config holds the tunables of the orchestrator
type Config struct {
	StepSeconds          float64
	MaxFrames            int
	VisualStride         int
	FallbackBlockSeconds float64
	FrameBackoff         time.Duration
	Batch                analysis.BatchOptions
	Digitize             digitize.Options
	TopDropoffs          int
	WorkDir              string
}

// DefaultConfig returns the default orchestrator configuration
func DefaultConfig() Config {
	return Config{
		StepSeconds:          media.DefaultStepSeconds,
		MaxFrames:            media.DefaultMaxFrames,
		VisualStride:         analysis.DefaultVisualStride,
		FallbackBlockSeconds: segmentation.DefaultFallbackBlockSeconds,
		FrameBackoff:         media.DefaultBaseBackoff,
		Batch:                analysis.DefaultBatchOptions(),
		Digitize:             digitize.DefaultOptions(),
		TopDropoffs:          DefaultTopDropoffs,
	}
}

// RunOptions holds the per-run inputs
type RunOptions struct {
	Request types.AnalyzeRequest
	// RunID is generated when nil
	RunID      uuid.UUID
	KeepMedia  bool
	Verbose    bool
	Out        io.Writer
	OnProgress ProgressCallback
}

// Orchestrator sequences the stages of an analysis run
type Orchestrator struct {
	deps   Dependencies
	cfg    Config
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator. Zero-valued config fields fall back to defaults.
func New(deps Dependencies, cfg Config, logger zerolog.Logger) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, errors.New("pipeline requires a store")
	}
	if deps.Tool == nil {
		return nil, errors.New("pipeline requires a media tool")
	}
	if deps.Model == nil {
		return nil, errors.New("pipeline requires a model")
	}
	if deps.Throttle == nil {
		deps.Throttle = throttle.New("media", throttle.DefaultCapacity)
	}

	defaults := DefaultConfig()
	if cfg.StepSeconds <= 0 {
		cfg.StepSeconds = defaults.StepSeconds
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = defaults.MaxFrames
	}
	if cfg.VisualStride <= 0 {
		cfg.VisualStride = defaults.VisualStride
	}
	if cfg.FallbackBlockSeconds <= 0 {
		cfg.FallbackBlockSeconds = defaults.FallbackBlockSeconds
	}
	if cfg.TopDropoffs <= 0 {
		cfg.TopDropoffs = defaults.TopDropoffs
	}

	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// WithSleep replaces every backoff pause the run takes (digitizer retries, frame
// pacing, batch pauses). Tests use it to run without waiting.
func (o *Orchestrator) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Orchestrator {
	o.sleep = sleep
	return o
}

// run is the state owned by one analysis run
type run struct {
	id       uuid.UUID
	opts     RunOptions
	tracker  *progress.Tracker
	recorder store.RunRecorder
	printer  *observability.Printer
	out      io.Writer
	logger   zerolog.Logger

	step      float64
	maxFrames int
	duration  float64
	meta      *types.VideoMetadata
	curve     *types.RetentionCurve
	workspace *media.Workspace
	frames    []types.Frame
	audioPath string

	observations map[types.BlockKind][]types.Observation
	report       *types.ComprehensiveReport
}

// Run executes the full state machine for one request. On failure the failing stage's
// log entry is closed with the error, remaining stages are skipped and a *StageError is
// returned; partial results are discarded.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*types.ComprehensiveReport, error) {
	r := o.newRun(opts)
	metricActiveRuns.Inc()
	defer metricActiveRuns.Dec()

	if r.recorder != nil {
		if err := r.recorder.CreateRun(ctx, r.id, opts.Request.VideoPath, opts.Request.CurveImagePath); err != nil {
			r.logger.Warn().Err(err).Msg("failed to record run")
		}
	}
	defer func() {
		if r.workspace != nil && !opts.KeepMedia {
			if err := r.workspace.Cleanup(); err != nil {
				r.logger.Warn().Err(err).Msg("failed to remove media workspace")
			}
		}
	}()

	stages := []struct {
		name string
		fn   func(ctx context.Context, r *run) error
	}{
		{progress.StageValidating, o.validate},
		{progress.StageMetadata, o.probe},
		{progress.StageCurveDigitization, o.digitizeCurve},
		{progress.StageMediaExtraction, o.extractMedia},
		{"analysis", o.analyze},
		{progress.StageSegmentation, o.segment},
		{progress.StageCorrelation, o.correlate},
		{progress.StageFinalizing, o.finalize},
	}
	for i, stage := range stages {
		fmt.Fprintf(r.out, "Step %d/%d: %s...\n", i+1, len(stages), stageTitle(stage.name))
		if err := stage.fn(ctx, r); err != nil {
			return nil, o.fail(ctx, r, err)
		}
	}

	o.mark(ctx, r, progress.StageCompleted, "analysis completed", map[string]any{
		"metrics": len(r.report.Metrics),
	})
	if r.recorder != nil {
		if err := r.recorder.CompleteRun(ctx, r.id, store.RunStatusCompleted, ""); err != nil {
			r.logger.Warn().Err(err).Msg("failed to complete run record")
		}
	}
	metricRuns.WithLabelValues(store.RunStatusCompleted).Inc()

	if r.printer != nil {
		r.printer.PrintReport(r.report)
		r.printer.PrintTopDropoffs(r.report.TopDropoffs)
	}
	fmt.Fprintf(r.out, "Done! Report saved for run %s.\n", r.id)
	return r.report, nil
}

func (o *Orchestrator) newRun(opts RunOptions) *run {
	id := opts.RunID
	if id == uuid.Nil {
		id = uuid.New()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	r := &run{
		id:           id,
		opts:         opts,
		out:          out,
		logger:       o.logger.With().Str("run_id", id.String()).Logger(),
		step:         o.cfg.StepSeconds,
		maxFrames:    o.cfg.MaxFrames,
		observations: make(map[types.BlockKind][]types.Observation, len(types.AllBlockKinds)),
	}
	r.tracker = progress.NewTracker(o.deps.Store, id, o.logger)
	if rec, ok := o.deps.Store.(store.RunRecorder); ok {
		r.recorder = rec
	}
	if opts.Verbose {
		r.printer = observability.NewPrinter(out)
	}
	if opts.Request.StepSeconds > 0 {
		r.step = opts.Request.StepSeconds
	}
	if opts.Request.MaxFrames > 0 {
		r.maxFrames = opts.Request.MaxFrames
	}
	return r
}

// fail closes the current stage with the error and records the failed run
func (o *Orchestrator) fail(ctx context.Context, r *run, err error) error {
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		stageErr = &StageError{Stage: StateFailed, Cause: err}
	}

	// The stage log must be written even when the run was cancelled.
	writeCtx := context.WithoutCancel(ctx)
	if terr := r.tracker.Fail(writeCtx, stageErr.Stage, stageErr.Cause); terr != nil {
		r.logger.Warn().Err(terr).Msg("failed to write error log")
	}
	if r.recorder != nil {
		if rerr := r.recorder.CompleteRun(writeCtx, r.id, store.RunStatusFailed, stageErr.Error()); rerr != nil {
			r.logger.Warn().Err(rerr).Msg("failed to complete run record")
		}
	}
	metricRuns.WithLabelValues(store.RunStatusFailed).Inc()
	o.emit(r, stageErr.Stage, StateFailed, stageErr.Cause.Error(), nil)
	fmt.Fprintf(r.out, "✗ %s\n", stageErr.Error())
	return stageErr
}

// enter opens a stage. A stage whose dependencies have not completed is a programming error.
func (o *Orchestrator) enter(ctx context.Context, r *run, stage, message string) error {
	if err := r.tracker.Ready(stage); err != nil {
		return &StageError{Stage: stage, Cause: err}
	}
	if err := r.tracker.Start(ctx, stage, message); err != nil {
		r.logger.Warn().Err(err).Str("stage", stage).Msg("failed to write stage log")
	}
	o.emit(r, stage, types.StageStatusRunning, message, nil)
	return nil
}

// update records intermediate stage progress
func (o *Orchestrator) update(ctx context.Context, r *run, stage, message string, details map[string]any) {
	if err := r.tracker.Update(ctx, stage, message, details); err != nil {
		r.logger.Warn().Err(err).Str("stage", stage).Msg("failed to update stage log")
	}
	o.emit(r, stage, types.StageStatusRunning, message, details)
}

// exit closes a stage as completed
func (o *Orchestrator) exit(ctx context.Context, r *run, stage string, started time.Time, message string, details map[string]any) {
	metricStageDuration.WithLabelValues(stage, types.StageStatusCompleted).Observe(time.Since(started).Seconds())
	if err := r.tracker.Complete(ctx, stage, message, details); err != nil {
		r.logger.Warn().Err(err).Str("stage", stage).Msg("failed to close stage log")
	}
	o.emit(r, stage, types.StageStatusCompleted, message, details)
}

// mark records a stage that completes without work of its own
func (o *Orchestrator) mark(ctx context.Context, r *run, stage, message string, details map[string]any) {
	if err := r.tracker.Mark(ctx, stage, message, details); err != nil {
		r.logger.Warn().Err(err).Str("stage", stage).Msg("failed to write stage log")
	}
	o.emit(r, stage, types.StageStatusCompleted, message, details)
}

// abort builds the error that ends the run in stage
func abort(stage string, started time.Time, err error) error {
	metricStageDuration.WithLabelValues(stage, types.StageStatusError).Observe(time.Since(started).Seconds())
	return &StageError{Stage: stage, Cause: err}
}

func (o *Orchestrator) emit(r *run, stage, status, message string, details map[string]any) {
	if r.opts.OnProgress != nil {
		r.opts.OnProgress(ProgressEvent{
			RunID:   r.id.String(),
			Stage:   stage,
			Status:  status,
			Message: message,
			Details: details,
		})
	}
}

func stageTitle(stage string) string {
	switch stage {
	case progress.StageValidating:
		return "Validating inputs"
	case progress.StageMetadata:
		return "Probing video metadata"
	case progress.StageCurveDigitization:
		return "Digitizing retention curve"
	case progress.StageMediaExtraction:
		return "Extracting frames and audio"
	case "analysis":
		return "Analyzing audio, on-screen text and visuals"
	case progress.StageSegmentation:
		return "Segmenting content blocks"
	case progress.StageCorrelation:
		return "Correlating blocks with drop-off"
	case progress.StageFinalizing:
		return "Saving report"
	}
	return stage
}
