package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/retention-insights/internal/analysis"
	"github.com/jonathan/retention-insights/internal/correlation"
	"github.com/jonathan/retention-insights/internal/digitize"
	"github.com/jonathan/retention-insights/internal/media"
	"github.com/jonathan/retention-insights/internal/progress"
	"github.com/jonathan/retention-insights/internal/retention"
	"github.com/jonathan/retention-insights/internal/segmentation"
	"github.com/jonathan/retention-insights/internal/types"
)

// audioProgressStep is the fraction of audio extraction between stage log updates
const audioProgressStep = 0.25

func (o *Orchestrator) validate(ctx context.Context, r *run) error {
	stage := progress.StageValidating
	started := time.Now()
	if err := o.enter(ctx, r, stage, "checking inputs"); err != nil {
		return err
	}

	if err := ValidateRequest(&r.opts.Request); err != nil {
		return abort(stage, started, err)
	}

	o.exit(ctx, r, stage, started, "inputs valid", map[string]any{
		"video_path":       r.opts.Request.VideoPath,
		"curve_image_path": r.opts.Request.CurveImagePath,
	})
	return nil
}

func (o *Orchestrator) probe(ctx context.Context, r *run) error {
	stage := progress.StageMetadata
	started := time.Now()
	if err := o.enter(ctx, r, stage, "probing video"); err != nil {
		return err
	}

	meta, err := r.extractor(o).Probe(ctx, r.opts.Request.VideoPath)
	if err != nil {
		return abort(stage, started, err)
	}
	r.meta = meta

	r.duration = meta.Duration
	if r.opts.Request.VideoDuration > 0 {
		r.duration = r.opts.Request.VideoDuration
	}
	if r.duration <= 0 {
		return abort(stage, started, &ValidationError{Field: "video_duration", Message: "video duration is unknown; pass it explicitly"})
	}
	if !meta.HasAudio {
		r.logger.Info().Msg("video has no audio stream, skipping transcription")
	}
	if r.printer != nil {
		r.printer.PrintVideo(meta)
	}

	o.exit(ctx, r, stage, started, fmt.Sprintf("video is %.2fs", r.duration), map[string]any{
		"duration":  r.duration,
		"width":     meta.Width,
		"height":    meta.Height,
		"has_audio": meta.HasAudio,
	})
	return nil
}

func (o *Orchestrator) digitizeCurve(ctx context.Context, r *run) error {
	stage := progress.StageCurveDigitization
	started := time.Now()
	if err := o.enter(ctx, r, stage, "reading retention curve"); err != nil {
		return err
	}

	opts := o.cfg.Digitize
	opts.StepSeconds = r.step
	digitizer := digitize.New(o.deps.Model, opts, o.logger)
	if o.sleep != nil {
		digitizer.WithSleep(o.sleep)
	}

	curve, err := digitizer.DigitizeFile(ctx, r.opts.Request.CurveImagePath, r.duration)
	if err != nil {
		return abort(stage, started, err)
	}

	checked := retention.Validate(curve)
	if !checked.IsValid {
		r.logger.Warn().Strs("errors", checked.Errors).Msg("retention curve failed validation, continuing with repaired curve")
	}
	r.curve = checked.Curve
	r.report = &types.ComprehensiveReport{
		RunID:      r.id,
		Curve:      r.curve,
		Validation: checked.Summary(),
		Video:      r.meta,
	}
	if r.printer != nil {
		r.printer.PrintCurve(r.curve, r.report.Validation)
	}

	o.exit(ctx, r, stage, started, fmt.Sprintf("digitized %d samples", r.curve.Len()), map[string]any{
		"samples":  r.curve.Len(),
		"is_valid": checked.IsValid,
		"errors":   checked.Errors,
	})
	return nil
}

func (o *Orchestrator) extractMedia(ctx context.Context, r *run) error {
	stage := progress.StageMediaExtraction
	started := time.Now()
	if err := o.enter(ctx, r, stage, "extracting frames"); err != nil {
		return err
	}

	ws, err := media.NewWorkspace(o.cfg.WorkDir, r.id.String())
	if err != nil {
		return abort(stage, started, err)
	}
	r.workspace = ws

	extractor := r.extractor(o)
	frames, err := extractor.ExtractFrames(ctx, r.opts.Request.VideoPath, r.duration, ws.FramesDir)
	if err != nil {
		if derr := ws.DiscardFrames(); derr != nil {
			r.logger.Warn().Err(derr).Msg("failed to discard partial frames")
		}
		return abort(stage, started, err)
	}
	r.frames = frames
	o.update(ctx, r, stage, fmt.Sprintf("extracted %d frames", len(frames)), map[string]any{"frames": len(frames)})

	if r.meta.HasAudio && o.deps.Speech != nil {
		var mu sync.Mutex
		next := audioProgressStep
		err := extractor.ExtractAudio(ctx, r.opts.Request.VideoPath, r.duration, ws.AudioPath, func(fraction float64) {
			mu.Lock()
			defer mu.Unlock()
			if fraction < next {
				return
			}
			next = math.Floor(fraction/audioProgressStep)*audioProgressStep + audioProgressStep
			o.update(ctx, r, stage, fmt.Sprintf("extracting audio %.0f%%", fraction*100), map[string]any{"audio_progress": fraction})
		})
		if err != nil {
			return abort(stage, started, err)
		}
		r.audioPath = ws.AudioPath
	}

	o.exit(ctx, r, stage, started, fmt.Sprintf("extracted %d frames", len(frames)), map[string]any{
		"frames": len(frames),
		"audio":  r.audioPath != "",
	})
	return nil
}

// analyze runs transcription and both frame analyzers concurrently. Each writes its own
// stage log; a failure in one cancels the others.
func (o *Orchestrator) analyze(ctx context.Context, r *run) error {
	runner := analysis.NewBatchRunner(o.cfg.Batch)
	if o.sleep != nil {
		runner.WithSleep(o.sleep)
	}
	frames := analysis.NewFrameAnalyzer(o.deps.Model, runner, o.logger)

	var mu sync.Mutex
	set := func(kind types.BlockKind, obs []types.Observation) {
		mu.Lock()
		r.observations[kind] = obs
		mu.Unlock()
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stage := progress.StageTranscription
		if r.audioPath == "" {
			set(types.BlockKindAudio, nil)
			o.mark(gCtx, r, stage, "skipped: no audio to transcribe", map[string]any{"skipped": true})
			return nil
		}
		started := time.Now()
		if err := o.enter(gCtx, r, stage, "transcribing audio"); err != nil {
			return err
		}
		obs := analysis.NewTranscriber(o.deps.Speech, r.step, o.logger).Transcribe(gCtx, r.audioPath)
		if err := gCtx.Err(); err != nil {
			return abort(stage, started, err)
		}
		set(types.BlockKindAudio, obs)
		o.exit(gCtx, r, stage, started, fmt.Sprintf("transcribed %d samples", len(obs)), map[string]any{"samples": len(obs)})
		return nil
	})

	g.Go(func() error {
		stage := progress.StageFrameText
		started := time.Now()
		if err := o.enter(gCtx, r, stage, fmt.Sprintf("reading text in %d frames", len(r.frames))); err != nil {
			return err
		}
		obs, err := frames.AnalyzeText(gCtx, r.frames)
		if err != nil {
			return abort(stage, started, err)
		}
		set(types.BlockKindText, obs)
		o.exit(gCtx, r, stage, started, fmt.Sprintf("analyzed %d frames", len(obs)), map[string]any{"samples": len(obs)})
		return nil
	})

	g.Go(func() error {
		stage := progress.StageFrameVisual
		started := time.Now()
		if err := o.enter(gCtx, r, stage, "describing visual scenes"); err != nil {
			return err
		}
		obs, err := frames.AnalyzeVisual(gCtx, r.frames, o.cfg.VisualStride)
		if err != nil {
			return abort(stage, started, err)
		}
		set(types.BlockKindVisual, obs)
		o.exit(gCtx, r, stage, started, fmt.Sprintf("described %d frames", len(obs)), map[string]any{
			"samples": len(obs),
			"stride":  o.cfg.VisualStride,
		})
		return nil
	})

	return g.Wait()
}

// segment builds the three block sets concurrently
func (o *Orchestrator) segment(ctx context.Context, r *run) error {
	stage := progress.StageSegmentation
	started := time.Now()
	if err := o.enter(ctx, r, stage, "segmenting content"); err != nil {
		return err
	}

	segmenter := segmentation.NewSegmenter(o.deps.Model, o.cfg.FallbackBlockSeconds, o.logger)
	results := make([]segmentation.Result, len(types.AllBlockKinds))

	g, gCtx := errgroup.WithContext(ctx)
	for i, kind := range types.AllBlockKinds {
		g.Go(func() error {
			res, err := segmenter.Segment(gCtx, segmentation.Timeline{
				Kind:          kind,
				Observations:  r.observations[kind],
				TotalDuration: r.duration,
			})
			if err != nil {
				return fmt.Errorf("segmenting %s: %w", kind, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return abort(stage, started, err)
	}

	details := map[string]any{}
	for _, res := range results {
		r.report.SetBlocks(res.Kind, res.Blocks)
		if res.UsedFallback {
			r.report.FallbackKinds = append(r.report.FallbackKinds, res.Kind)
		}
		details[string(res.Kind)+"_blocks"] = len(res.Blocks)
		if r.printer != nil {
			r.printer.PrintBlocks(res.Kind, res.Blocks, res.UsedFallback)
		}
	}
	if len(r.report.FallbackKinds) > 0 {
		details["fallback_kinds"] = r.report.FallbackKinds
	}

	o.exit(ctx, r, stage, started, "content segmented", details)
	return nil
}

func (o *Orchestrator) correlate(ctx context.Context, r *run) error {
	stage := progress.StageCorrelation
	started := time.Now()
	if err := o.enter(ctx, r, stage, "correlating blocks with drop-off"); err != nil {
		return err
	}

	correlation.CorrelateReport(r.report)

	o.exit(ctx, r, stage, started, fmt.Sprintf("computed %d block metrics", len(r.report.Metrics)), map[string]any{
		"metrics": len(r.report.Metrics),
	})
	return nil
}

func (o *Orchestrator) finalize(ctx context.Context, r *run) error {
	stage := progress.StageFinalizing
	started := time.Now()
	if err := o.enter(ctx, r, stage, "saving report"); err != nil {
		return err
	}

	r.report.TopDropoffs = correlation.TopDropoffs(r.report, o.cfg.TopDropoffs)
	r.report.CreatedAt = time.Now().UTC()

	if err := o.deps.Store.SaveReport(ctx, r.id, r.report); err != nil {
		return abort(stage, started, fmt.Errorf("failed to save report: %w", err))
	}

	o.exit(ctx, r, stage, started, "report saved", map[string]any{
		"top_dropoffs": len(r.report.TopDropoffs),
	})
	return nil
}

// extractor builds the run's media extractor with its own step and frame cap
func (r *run) extractor(o *Orchestrator) *media.Extractor {
	e := media.NewExtractor(o.deps.Tool, o.deps.Throttle, media.Options{
		StepSeconds: r.step,
		MaxFrames:   r.maxFrames,
		BaseBackoff: o.cfg.FrameBackoff,
	}, o.logger)
	if o.sleep != nil {
		e.WithSleep(o.sleep)
	}
	return e
}
