package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/retention-insights/internal/logging"
	"github.com/jonathan/retention-insights/internal/media"
	"github.com/jonathan/retention-insights/internal/observability"
	"github.com/jonathan/retention-insights/internal/throttle"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract sampled frames and the audio track from a video",
	Long: `Probes the video, extracts one frame every --step seconds (at most --max-frames) into
--out-dir, and with --audio also extracts the audio track as mp3.`,
	RunE: runExtract,
}

var (
	extractVideo     string
	extractOutDir    string
	extractStep      float64
	extractMaxFrames int
	extractAudio     bool
)

func init() {
	extractCmd.Flags().StringVar(&extractVideo, "video", "", "Path to the video file")
	extractCmd.Flags().StringVar(&extractOutDir, "out-dir", "", "Directory for the extracted media")
	extractCmd.Flags().Float64Var(&extractStep, "step", 0, "Seconds between sampled frames")
	extractCmd.Flags().IntVar(&extractMaxFrames, "max-frames", 0, "Maximum frames to extract")
	extractCmd.Flags().BoolVar(&extractAudio, "audio", false, "Also extract the audio track")
	_ = extractCmd.MarkFlagRequired("video")
	_ = extractCmd.MarkFlagRequired("out-dir")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := logging.WithComponent("cli")
	tool, err := newMediaTool(logger)
	if err != nil {
		return err
	}

	opts := media.DefaultOptions()
	opts.StepSeconds = cfg.StepSeconds
	opts.MaxFrames = cfg.MaxFrames
	if extractStep > 0 {
		opts.StepSeconds = extractStep
	}
	if extractMaxFrames > 0 {
		opts.MaxFrames = extractMaxFrames
	}
	extractor := media.NewExtractor(tool, throttle.New("media", cfg.ThrottleSlots), opts, logger)

	meta, err := extractor.Probe(ctx, extractVideo)
	if err != nil {
		return err
	}
	if cfg.Verbose {
		observability.NewPrinter(os.Stdout).PrintVideo(meta)
	}

	framesDir := filepath.Join(extractOutDir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	start := time.Now()
	frames, err := extractor.ExtractFrames(ctx, extractVideo, meta.Duration, framesDir)
	if err != nil {
		return err
	}
	fmt.Printf("Extracted %d frames to %s in %s\n", len(frames), framesDir, time.Since(start).Round(time.Millisecond))

	if !extractAudio {
		return nil
	}
	if !meta.HasAudio {
		fmt.Println("Video has no audio stream; skipping audio")
		return nil
	}
	audioPath := filepath.Join(extractOutDir, "audio.mp3")
	next := 25
	err = extractor.ExtractAudio(ctx, extractVideo, meta.Duration, audioPath, func(fraction float64) {
		if pct := int(fraction * 100); pct >= next {
			fmt.Printf("  audio %d%%\n", pct)
			next = pct - pct%25 + 25
		}
	})
	if err != nil {
		return err
	}
	fmt.Printf("Extracted audio to %s\n", audioPath)
	return nil
}
