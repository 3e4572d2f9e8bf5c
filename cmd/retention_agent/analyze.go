package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/retention-insights/internal/pipeline"
	"github.com/jonathan/retention-insights/internal/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the full analysis pipeline for one video",
	Long: `Runs every stage: validating -> metadata -> curve digitization -> media extraction ->
transcription + frame analysis -> segmentation -> correlation -> finalizing.

The report is saved to the configured store and, with --out, written as JSON.`,
	RunE: runAnalyze,
}

var (
	analyzeVideo     string
	analyzeCurve     string
	analyzeDuration  float64
	analyzeStep      float64
	analyzeMaxFrames int
	analyzeWorkDir   string
	analyzeKeepMedia bool
	analyzeOut       string
)

func init() {
	analyzeCmd.Flags().StringVar(&analyzeVideo, "video", "", "Path to the video file")
	analyzeCmd.Flags().StringVar(&analyzeCurve, "curve", "", "Path to the retention chart image")
	analyzeCmd.Flags().Float64Var(&analyzeDuration, "duration", 0, "Video duration in seconds (probed when omitted)")
	analyzeCmd.Flags().Float64Var(&analyzeStep, "step", 0, "Seconds between sampled frames")
	analyzeCmd.Flags().IntVar(&analyzeMaxFrames, "max-frames", 0, "Maximum frames to extract")
	analyzeCmd.Flags().StringVar(&analyzeWorkDir, "work-dir", "", "Parent directory for the run's media workspace")
	analyzeCmd.Flags().BoolVar(&analyzeKeepMedia, "keep-media", false, "Keep extracted frames and audio after the run")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "Write the report JSON to this file (- for stdout)")
	_ = analyzeCmd.MarkFlagRequired("video")
	_ = analyzeCmd.MarkFlagRequired("curve")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("work-dir") {
		cfg.WorkDir = analyzeWorkDir
	}
	if cmd.Flags().Changed("keep-media") {
		cfg.KeepMedia = analyzeKeepMedia
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	orch, closeModel, err := newOrchestrator(ctx, cfg, st)
	if err != nil {
		return err
	}
	defer closeModel()

	report, err := orch.Run(ctx, pipeline.RunOptions{
		Request: types.AnalyzeRequest{
			VideoPath:      analyzeVideo,
			CurveImagePath: analyzeCurve,
			VideoDuration:  analyzeDuration,
			StepSeconds:    analyzeStep,
			MaxFrames:      analyzeMaxFrames,
		},
		KeepMedia: cfg.KeepMedia,
		Verbose:   cfg.Verbose,
		Out:       os.Stdout,
	})
	if err != nil {
		return err
	}

	if analyzeOut != "" {
		if err := writeJSON(analyzeOut, report); err != nil {
			return err
		}
		if analyzeOut != "-" {
			fmt.Printf("Report written to %s\n", analyzeOut)
		}
	}
	return nil
}
