package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/retention-insights/internal/digitize"
	"github.com/jonathan/retention-insights/internal/logging"
	"github.com/jonathan/retention-insights/internal/observability"
	"github.com/jonathan/retention-insights/internal/retention"
)

var digitizeCmd = &cobra.Command{
	Use:   "digitize",
	Short: "Digitize a retention chart image into a retention curve",
	Long: `Asks the vision model for the chart's sample table, retrying malformed answers with
exponential backoff, then validates the curve and prints the repaired samples as JSON.`,
	RunE: runDigitize,
}

var (
	digitizeImage    string
	digitizeDuration float64
	digitizeStep     float64
	digitizeOut      string
)

func init() {
	digitizeCmd.Flags().StringVar(&digitizeImage, "image", "", "Path to the retention chart image")
	digitizeCmd.Flags().Float64Var(&digitizeDuration, "duration", 0, "Known video duration in seconds")
	digitizeCmd.Flags().Float64Var(&digitizeStep, "step", 0, "Default seconds between samples")
	digitizeCmd.Flags().StringVarP(&digitizeOut, "out", "o", "-", "Write the curve JSON to this file (- for stdout)")
	_ = digitizeCmd.MarkFlagRequired("image")

	rootCmd.AddCommand(digitizeCmd)
}

func runDigitize(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	client, err := newModelClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	opts := cfg.Pipeline().Digitize
	if digitizeStep > 0 {
		opts.StepSeconds = digitizeStep
	}
	d := digitize.New(client, opts, logging.WithComponent("cli"))

	curve, err := d.DigitizeFile(ctx, digitizeImage, digitizeDuration)
	if err != nil {
		return err
	}
	result := retention.Validate(curve)
	if cfg.Verbose {
		observability.NewPrinter(os.Stderr).PrintCurve(result.Curve, result.Summary())
	}
	if !result.IsValid {
		fmt.Fprintf(os.Stderr, "Warning: curve has %d validation error(s)\n", len(result.Errors))
	}
	return writeJSON(digitizeOut, result.Curve)
}
