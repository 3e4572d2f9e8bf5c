// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/retention-insights/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// curveRows is how many evenly spaced samples PrintCurve shows
	curveRows = 8
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintVideo outputs the probed video metadata.
func (p *Printer) PrintVideo(meta *types.VideoMetadata) {
	if meta == nil {
		return
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Duration:   %.2fs\n", meta.Duration))
	sb.WriteString(fmt.Sprintf("Resolution: %dx%d @ %.2f fps\n", meta.Width, meta.Height, meta.FPS))
	if meta.HasAudio {
		sb.WriteString(fmt.Sprintf("Audio:      %s", meta.AudioCodec))
	} else {
		sb.WriteString("Audio:      none")
	}
	p.printBox("VIDEO METADATA", sb.String())
}

// PrintCurve outputs a sampled view of the digitized curve with its validation result.
func (p *Printer) PrintCurve(curve *types.RetentionCurve, validation types.CurveValidation) {
	if curve == nil || len(curve.Samples) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Samples: %d  step: %.2fs  duration: %.2fs\n\n",
		len(curve.Samples), curve.StepSeconds, curve.TotalDuration))

	stride := 1
	if len(curve.Samples) > curveRows {
		stride = (len(curve.Samples) + curveRows - 1) / curveRows
	}
	for i := 0; i < len(curve.Samples); i += stride {
		s := curve.Samples[i]
		sb.WriteString(fmt.Sprintf("%7.2fs  %6.2f%%  %s\n", s.Timestamp, s.RetentionPct, bar(s.RetentionPct)))
	}

	if validation.IsValid {
		sb.WriteString("\n✓ curve passed validation")
	} else {
		sb.WriteString(fmt.Sprintf("\n⚠ %d validation issue(s):", len(validation.Errors)))
		count := min(len(validation.Errors), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString("\n  • " + validation.Errors[i])
		}
	}

	p.printBox("RETENTION CURVE", sb.String())
}

// bar renders a retention percentage as a 20 character gauge
func bar(pct float64) string {
	filled := int(pct/5 + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > 20 {
		filled = 20
	}
	return strings.Repeat("█", filled) + strings.Repeat("·", 20-filled)
}

// PrintBlocks outputs one kind's content blocks.
func (p *Printer) PrintBlocks(kind types.BlockKind, blocks []types.ContentBlock, usedFallback bool) {
	title := strings.ToUpper(string(kind)) + " BLOCKS"
	if usedFallback {
		title += " (fallback)"
	}
	if len(blocks) == 0 {
		p.printBox(title, "No blocks")
		return
	}

	var sb strings.Builder
	count := min(len(blocks), maxItemsToShow)
	for i := 0; i < count; i++ {
		b := blocks[i]
		sb.WriteString(fmt.Sprintf("[%6.2f - %6.2f] %s\n", b.StartTime, b.EndTime, b.Name))
	}
	if len(blocks) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more blocks", len(blocks)-maxItemsToShow))
	}
	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintTopDropoffs outputs the blocks that lost the most viewers.
func (p *Printer) PrintTopDropoffs(blocks []types.ContentBlock) {
	if len(blocks) == 0 {
		return
	}

	var sb strings.Builder
	for i, b := range blocks {
		if b.Dropout == nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("#%d  %-6s %s\n", i+1, b.Kind, b.Name))
		sb.WriteString(fmt.Sprintf("    %.2fs-%.2fs  %.2f%% → %.2f%%  (-%.2f pts, %.2f%% rel)",
			b.StartTime, b.EndTime, b.Dropout.StartRetention, b.Dropout.EndRetention,
			b.Dropout.AbsoluteDropout, b.Dropout.RelativeDropout))
		if i < len(blocks)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox("TOP DROP-OFFS", sb.String())
}

// PrintReport outputs the summary of a finished run.
func (p *Printer) PrintReport(report *types.ComprehensiveReport) {
	if report == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run: %s\n", report.RunID))
	for _, kind := range types.AllBlockKinds {
		sb.WriteString(fmt.Sprintf("%-7s blocks: %d\n", kind, len(report.Blocks(kind))))
	}
	sb.WriteString(fmt.Sprintf("Metrics: %d", len(report.Metrics)))
	if len(report.FallbackKinds) > 0 {
		kinds := make([]string, len(report.FallbackKinds))
		for i, k := range report.FallbackKinds {
			kinds[i] = string(k)
		}
		sb.WriteString(fmt.Sprintf("\nFallback segmentation: %s", strings.Join(kinds, ", ")))
	}
	if !report.Validation.IsValid {
		sb.WriteString(fmt.Sprintf("\nCurve issues: %d", len(report.Validation.Errors)))
	}
	p.printBox("ANALYSIS REPORT", sb.String())
}

// PrintStageLogs outputs a run's stage log as a table.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintStageLogs(logs []types.PipelineStageLog) {
	for _, l := range logs {
		marker := "…"
		switch l.Status {
		case types.StageStatusCompleted:
			marker = "✓"
		case types.StageStatusError:
			marker = "✗"
		}
		fmt.Fprintf(p.out, "%s %s %-20s %s\n", l.UpdatedAt.Format("15:04:05"), marker, l.Stage, l.Message)
	}
}
