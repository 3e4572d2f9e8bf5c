// Package correlation attributes retention loss to content blocks.
package correlation

import (
	"sort"

	"github.com/jonathan/retention-insights/internal/retention"
	"github.com/jonathan/retention-insights/internal/types"
)

// Metric computes the dropout metric for one block
func Metric(ip *retention.Interpolator, block types.ContentBlock) types.BlockDropoutMetric {
	start := ip.At(block.StartTime)
	end := ip.At(block.EndTime)
	absolute := start - end

	relative := 0.0
	if start > 0 {
		relative = absolute / start * 100
	}
	if relative < 0 {
		relative = 0
	}

	return types.BlockDropoutMetric{
		BlockID:           block.ID,
		StartRetention:    types.Round2(start),
		EndRetention:      types.Round2(end),
		AbsoluteDropout:   types.Round2(absolute),
		RelativeDropout:   types.Round2(relative),
		DropoutPercentage: types.Round2(100 - end),
	}
}

// Correlate computes one metric per block, sets each block's Dropout field and returns
// the metrics in block order. The curve is not modified.
func Correlate(curve *types.RetentionCurve, blocks []types.ContentBlock) []types.BlockDropoutMetric {
	ip := retention.NewInterpolator(curve)
	metrics := make([]types.BlockDropoutMetric, len(blocks))
	for i := range blocks {
		metric := Metric(ip, blocks[i])
		metrics[i] = metric
		blocks[i].Dropout = &metric
	}
	return metrics
}

// CorrelateReport enriches every block collection of the report and fills its metric list
func CorrelateReport(report *types.ComprehensiveReport) {
	ip := retention.NewInterpolator(report.Curve)
	report.Metrics = report.Metrics[:0]
	for _, kind := range types.AllBlockKinds {
		blocks := report.Blocks(kind)
		for i := range blocks {
			metric := Metric(ip, blocks[i])
			blocks[i].Dropout = &metric
			report.Metrics = append(report.Metrics, metric)
		}
	}
}

// TopDropoffs returns up to n blocks per kind with the largest absolute dropout, highest first.
// Blocks without metrics are ignored.
func TopDropoffs(report *types.ComprehensiveReport, n int) []types.ContentBlock {
	if n <= 0 {
		return nil
	}
	var top []types.ContentBlock
	for _, kind := range types.AllBlockKinds {
		var scored []types.ContentBlock
		for _, b := range report.Blocks(kind) {
			if b.Dropout != nil {
				scored = append(scored, b)
			}
		}
		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].Dropout.AbsoluteDropout > scored[j].Dropout.AbsoluteDropout
		})
		if len(scored) > n {
			scored = scored[:n]
		}
		top = append(top, scored...)
	}
	return top
}
