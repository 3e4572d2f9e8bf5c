// Package retention answers point queries against a digitized retention curve and
// checks a curve for plausibility.
package retention

import (
	"math"
	"sort"

	"github.com/jonathan/retention-insights/internal/types"
)

// SnapWindow is how close, in seconds, a sample must be to a query time to be returned as-is
const SnapWindow = 0.25

// Interpolator answers retention queries against a curve. The zero value has no samples
// and returns 100 everywhere.
type Interpolator struct {
	samples []types.RetentionSample
}

// NewInterpolator copies and sorts the curve's samples
func NewInterpolator(curve *types.RetentionCurve) *Interpolator {
	if curve == nil {
		return &Interpolator{}
	}
	samples := make([]types.RetentionSample, len(curve.Samples))
	copy(samples, curve.Samples)
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp < samples[j].Timestamp
	})
	return &Interpolator{samples: samples}
}

// RetentionAt is a one-off query; build an Interpolator for repeated lookups
func RetentionAt(curve *types.RetentionCurve, t float64) float64 {
	return NewInterpolator(curve).At(t)
}

// At returns the retention percentage at time t, always within [0,100].
func (ip *Interpolator) At(t float64) float64 {
	n := len(ip.samples)
	if n == 0 {
		return 100
	}

	// first sample with timestamp >= t
	hi := sort.Search(n, func(i int) bool { return ip.samples[i].Timestamp >= t })
	lo := hi - 1
	if hi < n && ip.samples[hi].Timestamp == t {
		lo = hi
	}

	// snap to the nearest sample inside the window
	nearest := -1
	for _, idx := range []int{lo, hi} {
		if idx < 0 || idx >= n {
			continue
		}
		d := math.Abs(ip.samples[idx].Timestamp - t)
		if d <= SnapWindow && (nearest == -1 || d < math.Abs(ip.samples[nearest].Timestamp-t)) {
			nearest = idx
		}
	}
	if nearest >= 0 {
		return types.ClampPct(ip.samples[nearest].RetentionPct)
	}

	switch {
	case lo < 0:
		return types.ClampPct(ip.samples[hi].RetentionPct)
	case hi >= n:
		return types.ClampPct(ip.samples[lo].RetentionPct)
	}

	before, after := ip.samples[lo], ip.samples[hi]
	span := after.Timestamp - before.Timestamp
	if span <= 0 {
		return types.ClampPct(before.RetentionPct)
	}
	frac := (t - before.Timestamp) / span
	return types.ClampPct(before.RetentionPct + frac*(after.RetentionPct-before.RetentionPct))
}
