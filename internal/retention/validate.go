package retention

import (
	"fmt"
	"math"
	"sort"

	"github.com/jonathan/retention-insights/internal/types"
)

// Validation thresholds
const (
	// MaxFirstSampleOffset is how far from t=0 the first sample may be, in seconds
	MaxFirstSampleOffset = 1.0
	// MinInitialRetention is the lowest plausible retention at the start of a video
	MinInitialRetention = 95.0
	// MaxUpwardNoise is the largest tolerated increase between consecutive samples, in points
	MaxUpwardNoise = 5.0
)

// Result is the validator's verdict. Curve is always non-nil.
type Result struct {
	Curve   *types.RetentionCurve
	Errors  []string
	IsValid bool
}

// Summary converts the result into the report's validation block
func (r Result) Summary() types.CurveValidation {
	return types.CurveValidation{IsValid: r.IsValid, Errors: r.Errors}
}

// Validate checks the curve and returns a repaired copy with samples sorted, clamped
// to [0,100] and rounded to two decimals. It never fails; problems are reported as
// human-readable strings.
func Validate(curve *types.RetentionCurve) Result {
	var errs []string
	addf := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	repaired := curve.Clone()
	if repaired == nil {
		repaired = &types.RetentionCurve{}
	}
	sort.SliceStable(repaired.Samples, func(i, j int) bool {
		return repaired.Samples[i].Timestamp < repaired.Samples[j].Timestamp
	})

	if len(repaired.Samples) == 0 {
		addf("curve has no samples")
		return Result{Curve: repaired, Errors: errs, IsValid: false}
	}

	first := repaired.Samples[0]
	if first.Timestamp > MaxFirstSampleOffset {
		addf("first sample is at %.2fs, expected within %.1fs of the start", first.Timestamp, MaxFirstSampleOffset)
	}
	if first.RetentionPct < MinInitialRetention {
		addf("initial retention %.2f%% is below %.0f%%", first.RetentionPct, MinInitialRetention)
	}

	for i, s := range repaired.Samples {
		if s.Timestamp < 0 {
			addf("sample %d has negative timestamp %.2f", i, s.Timestamp)
		}
		if s.RetentionPct < 0 || s.RetentionPct > 100 {
			addf("sample %d at %.2fs: retention %.2f%% is out of range", i, s.Timestamp, s.RetentionPct)
		}
		if s.DropoutPct < 0 || s.DropoutPct > 100 {
			addf("sample %d at %.2fs: dropout %.2f%% is out of range", i, s.Timestamp, s.DropoutPct)
		}
		if math.Abs(s.DropoutPct-(100-s.RetentionPct)) > types.DropoutTolerance+1e-9 {
			addf("sample %d at %.2fs: dropout %.2f%% does not match retention %.2f%%", i, s.Timestamp, s.DropoutPct, s.RetentionPct)
		}
		if i > 0 {
			prev := repaired.Samples[i-1]
			if rise := s.RetentionPct - prev.RetentionPct; rise > MaxUpwardNoise {
				addf("retention rises %.2f points between %.2fs and %.2fs", rise, prev.Timestamp, s.Timestamp)
			}
		}
	}

	for i := range repaired.Samples {
		s := &repaired.Samples[i]
		s.Timestamp = types.Round2(math.Max(0, s.Timestamp))
		s.RetentionPct = types.Round2(types.ClampPct(s.RetentionPct))
		s.DropoutPct = types.Round2(types.ClampPct(s.DropoutPct))
	}

	return Result{Curve: repaired, Errors: errs, IsValid: len(errs) == 0}
}
