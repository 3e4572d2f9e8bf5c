package digitize

import (
	"github.com/jonathan/retention-insights/internal/types"
)

// Normalize clamps and rounds every sample, fills in missing dropout values and
// defaults the step and total duration.
func Normalize(raw *RawCurve, defaultStep, knownDuration float64) *types.RetentionCurve {
	curve := &types.RetentionCurve{
		Samples: make([]types.RetentionSample, 0, len(raw.Samples)),
	}

	for _, s := range raw.Samples {
		retention := types.Round2(types.ClampPct(s.RetentionPct))
		dropout := types.Round2(100 - retention)
		if s.DropoutPct != nil {
			dropout = types.Round2(types.ClampPct(*s.DropoutPct))
		}
		timestamp := s.Timestamp
		if timestamp < 0 {
			timestamp = 0
		}
		curve.Samples = append(curve.Samples, types.RetentionSample{
			Timestamp:    types.Round2(timestamp),
			RetentionPct: retention,
			DropoutPct:   dropout,
		})
	}

	curve.StepSeconds = defaultStep
	if raw.StepSeconds != nil && *raw.StepSeconds > 0 {
		curve.StepSeconds = *raw.StepSeconds
	}

	switch {
	case knownDuration > 0:
		curve.TotalDuration = knownDuration
	case raw.TotalDuration != nil && *raw.TotalDuration > 0:
		curve.TotalDuration = *raw.TotalDuration
	default:
		if last, ok := curve.Last(); ok {
			curve.TotalDuration = last.Timestamp
		}
	}
	return curve
}
