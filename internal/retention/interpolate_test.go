package retention

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/retention-insights/internal/types"
)

func scenarioCurve() *types.RetentionCurve {
	return &types.RetentionCurve{
		Samples: []types.RetentionSample{
			{Timestamp: 0, RetentionPct: 100, DropoutPct: 0},
			{Timestamp: 1, RetentionPct: 80, DropoutPct: 20},
			{Timestamp: 2, RetentionPct: 50, DropoutPct: 50},
		},
		StepSeconds:   1,
		TotalDuration: 2,
	}
}

func TestRetentionAt(t *testing.T) {
	curve := scenarioCurve()
	tests := []struct {
		name string
		t    float64
		want float64
	}{
		{name: "exact start", t: 0, want: 100},
		{name: "exact end", t: 2, want: 50},
		{name: "snaps within window", t: 0.2, want: 100},
		{name: "snaps to later sample", t: 0.8, want: 80},
		{name: "interpolates", t: 0.5, want: 90},
		{name: "interpolates second segment", t: 1.5, want: 65},
		{name: "after last sample", t: 10, want: 50},
		{name: "before first sample", t: -3, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RetentionAt(curve, tt.t), 1e-9)
		})
	}
}

func TestRetentionAt_NoSamples(t *testing.T) {
	assert.Equal(t, 100.0, RetentionAt(nil, 3))
	assert.Equal(t, 100.0, RetentionAt(&types.RetentionCurve{}, 3))
}

func TestRetentionAt_OneSided(t *testing.T) {
	curve := &types.RetentionCurve{Samples: []types.RetentionSample{{Timestamp: 5, RetentionPct: 70, DropoutPct: 30}}}
	assert.Equal(t, 70.0, RetentionAt(curve, 0))
	assert.Equal(t, 70.0, RetentionAt(curve, 9))
}

func TestRetentionAt_ClampsOutOfRangeSamples(t *testing.T) {
	curve := &types.RetentionCurve{Samples: []types.RetentionSample{
		{Timestamp: 0, RetentionPct: 120},
		{Timestamp: 1, RetentionPct: -10},
	}}
	assert.Equal(t, 100.0, RetentionAt(curve, 0))
	assert.Equal(t, 0.0, RetentionAt(curve, 1))
	v := RetentionAt(curve, 0.5)
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 100.0)
}

func TestRetentionAt_UnsortedSamples(t *testing.T) {
	curve := scenarioCurve()
	curve.Samples[0], curve.Samples[2] = curve.Samples[2], curve.Samples[0]
	assert.InDelta(t, 90, RetentionAt(curve, 0.5), 1e-9)
}

func TestInterpolator_NonIncreasingAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		curve := &types.RetentionCurve{}
		retention := 100.0
		ts := 0.0
		for i := 0; i < 20; i++ {
			curve.Samples = append(curve.Samples, types.RetentionSample{Timestamp: ts, RetentionPct: retention, DropoutPct: 100 - retention})
			ts += 0.1 + rng.Float64()
			retention -= rng.Float64() * 8
			if retention < 0 {
				retention = 0
			}
		}

		ip := NewInterpolator(curve)
		prev := ip.At(-1)
		for q := -1.0; q < ts+2; q += 0.05 {
			v := ip.At(q)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
			assert.LessOrEqual(t, v, prev+1e-9, "trial %d: retention rose at %.2f", trial, q)
			prev = v
		}
	}
}
