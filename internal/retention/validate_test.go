package retention

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/retention-insights/internal/types"
)

func TestValidate_ValidCurve(t *testing.T) {
	result := Validate(scenarioCurve())
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, scenarioCurve().Samples, result.Curve.Samples)
}

func TestValidate_LowInitialRetention(t *testing.T) {
	curve := &types.RetentionCurve{Samples: []types.RetentionSample{
		{Timestamp: 0, RetentionPct: 60, DropoutPct: 40},
		{Timestamp: 1, RetentionPct: 55.555, DropoutPct: 44.445},
		{Timestamp: 2, RetentionPct: 50, DropoutPct: 50},
	}}

	result := Validate(curve)
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "initial retention")
	require.NotNil(t, result.Curve)
	require.Len(t, result.Curve.Samples, 3)
	assert.Equal(t, 55.56, result.Curve.Samples[1].RetentionPct)
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	curve := &types.RetentionCurve{Samples: []types.RetentionSample{
		{Timestamp: 0, RetentionPct: 130, DropoutPct: -30},
	}}
	result := Validate(curve)
	assert.Equal(t, 130.0, curve.Samples[0].RetentionPct)
	assert.Equal(t, 100.0, result.Curve.Samples[0].RetentionPct)
	assert.Equal(t, 0.0, result.Curve.Samples[0].DropoutPct)
	assert.False(t, result.IsValid)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		samples  []types.RetentionSample
		contains string
	}{
		{
			name: "first sample late",
			samples: []types.RetentionSample{
				{Timestamp: 3, RetentionPct: 100, DropoutPct: 0},
			},
			contains: "first sample",
		},
		{
			name: "dropout mismatch",
			samples: []types.RetentionSample{
				{Timestamp: 0, RetentionPct: 100, DropoutPct: 0},
				{Timestamp: 1, RetentionPct: 80, DropoutPct: 25},
			},
			contains: "does not match",
		},
		{
			name: "large rise",
			samples: []types.RetentionSample{
				{Timestamp: 0, RetentionPct: 100, DropoutPct: 0},
				{Timestamp: 1, RetentionPct: 70, DropoutPct: 30},
				{Timestamp: 2, RetentionPct: 80, DropoutPct: 20},
			},
			contains: "rises",
		},
		{
			name: "out of range",
			samples: []types.RetentionSample{
				{Timestamp: 0, RetentionPct: 100, DropoutPct: 0},
				{Timestamp: 1, RetentionPct: -5, DropoutPct: 105},
			},
			contains: "out of range",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(&types.RetentionCurve{Samples: tt.samples})
			assert.False(t, result.IsValid)
			require.NotEmpty(t, result.Errors)
			found := false
			for _, e := range result.Errors {
				if strings.Contains(e, tt.contains) {
					found = true
				}
			}
			assert.True(t, found, "errors %v should mention %q", result.Errors, tt.contains)
		})
	}
}

func TestValidate_SmallRiseTolerated(t *testing.T) {
	result := Validate(&types.RetentionCurve{Samples: []types.RetentionSample{
		{Timestamp: 0, RetentionPct: 100, DropoutPct: 0},
		{Timestamp: 1, RetentionPct: 70, DropoutPct: 30},
		{Timestamp: 2, RetentionPct: 74.5, DropoutPct: 25.5},
	}})
	assert.True(t, result.IsValid, result.Errors)
}

func TestValidate_DropoutWithinTolerance(t *testing.T) {
	result := Validate(&types.RetentionCurve{Samples: []types.RetentionSample{
		{Timestamp: 0, RetentionPct: 100, DropoutPct: 0.1},
		{Timestamp: 0.5, RetentionPct: 90.05, DropoutPct: 9.9},
	}})
	assert.True(t, result.IsValid, result.Errors)
}

func TestValidate_Empty(t *testing.T) {
	result := Validate(nil)
	assert.False(t, result.IsValid)
	require.NotNil(t, result.Curve)
	assert.Equal(t, []string{"curve has no samples"}, result.Errors)
}

func TestValidate_SortsSamples(t *testing.T) {
	curve := scenarioCurve()
	curve.Samples[0], curve.Samples[2] = curve.Samples[2], curve.Samples[0]
	result := Validate(curve)
	assert.True(t, result.IsValid, result.Errors)
	assert.Equal(t, 0.0, result.Curve.Samples[0].Timestamp)
}

func TestResult_Summary(t *testing.T) {
	summary := Result{IsValid: false, Errors: []string{"x"}}.Summary()
	assert.Equal(t, types.CurveValidation{IsValid: false, Errors: []string{"x"}}, summary)
}
