// Package types provides type definitions for structured data used throughout the retention analysis system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "math"

// DropoutTolerance is the maximum allowed difference between a sample's
// dropout and the complement of its retention.
const DropoutTolerance = 0.1

// RetentionSample is a single point on the audience-retention curve.
type RetentionSample struct {
	Timestamp    float64 `json:"timestamp"`
	RetentionPct float64 `json:"retention_pct"`
	DropoutPct   float64 `json:"dropout_pct"`
}

// RetentionCurve is the digitized retention time series, ordered by timestamp.
type RetentionCurve struct {
	Samples       []RetentionSample `json:"samples"`
	StepSeconds   float64           `json:"step_seconds"`
	TotalDuration float64           `json:"total_duration"`
}

// Len returns the number of samples in the curve
func (c *RetentionCurve) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Samples)
}

// First returns the earliest sample. The second return value is false for an empty curve.
func (c *RetentionCurve) First() (RetentionSample, bool) {
	if c.Len() == 0 {
		return RetentionSample{}, false
	}
	return c.Samples[0], true
}

// Last returns the latest sample. The second return value is false for an empty curve.
func (c *RetentionCurve) Last() (RetentionSample, bool) {
	if c.Len() == 0 {
		return RetentionSample{}, false
	}
	return c.Samples[len(c.Samples)-1], true
}

// Clone returns a deep copy of the curve
func (c *RetentionCurve) Clone() *RetentionCurve {
	if c == nil {
		return nil
	}
	out := *c
	out.Samples = make([]RetentionSample, len(c.Samples))
	copy(out.Samples, c.Samples)
	return &out
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ClampPct clamps v to the [0,100] percentage range.
func ClampPct(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
