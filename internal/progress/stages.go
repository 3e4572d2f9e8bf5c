// Package progress records pipeline stage transitions in the stage log and reads them back
// for progress viewers.
package progress

import (
	"fmt"

	"github.com/jonathan/retention-insights/internal/types"
)

// Stage names, in pipeline order
const (
	StageValidating        = "validating"
	StageMetadata          = "metadata"
	StageCurveDigitization = "curve_digitization"
	StageMediaExtraction   = "media_extraction"
	StageTranscription     = "transcription"
	StageFrameText         = "frame_text"
	StageFrameVisual       = "frame_visual"
	StageSegmentation      = "segmentation"
	StageCorrelation       = "correlation"
	StageFinalizing        = "finalizing"
	StageCompleted         = "completed"
)

// Stage categories
const (
	CategoryInput      = "input"
	CategoryExtraction = "extraction"
	CategoryAnalysis   = "analysis"
	CategoryReport     = "report"
)

// StageDefinition defines metadata for a pipeline stage
type StageDefinition struct {
	Name         string
	Category     string
	Dependencies []string
}

// Order lists every stage in the order a run enters them. The three analysis stages run concurrently.
var Order = []string{
	StageValidating,
	StageMetadata,
	StageCurveDigitization,
	StageMediaExtraction,
	StageTranscription,
	StageFrameText,
	StageFrameVisual,
	StageSegmentation,
	StageCorrelation,
	StageFinalizing,
	StageCompleted,
}

// Registry holds all stage definitions
var Registry = map[string]StageDefinition{
	StageValidating: {
		Name:     StageValidating,
		Category: CategoryInput,
	},
	StageMetadata: {
		Name:         StageMetadata,
		Category:     CategoryInput,
		Dependencies: []string{StageValidating},
	},
	StageCurveDigitization: {
		Name:         StageCurveDigitization,
		Category:     CategoryExtraction,
		Dependencies: []string{StageMetadata},
	},
	StageMediaExtraction: {
		Name:         StageMediaExtraction,
		Category:     CategoryExtraction,
		Dependencies: []string{StageCurveDigitization},
	},
	StageTranscription: {
		Name:         StageTranscription,
		Category:     CategoryAnalysis,
		Dependencies: []string{StageMediaExtraction},
	},
	StageFrameText: {
		Name:         StageFrameText,
		Category:     CategoryAnalysis,
		Dependencies: []string{StageMediaExtraction},
	},
	StageFrameVisual: {
		Name:         StageFrameVisual,
		Category:     CategoryAnalysis,
		Dependencies: []string{StageMediaExtraction},
	},
	StageSegmentation: {
		Name:         StageSegmentation,
		Category:     CategoryAnalysis,
		Dependencies: []string{StageTranscription, StageFrameText, StageFrameVisual},
	},
	StageCorrelation: {
		Name:         StageCorrelation,
		Category:     CategoryReport,
		Dependencies: []string{StageSegmentation},
	},
	StageFinalizing: {
		Name:         StageFinalizing,
		Category:     CategoryReport,
		Dependencies: []string{StageCorrelation},
	},
	StageCompleted: {
		Name:         StageCompleted,
		Category:     CategoryReport,
		Dependencies: []string{StageFinalizing},
	},
}

// DependencyError is returned when a stage is started before the stages it depends on completed
type DependencyError struct {
	Stage               string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("stage %s: missing dependencies: %v", e.Stage, e.MissingDependencies)
}

// ValidateDependencies checks that every dependency of stage is in completed
func ValidateDependencies(stage string, completed map[string]bool) error {
	def, ok := Registry[stage]
	if !ok {
		return fmt.Errorf("unknown stage: %s", stage)
	}

	var missing []string
	for _, dep := range def.Dependencies {
		if !completed[dep] {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return &DependencyError{Stage: stage, MissingDependencies: missing}
	}
	return nil
}

// CompletedStages returns the set of stages with at least one completed log
func CompletedStages(logs []types.PipelineStageLog) map[string]bool {
	done := make(map[string]bool)
	for _, l := range logs {
		if l.Status == types.StageStatusCompleted {
			done[l.Stage] = true
		}
	}
	return done
}

// Remaining returns, in pipeline order, the stages that have not completed yet
func Remaining(logs []types.PipelineStageLog) []string {
	done := CompletedStages(logs)
	var out []string
	for _, stage := range Order {
		if !done[stage] {
			out = append(out, stage)
		}
	}
	return out
}
