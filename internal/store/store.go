// Package store defines the persistence collaborator the pipeline writes its stage log
// and final report through, plus an in-memory implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/retention-insights/internal/types"
)

// ErrNotFound is returned when updating a record that does not exist
var ErrNotFound = errors.New("not found")

// Store is everything the pipeline needs from storage
type Store interface {
	SaveReport(ctx context.Context, runID uuid.UUID, report *types.ComprehensiveReport) error
	// GetReport returns nil, nil when the run has no report
	GetReport(ctx context.Context, runID uuid.UUID) (*types.ComprehensiveReport, error)
	AppendStageLog(ctx context.Context, log *types.PipelineStageLog) (*types.PipelineStageLog, error)
	UpdateStageLog(ctx context.Context, id uuid.UUID, status, message string, details map[string]any) error
	// ListStageLogs returns the run's logs oldest first
	ListStageLogs(ctx context.Context, runID uuid.UUID) ([]types.PipelineStageLog, error)
}

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is the record of one analysis run
type Run struct {
	ID             uuid.UUID  `json:"id"`
	VideoPath      string     `json:"video_path"`
	CurveImagePath string     `json:"curve_image_path"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// RunRecorder is implemented by stores that keep a record per run
type RunRecorder interface {
	// CreateRun is a no-op for a run that is already recorded
	CreateRun(ctx context.Context, runID uuid.UUID, videoPath, curveImagePath string) error
	CompleteRun(ctx context.Context, runID uuid.UUID, status, errorMessage string) error
	// GetRun returns nil, nil when the run is unknown
	GetRun(ctx context.Context, runID uuid.UUID) (*Run, error)
	// ListRuns returns the most recent runs first; limit <= 0 means DefaultRunListLimit
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// DefaultRunListLimit caps ListRuns when no limit is given
const DefaultRunListLimit = 50

// PrepareStageLog fills the ID and timestamps of a log about to be appended
// and returns a copy safe to store.
func PrepareStageLog(log *types.PipelineStageLog, now time.Time) types.PipelineStageLog {
	out := *log
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.Status == "" {
		out.Status = types.StageStatusRunning
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.UpdatedAt = out.CreatedAt
	out.Details = copyDetails(out.Details)
	return out
}

// MergeDetails returns base with update's keys applied on top
func MergeDetails(base, update map[string]any) map[string]any {
	if len(update) == 0 {
		return copyDetails(base)
	}
	out := copyDetails(base)
	if out == nil {
		out = make(map[string]any, len(update))
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}

func copyDetails(d map[string]any) map[string]any {
	if d == nil {
		return nil
	}
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
