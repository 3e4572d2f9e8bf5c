package types

import (
	"time"

	"github.com/google/uuid"
)

// StageStatus constants
const (
	StageStatusRunning   = "running"
	StageStatusCompleted = "completed"
	StageStatusError     = "error"
)

// PipelineStageLog is one append-only progress record for a pipeline stage.
type PipelineStageLog struct {
	ID        uuid.UUID      `json:"id"`
	RunID     uuid.UUID      `json:"run_id"`
	Stage     string         `json:"stage"`
	Message   string         `json:"message"`
	Status    string         `json:"status"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IsTerminal reports whether the log closes its stage
func (l PipelineStageLog) IsTerminal() bool {
	return l.Status == StageStatusCompleted || l.Status == StageStatusError
}
