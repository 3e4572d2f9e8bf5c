package progress

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jonathan/retention-insights/internal/types"
)

// Writer is the part of the store the tracker writes through
type Writer interface {
	AppendStageLog(ctx context.Context, log *types.PipelineStageLog) (*types.PipelineStageLog, error)
	UpdateStageLog(ctx context.Context, id uuid.UUID, status, message string, details map[string]any) error
}

// Tracker writes one run's stage transitions. It is safe for concurrent use by stages
// running in parallel.
type Tracker struct {
	writer Writer
	runID  uuid.UUID
	logger zerolog.Logger

	mu        sync.Mutex
	current   map[string]uuid.UUID
	completed map[string]bool
}

// NewTracker creates a tracker for runID
func NewTracker(writer Writer, runID uuid.UUID, logger zerolog.Logger) *Tracker {
	return &Tracker{
		writer:    writer,
		runID:     runID,
		logger:    logger.With().Str("component", "progress").Str("run_id", runID.String()).Logger(),
		current:   make(map[string]uuid.UUID),
		completed: make(map[string]bool),
	}
}

// RunID returns the run being tracked
func (t *Tracker) RunID() uuid.UUID {
	return t.runID
}

// Ready reports whether every dependency of stage has completed in this run
func (t *Tracker) Ready(stage string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ValidateDependencies(stage, t.completed)
}

// Start appends a running entry for stage and makes it the stage's current entry
func (t *Tracker) Start(ctx context.Context, stage, message string) error {
	log, err := t.writer.AppendStageLog(ctx, &types.PipelineStageLog{
		RunID:   t.runID,
		Stage:   stage,
		Message: message,
		Status:  types.StageStatusRunning,
	})
	if err != nil {
		return fmt.Errorf("failed to start stage %s: %w", stage, err)
	}

	t.mu.Lock()
	t.current[stage] = log.ID
	t.mu.Unlock()

	t.logger.Info().Str("stage", stage).Msg(message)
	return nil
}

// Update rewrites the current entry's message and merges details into it
func (t *Tracker) Update(ctx context.Context, stage, message string, details map[string]any) error {
	id, err := t.currentID(ctx, stage, message)
	if err != nil {
		return err
	}
	if err := t.writer.UpdateStageLog(ctx, id, "", message, details); err != nil {
		return fmt.Errorf("failed to update stage %s: %w", stage, err)
	}
	t.logger.Debug().Str("stage", stage).Interface("details", details).Msg(message)
	return nil
}

// Complete closes the stage's current entry as completed
// The stage counts as completed for Ready even if the write fails.
func (t *Tracker) Complete(ctx context.Context, stage, message string, details map[string]any) error {
	t.mu.Lock()
	t.completed[stage] = true
	t.mu.Unlock()

	if err := t.close(ctx, stage, types.StageStatusCompleted, message, details); err != nil {
		return err
	}

	t.logger.Info().Str("stage", stage).Msg(message)
	return nil
}

// Fail closes the stage's current entry with the error message
func (t *Tracker) Fail(ctx context.Context, stage string, cause error) error {
	message := "failed"
	if cause != nil {
		message = cause.Error()
	}
	if err := t.close(ctx, stage, types.StageStatusError, message, nil); err != nil {
		return err
	}
	t.logger.Error().Str("stage", stage).Err(cause).Msg("stage failed")
	return nil
}

// Mark appends an already-closed entry, for stages that finish as soon as they begin
func (t *Tracker) Mark(ctx context.Context, stage, message string, details map[string]any) error {
	t.mu.Lock()
	t.completed[stage] = true
	t.mu.Unlock()

	if _, err := t.writer.AppendStageLog(ctx, &types.PipelineStageLog{
		RunID:   t.runID,
		Stage:   stage,
		Message: message,
		Status:  types.StageStatusCompleted,
		Details: details,
	}); err != nil {
		return fmt.Errorf("failed to mark stage %s: %w", stage, err)
	}

	t.logger.Info().Str("stage", stage).Msg(message)
	return nil
}

func (t *Tracker) close(ctx context.Context, stage, status, message string, details map[string]any) error {
	id, err := t.currentID(ctx, stage, message)
	if err != nil {
		return err
	}
	if err := t.writer.UpdateStageLog(ctx, id, status, message, details); err != nil {
		return fmt.Errorf("failed to close stage %s: %w", stage, err)
	}
	t.mu.Lock()
	delete(t.current, stage)
	t.mu.Unlock()
	return nil
}

// currentID returns the stage's running entry, opening one if the stage was never started
func (t *Tracker) currentID(ctx context.Context, stage, message string) (uuid.UUID, error) {
	t.mu.Lock()
	id, ok := t.current[stage]
	t.mu.Unlock()
	if ok {
		return id, nil
	}
	if err := t.Start(ctx, stage, message); err != nil {
		return uuid.Nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current[stage], nil
}
