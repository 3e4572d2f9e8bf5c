package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/retention-insights/internal/types"
)

// Memory is a process-local Store and RunRecorder. Reports are kept JSON-encoded so
// callers never share state with the stored copy.
type Memory struct {
	mu      sync.RWMutex
	reports map[uuid.UUID][]byte
	logs    map[uuid.UUID][]types.PipelineStageLog
	logRun  map[uuid.UUID]uuid.UUID
	runs    map[uuid.UUID]Run
	now     func() time.Time
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		reports: make(map[uuid.UUID][]byte),
		logs:    make(map[uuid.UUID][]types.PipelineStageLog),
		logRun:  make(map[uuid.UUID]uuid.UUID),
		runs:    make(map[uuid.UUID]Run),
		now:     time.Now,
	}
}

// SaveReport stores or replaces the run's report
func (m *Memory) SaveReport(_ context.Context, runID uuid.UUID, report *types.ComprehensiveReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[runID] = data
	return nil
}

// GetReport returns a copy of the run's report
func (m *Memory) GetReport(_ context.Context, runID uuid.UUID) (*types.ComprehensiveReport, error) {
	m.mu.RLock()
	data, ok := m.reports[runID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var report types.ComprehensiveReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// AppendStageLog appends a new log row
func (m *Memory) AppendStageLog(_ context.Context, log *types.PipelineStageLog) (*types.PipelineStageLog, error) {
	if log.RunID == uuid.Nil {
		return nil, fmt.Errorf("stage log has no run id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := PrepareStageLog(log, m.now())
	if _, exists := m.logRun[stored.ID]; exists {
		return nil, fmt.Errorf("stage log %s already exists", stored.ID)
	}
	m.logs[stored.RunID] = append(m.logs[stored.RunID], stored)
	m.logRun[stored.ID] = stored.RunID

	out := stored
	out.Details = copyDetails(stored.Details)
	return &out, nil
}

// UpdateStageLog changes a log row's status and message and merges details into it
func (m *Memory) UpdateStageLog(_ context.Context, id uuid.UUID, status, message string, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	runID, ok := m.logRun[id]
	if !ok {
		return fmt.Errorf("stage log %s: %w", id, ErrNotFound)
	}
	logs := m.logs[runID]
	for i := range logs {
		if logs[i].ID != id {
			continue
		}
		if status != "" {
			logs[i].Status = status
		}
		if message != "" {
			logs[i].Message = message
		}
		logs[i].Details = MergeDetails(logs[i].Details, details)
		logs[i].UpdatedAt = m.now()
		return nil
	}
	return fmt.Errorf("stage log %s: %w", id, ErrNotFound)
}

// ListStageLogs returns copies of the run's logs in append order
func (m *Memory) ListStageLogs(_ context.Context, runID uuid.UUID) ([]types.PipelineStageLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	logs := m.logs[runID]
	out := make([]types.PipelineStageLog, len(logs))
	for i, l := range logs {
		out[i] = l
		out[i].Details = copyDetails(l.Details)
	}
	return out, nil
}

// CreateRun records a new running run; an existing record is left untouched
func (m *Memory) CreateRun(_ context.Context, runID uuid.UUID, videoPath, curveImagePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; ok {
		return nil
	}
	m.runs[runID] = Run{
		ID:             runID,
		VideoPath:      videoPath,
		CurveImagePath: curveImagePath,
		Status:         RunStatusRunning,
		CreatedAt:      m.now(),
	}
	return nil
}

// CompleteRun closes a run with a terminal status
func (m *Memory) CompleteRun(_ context.Context, runID uuid.UUID, status, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	now := m.now()
	run.Status = status
	run.ErrorMessage = errorMessage
	run.CompletedAt = &now
	m.runs[runID] = run
	return nil
}

// GetRun returns the run record
func (m *Memory) GetRun(_ context.Context, runID uuid.UUID) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

// ListRuns returns the most recent runs first
func (m *Memory) ListRuns(_ context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultRunListLimit
	}
	m.mu.RLock()
	runs := make([]Run, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run)
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
