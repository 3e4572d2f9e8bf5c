package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/retention-insights/internal/types"
)

var (
	_ Store       = (*Memory)(nil)
	_ RunRecorder = (*Memory)(nil)
)

func TestMemory_Reports(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	runID := uuid.New()

	report, err := m.GetReport(ctx, runID)
	require.NoError(t, err)
	assert.Nil(t, report)

	in := &types.ComprehensiveReport{
		RunID: runID,
		Curve: &types.RetentionCurve{Samples: []types.RetentionSample{{Timestamp: 0, RetentionPct: 100}}},
	}
	require.NoError(t, m.SaveReport(ctx, runID, in))

	in.Curve.Samples[0].RetentionPct = 1
	out, err := m.GetReport(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 100.0, out.Curve.Samples[0].RetentionPct, "stored copy is independent of the caller's")
}

func TestMemory_StageLogs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	runID := uuid.New()

	first, err := m.AppendStageLog(ctx, &types.PipelineStageLog{RunID: runID, Stage: "validating", Message: "checking inputs"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, types.StageStatusRunning, first.Status)

	second, err := m.AppendStageLog(ctx, &types.PipelineStageLog{RunID: runID, Stage: "metadata", Details: map[string]any{"a": 1}})
	require.NoError(t, err)

	require.NoError(t, m.UpdateStageLog(ctx, first.ID, types.StageStatusCompleted, "inputs ok", nil))
	require.NoError(t, m.UpdateStageLog(ctx, second.ID, "", "", map[string]any{"b": 2}))

	logs, err := m.ListStageLogs(ctx, runID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "validating", logs[0].Stage)
	assert.Equal(t, types.StageStatusCompleted, logs[0].Status)
	assert.Equal(t, "inputs ok", logs[0].Message)
	assert.True(t, logs[0].UpdatedAt.After(logs[0].CreatedAt))
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, logs[1].Details)
	assert.Equal(t, types.StageStatusRunning, logs[1].Status)

	other, err := m.ListStageLogs(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemory_StageLogErrors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.AppendStageLog(ctx, &types.PipelineStageLog{Stage: "x"})
	assert.Error(t, err)

	err = m.UpdateStageLog(ctx, uuid.New(), types.StageStatusError, "boom", nil)
	assert.True(t, errors.Is(err, ErrNotFound))

	log, err := m.AppendStageLog(ctx, &types.PipelineStageLog{RunID: uuid.New(), Stage: "x"})
	require.NoError(t, err)
	_, err = m.AppendStageLog(ctx, log)
	assert.Error(t, err, "duplicate ids are rejected")
}

func TestMemory_Runs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	runID := uuid.New()

	run, err := m.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Nil(t, run)

	require.NoError(t, m.CreateRun(ctx, runID, "v.mp4", "c.png"))
	run, err = m.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Nil(t, run.CompletedAt)

	// recording the same run again keeps the first record
	require.NoError(t, m.CreateRun(ctx, runID, "other.mp4", "other.png"))
	again, err := m.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "v.mp4", again.VideoPath)
	assert.Equal(t, run.CreatedAt, again.CreatedAt)

	require.NoError(t, m.CompleteRun(ctx, runID, RunStatusFailed, "extraction failed"))
	run, err = m.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "extraction failed", run.ErrorMessage)
	assert.NotNil(t, run.CompletedAt)

	assert.ErrorIs(t, m.CompleteRun(ctx, uuid.New(), RunStatusCompleted, ""), ErrNotFound)
}

func TestMergeDetails(t *testing.T) {
	base := map[string]any{"a": 1}
	merged := MergeDetails(base, map[string]any{"a": 2, "b": 3})
	assert.Equal(t, map[string]any{"a": 2, "b": 3}, merged)
	assert.Equal(t, map[string]any{"a": 1}, base)
	assert.Nil(t, MergeDetails(nil, nil))
}
