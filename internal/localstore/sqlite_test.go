package localstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/retention-insights/internal/store"
	"github.com/jonathan/retention-insights/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "retention.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID := uuid.New()

	require.NoError(t, s.CreateRun(ctx, runID, "/v.mp4", "/c.png"))
	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, runID, run.ID)
	assert.Equal(t, store.RunStatusRunning, run.Status)
	assert.Nil(t, run.CompletedAt)

	require.NoError(t, s.CreateRun(ctx, runID, "/other.mp4", "/other.png"))
	run, err = s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "/v.mp4", run.VideoPath)

	require.NoError(t, s.CompleteRun(ctx, runID, store.RunStatusCompleted, ""))
	run, err = s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusCompleted, run.Status)
	assert.NotNil(t, run.CompletedAt)

	missing, err := s.GetRun(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = s.CompleteRun(ctx, uuid.New(), store.RunStatusFailed, "boom")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestStageLogs(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	ctx := context.Background()
	runID := uuid.New()

	first, err := s.AppendStageLog(ctx, &types.PipelineStageLog{RunID: runID, Stage: "validating"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, types.StageStatusRunning, first.Status)

	second, err := s.AppendStageLog(ctx, &types.PipelineStageLog{
		RunID: runID, Stage: "metadata", Details: map[string]any{"duration": 30.0},
	})
	require.NoError(t, err)

	_, err = s.AppendStageLog(ctx, &types.PipelineStageLog{RunID: uuid.New(), Stage: "validating"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateStageLog(ctx, first.ID, types.StageStatusCompleted, "inputs ok", nil))
	require.NoError(t, s.UpdateStageLog(ctx, second.ID, "", "", map[string]any{"has_audio": false}))

	logs, err := s.ListStageLogs(ctx, runID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "validating", logs[0].Stage)
	assert.Equal(t, types.StageStatusCompleted, logs[0].Status)
	assert.Equal(t, "inputs ok", logs[0].Message)
	assert.True(t, logs[0].UpdatedAt.After(logs[0].CreatedAt))
	assert.Equal(t, types.StageStatusRunning, logs[1].Status)
	assert.Equal(t, 30.0, logs[1].Details["duration"])
	assert.Equal(t, false, logs[1].Details["has_audio"])

	err = s.UpdateStageLog(ctx, uuid.New(), types.StageStatusError, "", nil)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, err = s.AppendStageLog(ctx, &types.PipelineStageLog{Stage: "validating"})
	assert.Error(t, err)

	empty, err := s.ListStageLogs(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestReports(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID := uuid.New()

	got, err := s.GetReport(ctx, runID)
	require.NoError(t, err)
	assert.Nil(t, got)

	report := &types.ComprehensiveReport{
		RunID: runID,
		Curve: &types.RetentionCurve{StepSeconds: 0.5, TotalDuration: 4},
		TextBlocks: []types.ContentBlock{
			{Kind: types.BlockKindText, Name: "Title card", StartTime: 0, EndTime: 2},
		},
	}
	require.NoError(t, s.SaveReport(ctx, runID, report))

	report.TextBlocks[0].Name = "Renamed"
	require.NoError(t, s.SaveReport(ctx, runID, report))

	got, err = s.GetReport(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.TextBlocks, 1)
	assert.Equal(t, "Renamed", got.TextBlocks[0].Name)
	assert.Equal(t, 4.0, got.Curve.TotalDuration)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retention.db")
	ctx := context.Background()
	runID := uuid.New()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.CreateRun(ctx, runID, "/v.mp4", "/c.png"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "/v.mp4", run.VideoPath)
}
