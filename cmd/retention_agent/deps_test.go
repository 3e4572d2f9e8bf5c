package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/retention-insights/internal/config"
	"github.com/jonathan/retention-insights/internal/localstore"
	"github.com/jonathan/retention-insights/internal/progress"
	"github.com/jonathan/retention-insights/internal/store"
	"github.com/jonathan/retention-insights/internal/types"
)

// newTestCmd binds the root flags to a fresh command so Changed reflects only args
func newTestCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	t.Setenv(config.EnvAPIKey, "")
	t.Setenv(config.EnvDatabaseURL, "")

	cmd := &cobra.Command{Use: "test"}
	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "")
	f.BoolVarP(&verbose, "verbose", "v", false, "")
	f.StringVar(&apiKey, "api-key", "", "")
	f.StringVar(&databaseURL, "db-url", "", "")
	f.StringVar(&sqlitePath, "sqlite", "", "")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestRootCommand_Subcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"analyze", "digitize", "extract", "logs", "serve"} {
		assert.Contains(t, names, want)
	}
}

func TestResolveConfig_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("step_seconds: 2\nsqlite_path: from-file.db\nthrottle_slots: 4\n"), 0o644))

	cmd := newTestCmd(t, "--config", path, "--sqlite", "from-flag.db", "--api-key", "k")
	cfg, err := resolveConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, "from-flag.db", cfg.SQLitePath)
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, 2.0, cfg.StepSeconds)
	assert.Equal(t, 4, cfg.ThrottleSlots)
	assert.Equal(t, config.Defaults().MaxFrames, cfg.MaxFrames)
}

func TestResolveConfig_Environment(t *testing.T) {
	cmd := newTestCmd(t)
	t.Setenv(config.EnvAPIKey, "env-key")
	t.Setenv(config.EnvDatabaseURL, "postgres://localhost/retention")

	cfg, err := resolveConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "postgres://localhost/retention", cfg.DatabaseURL)
}

func TestResolveConfig_SQLiteWinsOverEnvDatabase(t *testing.T) {
	cmd := newTestCmd(t, "--sqlite", "local.db")
	t.Setenv(config.EnvDatabaseURL, "postgres://localhost/retention")

	cfg, err := resolveConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "local.db", cfg.SQLitePath)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestResolveConfig_Errors(t *testing.T) {
	_, err := resolveConfig(newTestCmd(t, "--sqlite", "a.db", "--db-url", "postgres://x"))
	assert.ErrorContains(t, err, "mutually exclusive")

	_, err = resolveConfig(newTestCmd(t, "--config", filepath.Join(t.TempDir(), "missing.json")))
	assert.ErrorContains(t, err, "failed to load config")
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	st, closeFn, err := openStore(ctx, &config.Config{})
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, st)
	closeFn()

	st, closeFn, err = openStore(ctx, &config.Config{SQLitePath: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	assert.IsType(t, &localstore.Store{}, st)
	closeFn()

	_, _, err = openPersistentStore(ctx, &config.Config{})
	assert.Error(t, err)
}

func TestNewModelClient_RequiresKey(t *testing.T) {
	_, err := newModelClient(context.Background(), &config.Config{})
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, writeJSON(path, map[string]int{"frames": 3}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]int
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3, got["frames"])
}

func seedLogs(t *testing.T, st store.Store, runID uuid.UUID, entries ...[3]string) {
	t.Helper()
	for _, e := range entries {
		_, err := st.AppendStageLog(context.Background(), &types.PipelineStageLog{
			RunID: runID, Stage: e[0], Status: e[1], Message: e[2],
		})
		require.NoError(t, err)
	}
}

func TestShowLogs(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	runID := uuid.New()
	seedLogs(t, st, runID,
		[3]string{progress.StageValidating, types.StageStatusCompleted, "inputs valid"},
		[3]string{progress.StageMetadata, types.StageStatusRunning, "probing video"},
	)

	var out bytes.Buffer
	require.NoError(t, showLogs(ctx, &out, st, runID, false))
	assert.Contains(t, out.String(), "inputs valid")
	assert.Contains(t, out.String(), "probing video")
	assert.Contains(t, out.String(), "running")

	err := showLogs(ctx, &out, st, uuid.New(), false)
	assert.ErrorContains(t, err, "no stage logs")
}

func TestShowLogs_FollowUntilTerminal(t *testing.T) {
	ctx := context.Background()

	st := store.NewMemory()
	done := uuid.New()
	seedLogs(t, st, done,
		[3]string{progress.StageFinalizing, types.StageStatusCompleted, "report saved"},
		[3]string{progress.StageCompleted, types.StageStatusCompleted, "analysis completed"},
	)
	var out bytes.Buffer
	require.NoError(t, showLogs(ctx, &out, st, done, true))
	assert.Contains(t, out.String(), "analysis completed")
	assert.Contains(t, out.String(), "completed")

	failed := uuid.New()
	seedLogs(t, st, failed,
		[3]string{progress.StageMediaExtraction, types.StageStatusError, "frame 2 extraction failed"},
	)
	out.Reset()
	err := showLogs(ctx, &out, st, failed, true)
	assert.ErrorContains(t, err, "failed")
	assert.Contains(t, out.String(), "frame 2 extraction failed")
}
