package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"step_seconds": 1,
		"max_frames": 30,
		"sqlite_path": "runs.db",
		"verbose": true
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 1.0, cfg.StepSeconds)
	assert.Equal(t, 30, cfg.MaxFrames)
	assert.Equal(t, "runs.db", cfg.SQLitePath)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
step_seconds: 0.25
visual_stride: 5
throttle_slots: 4
ai_requests_per_second: 2.5
keep_media: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.25, cfg.StepSeconds)
	assert.Equal(t, 5, cfg.VisualStride)
	assert.Equal(t, 4, cfg.ThrottleSlots)
	assert.Equal(t, 2.5, cfg.AIRequestsPerSecond)
	assert.True(t, cfg.KeepMedia)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{ invalid json }`)

	cfg, err := LoadConfig(path)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "config.yml", "step_seconds: [1, 2")

	cfg, err := LoadConfig(path)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config YAML")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "empty is valid", cfg: Config{}},
		{name: "defaults are valid", cfg: Defaults()},
		{name: "both stores", cfg: Config{SQLitePath: "a.db", DatabaseURL: "postgres://x"}, wantErr: "mutually exclusive"},
		{name: "step too large", cfg: Config{StepSeconds: 120}, wantErr: "step_seconds"},
		{name: "negative frames", cfg: Config{MaxFrames: -1}, wantErr: "max_frames"},
		{name: "negative rate", cfg: Config{AIRequestsPerSecond: -1}, wantErr: "ai_requests_per_second"},
		{name: "missing work dir", cfg: Config{WorkDir: "/nonexistent/work"}, wantErr: "work dir not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{StepSeconds: 1, SQLitePath: "mine.db"}
	merged := cfg.MergeWithDefaults(Defaults())

	assert.Equal(t, 1.0, merged.StepSeconds, "set values win")
	assert.Equal(t, "mine.db", merged.SQLitePath)
	assert.Equal(t, 60, merged.MaxFrames)
	assert.Equal(t, 10, merged.VisualStride)
	assert.Equal(t, 2, merged.ThrottleSlots)
	assert.Equal(t, 5, merged.BatchSize)
	assert.Equal(t, 3, merged.ParallelBatches)
	assert.Equal(t, 500, merged.BatchPauseMS)
	assert.Equal(t, 5.0, merged.FallbackBlockSeconds)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvDatabaseURL, "postgres://env")

	cfg := Config{}
	cfg.ApplyEnv()
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "postgres://env", cfg.DatabaseURL)

	cfg = Config{APIKey: "flag-key", SQLitePath: "local.db"}
	cfg.ApplyEnv()
	assert.Equal(t, "flag-key", cfg.APIKey)
	assert.Empty(t, cfg.DatabaseURL, "an explicit sqlite store is not overridden")
}

func TestPipeline(t *testing.T) {
	cfg := Config{StepSeconds: 1, BatchPauseMS: 100, AIRequestsPerSecond: 4, WorkDir: "/tmp/work"}
	p := cfg.Pipeline()

	assert.Equal(t, 1.0, p.StepSeconds)
	assert.Equal(t, 60, p.MaxFrames)
	assert.Equal(t, 100*time.Millisecond, p.Batch.Pause)
	assert.Equal(t, 4.0, p.Batch.RequestsPerSecond)
	assert.Equal(t, "/tmp/work", p.WorkDir)
}
