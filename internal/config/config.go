// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/retention-insights/internal/analysis"
	"github.com/jonathan/retention-insights/internal/media"
	"github.com/jonathan/retention-insights/internal/pipeline"
	"github.com/jonathan/retention-insights/internal/segmentation"
	"github.com/jonathan/retention-insights/internal/throttle"
)

// Environment variables read by ApplyEnv
const (
	EnvAPIKey      = "GEMINI_API_KEY"
	EnvDatabaseURL = "DATABASE_URL"
)

// Config represents the configuration that can be loaded from a JSON or YAML file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Sampling
	StepSeconds  float64 `json:"step_seconds,omitempty" yaml:"step_seconds,omitempty"`   // Seconds between sampled frames
	MaxFrames    int     `json:"max_frames,omitempty" yaml:"max_frames,omitempty"`       // Upper bound on extracted frames
	VisualStride int     `json:"visual_stride,omitempty" yaml:"visual_stride,omitempty"` // Analyze every Nth frame for visual scenes

	// Concurrency
	ThrottleSlots        int     `json:"throttle_slots,omitempty" yaml:"throttle_slots,omitempty"`                 // Concurrent transcoding subprocesses
	BatchSize            int     `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`                         // Frames per AI batch
	ParallelBatches      int     `json:"parallel_batches,omitempty" yaml:"parallel_batches,omitempty"`             // Batches in flight at once
	BatchPauseMS         int     `json:"batch_pause_ms,omitempty" yaml:"batch_pause_ms,omitempty"`                 // Pause between batch groups
	AIRequestsPerSecond  float64 `json:"ai_requests_per_second,omitempty" yaml:"ai_requests_per_second,omitempty"` // 0 means unlimited
	FallbackBlockSeconds float64 `json:"fallback_block_seconds,omitempty" yaml:"fallback_block_seconds,omitempty"` // Width of fallback segmentation blocks

	// Storage
	SQLitePath  string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`   // Local SQLite database file
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"` // PostgreSQL connection URL
	WorkDir     string `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`         // Parent directory for per-run media workspaces

	// Behavior
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`       // Gemini API key
	Verbose   bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`       // Print detailed debug information
	KeepMedia bool   `json:"keep_media,omitempty" yaml:"keep_media,omitempty"` // Keep extracted frames and audio after the run
}

// Defaults returns the built-in configuration
func Defaults() Config {
	batch := analysis.DefaultBatchOptions()
	return Config{
		StepSeconds:          media.DefaultStepSeconds,
		MaxFrames:            media.DefaultMaxFrames,
		VisualStride:         analysis.DefaultVisualStride,
		ThrottleSlots:        throttle.DefaultCapacity,
		BatchSize:            batch.BatchSize,
		ParallelBatches:      batch.ParallelBatches,
		BatchPauseMS:         int(batch.Pause / time.Millisecond),
		FallbackBlockSeconds: segmentation.DefaultFallbackBlockSeconds,
	}
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.SQLitePath != "" && c.DatabaseURL != "" {
		return fmt.Errorf("config error: 'sqlite_path' and 'database_url' are mutually exclusive")
	}

	// Validate numeric ranges
	if c.StepSeconds < 0 || c.StepSeconds > 60 {
		return fmt.Errorf("config error: 'step_seconds' must be between 0 and 60")
	}
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"max_frames", float64(c.MaxFrames)},
		{"visual_stride", float64(c.VisualStride)},
		{"throttle_slots", float64(c.ThrottleSlots)},
		{"batch_size", float64(c.BatchSize)},
		{"parallel_batches", float64(c.ParallelBatches)},
		{"batch_pause_ms", float64(c.BatchPauseMS)},
		{"ai_requests_per_second", c.AIRequestsPerSecond},
		{"fallback_block_seconds", c.FallbackBlockSeconds},
	} {
		if field.value < 0 {
			return fmt.Errorf("config error: '%s' must be non-negative", field.name)
		}
	}

	if c.WorkDir != "" {
		info, err := os.Stat(c.WorkDir)
		if os.IsNotExist(err) {
			return fmt.Errorf("config error: work dir not found: %s", c.WorkDir)
		}
		if err == nil && !info.IsDir() {
			return fmt.Errorf("config error: work dir is not a directory: %s", c.WorkDir)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.SQLitePath == "" {
		result.SQLitePath = defaults.SQLitePath
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.WorkDir == "" {
		result.WorkDir = defaults.WorkDir
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}

	// Numeric fields: use default if zero
	if result.StepSeconds == 0 {
		result.StepSeconds = defaults.StepSeconds
	}
	if result.MaxFrames == 0 {
		result.MaxFrames = defaults.MaxFrames
	}
	if result.VisualStride == 0 {
		result.VisualStride = defaults.VisualStride
	}
	if result.ThrottleSlots == 0 {
		result.ThrottleSlots = defaults.ThrottleSlots
	}
	if result.BatchSize == 0 {
		result.BatchSize = defaults.BatchSize
	}
	if result.ParallelBatches == 0 {
		result.ParallelBatches = defaults.ParallelBatches
	}
	if result.BatchPauseMS == 0 {
		result.BatchPauseMS = defaults.BatchPauseMS
	}
	if result.AIRequestsPerSecond == 0 {
		result.AIRequestsPerSecond = defaults.AIRequestsPerSecond
	}
	if result.FallbackBlockSeconds == 0 {
		result.FallbackBlockSeconds = defaults.FallbackBlockSeconds
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// ApplyEnv fills the API key and database URL from the environment when unset
func (c *Config) ApplyEnv() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv(EnvAPIKey)
	}
	if c.DatabaseURL == "" && c.SQLitePath == "" {
		c.DatabaseURL = os.Getenv(EnvDatabaseURL)
	}
}

// Pipeline converts the configuration into orchestrator settings
func (c *Config) Pipeline() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	if c.StepSeconds > 0 {
		cfg.StepSeconds = c.StepSeconds
	}
	if c.MaxFrames > 0 {
		cfg.MaxFrames = c.MaxFrames
	}
	if c.VisualStride > 0 {
		cfg.VisualStride = c.VisualStride
	}
	if c.FallbackBlockSeconds > 0 {
		cfg.FallbackBlockSeconds = c.FallbackBlockSeconds
	}
	if c.BatchSize > 0 {
		cfg.Batch.BatchSize = c.BatchSize
	}
	if c.ParallelBatches > 0 {
		cfg.Batch.ParallelBatches = c.ParallelBatches
	}
	if c.BatchPauseMS > 0 {
		cfg.Batch.Pause = time.Duration(c.BatchPauseMS) * time.Millisecond
	}
	cfg.Batch.RequestsPerSecond = c.AIRequestsPerSecond
	cfg.WorkDir = c.WorkDir
	return cfg
}
