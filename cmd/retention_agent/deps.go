package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jonathan/retention-insights/internal/analysis"
	"github.com/jonathan/retention-insights/internal/config"
	"github.com/jonathan/retention-insights/internal/db"
	"github.com/jonathan/retention-insights/internal/ffmpeg"
	"github.com/jonathan/retention-insights/internal/llm"
	"github.com/jonathan/retention-insights/internal/localstore"
	"github.com/jonathan/retention-insights/internal/logging"
	"github.com/jonathan/retention-insights/internal/pipeline"
	"github.com/jonathan/retention-insights/internal/store"
	"github.com/jonathan/retention-insights/internal/throttle"
)

// resolveConfig loads the config file, applies explicitly set flags on top, then the
// environment and the defaults.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}
	if flags.Changed("api-key") {
		cfg.APIKey = apiKey
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = databaseURL
	}
	if flags.Changed("sqlite") {
		cfg.SQLitePath = sqlitePath
	}

	cfg.ApplyEnv()
	merged := cfg.MergeWithDefaults(config.Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	if merged.Verbose && !verbose {
		logging.Init(true)
	}
	return &merged, nil
}

// openStore picks SQLite, then PostgreSQL, then memory. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch {
	case cfg.SQLitePath != "":
		s, err := localstore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case cfg.DatabaseURL != "":
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return database, database.Close, nil
	default:
		return store.NewMemory(), func() {}, nil
	}
}

// openPersistentStore is openStore for commands that read what another process wrote
func openPersistentStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.SQLitePath == "" && cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("--sqlite or --db-url (or DATABASE_URL) is required")
	}
	return openStore(ctx, cfg)
}

func newModelClient(ctx context.Context, cfg *config.Config) (*llm.GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}
	return llm.NewGeminiClient(ctx, llm.DefaultConfig(), cfg.APIKey)
}

func newMediaTool(logger zerolog.Logger) (*ffmpeg.Executor, error) {
	tool, err := ffmpeg.New(logger, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}
	return tool, nil
}

// newOrchestrator wires the Gemini client, ffmpeg and the throttle into a pipeline.
// The returned func closes the model client.
func newOrchestrator(ctx context.Context, cfg *config.Config, st store.Store) (*pipeline.Orchestrator, func(), error) {
	logger := logging.WithComponent("cli")

	tool, err := newMediaTool(logger)
	if err != nil {
		return nil, nil, err
	}
	client, err := newModelClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	orch, err := pipeline.New(pipeline.Dependencies{
		Store:    st,
		Tool:     tool,
		Throttle: throttle.New("media", cfg.ThrottleSlots),
		Model:    client,
		Speech:   analysis.NewModelSpeech(client),
	}, cfg.Pipeline(), logger)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return orch, func() { _ = client.Close() }, nil
}

// writeJSON writes v to path, or to stdout when path is "-"
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	if path == "-" {
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
