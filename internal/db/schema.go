package db

import "context"

// schemaStatements creates the tables the analysis pipeline uses. Every statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS analysis_runs (
		id UUID PRIMARY KEY,
		video_path TEXT NOT NULL,
		curve_image_path TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS stage_logs (
		id UUID PRIMARY KEY,
		run_id UUID NOT NULL,
		stage TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL CHECK (status IN ('running', 'completed', 'error')),
		details JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stage_logs_run_created ON stage_logs (run_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS reports (
		run_id UUID PRIMARY KEY,
		content JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates any missing tables and indexes
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
