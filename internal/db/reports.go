package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/retention-insights/internal/types"
)

// SaveReport stores or replaces the report for a run
func (db *DB) SaveReport(ctx context.Context, runID uuid.UUID, report *types.ComprehensiveReport) error {
	jsonBytes, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO reports (run_id, content)
		 VALUES ($1, $2)
		 ON CONFLICT (run_id) DO UPDATE SET content = $2, updated_at = NOW()`,
		runID, jsonBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetReport loads the report for a run, or nil when there is none
func (db *DB) GetReport(ctx context.Context, runID uuid.UUID) (*types.ComprehensiveReport, error) {
	var content []byte
	err := db.pool.QueryRow(ctx,
		`SELECT content FROM reports WHERE run_id = $1`,
		runID,
	).Scan(&content)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report types.ComprehensiveReport
	if err := json.Unmarshal(content, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}
