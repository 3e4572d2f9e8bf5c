// Package db provides PostgreSQL storage for analysis runs, their stage logs and reports.
package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/retention-insights/internal/store"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database and makes sure the schema exists
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{pool: pool}
	if err := db.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// CreateRun creates a new analysis run record
func (db *DB) CreateRun(ctx context.Context, runID uuid.UUID, videoPath, curveImagePath string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO analysis_runs (id, video_path, curve_image_path, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		runID, videoPath, curveImagePath, store.RunStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun marks an analysis run as finished
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status, errorMessage string) error {
	var errMsg *string
	if errorMessage != "" {
		errMsg = &errorMessage
	}
	result, err := db.pool.Exec(ctx,
		`UPDATE analysis_runs SET status = $1, error_message = $2, completed_at = NOW() WHERE id = $3`,
		status, errMsg, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run %s: %w", runID, store.ErrNotFound)
	}
	return nil
}

// GetRun retrieves an analysis run by ID
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*store.Run, error) {
	var run store.Run
	var errMsg *string
	err := db.pool.QueryRow(ctx,
		`SELECT id, video_path, curve_image_path, status, error_message, created_at, completed_at
		 FROM analysis_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.VideoPath, &run.CurveImagePath, &run.Status, &errMsg, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if errMsg != nil {
		run.ErrorMessage = *errMsg
	}
	return &run, nil
}

// ListRuns retrieves recent analysis runs
func (db *DB) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = store.DefaultRunListLimit
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, video_path, curve_image_path, status, COALESCE(error_message, ''), created_at, completed_at
		 FROM analysis_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		var run store.Run
		if err := rows.Scan(&run.ID, &run.VideoPath, &run.CurveImagePath, &run.Status, &run.ErrorMessage, &run.CreatedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
