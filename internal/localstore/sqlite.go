// Package localstore is a single-file SQLite store for running the pipeline without PostgreSQL.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jonathan/retention-insights/internal/store"
	"github.com/jonathan/retention-insights/internal/types"
)

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=10000",
	"PRAGMA synchronous=NORMAL",
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS analysis_runs (
		id TEXT PRIMARY KEY,
		video_path TEXT NOT NULL,
		curve_image_path TEXT NOT NULL,
		status TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		completed_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS stage_logs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		run_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		details TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stage_logs_run ON stage_logs (run_id, seq)`,
	`CREATE TABLE IF NOT EXISTS reports (
		run_id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
}

// Store keeps runs, stage logs and reports in one SQLite database
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.RunRecorder = (*Store)(nil)
)

// Open opens (creating if needed) the database at path. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// -----------------------------------------------------------------------------
// Runs
// -----------------------------------------------------------------------------

// CreateRun records a new run in the running state
func (s *Store) CreateRun(ctx context.Context, runID uuid.UUID, videoPath, curveImagePath string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_runs (id, video_path, curve_image_path, status, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		runID.String(), videoPath, curveImagePath, store.RunStatusRunning, formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun marks a run finished
func (s *Store) CompleteRun(ctx context.Context, runID uuid.UUID, status, errorMessage string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE analysis_runs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		status, errorMessage, formatTime(s.now()), runID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, store.ErrNotFound)
	}
	return nil
}

// GetRun returns the run, or nil when unknown
func (s *Store) GetRun(ctx context.Context, runID uuid.UUID) (*store.Run, error) {
	var (
		run         store.Run
		id, created string
		completed   sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, video_path, curve_image_path, status, error_message, created_at, completed_at
		 FROM analysis_runs WHERE id = ?`,
		runID.String(),
	).Scan(&id, &run.VideoPath, &run.CurveImagePath, &run.Status, &run.ErrorMessage, &created, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	run.ID, _ = uuid.Parse(id)
	run.CreatedAt = parseTime(created)
	if completed.Valid {
		t := parseTime(completed.String)
		run.CompletedAt = &t
	}
	return &run, nil
}

// ListRuns returns the most recent runs first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = store.DefaultRunListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, video_path, curve_image_path, status, error_message, created_at, completed_at
		 FROM analysis_runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		var (
			run         store.Run
			id, created string
			completed   sql.NullString
		)
		if err := rows.Scan(&id, &run.VideoPath, &run.CurveImagePath, &run.Status, &run.ErrorMessage, &created, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.ID, _ = uuid.Parse(id)
		run.CreatedAt = parseTime(created)
		if completed.Valid {
			t := parseTime(completed.String)
			run.CompletedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// -----------------------------------------------------------------------------
// Stage logs
// -----------------------------------------------------------------------------

// AppendStageLog inserts a new stage log row
func (s *Store) AppendStageLog(ctx context.Context, log *types.PipelineStageLog) (*types.PipelineStageLog, error) {
	if log.RunID == uuid.Nil {
		return nil, fmt.Errorf("stage log has no run id")
	}
	stored := store.PrepareStageLog(log, s.now())
	details, err := encodeDetails(stored.Details)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO stage_logs (id, run_id, stage, message, status, details, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID.String(), stored.RunID.String(), stored.Stage, stored.Message, stored.Status,
		details, formatTime(stored.CreatedAt), formatTime(stored.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append stage log: %w", err)
	}
	return &stored, nil
}

// UpdateStageLog changes status and message and merges details into the row
func (s *Store) UpdateStageLog(ctx context.Context, id uuid.UUID, status, message string, details map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		curStatus, curMessage string
		curDetails            sql.NullString
	)
	err = tx.QueryRowContext(ctx,
		`SELECT status, message, details FROM stage_logs WHERE id = ?`, id.String(),
	).Scan(&curStatus, &curMessage, &curDetails)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("stage log %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load stage log: %w", err)
	}

	if status != "" {
		curStatus = status
	}
	if message != "" {
		curMessage = message
	}
	merged := store.MergeDetails(decodeDetails(curDetails), details)
	encoded, err := encodeDetails(merged)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE stage_logs SET status = ?, message = ?, details = ?, updated_at = ? WHERE id = ?`,
		curStatus, curMessage, encoded, formatTime(s.now()), id.String(),
	); err != nil {
		return fmt.Errorf("failed to update stage log: %w", err)
	}
	return tx.Commit()
}

// ListStageLogs returns the run's logs in insertion order
func (s *Store) ListStageLogs(ctx context.Context, runID uuid.UUID) ([]types.PipelineStageLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, stage, message, status, details, created_at, updated_at
		 FROM stage_logs WHERE run_id = ? ORDER BY seq`,
		runID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage logs: %w", err)
	}
	defer rows.Close()

	logs := []types.PipelineStageLog{}
	for rows.Next() {
		var (
			log                       types.PipelineStageLog
			id, run, created, updated string
			details                   sql.NullString
		)
		if err := rows.Scan(&id, &run, &log.Stage, &log.Message, &log.Status, &details, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan stage log: %w", err)
		}
		log.ID, _ = uuid.Parse(id)
		log.RunID, _ = uuid.Parse(run)
		log.Details = decodeDetails(details)
		log.CreatedAt = parseTime(created)
		log.UpdatedAt = parseTime(updated)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func encodeDetails(details map[string]any) (sql.NullString, error) {
	if len(details) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal details: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeDetails(raw sql.NullString) map[string]any {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var details map[string]any
	if err := json.Unmarshal([]byte(raw.String), &details); err != nil {
		return nil
	}
	return details
}

// -----------------------------------------------------------------------------
// Reports
// -----------------------------------------------------------------------------

// SaveReport stores or replaces the run's report
func (s *Store) SaveReport(ctx context.Context, runID uuid.UUID, report *types.ComprehensiveReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (run_id, content, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (run_id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		runID.String(), string(data), formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetReport loads the run's report, or nil when there is none
func (s *Store) GetReport(ctx context.Context, runID uuid.UUID) (*types.ComprehensiveReport, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM reports WHERE run_id = ?`, runID.String()).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	var report types.ComprehensiveReport
	if err := json.Unmarshal([]byte(content), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}
