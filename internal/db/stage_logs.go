package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/retention-insights/internal/store"
	"github.com/jonathan/retention-insights/internal/types"
)

// -----------------------------------------------------------------------------
// Stage Log Methods
// -----------------------------------------------------------------------------

const stageLogColumns = `id, run_id, stage, message, status, details, created_at, updated_at`

// AppendStageLog inserts a new stage log row
func (db *DB) AppendStageLog(ctx context.Context, log *types.PipelineStageLog) (*types.PipelineStageLog, error) {
	if log.RunID == uuid.Nil {
		return nil, fmt.Errorf("stage log has no run id")
	}
	prepared := store.PrepareStageLog(log, time.Now())

	detailsJSON, err := marshalDetails(prepared.Details)
	if err != nil {
		return nil, err
	}

	row := db.pool.QueryRow(ctx,
		`INSERT INTO stage_logs (id, run_id, stage, message, status, details, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		 RETURNING `+stageLogColumns,
		prepared.ID, prepared.RunID, prepared.Stage, prepared.Message, prepared.Status, detailsJSON, prepared.CreatedAt,
	)
	stored, err := scanStageLog(row)
	if err != nil {
		return nil, fmt.Errorf("failed to append stage log: %w", err)
	}
	return stored, nil
}

// UpdateStageLog changes a row's status and message and merges details into the stored details
func (db *DB) UpdateStageLog(ctx context.Context, id uuid.UUID, status, message string, details map[string]any) error {
	detailsJSON, err := marshalDetails(details)
	if err != nil {
		return err
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE stage_logs
		 SET status = COALESCE(NULLIF($1, ''), status),
		     message = COALESCE(NULLIF($2, ''), message),
		     details = CASE WHEN $3::jsonb IS NULL THEN details
		                    ELSE COALESCE(details, '{}'::jsonb) || $3::jsonb END,
		     updated_at = NOW()
		 WHERE id = $4`,
		status, message, detailsJSON, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update stage log: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("stage log %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ListStageLogs returns the run's logs oldest first
func (db *DB) ListStageLogs(ctx context.Context, runID uuid.UUID) ([]types.PipelineStageLog, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+stageLogColumns+`
		 FROM stage_logs
		 WHERE run_id = $1
		 ORDER BY created_at, id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage logs: %w", err)
	}
	defer rows.Close()

	logs := []types.PipelineStageLog{}
	for rows.Next() {
		log, err := scanStageLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage log: %w", err)
		}
		logs = append(logs, *log)
	}
	return logs, rows.Err()
}

func scanStageLog(row pgx.Row) (*types.PipelineStageLog, error) {
	var log types.PipelineStageLog
	var detailsJSON []byte
	if err := row.Scan(&log.ID, &log.RunID, &log.Stage, &log.Message, &log.Status,
		&detailsJSON, &log.CreatedAt, &log.UpdatedAt); err != nil {
		return nil, err
	}
	if len(detailsJSON) > 0 {
		_ = json.Unmarshal(detailsJSON, &log.Details)
	}
	return &log, nil
}

// marshalDetails returns nil for empty details so the column stays NULL
func marshalDetails(details map[string]any) ([]byte, error) {
	if len(details) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal details: %w", err)
	}
	return data, nil
}
