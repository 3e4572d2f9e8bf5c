package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jonathan/retention-insights/internal/pipeline"
	"github.com/jonathan/retention-insights/internal/progress"
	"github.com/jonathan/retention-insights/internal/store"
	"github.com/jonathan/retention-insights/internal/types"
)

const maxRequestBody = 1 << 20

// RunLogsResponse is the stage log of one run with its derived progress
type RunLogsResponse struct {
	RunID         uuid.UUID                `json:"run_id"`
	Status        string                   `json:"status"`
	CurrentStage  string                   `json:"current_stage,omitempty"`
	Active        []types.PipelineStageLog `json:"active"`
	Remaining     []string                 `json:"remaining"`
	Logs          []types.PipelineStageLog `json:"logs"`
	FailedMessage string                   `json:"failed_message,omitempty"`
}

// handleCreateRun validates the request and starts the pipeline in the background.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req types.AnalyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := pipeline.ValidateRequest(&req); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	runID := uuid.New()
	if recorder, ok := s.store.(store.RunRecorder); ok {
		if err := recorder.CreateRun(r.Context(), runID, req.VideoPath, req.CurveImagePath); err != nil {
			s.logger.Error().Err(err).Str("run_id", runID.String()).Msg("failed to record run")
			s.errorResponse(w, http.StatusInternalServerError, "failed to record run")
			return
		}
	}
	s.startRun(runID, req)
	s.jsonResponse(w, http.StatusAccepted, map[string]string{
		"run_id": runID.String(),
		"status": store.RunStatusRunning,
	})
}

func (s *Server) startRun(runID uuid.UUID, req types.AnalyzeRequest) {
	logger := s.logger.With().Str("run_id", runID.String()).Logger()
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		_, err := s.runner.Run(s.runCtx, pipeline.RunOptions{
			Request: req,
			RunID:   runID,
			OnProgress: func(ev pipeline.ProgressEvent) {
				logger.Debug().Str("stage", ev.Stage).Str("status", ev.Status).Msg(ev.Message)
			},
		})
		if err != nil {
			logger.Error().Err(err).Msg("analysis run failed")
			return
		}
		logger.Info().Msg("analysis run completed")
	}()
}

// handleListRuns returns the most recent runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	recorder, ok := s.store.(store.RunRecorder)
	if !ok {
		s.errorResponse(w, HTTPStatus(ErrNoRunRecords), ErrNoRunRecords.Error())
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := recorder.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list runs")
		s.errorResponse(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// handleGetRun returns a run record
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.runIDParam(w, r)
	if !ok {
		return
	}
	recorder, ok := s.store.(store.RunRecorder)
	if !ok {
		s.errorResponse(w, HTTPStatus(ErrNoRunRecords), ErrNoRunRecords.Error())
		return
	}
	run, err := recorder.GetRun(r.Context(), runID)
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", runID.String()).Msg("failed to get run")
		s.errorResponse(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	if run == nil {
		s.errorResponse(w, http.StatusNotFound, "run not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleRunLogs returns the run's stage log and the stages still in progress
func (s *Server) handleRunLogs(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.runIDParam(w, r)
	if !ok {
		return
	}
	logs, err := s.store.ListStageLogs(r.Context(), runID)
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", runID.String()).Msg("failed to list stage logs")
		s.errorResponse(w, http.StatusInternalServerError, "failed to list stage logs")
		return
	}
	if len(logs) == 0 && !s.runKnown(r.Context(), runID) {
		s.errorResponse(w, http.StatusNotFound, "run not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, newRunLogsResponse(runID, logs))
}

// handleRunLogsStream streams stage events until the run reaches a terminal entry
func (s *Server) handleRunLogsStream(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.runIDParam(w, r)
	if !ok {
		return
	}
	logs, err := s.store.ListStageLogs(r.Context(), runID)
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", runID.String()).Msg("failed to list stage logs")
		s.errorResponse(w, http.StatusInternalServerError, "failed to list stage logs")
		return
	}
	if len(logs) == 0 && !s.runKnown(r.Context(), runID) {
		s.errorResponse(w, http.StatusNotFound, "run not found")
		return
	}
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	// streams end when the client leaves or the server shuts down
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.streamCtx, cancel)
	defer stop()

	var final RunLogsResponse
	outcome, err := progress.Follow(ctx, s.store, runID, s.pollInterval, func(logs []types.PipelineStageLog) {
		final = newRunLogsResponse(runID, logs)
		if werr := sse.WriteStage(final); werr != nil {
			s.logger.Debug().Err(werr).Str("run_id", runID.String()).Msg("failed to write stage event")
		}
	})
	switch {
	case r.Context().Err() != nil:
		// client went away
	case s.streamCtx.Err() != nil:
		sse.WriteError(runID.String(), "server shutting down")
	case err != nil:
		s.logger.Error().Err(err).Str("run_id", runID.String()).Msg("progress stream failed")
		sse.WriteError(runID.String(), "failed to read stage logs")
	case outcome == progress.OutcomeFailed:
		sse.WriteError(runID.String(), final.FailedMessage)
	default:
		sse.WriteComplete(runID.String(), outcome.String())
	}
}

// handleRunReport returns the comprehensive report of a completed run
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.runIDParam(w, r)
	if !ok {
		return
	}
	report, err := s.store.GetReport(r.Context(), runID)
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", runID.String()).Msg("failed to get report")
		s.errorResponse(w, http.StatusInternalServerError, "failed to get report")
		return
	}
	if report == nil {
		s.errorResponse(w, http.StatusNotFound, "report not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, report)
}

func (s *Server) runIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid run ID")
		return uuid.Nil, false
	}
	return runID, true
}

// runKnown reports whether the store has a record of the run. Stores without run
// records cannot tell a queued run from an unknown one, so every run counts as known.
func (s *Server) runKnown(ctx context.Context, runID uuid.UUID) bool {
	recorder, ok := s.store.(store.RunRecorder)
	if !ok {
		return true
	}
	run, err := recorder.GetRun(ctx, runID)
	return err != nil || run != nil
}

func newRunLogsResponse(runID uuid.UUID, logs []types.PipelineStageLog) RunLogsResponse {
	outcome, terminal := progress.RunOutcome(logs)
	resp := RunLogsResponse{
		RunID:     runID,
		Status:    outcome.String(),
		Active:    progress.Active(logs),
		Remaining: progress.Remaining(logs),
		Logs:      logs,
	}
	if len(resp.Active) > 0 {
		resp.CurrentStage = resp.Active[len(resp.Active)-1].Stage
	}
	if outcome == progress.OutcomeFailed && terminal != nil {
		resp.FailedMessage = terminal.Message
	}
	if resp.Active == nil {
		resp.Active = []types.PipelineStageLog{}
	}
	if resp.Remaining == nil {
		resp.Remaining = []string{}
	}
	if resp.Logs == nil {
		resp.Logs = []types.PipelineStageLog{}
	}
	return resp
}
