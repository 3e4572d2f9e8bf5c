package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Progress stream event names
const (
	EventStage    = "stage"
	EventComplete = "complete"
	EventError    = "error"
)

// StreamEnd is the payload of the final event on a progress stream
type StreamEnd struct {
	RunID  string `json:"run_id"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SSEWriter writes progress stream events to a flushing response
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter sets the event-stream headers. It fails when the response cannot be flushed.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent encodes data as JSON and flushes it as one named event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteStage sends the run's current stage log
func (s *SSEWriter) WriteStage(resp RunLogsResponse) error {
	return s.WriteEvent(EventStage, resp)
}

// WriteError ends the stream with the run's failure
func (s *SSEWriter) WriteError(runID, message string) {
	_ = s.WriteEvent(EventError, StreamEnd{RunID: runID, Error: message})
}

// WriteComplete ends the stream with the run's terminal status
func (s *SSEWriter) WriteComplete(runID, status string) {
	_ = s.WriteEvent(EventComplete, StreamEnd{RunID: runID, Status: status})
}
