// Package server provides the HTTP API for starting analysis runs and watching their progress.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jonathan/retention-insights/internal/pipeline"
	"github.com/jonathan/retention-insights/internal/progress"
	"github.com/jonathan/retention-insights/internal/server/ratelimit"
	"github.com/jonathan/retention-insights/internal/store"
	"github.com/jonathan/retention-insights/internal/types"
)

// Runner executes one analysis run
type Runner interface {
	Run(ctx context.Context, opts pipeline.RunOptions) (*types.ComprehensiveReport, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer   *http.Server
	store        store.Store
	runner       Runner
	logger       zerolog.Logger
	rateLimiter  *ratelimit.Limiter
	pollInterval time.Duration

	// background runs outlive the request that started them
	runCtx    context.Context
	cancelRun context.CancelFunc
	runs      sync.WaitGroup

	streamCtx   context.Context
	stopStreams context.CancelFunc
}

// Config holds server configuration
type Config struct {
	Port int
	// PollInterval is how often the progress stream re-reads the stage log
	PollInterval time.Duration
	// RateLimit defaults to ratelimit.LoadConfig()
	RateLimit *ratelimit.Config
}

// New creates a new server instance
func New(cfg Config, st store.Store, runner Runner, logger zerolog.Logger) (*Server, error) {
	if st == nil {
		return nil, fmt.Errorf("server requires a store")
	}
	if runner == nil {
		return nil, fmt.Errorf("server requires a pipeline runner")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = progress.DefaultPollInterval
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = ratelimit.LoadConfig()
	}

	s := &Server{
		store:        st,
		runner:       runner,
		logger:       logger.With().Str("component", "server").Logger(),
		rateLimiter:  ratelimit.NewLimiter(cfg.RateLimit),
		pollInterval: cfg.PollInterval,
	}
	s.runCtx, s.cancelRun = context.WithCancel(context.Background())
	s.streamCtx, s.stopStreams = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /runs", s.handleCreateRun)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/logs", s.handleRunLogs)
	mux.HandleFunc("GET /runs/{id}/logs/stream", s.handleRunLogsStream)
	mux.HandleFunc("GET /runs/{id}/report", s.handleRunReport)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout: 30 * time.Second,
		// no WriteTimeout: progress streams stay open for the whole run
		IdleTimeout: 60 * time.Second,
	}

	return s, nil
}

// Handler returns the server's root handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until SIGINT or SIGTERM, then shuts down gracefully
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	s.logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown closes open progress streams, stops accepting requests, cancels background
// runs and waits for them to record their failure.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopStreams()
	err := s.httpServer.Shutdown(ctx)
	s.cancelRun()
	s.runs.Wait()
	s.rateLimiter.Stop()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logging.
// Flush is forwarded so progress streams keep working through the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// extractClientID extracts the client identifier (IP address) from the request.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		retryAfter := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = retryAfter
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}

	s.logger.Warn().Int("limit", info.Limit).Dur("retry_after", info.RetryAfter).Msg("rate limit exceeded")
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
