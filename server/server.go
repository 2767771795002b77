// Package server handles HTTP endpoints and request routing.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"showcheck/poll"
	"showcheck/storage"
)

// Poller interface for triggering checks.
type Poller interface {
	CheckAll(ctx context.Context) (*poll.Report, error)
}

// Publisher interface for reading the published catalog.
type Publisher interface {
	LoadPublished(ctx context.Context) (*storage.Published, error)
}

// Server handles HTTP requests.
type Server struct {
	poller    Poller
	publisher Publisher
	logger    *slog.Logger
	limiter   *rateLimiter
}

// Config holds server configuration.
type Config struct {
	Poller    Poller
	Publisher Publisher
	Logger    *slog.Logger
	// PollsPerHour caps manual triggers per client IP. Zero disables the limit.
	PollsPerHour int
}

// New creates a new HTTP server handler.
func New(cfg *Config) *Server {
	s := &Server{
		poller:    cfg.Poller,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
	}
	if cfg.PollsPerHour > 0 {
		s.limiter = newRateLimiter(cfg.PollsPerHour, time.Hour)
	}
	return s
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/pollz", s.handlePoll)
	mux.HandleFunc("/shows.json", s.handleShows)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port string) error {
	// Configure server with timeouts to prevent resource exhaustion.
	// WriteTimeout covers a full check triggered through /pollz.
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "port", port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"healthy"}`); err != nil {
		s.logger.Warn("Failed to write health response", "error", err)
	}
}

type sourceResult struct {
	Source string `json:"source"`
	Error  string `json:"error,omitempty"`
	Count  int    `json:"count"`
	OK     bool   `json:"ok"`
}

type pollResponse struct {
	Status        string         `json:"status"`
	RunID         string         `json:"run_id,omitempty"`
	DispatchError string         `json:"dispatch_error,omitempty"`
	Sources       []sourceResult `json:"sources,omitempty"`
	Shows         int            `json:"shows"`
	New           int            `json:"new"`
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ip := clientIP(r)
	if s.limiter != nil && !s.limiter.allow(ip) {
		s.logger.Warn("Poll trigger rate limited", "ip", ip)
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	s.logger.Info("Poll endpoint triggered", "ip", ip)

	report, err := s.poller.CheckAll(r.Context())
	switch {
	case errors.Is(err, poll.ErrRunInProgress):
		s.logger.Info("Poll rejected, check already running")
		http.Error(w, "Check already running", http.StatusConflict)
		return
	case errors.Is(err, poll.ErrNoSourceSucceeded):
		s.logger.Error("Poll check failed", "error", err)
		s.writeJSON(w, http.StatusBadGateway, newPollResponse("sources_failed", report))
		return
	case err != nil:
		s.logger.Error("Poll check failed", "error", err)
		http.Error(w, "Check failed", http.StatusInternalServerError)
		return
	}

	status := "completed"
	if report.DispatchErr != nil {
		status = "dispatch_failed"
	}
	s.writeJSON(w, http.StatusOK, newPollResponse(status, report))
}

func newPollResponse(status string, report *poll.Report) pollResponse {
	resp := pollResponse{Status: status}
	if report == nil {
		return resp
	}
	resp.RunID = report.RunID
	resp.Shows = report.Total
	resp.New = len(report.Fresh)
	if report.DispatchErr != nil {
		resp.DispatchError = report.DispatchErr.Error()
	}
	for _, st := range report.Statuses {
		sr := sourceResult{Source: string(st.Source), Count: st.Count, OK: st.OK}
		if st.Err != nil {
			sr.Error = st.Err.Error()
		}
		resp.Sources = append(resp.Sources, sr)
	}
	return resp
}

func (s *Server) handleShows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	published, err := s.publisher.LoadPublished(r.Context())
	if storage.IsNotFound(err) {
		http.Error(w, "No shows published yet", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("Failed to load published shows", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	s.writeJSON(w, http.StatusOK, published)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
