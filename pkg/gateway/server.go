// Package gateway exposes the tool execution API over HTTP: list,
// reload, execute, plus health, prometheus metrics and a WebSocket
// event feed. Execute always answers 200 with a structured body; only a
// genuinely unexpected internal error produces a 5xx.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opspilot/toolgate/pkg/catalog"
	"github.com/opspilot/toolgate/pkg/registry"
	"github.com/opspilot/toolgate/pkg/runner"
)

// Executor runs one tool invocation. Satisfied by *runner.Runner.
type Executor interface {
	Execute(ctx context.Context, toolName string, params map[string]interface{}, traceID string) runner.Result
}

// Catalog is the registry surface the gateway needs.
type Catalog interface {
	List(f registry.Filter) []catalog.ToolSpec
	Reload() registry.ReloadReport
	Count() int
}

// ServerOptions configures the gateway server.
type ServerOptions struct {
	Host               string
	Port               int
	RateLimitPerMinute int

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler
}

// Server is the gateway HTTP server.
type Server struct {
	options  ServerOptions
	registry Catalog
	executor Executor
	hub      *EventHub
	limiter  *RateLimiter
	logger   zerolog.Logger

	server       *http.Server
	startTime    time.Time
	inFlightReqs sync.WaitGroup

	shutdownMu     sync.RWMutex
	isShuttingDown bool
}

// NewServer creates a gateway server.
func NewServer(options ServerOptions, reg Catalog, exec Executor, logger zerolog.Logger) (*Server, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.Port == 0 {
		options.Port = 8210
	}
	if options.RateLimitPerMinute == 0 {
		options.RateLimitPerMinute = 120
	}

	return &Server{
		options:  options,
		registry: reg,
		executor: exec,
		hub:      NewEventHub(),
		limiter:  NewRateLimiter(options.RateLimitPerMinute),
		logger:   logger,
	}, nil
}

// Events returns the hub so other components can publish to the feed.
func (s *Server) Events() *EventHub {
	return s.hub
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tools", s.withRecovery(s.handleListTools))
	mux.HandleFunc("POST /tools/reload", s.withRecovery(s.handleReload))
	mux.HandleFunc("POST /tools/execute", s.withRecovery(s.handleExecute))
	mux.HandleFunc("GET /health", s.withRecovery(s.handleHealth))
	mux.HandleFunc("GET /ws/events", s.hub.ServeHTTP)
	if s.options.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.options.MetricsHandler)
	}
	return mux
}

// Start runs the server until Stop is called.
func (s *Server) Start() error {
	s.startTime = time.Now()
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: s.Handler(),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting gateway server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown deadline reached with requests still in flight")
	}

	s.hub.Close()
	s.limiter.Stop()

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

type executeRequest struct {
	Name    string                 `json:"name"`
	Params  map[string]interface{} `json:"params"`
	TraceID string                 `json:"trace_id,omitempty"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := registry.Filter{
		Platform: q.Get("platform"),
		Category: q.Get("category"),
	}
	if tags := q.Get("tags"); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Tags = append(filter.Tags, t)
			}
		}
	}

	tools := s.registry.List(filter)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools": tools,
		"total": len(tools),
		"filters": map[string]interface{}{
			"platform": filter.Platform,
			"category": filter.Category,
			"tags":     filter.Tags,
		},
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	report := s.registry.Reload()

	s.hub.Publish("catalog_reloaded", map[string]interface{}{
		"count":            report.Count,
		"missing_required": report.MissingRequired,
	})

	s.logger.Info().
		Int("tools", report.Count).
		Strs("missing_required", report.MissingRequired).
		Str("remote", clientAddr(r)).
		Msg("Catalog reload requested")

	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	client := clientAddr(r)
	if !s.limiter.Allow(client) {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", s.limiter.RetryAfter(client)))
		s.writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": "rate limit exceeded",
		})
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
		return
	}
	if req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "tool name is required",
		})
		return
	}

	result := s.executor.Execute(r.Context(), req.Name, req.Params, req.TraceID)

	// Tool failures are part of the contract: the envelope says so, the
	// transport stays 200.
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	shuttingDown := s.isShuttingDown
	s.shutdownMu.RUnlock()

	status := "ok"
	if shuttingDown {
		status = "shutting_down"
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         status,
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"tool_count":     s.registry.Count(),
		"feed_clients":   s.hub.ClientCount(),
	})
}

// withRecovery converts a handler panic into the only legitimate 5xx.
func (s *Server) withRecovery(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()

		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("Handler panicked")
				s.writeJSON(w, http.StatusInternalServerError, map[string]string{
					"error": "internal error",
				})
			}
		}()

		next(w, r)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
