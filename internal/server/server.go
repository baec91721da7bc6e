package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/whartley/jobpulse/internal/metrics"
	"github.com/whartley/jobpulse/internal/store"
)

// sseWriteTimeout is the maximum time allowed for a single SSE write
// operation. This prevents goroutine leaks when clients are slow or
// disconnected. Must be <= shutdown timeout to ensure clean shutdown.
const sseWriteTimeout = 5 * time.Second

// Watcher starts and stops polling lifecycles. It is implemented by the
// jobpulse Service and injected here so the HTTP layer stays decoupled from
// the registry.
type Watcher interface {
	// Watch begins polling key; jobID may be empty, in which case one is
	// generated. Returns the job id in effect.
	Watch(key, jobID string) (string, error)

	// Unwatch stops polling key. No-op for unknown keys.
	Unwatch(key string)
}

// Server handles HTTP requests for the jobpulse API.
//
// Server provides these endpoints:
//   - GET /api/jobs: latest status of every tracked job (JSON)
//   - GET /api/jobs/{key}: latest status for one key
//   - POST /api/jobs: begin watching a job
//   - DELETE /api/jobs/{key}: stop watching a job
//   - GET /api/events: Server-Sent Events stream of status updates
//   - GET /healthz: liveness probe
//   - GET /metrics: Prometheus metrics (when telemetry is enabled)
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store          store.Store
	watcher        Watcher
	port           int
	metricsHandler http.Handler
	recorder       *metrics.Recorder
	logger         *slog.Logger
	httpServer     *http.Server
}

// NewServer creates a new HTTP [Server].
//
// metricsHandler may be nil, in which case /metrics is not registered.
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, w Watcher, port int, metricsHandler http.Handler, recorder *metrics.Recorder, logger *slog.Logger) *Server {
	return &Server{
		store:          st,
		watcher:        w,
		port:           port,
		metricsHandler: metricsHandler,
		recorder:       recorder,
		logger:         logger,
	}
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server runs until the context is cancelled, at which
// point it initiates a graceful shutdown with a 5-second timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{key}", s.handleGetJob)
	mux.HandleFunc("POST /api/jobs", s.handleWatch)
	mux.HandleFunc("DELETE /api/jobs/{key}", s.handleUnwatch)
	mux.HandleFunc("GET /api/events", s.handleSSE)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}

	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler: s.instrument(mux),
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// statusWriter captures the response code for request metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument records request metrics around the mux. The SSE endpoint is
// passed through unwrapped so the stream keeps access to http.Flusher and
// write deadlines.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/events" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.recorder.RecordHTTPRequest(r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

// watchRequest is the POST /api/jobs body.
type watchRequest struct {
	Key   string `json:"key"`
	JobID string `json:"job_id"`
}

// watchResponse acknowledges a started watch.
type watchResponse struct {
	Key   string `json:"key"`
	JobID string `json:"job_id"`
}

// handleWatch begins polling a key.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	jobID, err := s.watcher.Watch(req.Key, req.JobID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(watchResponse{Key: req.Key, JobID: jobID}); err != nil {
		s.logger.Error("failed to encode watch response", "error", err)
	}
}

// handleUnwatch stops polling a key. Always succeeds: stopping an unknown
// key is a no-op by contract.
func (s *Server) handleUnwatch(w http.ResponseWriter, r *http.Request) {
	s.watcher.Unwatch(r.PathValue("key"))
	w.WriteHeader(http.StatusNoContent)
}

// handleListJobs returns the latest status of every tracked job.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	statuses := s.store.GetAll()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(statuses); err != nil {
		s.logger.Error("failed to encode job list", "error", err)
	}
}

// handleGetJob returns the latest status for one key.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	status, ok := s.store.Get(r.PathValue("key"))
	if !ok {
		http.Error(w, "unknown key", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("failed to encode job status", "error", err)
	}
}

// handleHealthz is a liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleSSE streams status updates via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients
// are slow or disconnected. Without deadlines, a blocked Fprintf call would
// prevent the handler from detecting context cancellation or channel
// closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// ResponseController provides deadline-aware write and flush operations.
	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some
	// ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// send current statuses first so clients start from a full picture
	for _, status := range s.store.GetAll() {
		data, err := json.Marshal(status)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case status, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(status)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from the server context via
			// BaseContext, so this fires on both client disconnect AND
			// server shutdown
			return
		}
	}
}
