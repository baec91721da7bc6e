package jobpulse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/whartley/jobpulse/internal/backend"
	"github.com/whartley/jobpulse/internal/metrics"
	"github.com/whartley/jobpulse/internal/server"
	"github.com/whartley/jobpulse/internal/store"
)

const (
	defaultPort = 8080
)

// Service is the main orchestrator for job-status polling and API serving.
//
// Service coordinates the polling registry, the backend status client, the
// latest-status store, and an HTTP API with a Server-Sent Events stream. It
// is created using [New] with functional options and started with
// [Service.Start].
//
// The typical lifecycle is:
//
//	svc, err := jobpulse.New(jobpulse.WithBackendURL("http://127.0.0.1:5167"))
//	if err != nil {
//	    slog.Error("failed to create service", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	svc.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context to
// trigger graceful shutdown.
//
// For embedding the polling core without the HTTP surface, use [Registry]
// directly with a custom [Fetcher].
type Service struct {
	backendURL   string
	headers      map[string]string
	port         int
	logger       *slog.Logger
	telemetry    metrics.TelemetryConfig
	callbacks    []UpdateFunc
	watches      []watchSpec
	registryOpts []RegistryOption

	// runtime state, set by Start
	mu       sync.RWMutex
	registry *Registry
	store    store.Store
}

// watchSpec is a watch configured before startup.
type watchSpec struct {
	key   string
	jobID string
}

// New creates a new [Service] instance with the given options.
//
// A backend URL must be configured via [WithBackendURL]. Other options have
// sensible defaults:
//   - Port: 8080
//   - Polling: 5 second interval, 120 tick budget
//   - Telemetry: disabled
//
// Returns an error if no backend URL is configured or any option is invalid.
func New(opts ...Option) (*Service, error) {
	cfg := &svcConfig{
		port: defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.backendURL == "" {
		return nil, errors.New("a backend URL is required")
	}
	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	seen := make(map[string]bool, len(cfg.watches))
	for _, ws := range cfg.watches {
		if ws.key == "" {
			return nil, errors.New("watch key must not be empty")
		}
		if seen[ws.key] {
			return nil, fmt.Errorf("duplicate watch key: %q", ws.key)
		}
		seen[ws.key] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		backendURL:   cfg.backendURL,
		headers:      cfg.headers,
		port:         cfg.port,
		logger:       logger,
		telemetry:    cfg.telemetry,
		callbacks:    cfg.callbacks,
		watches:      cfg.watches,
		registryOpts: cfg.registryOpts,
	}, nil
}

// Start begins polling and serving the API.
//
// Start is a blocking call that runs until the provided context is
// cancelled. During execution:
//
//   - Watches configured via [WithWatch] begin polling immediately
//   - The HTTP API starts on the configured port
//   - Every observed status is stored, streamed over SSE, and passed to
//     callbacks registered via [WithUpdateCallback]
//
// Returns nil on graceful shutdown. Returns an error if a component fails
// to start.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("jobpulse starting",
		"backend", s.backendURL,
		"port", s.port,
		"initial_watches", len(s.watches),
	)

	if ctx.Err() != nil {
		return nil
	}

	recorder, promHandler, telemetryShutdown, err := metrics.Setup(ctx, s.telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}

	fetcher, err := NewHTTPFetcher(s.backendURL, s.headers)
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}

	regOpts := append([]RegistryOption{WithRegistryLogger(s.logger)}, s.registryOpts...)
	registry, err := NewRegistry(fetcher, regOpts...)
	if err != nil {
		fetcher.Close()
		return fmt.Errorf("failed to create registry: %w", err)
	}
	registry.recorder = recorder

	statusStore := store.NewMemoryStore()

	s.mu.Lock()
	s.registry = registry
	s.store = statusStore
	s.mu.Unlock()

	httpServer := server.NewServer(statusStore, s, s.port, promHandler, recorder, s.logger)
	if err := httpServer.Start(ctx); err != nil {
		registry.Close()
		fetcher.Close()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	for _, ws := range s.watches {
		if _, err := s.Watch(ws.key, ws.jobID); err != nil {
			s.logger.Error("failed to start configured watch", "key", ws.key, "error", err)
		}
	}

	<-ctx.Done()

	registry.Close()
	fetcher.Close()
	if err := telemetryShutdown(context.Background()); err != nil {
		s.logger.Error("telemetry shutdown error", "error", err)
	}
	s.logger.Info("jobpulse stopped")
	return nil
}

// Watch begins polling the job for key.
//
// If jobID is empty a fresh one is generated. An existing watch for the key
// is replaced. Every observed status is stored, streamed to API subscribers,
// and passed to registered callbacks. Returns the job id in effect.
//
// Watch implements the API server's watcher contract and may also be called
// directly by SDK users after [Service.Start] is running.
func (s *Service) Watch(key, jobID string) (string, error) {
	s.mu.RLock()
	registry := s.registry
	s.mu.RUnlock()
	if registry == nil {
		return "", errors.New("service is not started")
	}

	if jobID == "" {
		jobID = "job-" + uuid.NewString()
	}

	if err := registry.Start(key, jobID, s.sink()); err != nil {
		return "", err
	}
	s.logger.Info("watch started", "key", key, "job_id", jobID)
	return jobID, nil
}

// Unwatch stops polling key. No-op for unknown keys.
func (s *Service) Unwatch(key string) {
	s.mu.RLock()
	registry := s.registry
	s.mu.RUnlock()
	if registry == nil {
		return
	}
	registry.Stop(key)
}

// sink fans one status record into the store and user callbacks.
// Panics in callbacks are recovered by the registry's delivery path.
func (s *Service) sink() UpdateFunc {
	return func(rec StatusRecord) {
		s.mu.RLock()
		st := s.store
		s.mu.RUnlock()
		if st != nil {
			// store update first (callbacks fire after data is persisted)
			st.Update(recordToJobStatus(rec))
		}

		for _, cb := range s.callbacks {
			cb(rec)
		}

		logAttrs := []any{
			"key", rec.Key,
			"job_id", rec.JobID,
			"status", rec.Status.String(),
			"tick", rec.Tick,
		}
		switch {
		case rec.Error != "":
			s.logger.Warn("job status", append(logAttrs, "error", rec.Error)...)
		case rec.Terminal:
			s.logger.Info("job finished", logAttrs...)
		default:
			s.logger.Debug("job status", logAttrs...)
		}
	}
}

// Port returns the configured HTTP port for the API server.
func (s *Service) Port() int {
	return s.port
}

// BackendURL returns the configured backend base URL.
func (s *Service) BackendURL() string {
	return s.backendURL
}

// recordToJobStatus converts a StatusRecord to its storage representation.
func recordToJobStatus(rec StatusRecord) store.JobStatus {
	var errStr *string
	if rec.Error != "" {
		e := rec.Error
		errStr = &e
	}
	return store.JobStatus{
		Key:       rec.Key,
		JobID:     rec.JobID,
		Status:    rec.Status.String(),
		Payload:   rec.Payload,
		Error:     errStr,
		Tick:      rec.Tick,
		Terminal:  rec.Terminal,
		CheckedAt: rec.CheckedAt,
	}
}

// HTTPFetcher is a [Fetcher] backed by the summary backend's HTTP status
// endpoint. It can be used with a bare [Registry] when the full [Service]
// surface is not needed.
type HTTPFetcher struct {
	client *backend.Client
}

// NewHTTPFetcher creates an [HTTPFetcher] for the given backend base URL.
// headers, if non-nil, are sent with every status fetch.
func NewHTTPFetcher(baseURL string, headers map[string]string) (*HTTPFetcher, error) {
	client, err := backend.NewClient(baseURL, headers)
	if err != nil {
		return nil, err
	}
	return &HTTPFetcher{client: client}, nil
}

// Fetch retrieves and converts the backend's wire-level summary. An unknown
// status kind in the response is a contract violation and is reported as a
// fetch error, not a record.
func (f *HTTPFetcher) Fetch(ctx context.Context, key string) (StatusRecord, error) {
	summary, err := f.client.Summary(ctx, key)
	if err != nil {
		return StatusRecord{}, err
	}

	status := Status(strings.ToLower(summary.Status))
	if !status.Valid() {
		return StatusRecord{}, fmt.Errorf("unexpected status %q in backend response", summary.Status)
	}

	rec := StatusRecord{
		Status:  status,
		Payload: summary.Data,
	}
	if summary.Error != nil {
		rec.Error = *summary.Error
	}
	return rec, nil
}

// Close releases the fetcher's idle connections. Safe to call multiple
// times.
func (f *HTTPFetcher) Close() {
	f.client.Close()
}
