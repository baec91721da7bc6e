package jobpulse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/whartley/jobpulse/internal/metrics"
)

const (
	// defaultInterval is the time between fetch attempts for a key.
	defaultInterval = 5 * time.Second

	// defaultMaxTicks bounds the number of ticks per handle. Combined with
	// the default interval this gives a ten minute polling budget.
	defaultMaxTicks = 120
)

var (
	// ErrEmptyKey is returned by [Registry.Start] when the key is empty.
	// No handle is created and no callback is invoked.
	ErrEmptyKey = errors.New("jobpulse: key must not be empty")

	// ErrNilUpdateFunc is returned by [Registry.Start] when no update sink
	// is provided.
	ErrNilUpdateFunc = errors.New("jobpulse: update func must not be nil")

	// ErrRegistryClosed is returned by [Registry.Start] after
	// [Registry.Close] has been called.
	ErrRegistryClosed = errors.New("jobpulse: registry is closed")
)

// handle is the live polling lifecycle record for one key.
//
// A handle exclusively owns its tick counter: ticks is touched only by the
// handle's worker goroutine. Destruction always goes through the retire
// path, which cancels the worker context and then flips retired under
// deliverMu, so a tick already in flight can never deliver afterwards.
type handle struct {
	key      string
	jobID    string
	onUpdate UpdateFunc
	ticks    int

	ctx    context.Context
	cancel context.CancelFunc

	// deliverMu serializes callback delivery against retirement. retired
	// is guarded by it.
	deliverMu sync.Mutex
	retired   bool
}

// Registry tracks at most one active polling worker per key.
//
// Each [Registry.Start] installs a fresh handle for the key, replacing (and
// silencing) any previous one, and launches a worker goroutine that fetches
// the job's status once per interval until a terminal condition: a terminal
// status from the backend, idle observed after the first tick, a fetch
// failure, the tick budget running out, or an explicit [Registry.Stop].
//
// Start and Stop never fail for job-level reasons; every job-level outcome,
// including failures and timeouts, is delivered as data through the key's
// [UpdateFunc]. All methods are safe for concurrent use.
type Registry struct {
	fetcher      Fetcher
	interval     time.Duration
	maxTicks     int
	fetchTimeout time.Duration
	logger       *slog.Logger
	recorder     *metrics.Recorder // nil-safe; set by Service

	mu      sync.Mutex
	handles map[string]*handle
	closed  bool
	wg      sync.WaitGroup
}

// NewRegistry creates a [Registry] polling job statuses via fetcher.
//
// Defaults: 5 second interval, 120 tick budget, fetch timeout equal to the
// interval, [slog.Default] logger. See [WithInterval], [WithMaxTicks],
// [WithFetchTimeout], and [WithRegistryLogger].
//
// Returns an error if fetcher is nil or any option is invalid.
func NewRegistry(fetcher Fetcher, opts ...RegistryOption) (*Registry, error) {
	if fetcher == nil {
		return nil, errors.New("jobpulse: fetcher must not be nil")
	}

	cfg := &registryConfig{
		interval: defaultInterval,
		maxTicks: defaultMaxTicks,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.fetchTimeout == 0 {
		// a fetch slower than the interval would overlap the next tick
		cfg.fetchTimeout = cfg.interval
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		fetcher:      fetcher,
		interval:     cfg.interval,
		maxTicks:     cfg.maxTicks,
		fetchTimeout: cfg.fetchTimeout,
		logger:       logger,
		handles:      make(map[string]*handle),
	}, nil
}

// Start begins polling the status of jobID's artifact for key.
//
// If a handle for key already exists it is cancelled and fully replaced: its
// sink receives no further calls once Start returns. The new handle starts
// with a tick count of zero and its first fetch fires one interval after
// Start. Every observed status, including the terminal one, is passed to
// onUpdate.
//
// Start returns [ErrEmptyKey] for an empty key, [ErrNilUpdateFunc] for a nil
// sink, and [ErrRegistryClosed] after Close. It never fails asynchronously;
// job-level errors are delivered through onUpdate as [StatusError] records.
func (r *Registry) Start(key, jobID string, onUpdate UpdateFunc) error {
	if key == "" {
		return ErrEmptyKey
	}
	if onUpdate == nil {
		return ErrNilUpdateFunc
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{
		key:      key,
		jobID:    jobID,
		onUpdate: onUpdate,
		ctx:      ctx,
		cancel:   cancel,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return ErrRegistryClosed
	}
	prev := r.handles[key]
	if prev != nil {
		// cancel the pending timer before the handle leaves the registry
		prev.cancel()
	}
	r.handles[key] = h
	r.wg.Add(1)
	r.mu.Unlock()

	if prev != nil {
		retireHandle(prev)
		r.logger.Debug("poll replaced", "key", key, "job_id", jobID)
	}
	r.recorder.RecordWatch()

	go r.run(h)
	return nil
}

// Stop cancels and removes the handle for key.
//
// Once Stop returns, the key's sink receives no further calls, even for a
// tick whose fetch was already in flight. Stop on an unknown key is a
// silent no-op and never affects other keys.
func (r *Registry) Stop(key string) {
	r.mu.Lock()
	h, ok := r.handles[key]
	if ok {
		h.cancel()
		delete(r.handles, key)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	retireHandle(h)
	r.recorder.RecordUnwatch()
	r.logger.Debug("poll stopped", "key", key)
}

// Close retires every live handle and waits for all workers to exit.
//
// After Close returns no sink is invoked again and Start returns
// [ErrRegistryClosed]. Close is idempotent.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.wg.Wait()
		return
	}
	r.closed = true
	live := make([]*handle, 0, len(r.handles))
	for _, h := range r.handles {
		live = append(live, h)
	}
	r.handles = make(map[string]*handle)
	r.mu.Unlock()

	for _, h := range live {
		h.cancel()
	}
	for _, h := range live {
		retireHandle(h)
	}
	r.wg.Wait()
}

// Len returns the number of keys currently being polled.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Active reports whether a live handle exists for key.
func (r *Registry) Active(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[key]
	return ok
}

// retireHandle marks h retired, blocking until any in-flight delivery has
// finished. The caller must already have cancelled h and removed it from the
// registry map (or replaced it).
func retireHandle(h *handle) {
	h.deliverMu.Lock()
	h.retired = true
	h.deliverMu.Unlock()
}

// removeIfCurrent deletes h from the registry map unless it has already
// been replaced by a newer handle for the same key.
func (r *Registry) removeIfCurrent(h *handle) {
	r.mu.Lock()
	if r.handles[h.key] == h {
		delete(r.handles, h.key)
	}
	r.mu.Unlock()
}

// invoke calls the sink with panic recovery.
// If the sink panics, the full stack trace is logged with a correlation ID
// so the failure can be traced without taking down other keys' workers.
func (r *Registry) invoke(h *handle, rec StatusRecord) {
	defer func() {
		if p := recover(); p != nil {
			correlationID := uuid.NewString()
			r.logger.Error("update sink panicked",
				"correlation_id", correlationID,
				"key", h.key,
				"panic", fmt.Sprintf("%v", p),
				"stack", string(debug.Stack()),
			)
		}
	}()
	h.onUpdate(rec)
}
