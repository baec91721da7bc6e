package metrics

import (
	"sync"
	"time"
)

// counters holds the in-memory tallies behind Recorder.
type counters struct {
	ticks      int
	tickErrors int
	watches    int
	unwatches  int
	timeouts   int
	outcomes   map[string]int
	terminal   int
	lastTick   time.Duration
}

// Recorder captures lightweight, in-memory metrics about polling activity
// and optionally mirrors them to OpenTelemetry instruments.
//
// All methods are safe on a nil receiver, so callers can hold an optional
// Recorder without nil checks at every call site.
type Recorder struct {
	mu   sync.Mutex
	c    counters
	otel *otelInstruments
}

// NewRecorder creates a Recorder with no telemetry backend.
// Use [Setup] to create one wired to OpenTelemetry exporters.
func NewRecorder() *Recorder {
	return newRecorder(nil)
}

func newRecorder(otel *otelInstruments) *Recorder {
	return &Recorder{
		c:    counters{outcomes: make(map[string]int)},
		otel: otel,
	}
}

// RecordTick records one fetch attempt and its latency.
func (r *Recorder) RecordTick(duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.c.ticks++
	r.c.lastTick = duration
	if err != nil {
		r.c.tickErrors++
	}
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordTick(duration, err)
	}
}

// RecordOutcome records the classified status of a tick.
func (r *Recorder) RecordOutcome(status string, terminal bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.c.outcomes[status]++
	if terminal {
		r.c.terminal++
	}
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordOutcome(status, terminal)
	}
}

// RecordTimeout records a handle retired by its tick budget.
func (r *Recorder) RecordTimeout() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.c.timeouts++
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordTimeout()
	}
}

// RecordWatch records a poll being started (or replaced).
func (r *Recorder) RecordWatch() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.c.watches++
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordWatch()
	}
}

// RecordUnwatch records an explicit stop.
func (r *Recorder) RecordUnwatch() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.c.unwatches++
	r.mu.Unlock()
	if r.otel != nil {
		r.otel.recordUnwatch()
	}
}

// RecordHTTPRequest tracks basic API metrics.
func (r *Recorder) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if r == nil || r.otel == nil {
		return
	}
	r.otel.recordHTTPRequest(method, path, status, duration)
}

// Snapshot is a copy of the recorder's in-memory tallies.
type Snapshot struct {
	Ticks      int
	TickErrors int
	Watches    int
	Unwatches  int
	Timeouts   int
	Terminal   int
	Outcomes   map[string]int
	LastTick   time.Duration
}

// Snapshot returns a copy of the current tallies.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{Outcomes: map[string]int{}}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	outcomes := make(map[string]int, len(r.c.outcomes))
	for k, v := range r.c.outcomes {
		outcomes[k] = v
	}
	return Snapshot{
		Ticks:      r.c.ticks,
		TickErrors: r.c.tickErrors,
		Watches:    r.c.watches,
		Unwatches:  r.c.unwatches,
		Timeouts:   r.c.timeouts,
		Terminal:   r.c.terminal,
		Outcomes:   outcomes,
		LastTick:   r.c.lastTick,
	}
}
