package jobpulse

import (
	"context"
	"fmt"
	"time"
)

// run is the per-handle worker loop. The first tick fires one interval after
// Start; the loop exits on cancellation or on the tick that retires the
// handle.
func (r *Registry) run(h *handle) {
	defer r.wg.Done()

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-timer.C:
		}

		rec, terminal := r.tick(h)
		if !r.deliver(h, rec, terminal) {
			// retired while the fetch was in flight
			return
		}
		if terminal {
			return
		}
		timer.Reset(r.interval)
	}
}

// tick runs one fetch-and-classify cycle for h and returns the record to
// deliver along with its terminal classification.
//
// The protocol, in order: increment the tick count; if the tick budget is
// exhausted, synthesize a timeout error without fetching; otherwise fetch
// and classify. Completed/error/failed always retire the handle. Idle
// retires it on any tick after the first: by then the job must have been
// registered, so an absent process means it finished or vanished externally.
// Fetch failures retire the handle without retry.
func (r *Registry) tick(h *handle) (StatusRecord, bool) {
	h.ticks++

	if h.ticks >= r.maxTicks {
		rec := StatusRecord{
			Key:       h.key,
			JobID:     h.jobID,
			Status:    StatusError,
			Error:     fmt.Sprintf("timed out after %s", time.Duration(r.maxTicks)*r.interval),
			Tick:      h.ticks,
			Terminal:  true,
			CheckedAt: time.Now(),
		}
		r.recorder.RecordTimeout()
		r.recorder.RecordOutcome(rec.Status.String(), true)
		r.logger.Warn("poll timed out", "key", h.key, "job_id", h.jobID, "ticks", h.ticks)
		return rec, true
	}

	ctx, cancel := context.WithTimeout(h.ctx, r.fetchTimeout)
	start := time.Now()
	rec, err := r.fetcher.Fetch(ctx, h.key)
	cancel()
	r.recorder.RecordTick(time.Since(start), err)

	if err != nil {
		rec = StatusRecord{
			Key:       h.key,
			JobID:     h.jobID,
			Status:    StatusError,
			Error:     err.Error(),
			Tick:      h.ticks,
			Terminal:  true,
			CheckedAt: time.Now(),
		}
		r.recorder.RecordOutcome(rec.Status.String(), true)
		r.logger.Warn("status fetch failed", "key", h.key, "job_id", h.jobID, "tick", h.ticks, "error", err)
		return rec, true
	}

	rec.Key = h.key
	rec.JobID = h.jobID
	rec.Tick = h.ticks
	rec.CheckedAt = time.Now()
	rec.Terminal = rec.Status.IsTerminal() || (rec.Status == StatusIdle && h.ticks > 1)
	r.recorder.RecordOutcome(rec.Status.String(), rec.Terminal)

	r.logger.Debug("poll tick",
		"key", h.key,
		"job_id", h.jobID,
		"tick", h.ticks,
		"status", rec.Status.String(),
		"terminal", rec.Terminal,
	)
	return rec, rec.Terminal
}

// deliver passes rec to the handle's sink unless the handle has been
// retired, and on a terminal record retires the handle itself. Delivery and
// retirement are serialized under the handle's delivery lock: once Stop or a
// replacement Start has returned, no further delivery can occur.
func (r *Registry) deliver(h *handle, rec StatusRecord, terminal bool) bool {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	if h.retired {
		return false
	}
	if terminal {
		h.retired = true
		h.cancel()
		r.removeIfCurrent(h)
	}
	r.invoke(h, rec)
	return true
}
