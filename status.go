package jobpulse

import (
	"context"
	"encoding/json"
	"time"
)

// Status represents the lifecycle state of a polled job.
//
// Status is a string type holding one of six predefined values. The values
// are the wire-level contract with the backend status endpoint: using a
// string type keeps JSON serialization and logging human-readable while the
// constants provide type safety.
type Status string

const (
	// StatusQueued indicates the job has been accepted but not yet started.
	StatusQueued Status = "queued"

	// StatusProcessing indicates the job is actively running.
	StatusProcessing Status = "processing"

	// StatusCompleted indicates the job finished successfully and its
	// result payload is available.
	StatusCompleted Status = "completed"

	// StatusError indicates the job ended with an error. The registry also
	// synthesizes this status for fetch failures and poll timeouts.
	StatusError Status = "error"

	// StatusFailed indicates the backend marked the job as failed.
	StatusFailed Status = "failed"

	// StatusIdle indicates the backend has no record of a job for the key.
	// On the first tick this usually means the job has not registered yet;
	// on any later tick it means the job finished or vanished externally.
	StatusIdle Status = "idle"
)

// String returns the string representation of the status.
// This implements the fmt.Stringer interface.
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the status value alone ends a polling
// lifecycle. Completed, error, and failed are always terminal. Idle is
// terminal only in context (after the first tick); callers should consult
// [StatusRecord.Terminal] for the registry's actual classification.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusFailed:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the six known status kinds.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusError, StatusFailed, StatusIdle:
		return true
	default:
		return false
	}
}

// StatusRecord holds one observed status for a polled job.
//
// A record is produced by a [Fetcher] and stamped by the polling worker with
// the key, job id, tick number, terminal classification, and observation
// time before delivery to the [UpdateFunc]. Records are values; sinks may
// retain them.
type StatusRecord struct {
	// Key identifies the subject of the polled job (e.g., a meeting id).
	Key string `json:"key"`

	// JobID identifies the backend process producing the artifact.
	JobID string `json:"job_id"`

	// Status is the observed lifecycle state.
	Status Status `json:"status"`

	// Payload carries the job result as returned by the backend, present
	// only once the job has completed.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Error holds the failure message for error/failed statuses, fetch
	// failures, and poll timeouts. Empty otherwise.
	Error string `json:"error,omitempty"`

	// Tick is the 1-based fetch attempt on which this record was observed.
	Tick int `json:"tick"`

	// Terminal reports whether this record retired the polling lifecycle.
	// It distinguishes idle-meaning-finished from idle-on-first-tick, which
	// share the same Status value.
	Terminal bool `json:"terminal"`

	// CheckedAt is when the classification was made.
	CheckedAt time.Time `json:"checked_at"`
}

// UpdateFunc receives every status observed for a watched key, including the
// terminal one.
//
// The registry invokes the function from the key's polling goroutine: it is
// called at most once at a time per key, never after [Registry.Stop] for the
// key has returned, and never after a replacement [Registry.Start]. Panics
// are recovered and logged; they do not stop other keys.
//
// IMPORTANT: an UpdateFunc must not call back into the Registry
// synchronously. Dispatch such work to a separate goroutine.
type UpdateFunc func(StatusRecord)

// Fetcher retrieves the current status of a job by key.
//
// Implementations must return a StatusRecord for every normal condition,
// including "no such job" (report [StatusIdle]); only transport or
// deserialization failures should return an error. Fetch must honor ctx
// cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, key string) (StatusRecord, error)
}
