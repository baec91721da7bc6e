package store

import (
	"encoding/json"
	"time"
)

// JobStatus represents the latest observed status of a watched job.
//
// JobStatus is the storage representation, optimized for JSON serialization
// (used by the REST API and SSE). It is decoupled from the registry's
// internal types to allow independent evolution.
type JobStatus struct {
	// Key identifies the subject of the polled job.
	Key string `json:"key"`

	// JobID identifies the backend process producing the artifact.
	JobID string `json:"job_id"`

	// Status is the observed lifecycle state (e.g., "processing").
	Status string `json:"status"`

	// Payload is the job result, present once completed.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Error contains the failure message if the job or its poll failed.
	// nil indicates no error.
	Error *string `json:"error"`

	// Tick is the fetch attempt on which this status was observed.
	Tick int `json:"tick"`

	// Terminal reports whether this status retired the poll.
	Terminal bool `json:"terminal"`

	// CheckedAt is the timestamp of the observation.
	CheckedAt time.Time `json:"checked_at"`
}

// Store defines the interface for storing and subscribing to job statuses.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// Update stores a new status and notifies all subscribers.
	// Statuses are keyed by Key; subsequent updates replace previous values.
	Update(status JobStatus)

	// Get returns the latest status for key, if any.
	Get(key string) (JobStatus, bool)

	// GetAll returns all currently stored statuses, sorted by key.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []JobStatus

	// Delete removes the stored status for key. No-op if absent.
	Delete(key string)

	// Subscribe returns a channel that receives status updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan JobStatus

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan JobStatus)
}
