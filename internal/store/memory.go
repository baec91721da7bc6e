package store

import (
	"sort"
	"sync"
)

// subscriberBuffer is the channel buffer per subscriber. A full buffer means
// the subscriber misses updates rather than blocking the update path.
const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe storage with a publish-subscribe
// mechanism for real-time updates. Statuses are keyed by job key, with new
// values replacing previous ones.
type MemoryStore struct {
	mu          sync.RWMutex
	statuses    map[string]JobStatus
	subMu       sync.RWMutex
	subscribers map[chan JobStatus]struct{}
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statuses:    make(map[string]JobStatus),
		subscribers: make(map[chan JobStatus]struct{}),
	}
}

// Update stores a [JobStatus] and notifies all subscribers.
func (m *MemoryStore) Update(status JobStatus) {
	m.mu.Lock()
	m.statuses[status.Key] = status
	m.mu.Unlock()

	m.notifySubscribers(status)
}

// Get returns the latest status for key, if any.
func (m *MemoryStore) Get(key string) (JobStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[key]
	return s, ok
}

// GetAll returns a snapshot of all stored statuses, sorted by key.
func (m *MemoryStore) GetAll() []JobStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]JobStatus, 0, len(m.statuses))
	for _, s := range m.statuses {
		results = append(results, s)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results
}

// Delete removes the stored status for key. No-op if absent.
func (m *MemoryStore) Delete(key string) {
	m.mu.Lock()
	delete(m.statuses, key)
	m.mu.Unlock()
}

// Subscribe creates a new subscription and returns a channel for updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource
// leaks.
func (m *MemoryStore) Subscribe() <-chan JobStatus {
	ch := make(chan JobStatus, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// After calling Unsubscribe, the channel will be closed and no further
// updates will be sent. Safe to call multiple times or with an unknown
// channel.
func (m *MemoryStore) Unsubscribe(ch <-chan JobStatus) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the status to all active subscribers.
//
// This is non-blocking: if a subscriber's channel buffer is full, the
// message is dropped for that subscriber rather than blocking the update
// path.
func (m *MemoryStore) notifySubscribers(status JobStatus) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- status:
		default:
			// subscriber is slow, drop the message
		}
	}
}
