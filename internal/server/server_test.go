package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/whartley/jobpulse/internal/store"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockWatcher implements Watcher for testing.
type mockWatcher struct {
	mu        sync.Mutex
	watched   map[string]string
	unwatched []string
	watchErr  error
}

func newMockWatcher() *mockWatcher {
	return &mockWatcher{watched: make(map[string]string)}
}

func (m *mockWatcher) Watch(key, jobID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watchErr != nil {
		return "", m.watchErr
	}
	if jobID == "" {
		jobID = "generated-id"
	}
	m.watched[key] = jobID
	return jobID, nil
}

func (m *mockWatcher) Unwatch(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unwatched = append(m.unwatched, key)
}

func newTestServer(st store.Store, w Watcher) *Server {
	return NewServer(st, w, 0, nil, nil, testLogger())
}

// --- Tests ---

func TestHandleWatch(t *testing.T) {
	ms := store.NewMemoryStore()
	mw := newMockWatcher()
	srv := newTestServer(ms, mw)

	body := strings.NewReader(`{"key": "meeting-1", "job_id": "job-abc"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", body)
	rec := httptest.NewRecorder()

	srv.handleWatch(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	var resp watchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Key != "meeting-1" || resp.JobID != "job-abc" {
		t.Errorf("response = %+v, want key meeting-1 and job_id job-abc", resp)
	}
	if mw.watched["meeting-1"] != "job-abc" {
		t.Errorf("watcher got job id %q, want job-abc", mw.watched["meeting-1"])
	}
}

func TestHandleWatch_GeneratedJobID(t *testing.T) {
	ms := store.NewMemoryStore()
	mw := newMockWatcher()
	srv := newTestServer(ms, mw)

	body := strings.NewReader(`{"key": "meeting-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", body)
	rec := httptest.NewRecorder()

	srv.handleWatch(rec, req)

	var resp watchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.JobID == "" {
		t.Error("response job_id is empty, want the id in effect")
	}
}

func TestHandleWatch_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{not json`},
		{"missing key", `{"job_id": "job-abc"}`},
		{"empty key", `{"key": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(store.NewMemoryStore(), newMockWatcher())

			req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			srv.handleWatch(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandleWatch_WatcherError(t *testing.T) {
	mw := newMockWatcher()
	mw.watchErr = errors.New("registry is closed")
	srv := newTestServer(store.NewMemoryStore(), mw)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"key": "meeting-1"}`))
	rec := httptest.NewRecorder()

	srv.handleWatch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "registry is closed") {
		t.Errorf("body = %q, want watcher error message", rec.Body.String())
	}
}

func TestHandleUnwatch(t *testing.T) {
	mw := newMockWatcher()
	srv := newTestServer(store.NewMemoryStore(), mw)

	req := httptest.NewRequest(http.MethodDelete, "/api/jobs/meeting-1", nil)
	req.SetPathValue("key", "meeting-1")
	rec := httptest.NewRecorder()

	srv.handleUnwatch(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if len(mw.unwatched) != 1 || mw.unwatched[0] != "meeting-1" {
		t.Errorf("unwatched = %v, want [meeting-1]", mw.unwatched)
	}
}

func TestHandleListJobs(t *testing.T) {
	ms := store.NewMemoryStore()
	ms.Update(store.JobStatus{Key: "meeting-1", Status: "processing"})
	ms.Update(store.JobStatus{Key: "meeting-2", Status: "completed", Terminal: true})
	srv := newTestServer(ms, newMockWatcher())

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()

	srv.handleListJobs(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var statuses []store.JobStatus
	if err := json.NewDecoder(rec.Body).Decode(&statuses); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
	if statuses[0].Key != "meeting-1" || statuses[1].Key != "meeting-2" {
		t.Errorf("statuses not sorted by key: %v, %v", statuses[0].Key, statuses[1].Key)
	}
}

func TestHandleGetJob(t *testing.T) {
	ms := store.NewMemoryStore()
	ms.Update(store.JobStatus{Key: "meeting-1", JobID: "job-abc", Status: "processing", Tick: 4})
	srv := newTestServer(ms, newMockWatcher())

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/meeting-1", nil)
	req.SetPathValue("key", "meeting-1")
	rec := httptest.NewRecorder()

	srv.handleGetJob(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var status store.JobStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status.JobID != "job-abc" || status.Tick != 4 {
		t.Errorf("status = %+v, want job-abc at tick 4", status)
	}
}

func TestHandleGetJob_Unknown(t *testing.T) {
	srv := newTestServer(store.NewMemoryStore(), newMockWatcher())

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil)
	req.SetPathValue("key", "missing")
	rec := httptest.NewRecorder()

	srv.handleGetJob(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleHealthz(t *testing.T) {
	srv := newTestServer(store.NewMemoryStore(), newMockWatcher())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.handleHealthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("body = %q, want ok", rec.Body.String())
	}
}

func TestHandleSSE_BasicFlow(t *testing.T) {
	ms := store.NewMemoryStore()
	ms.Update(store.JobStatus{Key: "meeting-1", Status: "processing"})
	ms.Update(store.JobStatus{Key: "meeting-2", Status: "completed"})

	srv := newTestServer(ms, newMockWatcher())

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	srv.handleSSE(rec, req)

	body := rec.Body.String()

	// should contain initial statuses
	if !strings.Contains(body, "meeting-1") {
		t.Errorf("response should contain meeting-1, got: %s", body)
	}
	if !strings.Contains(body, "meeting-2") {
		t.Errorf("response should contain meeting-2, got: %s", body)
	}
	if !strings.Contains(body, "data: ") {
		t.Errorf("response should be SSE framed, got: %s", body)
	}
}

func TestHandleSSE_StreamsUpdates(t *testing.T) {
	ms := store.NewMemoryStore()
	srv := newTestServer(ms, newMockWatcher())

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// give handler time to subscribe
	time.Sleep(50 * time.Millisecond)

	// send an update
	ms.Update(store.JobStatus{Key: "meeting-new", Status: "queued"})

	// give time for update to be written
	time.Sleep(50 * time.Millisecond)

	// cancel to stop handler
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not exit after context cancellation")
	}

	if !strings.Contains(rec.Body.String(), "meeting-new") {
		t.Errorf("response should contain streamed update meeting-new, got: %s", rec.Body.String())
	}
}

func TestHandleSSE_ServerShutdown(t *testing.T) {
	ms := store.NewMemoryStore()
	srv := newTestServer(ms, newMockWatcher())

	// when calling handleSSE directly (not through http.Server), we must
	// manually derive the request context from the server context to simulate
	// BaseContext behavior. In production, BaseContext does this automatically.
	serverCtx, serverCancel := context.WithCancel(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(serverCtx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// give handler time to subscribe and start waiting
	time.Sleep(50 * time.Millisecond)

	serverCancel()

	select {
	case <-done:
		// handler exited as expected
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after server shutdown")
	}
}

func TestHandleSSE_NoGoroutineLeaks(t *testing.T) {
	// allow existing goroutines to settle
	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	before := runtime.NumGoroutine()

	ms := store.NewMemoryStore()
	srv := newTestServer(ms, newMockWatcher())

	// run multiple SSE connections
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
			req = req.WithContext(ctx)
			rec := httptest.NewRecorder()

			srv.handleSSE(rec, req)
		}()
	}

	wg.Wait()

	// allow cleanup
	runtime.GC()
	time.Sleep(200 * time.Millisecond)

	after := runtime.NumGoroutine()
	if after > before+2 { // small tolerance for runtime variance
		t.Errorf("potential goroutine leak: before=%d, after=%d", before, after)
	}
}

func TestHandleSSE_SSENotSupported(t *testing.T) {
	srv := newTestServer(store.NewMemoryStore(), newMockWatcher())

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)

	// use a writer that doesn't support flushing
	w := &nonFlushWriter{header: make(http.Header)}

	srv.handleSSE(w, req)

	if w.statusCode != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.statusCode)
	}
}

// nonFlushWriter is an http.ResponseWriter that does not implement
// http.Flusher.
type nonFlushWriter struct {
	header     http.Header
	statusCode int
}

func (w *nonFlushWriter) Header() http.Header { return w.header }

func (w *nonFlushWriter) Write(b []byte) (int, error) { return len(b), nil }

func (w *nonFlushWriter) WriteHeader(code int) { w.statusCode = code }

// TestInstrument_CapturesStatus verifies the metrics middleware passes
// requests through and preserves the handler's status code.
func TestInstrument_CapturesStatus(t *testing.T) {
	srv := newTestServer(store.NewMemoryStore(), newMockWatcher())

	handler := srv.instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}
