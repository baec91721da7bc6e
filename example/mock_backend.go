package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// jobProgression walks a mock job through its lifecycle, one status per poll.
type jobProgression struct {
	statuses []string
	idx      int
}

// StartMockBackend runs a mock summary backend whose jobs advance one
// lifecycle step per status fetch: queued → processing → processing →
// completed. Call this in a goroutine before starting the service.
func StartMockBackend(addr string) {
	var (
		jobs = make(map[string]*jobProgression)
		mu   sync.Mutex
	)

	http.HandleFunc("GET /api/summary/{key}", func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")

		mu.Lock()
		job, exists := jobs[key]
		if !exists {
			steps := []string{"queued", "processing", "processing", "completed"}
			// make the second meeting take a little longer
			if strings.HasSuffix(key, "-2") {
				steps = []string{"queued", "queued", "processing", "processing", "processing", "completed"}
			}
			job = &jobProgression{statuses: steps}
			jobs[key] = job
		}
		status := job.statuses[job.idx]
		if job.idx < len(job.statuses)-1 {
			job.idx++
		}
		mu.Unlock()

		resp := map[string]any{
			"status":     status,
			"meeting_id": key,
		}
		if status == "completed" {
			resp["data"] = map[string]string{"markdown": "# Summary\n\nAll action items captured."}
			resp["end"] = time.Now().Format(time.RFC3339)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("mock backend error", "error", err)
	}
}
