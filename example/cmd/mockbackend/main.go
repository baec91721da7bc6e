// Standalone mock summary backend for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockbackend
//
// Then in another terminal:
//
//	go run ./cmd/jobpulse serve -c example/config.yaml
//
// or:
//
//	go run ./cmd/jobpulse watch meeting-42 -b http://127.0.0.1:5167 --interval 2s
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"
)

func main() {
	fmt.Println("Mock summary backend starting on :5167")
	fmt.Println("Jobs walk through: queued → processing → completed")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		states   = make(map[string]*mockState)
		mu       sync.Mutex
		statuses = []string{"queued", "processing", "processing", "completed"}
	)

	http.HandleFunc("GET /api/summary/{key}", func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("key")

		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		mu.Lock()
		state, exists := states[key]
		if !exists {
			state = &mockState{startedAt: time.Now()}
			states[key] = state
			slog.Info("job registered", "key", key)
		}

		status := statuses[state.statusIdx]
		if state.statusIdx < len(statuses)-1 {
			state.statusIdx++
			if statuses[state.statusIdx] != status {
				slog.Info("status change", "key", key, "from", status, "to", statuses[state.statusIdx])
			}
		}
		started := state.startedAt
		mu.Unlock()

		resp := map[string]any{
			"status":     status,
			"meeting_id": key,
			"start":      started.Format(time.RFC3339),
		}
		if status == "completed" {
			resp["data"] = map[string]string{"markdown": "# Summary\n\nAll action items captured."}
			resp["end"] = time.Now().Format(time.RFC3339)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	if err := http.ListenAndServe(":5167", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

type mockState struct {
	statusIdx int
	startedAt time.Time
}
