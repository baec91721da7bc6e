package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/whartley/jobpulse"
)

func main() {
	// start mock backend (see mock_backend.go)
	go StartMockBackend(":5167")
	time.Sleep(100 * time.Millisecond)

	svc, err := jobpulse.New(
		jobpulse.WithBackendURL("http://localhost:5167"),
		jobpulse.WithPort(8080),
		jobpulse.WithPolling(jobpulse.WithInterval(2*time.Second)),
		jobpulse.WithTelemetry("jobpulse-demo"),
		// two jobs progress independently; m2 finishes later than m1
		jobpulse.WithWatch("meeting-1", "proc-1"),
		jobpulse.WithWatch("meeting-2", "proc-2"),
		jobpulse.WithUpdateCallback(func(rec jobpulse.StatusRecord) {
			if rec.Terminal {
				fmt.Printf("  %s finished: %s\n", rec.Key, rec.Status)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  jobpulse demo")
	fmt.Println("  • statuses: curl http://localhost:8080/api/jobs")
	fmt.Println("  • live:     curl http://localhost:8080/api/events")
	fmt.Println("  • metrics:  curl http://localhost:8080/metrics")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		slog.Error("service error", "error", err)
		os.Exit(1)
	}
}
