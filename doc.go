// Package jobpulse tracks long-running, asynchronously produced artifacts by
// repeatedly polling a status endpoint until each job reaches a terminal
// state, forwarding every observed status to a caller-supplied sink.
//
// The core of the package is the [Registry]: a keyed store of polling
// workers that enforces at most one worker per key, replaces an existing
// worker when a key is re-registered, bounds every lifecycle with a tick
// budget, and guarantees race-safe cancellation: once [Registry.Stop]
// returns, the key's sink is never invoked again, even for a fetch already
// in flight.
//
// # Quick Start
//
// Poll a single job with a custom [Fetcher]:
//
//	reg, _ := jobpulse.NewRegistry(fetcher)
//	defer reg.Close()
//
//	reg.Start("meeting-42", "proc-1", func(rec jobpulse.StatusRecord) {
//	    fmt.Println(rec.Status, rec.Tick)
//	})
//
// Or run the full service, which polls an HTTP summary backend and serves
// job statuses over a JSON API with Server-Sent Events:
//
//	svc, _ := jobpulse.New(
//	    jobpulse.WithBackendURL("http://127.0.0.1:5167"),
//	    jobpulse.WithWatch("meeting-42", ""),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	svc.Start(ctx) // blocks until context is cancelled
//
// # Polling Protocol
//
// Each key ticks on a fixed interval (default 5 seconds). Per tick the
// worker fetches the job's status and classifies it:
//
//   - completed, error, failed: delivered and terminal
//   - idle after the first tick: terminal, the job finished or vanished
//     externally
//   - idle on the first tick, queued, processing: delivered, polling
//     continues
//   - fetch failure: delivered as an error record and terminal; failures
//     are never retried
//
// A handle that reaches its tick budget (default 120 ticks, ten minutes)
// without a terminal status delivers a synthesized timeout error. All
// job-level failures surface as data through the sink; Start and Stop never
// fail asynchronously.
//
// # Architecture
//
// jobpulse consists of several internal packages (under internal/):
//
//   - internal/backend: HTTP client for the summary status endpoint
//   - internal/store: in-memory latest-status storage with pub/sub
//   - internal/server: HTTP server with REST API and Server-Sent Events
//   - internal/metrics: OpenTelemetry metrics with Prometheus export
//
// The internal packages are not part of the public API and may change
// without notice.
package jobpulse
