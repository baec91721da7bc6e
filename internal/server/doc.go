// Package server provides the HTTP API for jobpulse.
//
// This package is internal to jobpulse. It serves the latest job statuses as
// JSON, streams updates over Server-Sent Events, and exposes watch/unwatch
// operations backed by a [Watcher] (implemented by the jobpulse Service).
//
// The server binds its listener synchronously so port conflicts surface at
// startup, derives all request contexts from the server context for clean
// shutdown, and guards SSE writes with deadlines so slow clients cannot leak
// handler goroutines.
package server
