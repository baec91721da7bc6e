// Package backend provides the HTTP client for the summary-generation
// backend's status endpoint.
//
// This package is internal to jobpulse. It defines its own wire-level
// [Summary] type, decoupled from the public StatusRecord to avoid circular
// dependencies; the root package converts between the two.
//
// The client treats "no such job" (HTTP 404, or an idle status body) as a
// valid observation rather than a failure. Only transport errors, unexpected
// HTTP statuses, and undecodable bodies are reported as errors.
package backend
