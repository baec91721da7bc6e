// Package metrics provides polling and API metrics for jobpulse.
//
// The package exposes a [Recorder] facade that keeps lightweight in-memory
// tallies and, when telemetry is enabled via [Setup], mirrors them to
// OpenTelemetry instruments exported through Prometheus and optionally OTLP.
//
// Every Recorder method is safe on a nil receiver so instrumented code paths
// need no nil checks.
package metrics
