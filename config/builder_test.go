package config

import (
	"testing"

	"github.com/whartley/jobpulse"
)

func TestBuildOptions(t *testing.T) {
	cfg, err := Parse([]byte(`
backend_url: http://127.0.0.1:5167
port: 9090
poll_interval: 2s
max_ticks: 30
watches:
  - key: meeting-1
    job_id: proc-1
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	svc, err := jobpulse.New(BuildOptions(cfg)...)
	if err != nil {
		t.Fatalf("New(BuildOptions()) error = %v", err)
	}

	if svc.BackendURL() != "http://127.0.0.1:5167" {
		t.Errorf("BackendURL() = %q", svc.BackendURL())
	}
	if svc.Port() != 9090 {
		t.Errorf("Port() = %d, want 9090", svc.Port())
	}
}

// TestBuildOptions_RoundTrip verifies that every field a valid config can
// carry survives conversion into a constructible Service.
func TestBuildOptions_RoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(`
backend_url: http://127.0.0.1:5167
poll_interval: 2s
fetch_timeout: 1s
max_ticks: 10
headers:
  Authorization: Bearer token
telemetry:
  enabled: true
  service_name: notes-poller
  otlp_endpoint: collector:4318
  otlp_insecure: true
watches:
  - key: meeting-1
  - key: meeting-2
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if _, err := jobpulse.New(BuildOptions(cfg)...); err != nil {
		t.Fatalf("New(BuildOptions()) error = %v", err)
	}
}

// TestBuildOptions_InvalidCombination verifies that configs that Parse would
// reject also fail at the SDK layer if constructed by hand, keeping the two
// validation paths consistent.
func TestBuildOptions_InvalidCombination(t *testing.T) {
	cfg := &Config{
		BackendURL:   "http://127.0.0.1:5167",
		Port:         8080,
		PollInterval: Duration(0), // SDK rejects a zero interval
		MaxTicks:     10,
	}

	if _, err := jobpulse.New(BuildOptions(cfg)...); err == nil {
		t.Error("New() error = nil, want error for zero interval")
	}
}
