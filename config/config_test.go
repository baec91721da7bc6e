package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Minimal(t *testing.T) {
	cfg, err := Parse([]byte(`backend_url: http://127.0.0.1:5167`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// defaults applied
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.PollInterval.Duration() != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.PollInterval.Duration())
	}
	if cfg.MaxTicks != 120 {
		t.Errorf("MaxTicks = %d, want 120", cfg.MaxTicks)
	}
	if cfg.FetchTimeout != 0 {
		t.Errorf("FetchTimeout = %v, want unset", cfg.FetchTimeout.Duration())
	}
}

func TestParse_Full(t *testing.T) {
	yml := `
backend_url: http://127.0.0.1:5167
port: 9090
poll_interval: 2s
max_ticks: 30
fetch_timeout: 1s

headers:
  Authorization: Bearer token

telemetry:
  enabled: true
  service_name: notes-poller
  otlp_endpoint: collector:4318
  otlp_insecure: true

watches:
  - key: meeting-1
    job_id: proc-1
  - key: meeting-2
`
	cfg, err := Parse([]byte(yml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.PollInterval.Duration() != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", cfg.PollInterval.Duration())
	}
	if cfg.MaxTicks != 30 {
		t.Errorf("MaxTicks = %d, want 30", cfg.MaxTicks)
	}
	if cfg.FetchTimeout.Duration() != time.Second {
		t.Errorf("FetchTimeout = %v, want 1s", cfg.FetchTimeout.Duration())
	}
	if cfg.Headers["Authorization"] != "Bearer token" {
		t.Errorf("Headers[Authorization] = %q", cfg.Headers["Authorization"])
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.ServiceName != "notes-poller" {
		t.Errorf("Telemetry = %+v", cfg.Telemetry)
	}
	if !cfg.Telemetry.OtlpInsecure || cfg.Telemetry.OtlpEndpoint != "collector:4318" {
		t.Errorf("Telemetry OTLP = %+v", cfg.Telemetry)
	}
	if len(cfg.Watches) != 2 {
		t.Fatalf("len(Watches) = %d, want 2", len(cfg.Watches))
	}
	if cfg.Watches[0].Key != "meeting-1" || cfg.Watches[0].JobID != "proc-1" {
		t.Errorf("Watches[0] = %+v", cfg.Watches[0])
	}
	if cfg.Watches[1].JobID != "" {
		t.Errorf("Watches[1].JobID = %q, want empty (generated later)", cfg.Watches[1].JobID)
	}
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yml     string
		wantErr string
	}{
		{
			name:    "missing backend_url",
			yml:     `port: 8080`,
			wantErr: "backend_url is required",
		},
		{
			name:    "bad scheme",
			yml:     `backend_url: ftp://example.com`,
			wantErr: "scheme must be http or https",
		},
		{
			name: "port out of range",
			yml: `backend_url: http://x
port: 70000`,
			wantErr: "port must be between",
		},
		{
			name: "interval too small",
			yml: `backend_url: http://x
poll_interval: 100ms`,
			wantErr: "poll_interval must be at least",
		},
		{
			name: "negative max_ticks",
			yml: `backend_url: http://x
max_ticks: -5`,
			wantErr: "max_ticks must be at least 1",
		},
		{
			name: "fetch_timeout exceeds interval",
			yml: `backend_url: http://x
poll_interval: 2s
fetch_timeout: 10s`,
			wantErr: "fetch_timeout must not exceed poll_interval",
		},
		{
			name: "invalid duration string",
			yml: `backend_url: http://x
poll_interval: sometimes`,
			wantErr: "invalid duration",
		},
		{
			name: "otlp without telemetry enabled",
			yml: `backend_url: http://x
telemetry:
  otlp_endpoint: collector:4318`,
			wantErr: "requires telemetry.enabled",
		},
		{
			name: "watch missing key",
			yml: `backend_url: http://x
watches:
  - job_id: proc-1`,
			wantErr: "key is required",
		},
		{
			name: "duplicate watch keys",
			yml: `backend_url: http://x
watches:
  - key: meeting-1
  - key: meeting-1`,
			wantErr: "duplicate key",
		},
		{
			name:    "not yaml",
			yml:     `{{{`,
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yml))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("JOBPULSE_TEST_HOST", "backend.internal")
	t.Setenv("JOBPULSE_TEST_TOKEN", "secret-token")

	yml := `
backend_url: http://${JOBPULSE_TEST_HOST}:5167
headers:
  Authorization: Bearer ${JOBPULSE_TEST_TOKEN}
  X-Region: ${JOBPULSE_TEST_UNSET:-eu-west}
`
	cfg, err := Parse([]byte(yml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.BackendURL != "http://backend.internal:5167" {
		t.Errorf("BackendURL = %q, want expanded host", cfg.BackendURL)
	}
	if cfg.Headers["Authorization"] != "Bearer secret-token" {
		t.Errorf("Headers[Authorization] = %q, want expanded token", cfg.Headers["Authorization"])
	}
	if cfg.Headers["X-Region"] != "eu-west" {
		t.Errorf("Headers[X-Region] = %q, want default eu-west", cfg.Headers["X-Region"])
	}
}

func TestParse_EnvExpansion_MissingVariable(t *testing.T) {
	yml := `backend_url: http://${JOBPULSE_TEST_DEFINITELY_UNSET}:5167`

	_, err := Parse([]byte(yml))
	if err == nil {
		t.Fatal("Parse() error = nil, want error for unset variable")
	}
	if !strings.Contains(err.Error(), "JOBPULSE_TEST_DEFINITELY_UNSET") {
		t.Errorf("Parse() error = %v, want it to name the variable", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
backend_url: http://127.0.0.1:5167
watches:
  - key: meeting-1
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BackendURL != "http://127.0.0.1:5167" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if len(cfg.Watches) != 1 {
		t.Errorf("len(Watches) = %d, want 1", len(cfg.Watches))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() error = nil, want error for missing file")
	}
}
