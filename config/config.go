// Package config provides YAML configuration parsing for jobpulse.
//
// This package enables running jobpulse as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	backend_url: http://127.0.0.1:5167
//	port: 8080
//	poll_interval: 5s
//	max_ticks: 120
//
//	headers:
//	  Authorization: Bearer ${API_TOKEN}
//
//	telemetry:
//	  enabled: true
//
//	watches:
//	  - key: meeting-42
//	    job_id: proc-1
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// minPollInterval is the minimum allowed polling interval for production
// configs. This prevents accidental DoS of the backend with overly
// aggressive polling.
const minPollInterval = 1 * time.Second

// Config is the root configuration structure for jobpulse.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// BackendURL is the base URL of the summary-generation backend.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	BackendURL string `yaml:"backend_url"`

	// Port is the HTTP API port. Defaults to 8080.
	Port int `yaml:"port"`

	// PollInterval is the time between status fetches for each key.
	// Accepts duration strings like "5s", "1m", "500ms". Defaults to 5s.
	PollInterval Duration `yaml:"poll_interval"`

	// MaxTicks bounds the number of fetch attempts per watched key.
	// Defaults to 120 (ten minutes at the default interval).
	MaxTicks int `yaml:"max_ticks"`

	// FetchTimeout bounds a single status fetch. Defaults to the poll
	// interval.
	FetchTimeout Duration `yaml:"fetch_timeout"`

	// Headers are custom HTTP headers sent with every status fetch.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Telemetry controls metrics export.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Watches are keys to begin polling at startup.
	Watches []WatchConfig `yaml:"watches"`
}

// TelemetryConfig controls OpenTelemetry metrics export.
type TelemetryConfig struct {
	// Enabled turns on the Prometheus /metrics endpoint.
	Enabled bool `yaml:"enabled"`

	// ServiceName labels exported metrics. Defaults to "jobpulse".
	ServiceName string `yaml:"service_name"`

	// OtlpEndpoint, when set, additionally exports metrics to an OTLP HTTP
	// collector.
	OtlpEndpoint string `yaml:"otlp_endpoint"`

	// OtlpInsecure disables TLS for the OTLP exporter connection.
	OtlpInsecure bool `yaml:"otlp_insecure"`
}

// WatchConfig is a key to begin polling at startup.
type WatchConfig struct {
	// Key is the unique identifier of the job's subject (e.g., a meeting
	// id).
	Key string `yaml:"key"`

	// JobID identifies the backend process. Optional; generated when
	// empty.
	JobID string `yaml:"job_id"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with
// environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before validation.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in BackendURL and Header values.
// Defaults are applied for Port (8080), PollInterval (5s), and MaxTicks
// (120).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(5 * time.Second)
	}
	if cfg.MaxTicks == 0 {
		cfg.MaxTicks = 120
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend_url is required")
	}
	expanded, err := expandEnvVars(c.BackendURL)
	if err != nil {
		return fmt.Errorf("backend_url: %w", err)
	}
	c.BackendURL = expanded

	parsedURL, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("invalid backend_url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("backend_url scheme must be http or https, got %q", parsedURL.Scheme)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}

	if c.MaxTicks < 1 {
		return fmt.Errorf("max_ticks must be at least 1, got %d", c.MaxTicks)
	}

	if c.FetchTimeout != 0 {
		if c.FetchTimeout.Duration() <= 0 {
			return fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout.Duration())
		}
		if c.FetchTimeout.Duration() > c.PollInterval.Duration() {
			return fmt.Errorf("fetch_timeout must not exceed poll_interval (%s), got %s",
				c.PollInterval.Duration(), c.FetchTimeout.Duration())
		}
	}

	for k, v := range c.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		c.Headers[k] = expanded
	}

	if c.Telemetry.OtlpEndpoint != "" && !c.Telemetry.Enabled {
		return fmt.Errorf("telemetry.otlp_endpoint requires telemetry.enabled: true")
	}

	seen := make(map[string]struct{}, len(c.Watches))
	for i, w := range c.Watches {
		if w.Key == "" {
			return fmt.Errorf("watches[%d]: key is required", i)
		}
		if _, dup := seen[w.Key]; dup {
			return fmt.Errorf("watches[%d]: duplicate key %q", i, w.Key)
		}
		seen[w.Key] = struct{}{}
	}

	return nil
}
