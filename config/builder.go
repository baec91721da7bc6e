package config

import (
	"github.com/whartley/jobpulse"
)

// BuildOptions converts parsed configuration into SDK options for
// [jobpulse.New].
//
// The returned slice covers the backend, server, polling, telemetry, and
// startup-watch settings; callers may append further options (e.g. a
// logger) before constructing the Service.
func BuildOptions(cfg *Config) []jobpulse.Option {
	opts := []jobpulse.Option{
		jobpulse.WithBackendURL(cfg.BackendURL),
		jobpulse.WithPort(cfg.Port),
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, jobpulse.WithBackendHeaders(cfg.Headers))
	}

	pollOpts := []jobpulse.RegistryOption{
		jobpulse.WithInterval(cfg.PollInterval.Duration()),
		jobpulse.WithMaxTicks(cfg.MaxTicks),
	}
	if cfg.FetchTimeout != 0 {
		pollOpts = append(pollOpts, jobpulse.WithFetchTimeout(cfg.FetchTimeout.Duration()))
	}
	opts = append(opts, jobpulse.WithPolling(pollOpts...))

	if cfg.Telemetry.Enabled {
		opts = append(opts, jobpulse.WithTelemetry(cfg.Telemetry.ServiceName))
		if cfg.Telemetry.OtlpEndpoint != "" {
			opts = append(opts, jobpulse.WithOTLPEndpoint(cfg.Telemetry.OtlpEndpoint, cfg.Telemetry.OtlpInsecure))
		}
	}

	for _, w := range cfg.Watches {
		opts = append(opts, jobpulse.WithWatch(w.Key, w.JobID))
	}

	return opts
}
