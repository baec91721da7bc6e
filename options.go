package jobpulse

import (
	"errors"
	"log/slog"

	"github.com/whartley/jobpulse/internal/metrics"
)

// svcConfig holds mutable state during Service construction.
type svcConfig struct {
	backendURL   string
	headers      map[string]string
	port         int
	logger       *slog.Logger
	telemetry    metrics.TelemetryConfig
	callbacks    []UpdateFunc
	watches      []watchSpec
	registryOpts []RegistryOption
}

// Option is a function that configures a [Service] instance during
// construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithBackendURL], [WithBackendHeaders], [WithPort],
// [WithLogger], [WithTelemetry], [WithOTLPEndpoint], [WithUpdateCallback],
// [WithWatch], [WithPolling].
type Option func(*svcConfig) error

// WithBackendURL sets the base URL of the summary-generation backend whose
// status endpoint is polled.
//
// Required. The URL must be absolute with an http or https scheme; it is
// validated when the backend client is constructed.
//
// Example:
//
//	svc, err := jobpulse.New(
//	    jobpulse.WithBackendURL("http://127.0.0.1:5167"),
//	)
func WithBackendURL(rawURL string) Option {
	return func(cfg *svcConfig) error {
		if rawURL == "" {
			return errors.New("backend URL cannot be empty")
		}
		cfg.backendURL = rawURL
		return nil
	}
}

// WithBackendHeaders sets custom HTTP headers sent with every status fetch.
//
// Use this for backends that require authentication. The map is copied;
// later mutation by the caller has no effect.
func WithBackendHeaders(headers map[string]string) Option {
	return func(cfg *svcConfig) error {
		if len(headers) == 0 {
			return nil
		}
		if cfg.headers == nil {
			cfg.headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			cfg.headers[k] = v
		}
		return nil
	}
}

// WithPort sets the HTTP port for the API server.
//
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *svcConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Service.
//
// The logger is also used by the registry unless overridden via
// [WithPolling] and [WithRegistryLogger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *svcConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTelemetry enables OpenTelemetry metrics with a Prometheus exporter.
//
// When enabled, the API server exposes /metrics. serviceName labels the
// exported metrics; it defaults to "jobpulse" when empty.
func WithTelemetry(serviceName string) Option {
	return func(cfg *svcConfig) error {
		cfg.telemetry.Enabled = true
		cfg.telemetry.ServiceName = serviceName
		return nil
	}
}

// WithOTLPEndpoint additionally exports metrics to an OTLP HTTP collector.
//
// Only effective together with [WithTelemetry]. insecure disables TLS for
// the exporter connection.
//
// Returns an error if the endpoint is empty.
func WithOTLPEndpoint(endpoint string, insecure bool) Option {
	return func(cfg *svcConfig) error {
		if endpoint == "" {
			return errors.New("OTLP endpoint cannot be empty")
		}
		cfg.telemetry.OtlpEndpoint = endpoint
		cfg.telemetry.OtlpInsecure = insecure
		return nil
	}
}

// WithUpdateCallback registers a function called with every observed status
// for every watched key, including terminal ones.
//
// Multiple callbacks may be registered by calling WithUpdateCallback
// multiple times; they execute in registration order, after the status has
// been persisted to the store.
//
// IMPORTANT: Callbacks run on the key's polling goroutine and must be
// non-blocking; they must not call back into the Service or Registry
// synchronously. Panics within callbacks are recovered and logged.
//
// Example:
//
//	svc, err := jobpulse.New(
//	    jobpulse.WithBackendURL(url),
//	    jobpulse.WithUpdateCallback(func(rec jobpulse.StatusRecord) {
//	        if rec.Status == jobpulse.StatusFailed {
//	            log.Printf("ALERT: job for %s failed", rec.Key)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithUpdateCallback(cb UpdateFunc) Option {
	return func(cfg *svcConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}

// WithWatch configures a key to start polling as soon as the Service
// starts. jobID may be empty, in which case one is generated.
//
// Can be called multiple times for multiple keys. Keys must be unique.
func WithWatch(key, jobID string) Option {
	return func(cfg *svcConfig) error {
		cfg.watches = append(cfg.watches, watchSpec{key: key, jobID: jobID})
		return nil
	}
}

// WithPolling forwards options to the Service's internal [Registry],
// controlling the tick interval, tick budget, and fetch timeout.
//
// Example:
//
//	svc, err := jobpulse.New(
//	    jobpulse.WithBackendURL(url),
//	    jobpulse.WithPolling(
//	        jobpulse.WithInterval(2*time.Second),
//	        jobpulse.WithMaxTicks(300),
//	    ),
//	)
func WithPolling(opts ...RegistryOption) Option {
	return func(cfg *svcConfig) error {
		cfg.registryOpts = append(cfg.registryOpts, opts...)
		return nil
	}
}
