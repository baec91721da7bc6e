package jobpulse

import (
	"errors"
	"log/slog"
	"time"
)

// registryConfig holds mutable state during Registry construction.
type registryConfig struct {
	interval     time.Duration
	maxTicks     int
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// RegistryOption is a function that configures a [Registry] during
// construction.
//
// RegistryOption implements the functional options pattern, allowing
// optional configuration to be passed to [NewRegistry] in a type-safe,
// extensible way. Options return an error if validation fails.
//
// Built-in options: [WithInterval], [WithMaxTicks], [WithFetchTimeout],
// [WithRegistryLogger].
type RegistryOption func(*registryConfig) error

// WithInterval sets the time between fetch attempts for every key.
//
// The first tick of a handle fires one interval after [Registry.Start].
// Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithInterval(d time.Duration) RegistryOption {
	return func(cfg *registryConfig) error {
		if d <= 0 {
			return errors.New("interval must be positive")
		}
		cfg.interval = d
		return nil
	}
}

// WithMaxTicks bounds the number of ticks a handle may run.
//
// When a handle's tick count reaches the budget without a terminal status,
// a synthesized timeout [StatusError] record is delivered and the handle is
// retired. Defaults to 120 (ten minutes at the default 5 second interval).
//
// Returns an error if n is less than 1.
func WithMaxTicks(n int) RegistryOption {
	return func(cfg *registryConfig) error {
		if n < 1 {
			return errors.New("max ticks must be at least 1")
		}
		cfg.maxTicks = n
		return nil
	}
}

// WithFetchTimeout bounds a single [Fetcher.Fetch] call.
//
// A fetch exceeding the timeout counts as a fetch failure and retires the
// handle. Defaults to the polling interval, so a slow fetch cannot overlap
// the next tick.
//
// Returns an error if the duration is zero or negative.
func WithFetchTimeout(d time.Duration) RegistryOption {
	return func(cfg *registryConfig) error {
		if d <= 0 {
			return errors.New("fetch timeout must be positive")
		}
		cfg.fetchTimeout = d
		return nil
	}
}

// WithRegistryLogger sets a custom [slog.Logger] for the registry.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(cfg *registryConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}
