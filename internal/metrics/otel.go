package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Attribute keys used on exported instruments.
const (
	AttrMethod   = "method"
	AttrPath     = "path"
	AttrStatus   = "status"
	AttrOutcome  = "outcome"
	AttrTerminal = "terminal"
)

// TelemetryConfig controls how metrics are exported.
type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OtlpEndpoint string
	OtlpInsecure bool
}

// Setup configures OpenTelemetry metrics with a Prometheus exporter and an
// optional OTLP HTTP exporter. It returns a Recorder, the Prometheus HTTP
// handler (nil when telemetry is disabled), and a shutdown function.
func Setup(ctx context.Context, cfg TelemetryConfig) (*Recorder, http.Handler, func(context.Context) error, error) {
	if !cfg.Enabled {
		return NewRecorder(), nil, func(context.Context) error { return nil }, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "jobpulse"
	}

	reg := prometheus.NewRegistry()
	promExp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, nil, nil, err
	}
	promHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	opts := []sdkmetric.Option{sdkmetric.WithReader(promExp)}

	if cfg.OtlpEndpoint != "" {
		otlpOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.OtlpEndpoint)}
		if cfg.OtlpInsecure {
			otlpOpts = append(otlpOpts, otlpmetrichttp.WithInsecure())
		}
		otlpExp, err := otlpmetrichttp.New(ctx, otlpOpts...)
		if err != nil {
			return nil, nil, nil, err
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(otlpExp, sdkmetric.WithInterval(15*time.Second)),
		))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, nil, nil, err
	}
	opts = append(opts, sdkmetric.WithResource(res))

	provider := sdkmetric.NewMeterProvider(opts...)

	inst, err := newOtelInstruments(provider)
	if err != nil {
		return nil, nil, nil, err
	}

	rec := newRecorder(inst)
	shutdown := func(c context.Context) error {
		return provider.Shutdown(c)
	}
	return rec, promHandler, shutdown, nil
}

type otelInstruments struct {
	ctx              context.Context
	ticks            metric.Int64Counter
	tickErrors       metric.Int64Counter
	tickLatencyMs    metric.Float64Histogram
	outcomes         metric.Int64Counter
	timeouts         metric.Int64Counter
	watches          metric.Int64Counter
	unwatches        metric.Int64Counter
	requests         metric.Int64Counter
	requestLatencyMs metric.Float64Histogram
}

func newOtelInstruments(provider metric.MeterProvider) (*otelInstruments, error) {
	meter := provider.Meter("jobpulse")

	ticks, err := meter.Int64Counter("poll_ticks_total")
	if err != nil {
		return nil, err
	}
	tickErrors, err := meter.Int64Counter("poll_tick_errors_total")
	if err != nil {
		return nil, err
	}
	tickLatency, err := meter.Float64Histogram("poll_tick_duration_ms")
	if err != nil {
		return nil, err
	}
	outcomes, err := meter.Int64Counter("poll_outcomes_total")
	if err != nil {
		return nil, err
	}
	timeouts, err := meter.Int64Counter("poll_timeouts_total")
	if err != nil {
		return nil, err
	}
	watches, err := meter.Int64Counter("watches_started_total")
	if err != nil {
		return nil, err
	}
	unwatches, err := meter.Int64Counter("watches_stopped_total")
	if err != nil {
		return nil, err
	}
	requests, err := meter.Int64Counter("http_requests_total")
	if err != nil {
		return nil, err
	}
	requestLatency, err := meter.Float64Histogram("http_request_duration_ms")
	if err != nil {
		return nil, err
	}

	return &otelInstruments{
		ctx:              context.Background(),
		ticks:            ticks,
		tickErrors:       tickErrors,
		tickLatencyMs:    tickLatency,
		outcomes:         outcomes,
		timeouts:         timeouts,
		watches:          watches,
		unwatches:        unwatches,
		requests:         requests,
		requestLatencyMs: requestLatency,
	}, nil
}

func (o *otelInstruments) recordTick(duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.ticks.Add(o.ctx, 1)
	o.tickLatencyMs.Record(o.ctx, float64(duration.Milliseconds()))
	if err != nil {
		o.tickErrors.Add(o.ctx, 1)
	}
}

func (o *otelInstruments) recordOutcome(status string, terminal bool) {
	if o == nil {
		return
	}
	o.outcomes.Add(o.ctx, 1, metric.WithAttributes(
		attribute.String(AttrOutcome, status),
		attribute.Bool(AttrTerminal, terminal),
	))
}

func (o *otelInstruments) recordTimeout() {
	if o == nil {
		return
	}
	o.timeouts.Add(o.ctx, 1)
}

func (o *otelInstruments) recordWatch() {
	if o == nil {
		return
	}
	o.watches.Add(o.ctx, 1)
}

func (o *otelInstruments) recordUnwatch() {
	if o == nil {
		return
	}
	o.unwatches.Add(o.ctx, 1)
}

func (o *otelInstruments) recordHTTPRequest(method, path string, status int, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrMethod, method),
		attribute.String(AttrPath, path),
		attribute.Int(AttrStatus, status),
	}
	o.requests.Add(o.ctx, 1, metric.WithAttributes(attrs...))
	o.requestLatencyMs.Record(o.ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}
