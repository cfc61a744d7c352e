// Package telemetry wires OpenTelemetry tracing and metrics for report runs.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// shutdownTimeout bounds the final export on exit.
const shutdownTimeout = 10 * time.Second

// Config holds telemetry configuration.
type Config struct {
	Enabled           bool
	CollectorEndpoint string  // OTLP gRPC endpoint, e.g. "localhost:4317"
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	ServiceVersion    string
	Insecure          bool          // plaintext gRPC, development only
	ExportInterval    time.Duration // metric push interval, default 60s
}

// Telemetry owns the process-wide trace and meter providers. When disabled,
// tracers and meters come from the global no-op providers.
type Telemetry struct {
	logger  *zap.Logger
	tracing *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
}

// New sets up OTLP exporters for traces and metrics and installs them as the
// global providers.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Telemetry, error) {
	t := &Telemetry{logger: logger}
	if !cfg.Enabled {
		logger.Debug("Telemetry disabled, using no-op providers")
		return t, nil
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}
	t.tracing, err = newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, err
	}
	t.metrics, err = newMeterProvider(ctx, cfg, res)
	if err != nil {
		_ = t.tracing.Shutdown(ctx)
		return nil, err
	}

	otel.SetTracerProvider(t.tracing)
	otel.SetMeterProvider(t.metrics)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("OpenTelemetry initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
		zap.String("service_name", cfg.ServiceName),
	)
	return t, nil
}

// Enabled reports whether spans and metrics are exported.
func (t *Telemetry) Enabled() bool {
	return t.tracing != nil
}

// Tracer returns a named tracer.
func (t *Telemetry) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if t.tracing == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return t.tracing.Tracer(name, opts...)
}

// Meter returns a named meter.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t.metrics == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return t.metrics.Meter(name, opts...)
}

// Shutdown flushes and stops both providers. A one-shot run must call it
// before exiting or the last batch of spans is lost.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err := errors.Join(t.tracing.Shutdown(ctx), t.metrics.Shutdown(ctx))
	if err != nil {
		t.logger.Error("Error shutting down telemetry", zap.Error(err))
		return fmt.Errorf("failed to shutdown telemetry: %w", err)
	}
	t.logger.Debug("OpenTelemetry shutdown complete")
	return nil
}
