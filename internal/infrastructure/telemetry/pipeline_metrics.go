package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys shared by the pipeline metrics.
var (
	AttrEntity  = attribute.Key("entity")
	AttrOutcome = attribute.Key("outcome")
	AttrStatus  = attribute.Key("status")
)

// FetchDurationBuckets are bucket boundaries for single entity fetches (ms).
var FetchDurationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// PipelineMetrics records per-fetch and per-run counters for the report
// pipeline. A nil *PipelineMetrics records nothing.
type PipelineMetrics struct {
	fetches metric.Int64Counter
	latency metric.Float64Histogram
	runs    metric.Int64Counter
}

// NewPipelineMetrics registers the pipeline instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	fetches, err := meter.Int64Counter("dealerreport.fetch.count",
		metric.WithDescription("Requests issued against the dataset service"),
		metric.WithUnit("{fetch}"))
	if err != nil {
		return nil, fmt.Errorf("registering fetch counter: %w", err)
	}
	latency, err := meter.Float64Histogram("dealerreport.fetch.duration",
		metric.WithDescription("Latency of dataset service requests"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(FetchDurationBuckets...))
	if err != nil {
		return nil, fmt.Errorf("registering fetch histogram: %w", err)
	}
	runs, err := meter.Int64Counter("dealerreport.run.count",
		metric.WithDescription("Finished pipeline runs by status"),
		metric.WithUnit("{run}"))
	if err != nil {
		return nil, fmt.Errorf("registering run counter: %w", err)
	}
	return &PipelineMetrics{fetches: fetches, latency: latency, runs: runs}, nil
}

// RecordFetch counts one request for entity and records its latency.
func (m *PipelineMetrics) RecordFetch(ctx context.Context, entity string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.fetches.Add(ctx, 1, metric.WithAttributes(AttrEntity.String(entity), AttrOutcome.String(outcome)))
	m.latency.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(AttrEntity.String(entity)))
}

// RecordRun counts one finished run.
func (m *PipelineMetrics) RecordRun(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(AttrStatus.String(status)))
}
