package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// RunIDKey is the context key for the pipeline run id
	RunIDKey contextKey = "run_id"
	// DatasetIDKey is the context key for the dataset id
	DatasetIDKey contextKey = "dataset_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, returns a no-op logger if not found
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRunID adds the run id to context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithDatasetID adds the dataset id to context
func WithDatasetID(ctx context.Context, datasetID string) context.Context {
	return context.WithValue(ctx, DatasetIDKey, datasetID)
}

// GetRunID retrieves the run id from context
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// GetDatasetID retrieves the dataset id from context
func GetDatasetID(ctx context.Context) string {
	if datasetID, ok := ctx.Value(DatasetIDKey).(string); ok {
		return datasetID
	}
	return ""
}

// L returns the context's logger enriched with run_id, dataset_id and,
// when a span is active, trace_id and span_id.
//
// Usage: logger.L(ctx).Info("message", zap.String("key", "value"))
func L(ctx context.Context) *zap.Logger {
	l := FromContext(ctx)

	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		l = l.With(
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if runID := GetRunID(ctx); runID != "" {
		l = l.With(zap.String("run_id", runID))
	}
	if datasetID := GetDatasetID(ctx); datasetID != "" {
		l = l.With(zap.String("dataset_id", datasetID))
	}
	return l
}
