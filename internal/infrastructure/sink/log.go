package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/example/dealerreport/internal/application/pipeline"
	"go.uber.org/zap"
)

// LogSink writes failures to the structured log and prints the confirmation
// text of a successful run to out.
type LogSink struct {
	logger *zap.Logger
	out    io.Writer
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger, out io.Writer) *LogSink {
	return &LogSink{logger: logger, out: out}
}

// RecordFailure implements pipeline.FailureSink
func (s *LogSink) RecordFailure(_ context.Context, record pipeline.FailureRecord) error {
	s.logger.Error("Dataset processing failed",
		zap.String("run_id", record.RunID),
		zap.String("stage", record.Stage.String()),
		zap.String("dataset_id", record.DatasetID.String()),
		zap.String("cause", record.Cause),
		zap.Time("occurred_at", record.OccurredAt),
	)
	return nil
}

// RecordResult implements pipeline.ResultSink
func (s *LogSink) RecordResult(_ context.Context, result pipeline.RunResult) error {
	s.logger.Info("Answer accepted",
		zap.String("run_id", result.RunID),
		zap.String("dataset_id", result.DatasetID.String()),
		zap.Int("dealers", result.Dealers),
		zap.Int("vehicles", result.Vehicles),
	)
	if s.out == nil {
		return nil
	}
	if _, err := fmt.Fprintln(s.out, result.Response); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}
