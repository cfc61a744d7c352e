// Package sink delivers run outcomes to the places operators look for them:
// the process log, a database table and a Redis list.
package sink

import (
	"context"
	"errors"
	"time"

	"github.com/example/dealerreport/internal/application/pipeline"
)

// Sink accepts both outcome kinds.
type Sink interface {
	pipeline.FailureSink
	pipeline.ResultSink
}

// OutcomeRecord is the persisted form of one run outcome.
type OutcomeRecord struct {
	RunID      string    `gorm:"primaryKey;size:36" json:"runId"`
	Status     string    `gorm:"size:16;not null;index" json:"status"`
	Stage      string    `gorm:"size:32" json:"stage,omitempty"`
	DatasetID  string    `gorm:"size:128;index" json:"datasetId,omitempty"`
	Detail     string    `gorm:"type:text" json:"detail"` // failure cause or confirmation text
	Dealers    int       `json:"dealers"`
	Vehicles   int       `json:"vehicles"`
	RecordedAt time.Time `gorm:"not null" json:"recordedAt"`
}

// TableName specifies the table name for GORM
func (OutcomeRecord) TableName() string {
	return "run_outcomes"
}

func failureOutcome(record pipeline.FailureRecord) OutcomeRecord {
	return OutcomeRecord{
		RunID:      record.RunID,
		Status:     string(pipeline.StatusFailed),
		Stage:      record.Stage.String(),
		DatasetID:  record.DatasetID.String(),
		Detail:     record.Cause,
		RecordedAt: record.OccurredAt,
	}
}

func resultOutcome(result pipeline.RunResult) OutcomeRecord {
	return OutcomeRecord{
		RunID:      result.RunID,
		Status:     string(pipeline.StatusDone),
		DatasetID:  result.DatasetID.String(),
		Detail:     result.Response,
		Dealers:    result.Dealers,
		Vehicles:   result.Vehicles,
		RecordedAt: result.CompletedAt,
	}
}

// MultiSink hands every outcome to each of its sinks in order. All sinks are
// tried; their errors are joined.
type MultiSink []Sink

// NewMultiSink creates a MultiSink, skipping nil entries.
func NewMultiSink(sinks ...Sink) MultiSink {
	m := make(MultiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

// RecordFailure implements pipeline.FailureSink
func (m MultiSink) RecordFailure(ctx context.Context, record pipeline.FailureRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordFailure(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordResult implements pipeline.ResultSink
func (m MultiSink) RecordResult(ctx context.Context, result pipeline.RunResult) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordResult(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
