package pipeline

import (
	"context"
	"time"

	"github.com/example/dealerreport/internal/domain/dealer"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// FailureRecord describes a failed run. It is handed to the FailureSink once.
type FailureRecord struct {
	RunID      string           `json:"runId"`
	Stage      Stage            `json:"stage"`
	DatasetID  dealer.DatasetID `json:"datasetId"`
	Cause      string           `json:"cause"`
	OccurredAt time.Time        `json:"occurredAt"`
}

// RunResult describes a successful run. It is handed to the ResultSink once.
type RunResult struct {
	RunID       string           `json:"runId"`
	DatasetID   dealer.DatasetID `json:"datasetId"`
	Response    string           `json:"response"`
	Dealers     int              `json:"dealers"`
	Vehicles    int              `json:"vehicles"`
	CompletedAt time.Time        `json:"completedAt"`
}

// Outcome is the single result of Runner.Run. Exactly one of Result and
// Failure is set, matching Status.
type Outcome struct {
	Status  Status
	Result  *RunResult
	Failure *FailureRecord
	Err     error // the propagated error when Status is failed
}

// Response returns the confirmation text of a done run.
func (o Outcome) Response() string {
	if o.Result == nil {
		return ""
	}
	return o.Result.Response
}

// FailureSink receives the failure record of a failed run.
type FailureSink interface {
	RecordFailure(ctx context.Context, record FailureRecord) error
}

// ResultSink receives the result of a successful run.
type ResultSink interface {
	RecordResult(ctx context.Context, result RunResult) error
}

// API is the dataset service surface a run needs.
type API interface {
	FetchDatasetID(ctx context.Context) (dealer.DatasetID, error)
	FetchVehicleIDs(ctx context.Context, datasetID dealer.DatasetID) ([]dealer.VehicleID, error)
	FetchVehicle(ctx context.Context, datasetID dealer.DatasetID, id dealer.VehicleID) (dealer.VehicleRecord, error)
	FetchDealer(ctx context.Context, datasetID dealer.DatasetID, id dealer.DealerID) (dealer.DealerRecord, error)
	SubmitAnswer(ctx context.Context, datasetID dealer.DatasetID, report dealer.Report) (string, error)
	Close() error
}

// APIFactory opens the API client for one run. The runner closes it when the
// run ends.
type APIFactory func() (API, error)

// Metrics records fetch and run counters. *telemetry.PipelineMetrics
// satisfies it.
type Metrics interface {
	RecordFetch(ctx context.Context, entity string, d time.Duration, err error)
	RecordRun(ctx context.Context, status string)
}

type noopMetrics struct{}

func (noopMetrics) RecordFetch(context.Context, string, time.Duration, error) {}
func (noopMetrics) RecordRun(context.Context, string) {}
