// Package pipeline drives a single report run against the dataset service:
// dataset id, vehicle ids, vehicles, dealer ids, dealers, report, submission.
//
// Stages run strictly in order and the first failure ends the run. Every run
// produces exactly one Outcome, which is handed to exactly one sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/dealerreport/internal/application/collector"
	"github.com/example/dealerreport/internal/domain/dealer"
	"github.com/example/dealerreport/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracerName is the instrumentation scope of pipeline spans.
const TracerName = "github.com/example/dealerreport/internal/application/pipeline"

// Config holds run settings.
type Config struct {
	MaxConcurrency int           // per-batch in-flight limit, 0 = unbounded
	RunTimeout     time.Duration // whole-run deadline, 0 = none
}

// Runner executes report runs. A Runner is safe to reuse; every Run opens and
// closes its own API client.
type Runner struct {
	open     APIFactory
	failures FailureSink
	results  ResultSink
	config   Config
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  Metrics
	now      func() time.Time
	newRunID func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithConfig sets concurrency and timeout settings.
func WithConfig(cfg Config) Option {
	return func(r *Runner) { r.config = cfg }
}

// WithLogger sets the base logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithTracer sets the tracer used for run and stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithMetrics sets the fetch and run metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithRunIDFunc overrides run id generation.
func WithRunIDFunc(fn func() string) Option {
	return func(r *Runner) { r.newRunID = fn }
}

// NewRunner creates a Runner. A nil sink discards the records it would get.
func NewRunner(open APIFactory, failures FailureSink, results ResultSink, opts ...Option) *Runner {
	r := &Runner{
		open:     open,
		failures: failures,
		results:  results,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(TracerName),
		metrics:  noopMetrics{},
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = noopMetrics{}
	}
	return r
}

// run carries the state of one run from stage to stage.
type run struct {
	id         string
	datasetID  dealer.DatasetID
	vehicleIDs []dealer.VehicleID
	vehicles   []dealer.VehicleRecord
	dealerIDs  []dealer.DealerID
	dealers    []dealer.DealerRecord
	report     dealer.Report
	response   string
}

// Run executes one run and returns its outcome. It never returns without
// emitting the outcome to the matching sink.
func (r *Runner) Run(ctx context.Context) Outcome {
	st := &run{id: r.newRunID()}

	ctx = logger.WithContext(ctx, r.logger)
	ctx = logger.WithRunID(ctx, st.id)

	if r.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.RunTimeout)
		defer cancel()
	}

	ctx, span := r.tracer.Start(ctx, "dealerreport.run",
		trace.WithAttributes(attribute.String("dealerreport.run_id", st.id)))
	defer span.End()

	logger.L(ctx).Info("Run started",
		zap.Int("max_concurrency", r.config.MaxConcurrency),
		zap.Duration("run_timeout", r.config.RunTimeout),
	)

	if err := r.execute(ctx, st); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		return r.fail(ctx, st, err)
	}

	span.SetAttributes(attribute.String("dealerreport.dataset_id", st.datasetID.String()))
	span.SetStatus(codes.Ok, "")
	return r.succeed(ctx, st)
}

func (r *Runner) execute(ctx context.Context, st *run) error {
	api, err := r.open()
	if err != nil {
		return &StageError{Stage: StageDatasetID, Err: fmt.Errorf("opening dataset client: %w", err)}
	}
	defer func() {
		if err := api.Close(); err != nil {
			logger.L(ctx).Warn("Failed to release dataset client", zap.Error(err))
		}
	}()

	err = r.stage(ctx, st, StageDatasetID, func(ctx context.Context) error {
		id, err := timed(ctx, r.metrics, "dataset", func() (dealer.DatasetID, error) {
			return api.FetchDatasetID(ctx)
		})
		if err != nil {
			return err
		}
		st.datasetID = id
		return nil
	})
	if err != nil {
		return err
	}
	ctx = logger.WithDatasetID(ctx, st.datasetID.String())

	err = r.stage(ctx, st, StageVehicleIDs, func(ctx context.Context) error {
		ids, err := timed(ctx, r.metrics, "vehicle_ids", func() ([]dealer.VehicleID, error) {
			return api.FetchVehicleIDs(ctx, st.datasetID)
		})
		if err != nil {
			return err
		}
		st.vehicleIDs = ids
		return nil
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, st, StageVehicles, func(ctx context.Context) error {
		fetch := func(ctx context.Context, id dealer.VehicleID) (dealer.VehicleRecord, error) {
			return timed(ctx, r.metrics, "vehicle", func() (dealer.VehicleRecord, error) {
				return api.FetchVehicle(ctx, st.datasetID, id)
			})
		}
		vehicles, err := collector.Collect(ctx, st.vehicleIDs, fetch, r.batchOptions(StageVehicles)...)
		if err != nil {
			return err
		}
		st.vehicles = vehicles
		return nil
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, st, StageDealerIDs, func(ctx context.Context) error {
		st.dealerIDs = dealer.DistinctDealerIDs(st.vehicles)
		return nil
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, st, StageDealers, func(ctx context.Context) error {
		fetch := func(ctx context.Context, id dealer.DealerID) (dealer.DealerRecord, error) {
			return timed(ctx, r.metrics, "dealer", func() (dealer.DealerRecord, error) {
				return api.FetchDealer(ctx, st.datasetID, id)
			})
		}
		dealers, err := collector.Collect(ctx, st.dealerIDs, fetch, r.batchOptions(StageDealers)...)
		if err != nil {
			return err
		}
		st.dealers = dealers
		return nil
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, st, StageReport, func(ctx context.Context) error {
		report := dealer.BuildReport(st.dealers, st.vehicles)
		if err := report.CheckCoverage(st.vehicles); err != nil {
			return err
		}
		st.report = report
		return nil
	})
	if err != nil {
		return err
	}

	return r.stage(ctx, st, StageSubmit, func(ctx context.Context) error {
		resp, err := timed(ctx, r.metrics, "answer", func() (string, error) {
			return api.SubmitAnswer(ctx, st.datasetID, st.report)
		})
		if err != nil {
			return err
		}
		st.response = resp
		return nil
	})
}

// stage runs fn inside its own span and attributes any error to stage.
func (r *Runner) stage(ctx context.Context, st *run, stage Stage, fn func(ctx context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "dealerreport."+stage.String())
	defer span.End()

	started := time.Now()
	err := ctx.Err()
	if err == nil {
		err = fn(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage.String()+" failed")
		return &StageError{Stage: stage, DatasetID: st.datasetID, Err: err}
	}

	logger.L(ctx).Debug("Stage complete",
		zap.String("stage", stage.String()),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("vehicles", len(st.vehicles)),
		zap.Int("dealers", len(st.dealers)),
	)
	return nil
}

func (r *Runner) batchOptions(stage Stage) []collector.Option {
	return []collector.Option{
		collector.WithName(stage.String()),
		collector.WithLimit(r.config.MaxConcurrency),
		collector.WithObserver(func(ctx context.Context, batch string, err error) {
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.L(ctx).Debug("Fetch failed", zap.String("batch", batch), zap.Error(err))
			}
		}),
	}
}

func (r *Runner) fail(ctx context.Context, st *run, err error) Outcome {
	stage, _ := StageOf(err)
	cause := err
	var se *StageError
	if errors.As(err, &se) {
		cause = se.Err
	}

	record := FailureRecord{
		RunID:      st.id,
		Stage:      stage,
		DatasetID:  st.datasetID,
		Cause:      cause.Error(),
		OccurredAt: r.now().UTC(),
	}

	logger.L(ctx).Error("Run failed",
		zap.String("stage", stage.String()),
		zap.String("dataset_id", st.datasetID.String()),
		zap.String("cause", record.Cause),
	)

	// The run context may already be cancelled; the record still goes out.
	sinkCtx := context.WithoutCancel(ctx)
	if r.failures != nil {
		if serr := r.failures.RecordFailure(sinkCtx, record); serr != nil {
			logger.L(ctx).Warn("Failure sink rejected record", zap.Error(serr))
		}
	}
	r.metrics.RecordRun(sinkCtx, string(StatusFailed))

	return Outcome{Status: StatusFailed, Failure: &record, Err: err}
}

func (r *Runner) succeed(ctx context.Context, st *run) Outcome {
	result := RunResult{
		RunID:       st.id,
		DatasetID:   st.datasetID,
		Response:    st.response,
		Dealers:     len(st.report.Dealers),
		Vehicles:    st.report.VehicleCount(),
		CompletedAt: r.now().UTC(),
	}

	logger.L(ctx).Info("Run complete",
		zap.Int("dealers", result.Dealers),
		zap.Int("vehicles", result.Vehicles),
	)

	sinkCtx := context.WithoutCancel(ctx)
	if r.results != nil {
		if serr := r.results.RecordResult(sinkCtx, result); serr != nil {
			logger.L(ctx).Warn("Result sink rejected record", zap.Error(serr))
		}
	}
	r.metrics.RecordRun(sinkCtx, string(StatusDone))

	return Outcome{Status: StatusDone, Result: &result}
}

// timed calls fn and records its latency under entity.
func timed[T any](ctx context.Context, m Metrics, entity string, fn func() (T, error)) (T, error) {
	started := time.Now()
	v, err := fn()
	m.RecordFetch(ctx, entity, time.Since(started), err)
	return v, err
}
