// Package main provides the CLI entry point for the dealer report run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/dealerreport/internal/application/pipeline"
	"github.com/example/dealerreport/internal/infrastructure/config"
	"github.com/example/dealerreport/internal/infrastructure/datasetapi"
	"github.com/example/dealerreport/internal/infrastructure/httpclient"
	"github.com/example/dealerreport/internal/infrastructure/logger"
	"github.com/example/dealerreport/internal/infrastructure/sink"
	"github.com/example/dealerreport/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Version information (populated at build time)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Exit codes
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dealerreport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to a TOML configuration file")
	showVersion := fs.Bool("version", false, "Show version information")
	fs.Usage = func() { printUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return exitUsage
	}
	if *showVersion {
		fmt.Fprintf(stdout, "dealerreport %s (built %s, commit %s)\n", version, buildTime, gitCommit)
		return exitOK
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitFailed
	}

	log, closeLog, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return exitFailed
	}
	defer func() {
		_ = closeLog()
	}()

	log.Debug("Starting dealerreport",
		zap.String("version", version),
		zap.String("env", cfg.App.Env),
		zap.String("base_url", cfg.API.BaseURL),
	)

	telCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}
	tel, err := telemetry.New(ctx, telCfg, log)
	if err != nil {
		log.Error("Failed to initialize telemetry", zap.Error(err))
		return exitFailed
	}
	defer func() {
		_ = tel.Shutdown(context.WithoutCancel(ctx))
	}()

	metrics, err := telemetry.NewPipelineMetrics(tel.Meter(pipeline.TracerName))
	if err != nil {
		log.Error("Failed to register pipeline metrics", zap.Error(err))
		return exitFailed
	}

	outcomes, closeSinks := buildSinks(ctx, cfg, log, stdout)
	defer closeSinks()

	open := func() (pipeline.API, error) {
		transport, err := httpclient.New(httpclient.Config{
			BaseURL:   cfg.API.BaseURL,
			Timeout:   cfg.API.Timeout,
			UserAgent: cfg.API.UserAgent,
		})
		if err != nil {
			return nil, err
		}
		return datasetapi.NewClient(transport), nil
	}

	runner := pipeline.NewRunner(open, outcomes, outcomes,
		pipeline.WithConfig(pipeline.Config{
			MaxConcurrency: cfg.Pipeline.MaxConcurrency,
			RunTimeout:     cfg.Pipeline.RunTimeout,
		}),
		pipeline.WithLogger(log),
		pipeline.WithTracer(tel.Tracer(pipeline.TracerName)),
		pipeline.WithMetrics(metrics),
	)

	if out := runner.Run(ctx); out.Status != pipeline.StatusDone {
		return exitFailed
	}
	return exitOK
}

// buildSinks assembles the outcome sinks. The log sink is always present; an
// enabled database or Redis sink that cannot be reached is skipped with a
// warning so the outcome still reaches the log.
func buildSinks(ctx context.Context, cfg *config.Config, log *zap.Logger, stdout io.Writer) (sink.MultiSink, func()) {
	sinks := []sink.Sink{sink.NewLogSink(log, stdout)}
	var closers []io.Closer

	if cfg.Sink.Database.Enabled {
		db, err := sink.OpenDatabase(sink.DatabaseConfig{
			Driver: cfg.Sink.Database.Driver,
			DSN:    cfg.Sink.Database.DSN,
		})
		if err != nil {
			log.Warn("Database sink unavailable", zap.Error(err))
		} else {
			ds := sink.NewDatabaseSink(db)
			closers = append(closers, ds)
			if err := ds.Migrate(ctx); err != nil {
				log.Warn("Database sink unavailable", zap.Error(err))
			} else {
				sinks = append(sinks, ds)
			}
		}
	}

	if cfg.Sink.Redis.Enabled {
		client, err := sink.OpenRedis(ctx, sink.RedisConfig{
			Addr:     cfg.Sink.Redis.Addr(),
			Password: cfg.Sink.Redis.Password,
			DB:       cfg.Sink.Redis.DB,
		})
		if err != nil {
			log.Warn("Redis sink unavailable", zap.Error(err))
		} else {
			rs := sink.NewRedisSink(client, cfg.Sink.Redis.Key, cfg.Sink.Redis.MaxLen)
			closers = append(closers, rs)
			sinks = append(sinks, rs)
		}
	}

	return sink.NewMultiSink(sinks...), func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.Warn("Failed to close sink", zap.Error(err))
			}
		}
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `dealerreport - dataset dealer report runner

USAGE:
    dealerreport [options]

DESCRIPTION:
    Fetches a dataset from the dataset service, collects its vehicles and
    dealers concurrently, joins them into a dealer report and submits it.
    The service's confirmation text is printed to stdout; logs go to stderr.

OPTIONS:
    -config <path>    TOML configuration file (default: dealerreport.toml in
                      ., ./config or /etc/dealerreport)
    -version          Show version information
    -help, -h         Show this help message

ENVIRONMENT:
    Every setting can be overridden with DEALERREPORT_<SECTION>_<KEY>,
    e.g. DEALERREPORT_API_BASE_URL or DEALERREPORT_PIPELINE_MAX_CONCURRENCY.

EXIT STATUS:
    0    answer submitted
    1    run failed
    2    invalid usage
`)
}
