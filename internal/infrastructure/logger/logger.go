// Package logger builds the process zap logger and carries it, enriched with
// run and trace identifiers, through contexts.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormat is the layout used for log timestamps
const DefaultTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, or file path
	TimeFormat string
}

// DefaultConfig is the interactive setup: colored console lines on stderr,
// leaving stdout to the confirmation text.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "console",
		Output:     "stderr",
		TimeFormat: DefaultTimeFormat,
	}
}

// New creates a logger from cfg. A nil cfg means DefaultConfig. The returned
// close function flushes the logger and releases a file output; the logger
// must not be used after it.
func New(cfg *Config) (*zap.Logger, func() error, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	output := cfg.Output
	if output == "" {
		output = "stderr"
	}
	sink, closeSink, err := zap.Open(output)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log output %q: %w", output, err)
	}

	core := zapcore.NewCore(encoderFor(cfg), sink, parseLevel(cfg.Level))
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return logger, func() error {
		err := ignoreTerminalSync(logger.Sync())
		closeSink()
		return err
	}, nil
}

// parseLevel maps a configured level name onto a zap level. Unknown names
// fall back to info.
func parseLevel(level string) zapcore.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil || lvl > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return lvl
}

func encoderFor(cfg *Config) zapcore.Encoder {
	layout := cfg.TimeFormat
	if layout == "" {
		layout = DefaultTimeFormat
	}

	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(layout)
	ec.EncodeDuration = zapcore.MillisDurationEncoder

	if cfg.Format == "console" {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// ignoreTerminalSync drops the error terminals return for fsync.
func ignoreTerminalSync(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl") {
		return nil
	}
	return err
}
