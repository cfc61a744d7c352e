package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultBaseURL is the public dataset service.
const DefaultBaseURL = "http://api.coxauto-interview.com/api/"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	API       APIConfig
	Pipeline  PipelineConfig
	Log       LogConfig
	Telemetry TelemetryConfig
	Sink      SinkConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// APIConfig holds dataset service settings
type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// PipelineConfig holds pipeline run settings
type PipelineConfig struct {
	MaxConcurrency int           // per-batch in-flight limit, 0 = unbounded
	RunTimeout     time.Duration // deadline for a whole run, 0 = none
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
}

// SinkConfig holds outcome sink settings
type SinkConfig struct {
	Database DatabaseSinkConfig
	Redis    RedisSinkConfig
}

// DatabaseSinkConfig holds settings for persisting run outcomes
type DatabaseSinkConfig struct {
	Enabled bool
	Driver  string // sqlite, postgres
	DSN     string
}

// RedisSinkConfig holds settings for publishing run outcomes to Redis
type RedisSinkConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	Key      string
	MaxLen   int64 // newest entries kept in the list
}

// Addr returns host:port
func (r RedisSinkConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LoadFile loads configuration from path and the environment. An empty path
// searches ".", "./config" and "/etc/dealerreport" for dealerreport.toml.
// Priority (highest to lowest):
// 1. Environment variables with DEALERREPORT_ prefix (e.g., DEALERREPORT_API_BASE_URL)
// 2. The config file
// 3. Built-in defaults
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("dealerreport")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/dealerreport")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
			// Config file not found is OK, we'll use defaults and env vars
		}
	}

	v.SetEnvPrefix("DEALERREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		API: APIConfig{
			BaseURL:   v.GetString("api.base_url"),
			Timeout:   v.GetDuration("api.timeout"),
			UserAgent: v.GetString("api.user_agent"),
		},
		Pipeline: PipelineConfig{
			MaxConcurrency: v.GetInt("pipeline.max_concurrency"),
			RunTimeout:     v.GetDuration("pipeline.run_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
		Sink: SinkConfig{
			Database: DatabaseSinkConfig{
				Enabled: v.GetBool("sink.database.enabled"),
				Driver:  v.GetString("sink.database.driver"),
				DSN:     v.GetString("sink.database.dsn"),
			},
			Redis: RedisSinkConfig{
				Enabled:  v.GetBool("sink.redis.enabled"),
				Host:     v.GetString("sink.redis.host"),
				Port:     v.GetInt("sink.redis.port"),
				Password: v.GetString("sink.redis.password"),
				DB:       v.GetInt("sink.redis.db"),
				Key:      v.GetString("sink.redis.key"),
				MaxLen:   v.GetInt64("sink.redis.max_len"),
			},
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "dealerreport"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 30 * time.Second
	}
	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = "dealerreport/1.0"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		// stdout carries the confirmation text
		cfg.Log.Output = "stderr"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "dealerreport"
	}
	if cfg.Sink.Database.Driver == "" {
		cfg.Sink.Database.Driver = "sqlite"
	}
	if cfg.Sink.Database.DSN == "" && cfg.Sink.Database.Driver == "sqlite" {
		cfg.Sink.Database.DSN = "dealerreport.db"
	}
	if cfg.Sink.Redis.Host == "" {
		cfg.Sink.Redis.Host = "localhost"
	}
	if cfg.Sink.Redis.Port == 0 {
		cfg.Sink.Redis.Port = 6379
	}
	if cfg.Sink.Redis.Key == "" {
		cfg.Sink.Redis.Key = "dealerreport:outcomes"
	}
	if cfg.Sink.Redis.MaxLen == 0 {
		cfg.Sink.Redis.MaxLen = 1000
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url is invalid: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout cannot be negative")
	}
	if c.Pipeline.MaxConcurrency < 0 {
		return fmt.Errorf("pipeline.max_concurrency cannot be negative")
	}
	if c.Pipeline.RunTimeout < 0 {
		return fmt.Errorf("pipeline.run_timeout cannot be negative")
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.Sink.Database.Enabled {
		switch c.Sink.Database.Driver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("sink.database.driver must be sqlite or postgres, got %q", c.Sink.Database.Driver)
		}
		if c.Sink.Database.DSN == "" {
			return fmt.Errorf("sink.database.dsn is required when the database sink is enabled")
		}
	}
	if c.Sink.Redis.Enabled && c.Sink.Redis.Key == "" {
		return fmt.Errorf("sink.redis.key is required when the redis sink is enabled")
	}
	if c.Sink.Redis.MaxLen < 0 {
		return fmt.Errorf("sink.redis.max_len cannot be negative")
	}

	return nil
}
