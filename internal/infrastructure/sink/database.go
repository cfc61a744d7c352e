package sink

import (
	"context"
	"fmt"

	"github.com/example/dealerreport/internal/application/pipeline"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DatabaseConfig selects the outcome database.
type DatabaseConfig struct {
	Driver string // sqlite, postgres
	DSN    string
}

// OpenDatabase connects to the outcome database and verifies the connection.
func OpenDatabase(cfg DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// DatabaseSink persists one OutcomeRecord row per run.
type DatabaseSink struct {
	db *gorm.DB
}

// NewDatabaseSink creates a DatabaseSink over db.
func NewDatabaseSink(db *gorm.DB) *DatabaseSink {
	return &DatabaseSink{db: db}
}

// Migrate creates or updates the outcome table.
func (s *DatabaseSink) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&OutcomeRecord{}); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", OutcomeRecord{}.TableName(), err)
	}
	return nil
}

// RecordFailure implements pipeline.FailureSink
func (s *DatabaseSink) RecordFailure(ctx context.Context, record pipeline.FailureRecord) error {
	return s.save(ctx, failureOutcome(record))
}

// RecordResult implements pipeline.ResultSink
func (s *DatabaseSink) RecordResult(ctx context.Context, result pipeline.RunResult) error {
	return s.save(ctx, resultOutcome(result))
}

func (s *DatabaseSink) save(ctx context.Context, rec OutcomeRecord) error {
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save outcome of run %s: %w", rec.RunID, err)
	}
	return nil
}

// Close closes the database connection
func (s *DatabaseSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
