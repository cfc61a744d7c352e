package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/dealerreport/internal/application/pipeline"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisMaxLen caps the outcome list when no limit is configured.
const DefaultRedisMaxLen = 1000

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisSink pushes JSON-encoded outcomes onto the head of a Redis list and
// trims the list to its newest maxLen entries.
type RedisSink struct {
	client *redis.Client
	key    string
	maxLen int64
}

// NewRedisSink creates a RedisSink writing to key. A maxLen of zero or less
// uses DefaultRedisMaxLen.
func NewRedisSink(client *redis.Client, key string, maxLen int64) *RedisSink {
	if maxLen <= 0 {
		maxLen = DefaultRedisMaxLen
	}
	return &RedisSink{client: client, key: key, maxLen: maxLen}
}

// RecordFailure implements pipeline.FailureSink
func (s *RedisSink) RecordFailure(ctx context.Context, record pipeline.FailureRecord) error {
	return s.push(ctx, failureOutcome(record))
}

// RecordResult implements pipeline.ResultSink
func (s *RedisSink) RecordResult(ctx context.Context, result pipeline.RunResult) error {
	return s.push(ctx, resultOutcome(result))
}

func (s *RedisSink) push(ctx context.Context, rec OutcomeRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode outcome of run %s: %w", rec.RunID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key, data)
		pipe.LTrim(ctx, s.key, 0, s.maxLen-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to push outcome of run %s: %w", rec.RunID, err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisSink) Close() error {
	return s.client.Close()
}
