package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pscheid92/charades/internal/adapter/metrics"
	"github.com/pscheid92/charades/internal/platform/retry"
	goredis "github.com/redis/go-redis/v9"
)

var connectPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     4 * time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Redis not reachable yet, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

// NewClient connects to Redis with metrics and circuit breaker hooks installed.
// The breaker is returned so callers can expose its state.
func NewClient(ctx context.Context, redisURL string, m *metrics.RedisMetrics) (*goredis.Client, *CircuitBreakerHook, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := goredis.NewClient(opts)

	err = retry.Do(ctx, connectPolicy, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	breaker := NewCircuitBreakerHook(m)
	client.AddHook(NewMetricsHook(m))
	client.AddHook(breaker)

	slog.Info("Redis connected", "addr", opts.Addr, "db", opts.DB)
	return client, breaker, nil
}
