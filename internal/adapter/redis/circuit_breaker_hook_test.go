package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/charades/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(ctx context.Context, cmd goredis.Cmder) error {
	return errors.New("connection refused")
}

func succeeding(ctx context.Context, cmd goredis.Cmder) error {
	return nil
}

func testBreaker(m *metrics.RedisMetrics) *CircuitBreakerHook {
	return newCircuitBreakerHook(gobreaker.Settings{
		Name:        "redis-test",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     50 * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 3 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	}, m)
}

func TestCircuitBreakerHook_NormalOperation(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	ctx := context.Background()

	process := hook.ProcessHook(succeeding)
	for range 10 {
		assert.NoError(t, process(ctx, goredis.NewStringCmd(ctx, "get", "key")))
	}

	assert.Equal(t, gobreaker.StateClosed, hook.GetState())
	counts := hook.GetCounts()
	assert.Equal(t, uint32(10), counts.Requests)
	assert.Equal(t, uint32(0), counts.TotalFailures)
}

func TestCircuitBreakerHook_StaysClosedBelowThreshold(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	ctx := context.Background()

	process := hook.ProcessHook(failing)
	for range 4 {
		err := process(ctx, goredis.NewStringCmd(ctx, "get", "key"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	assert.Equal(t, gobreaker.StateClosed, hook.GetState())
}

func TestCircuitBreakerHook_OpensAndFailsFast(t *testing.T) {
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	hook := NewCircuitBreakerHook(m)
	ctx := context.Background()

	process := hook.ProcessHook(failing)
	for range 5 {
		_ = process(ctx, goredis.NewStringCmd(ctx, "get", "key"))
	}
	require.Equal(t, gobreaker.StateOpen, hook.GetState())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CircuitBreakerState))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitStateChanges.WithLabelValues("open")))

	called := false
	process = hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
		called = true
		return nil
	})
	cmd := goredis.NewStringSliceCmd(ctx, "smembers", "key")
	err := process(ctx, cmd)

	require.Error(t, err)
	assert.False(t, called, "redis must not be called while the circuit is open")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.ErrorIs(t, cmd.Err(), gobreaker.ErrOpenState, "rejection must be visible on the command")
}

func TestCircuitBreakerHook_RecoversThroughHalfOpen(t *testing.T) {
	hook := testBreaker(nil)
	ctx := context.Background()

	failingProcess := hook.ProcessHook(failing)
	for range 3 {
		_ = failingProcess(ctx, goredis.NewStringCmd(ctx, "get", "key"))
	}
	require.Equal(t, gobreaker.StateOpen, hook.GetState())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, hook.GetState())

	require.NoError(t, hook.ProcessHook(succeeding)(ctx, goredis.NewStringCmd(ctx, "get", "key")))
	assert.Equal(t, gobreaker.StateClosed, hook.GetState())
}

func TestCircuitBreakerHook_NilReplyIsNotAFailure(t *testing.T) {
	hook := testBreaker(nil)
	ctx := context.Background()

	process := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
		return goredis.Nil
	})
	for range 5 {
		err := process(ctx, goredis.NewStringCmd(ctx, "get", "missing"))
		assert.ErrorIs(t, err, goredis.Nil)
	}

	assert.Equal(t, gobreaker.StateClosed, hook.GetState())
	assert.Equal(t, uint32(0), hook.GetCounts().TotalFailures)
}

func TestCircuitBreakerHook_PipelineRejectionMarksEveryCommand(t *testing.T) {
	hook := testBreaker(nil)
	ctx := context.Background()

	failingPipe := hook.ProcessPipelineHook(func(ctx context.Context, cmds []goredis.Cmder) error {
		return errors.New("broken pipe")
	})
	for range 3 {
		_ = failingPipe(ctx, nil)
	}
	require.Equal(t, gobreaker.StateOpen, hook.GetState())

	cmds := []goredis.Cmder{
		goredis.NewIntCmd(ctx, "sadd", "key", "a"),
		goredis.NewBoolCmd(ctx, "expire", "key", 60),
	}
	err := hook.ProcessPipelineHook(func(ctx context.Context, cmds []goredis.Cmder) error {
		t.Fatal("pipeline must not run while the circuit is open")
		return nil
	})(ctx, cmds)

	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	for _, cmd := range cmds {
		assert.ErrorIs(t, cmd.Err(), gobreaker.ErrOpenState)
	}
}
