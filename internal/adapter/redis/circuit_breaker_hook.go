package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/pscheid92/charades/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// CircuitBreakerHook fails Redis calls fast while Redis is unhealthy. Callers of the
// presence cache treat the resulting errors like misses and read the store instead.
type CircuitBreakerHook struct {
	cb *gobreaker.CircuitBreaker
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

// NewCircuitBreakerHook trips at a 60% failure rate over at least 5 requests within a 10s
// window, stays open for 30s and closes again after 3 successful half-open requests.
func NewCircuitBreakerHook(m *metrics.RedisMetrics) *CircuitBreakerHook {
	return newCircuitBreakerHook(gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	}, m)
}

func newCircuitBreakerHook(settings gobreaker.Settings, m *metrics.RedisMetrics) *CircuitBreakerHook {
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
		if m != nil {
			m.CircuitStateChanges.WithLabelValues(to.String()).Inc()
			m.CircuitBreakerState.Set(stateToFloat(to))
		}
	}
	return &CircuitBreakerHook{cb: gobreaker.NewCircuitBreaker(settings)}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := h.cb.Execute(func() (any, error) {
			return next(ctx, network, addr)
		})
		if err != nil {
			return nil, fmt.Errorf("circuit breaker dial failed: %w", err)
		}
		return conn.(net.Conn), nil
	}
}

// ProcessHook runs cmd through the breaker. redis.Nil is a normal reply, not a failure.
// A rejected command carries the breaker error on the command itself.
func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		var cmdErr error
		_, err := h.cb.Execute(func() (any, error) {
			cmdErr = next(ctx, cmd)
			if errors.Is(cmdErr, goredis.Nil) {
				return nil, nil
			}
			return nil, cmdErr
		})
		if isBreakerRejection(err) {
			err = fmt.Errorf("redis circuit breaker open: %w", err)
			cmd.SetErr(err)
			return err
		}
		return cmdErr
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		var pipeErr error
		_, err := h.cb.Execute(func() (any, error) {
			pipeErr = next(ctx, cmds)
			return nil, pipeErr
		})
		if isBreakerRejection(err) {
			err = fmt.Errorf("redis circuit breaker open: %w", err)
			for _, cmd := range cmds {
				cmd.SetErr(err)
			}
			return err
		}
		return pipeErr
	}
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// GetState returns the current breaker state.
func (h *CircuitBreakerHook) GetState() gobreaker.State {
	return h.cb.State()
}

// GetCounts returns the breaker's counters for the current window.
func (h *CircuitBreakerHook) GetCounts() gobreaker.Counts {
	return h.cb.Counts()
}
