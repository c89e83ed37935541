package redis

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/charades/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"
)

var (
	testRedisURL     string
	testRedisMetrics *metrics.RedisMetrics
)

func TestMain(m *testing.M) {
	flag.Parse()

	if testing.Short() {
		os.Exit(m.Run())
	}
	os.Exit(runWithRedis(m))
}

func runWithRedis(m *testing.M) int {
	ctx := context.Background()

	container, err := rediscontainer.Run(ctx, "redis:7-alpine", rediscontainer.WithLogLevel(rediscontainer.LogLevelNotice))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start redis container: %v\n", err)
		return 1
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to terminate redis container: %v\n", err)
		}
	}()

	testRedisURL, err = container.ConnectionString(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get redis connection string: %v\n", err)
		return 1
	}
	testRedisMetrics = metrics.NewRedisMetrics(prometheus.NewRegistry())

	return m.Run()
}

// setupTestClient returns a client on an empty database, with the production hooks installed.
func setupTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx := context.Background()
	client, _, err := NewClient(ctx, testRedisURL, testRedisMetrics)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.FlushDB(ctx).Err())
	return client
}
