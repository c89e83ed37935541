package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/charades/internal/adapter/httpserver"
	"github.com/pscheid92/charades/internal/adapter/metrics"
	"github.com/pscheid92/charades/internal/adapter/postgres"
	"github.com/pscheid92/charades/internal/adapter/redis"
	"github.com/pscheid92/charades/internal/app"
	"github.com/pscheid92/charades/internal/broadcast"
	"github.com/pscheid92/charades/internal/domain"
	"github.com/pscheid92/charades/internal/platform/config"
	"github.com/pscheid92/charades/internal/platform/logging"
	"github.com/pscheid92/charades/internal/platform/version"
	goredis "github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func runGracefulShutdown(srv *httpserver.Server, coordinator *app.Coordinator) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		coordinator.Stop()

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// slog is not configured yet
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, m *metrics.DatabaseMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, m)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.Migrate(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config, m *metrics.RedisMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, _, err := redis.NewClient(ctx, cfg.RedisURL, m)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", append([]any{"env", cfg.AppEnv, "port", cfg.Port}, version.Get().LogAttrs()...)...)

	reg := metrics.NewRegistry()
	wsMetrics := metrics.NewWebSocketMetrics(reg)

	pool := setupDB(cfg, metrics.NewDatabaseMetrics(reg))
	defer pool.Close()

	healthChecks := []httpserver.HealthCheck{{Name: "postgres", Check: pool.Ping}}

	// must stay a nil interface when disabled, not a typed nil
	var presenceCache domain.PresenceCache
	if cfg.PresenceCacheDisabled {
		slog.Warn("Presence cache disabled, every presence lookup reads the database")
	} else {
		redisClient := setupRedis(cfg, metrics.NewRedisMetrics(reg))
		defer func() { _ = redisClient.Close() }()

		presenceCache = redis.NewPresenceCache(redisClient, cfg.PresenceCacheTTL)
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	rooms := postgres.NewRoomRepo(pool)
	users := postgres.NewUserRepo(pool)
	appSvc := app.NewService(rooms, users)

	coordinator := app.NewCoordinator(
		broadcast.NewRegistry(wsMetrics),
		rooms,
		presenceCache,
		clock,
		broadcast.ClientConfig{
			HeartbeatInterval: cfg.HeartbeatInterval,
			ClientTimeout:     cfg.ClientTimeout,
			SendBufferSize:    cfg.SendBufferSize,
		},
		app.CoordinatorMetrics{
			WebSocket: wsMetrics,
			Presence:  metrics.NewPresenceMetrics(reg),
			Words:     metrics.NewWordMetrics(reg),
		},
	)

	srv := httpserver.NewServer(cfg, appSvc, coordinator, reg, wsMetrics, healthChecks)

	done := runGracefulShutdown(srv, coordinator)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
