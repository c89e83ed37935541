package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/tern/v2/migrate"
	"github.com/pscheid92/charades/internal/adapter/metrics"
	"github.com/pscheid92/charades/internal/platform/retry"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var connectPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: time.Second,
	MaxBackoff:     8 * time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Database not reachable yet, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

// Connect opens a pool whose queries are timed into m. A nil m disables query metrics.
func Connect(ctx context.Context, databaseURL string, m *metrics.DatabaseMetrics) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if m != nil {
		poolCfg.ConnConfig.Tracer = NewMetricsTracer(m)
	}

	slog.Info("Database SSL mode", "sslmode", extractSSLMode(databaseURL))

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	err = retry.Do(ctx, connectPolicy, func(ctx context.Context) error {
		err := pool.Ping(ctx)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == "28P01" || pgErr.Code == "3D000") {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connected", "min_conns", poolCfg.MinConns, "max_conns", poolCfg.MaxConns)
	return pool, nil
}

func extractSSLMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "unknown"
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "" {
		return "prefer (default)"
	}
	return mode
}

const (
	// Advisory lock key held while migrating ("charad" in ASCII hex).
	migrationLockID    = 0x636861726164
	unlockTimeout      = 5 * time.Second
	schemaVersionTable = "public.schema_version"
)

// Migrate applies the embedded migrations. Concurrent instances serialize on an advisory
// lock, so only the first one to start does any work.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for migration: %w", err)
	}
	defer conn.Release()

	return withAdvisoryLock(ctx, conn.Conn(), migrationLockID, func() error {
		return migrateConn(ctx, conn.Conn())
	})
}

func migrateConn(ctx context.Context, conn *pgx.Conn) error {
	files, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	migrator, err := migrate.NewMigrator(ctx, conn, schemaVersionTable)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := migrator.LoadMigrations(files); err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	migrator.OnStart = func(sequence int32, name, direction, _ string) {
		slog.Info("Applying migration", "sequence", sequence, "name", name, "direction", direction)
	}

	from, err := migrator.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	to := int32(len(migrator.Migrations))
	if from == to {
		slog.Info("Database schema up to date", "version", to)
	} else {
		slog.Info("Database schema migrated", "from_version", from, "to_version", to)
	}
	return nil
}

// withAdvisoryLock runs fn while conn holds session-level advisory lock key. The unlock
// uses its own deadline so a cancelled ctx cannot leave the lock held.
func withAdvisoryLock(ctx context.Context, conn *pgx.Conn, key int64, fn func() error) error {
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()
		if _, err := conn.Exec(unlockCtx, "SELECT pg_advisory_unlock($1)", key); err != nil {
			slog.Error("Failed to release advisory lock", "key", key, "error", err)
		}
	}()
	return fn()
}
