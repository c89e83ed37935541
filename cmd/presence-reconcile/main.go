// Command presence-reconcile removes cached presence entries for users who are no longer
// durable members of the room. It is safe to run against a live deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/pscheid92/charades/internal/adapter/postgres"
	"github.com/pscheid92/charades/internal/adapter/redis"
	"github.com/pscheid92/charades/internal/domain"
	"github.com/pscheid92/charades/internal/platform/logging"
)

type presenceSets interface {
	RoomIDs(ctx context.Context) ([]string, error)
	Members(ctx context.Context, roomID string) ([]string, error)
	RemoveMember(ctx context.Context, roomID, userID string) error
}

type memberLister interface {
	ListMembers(ctx context.Context, roomID string) ([]domain.User, error)
}

type stats struct {
	rooms   int
	checked int
	removed int
}

func main() {
	var (
		redisURL    = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "Postgres URL (or set DATABASE_URL env)")
		dryRun      = flag.Bool("dry-run", false, "Report stale entries without removing them")
		verbose     = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *redisURL == "" || *databaseURL == "" {
		log.Fatal("Redis and database URLs required (--redis/--database or REDIS_URL/DATABASE_URL env)")
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	logging.InitLogger(level, "text")

	ctx := context.Background()

	pool, err := postgres.Connect(ctx, *databaseURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	rdb, _, err := redis.NewClient(ctx, *redisURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() { _ = rdb.Close() }()

	start := time.Now()
	result, err := reconcile(ctx, redis.NewPresenceCache(rdb, 0), postgres.NewRoomRepo(pool), *dryRun)
	if err != nil {
		log.Fatalf("Reconcile failed: %v", err)
	}

	slog.Info("Reconcile complete",
		"rooms", result.rooms,
		"checked", result.checked,
		"removed", result.removed,
		"dry_run", *dryRun,
		"duration", time.Since(start))
}

func reconcile(ctx context.Context, cache presenceSets, store memberLister, dryRun bool) (stats, error) {
	var result stats

	roomIDs, err := cache.RoomIDs(ctx)
	if err != nil {
		return result, err
	}

	for _, roomID := range roomIDs {
		cached, err := cache.Members(ctx, roomID)
		if err != nil {
			// the set expired or emptied since the scan
			slog.Debug("Skipping room", "room_id", roomID, "error", err)
			continue
		}

		members, err := store.ListMembers(ctx, roomID)
		if err != nil {
			return result, fmt.Errorf("failed to list members of room %s: %w", roomID, err)
		}

		durable := make(map[string]struct{}, len(members))
		for _, m := range members {
			durable[m.ID] = struct{}{}
		}

		result.rooms++
		for _, userID := range cached {
			result.checked++
			if _, ok := durable[userID]; ok {
				continue
			}

			slog.Info("Stale presence entry", "room_id", roomID, "user_id", userID, "dry_run", dryRun)
			result.removed++
			if dryRun {
				continue
			}
			if err := cache.RemoveMember(ctx, roomID, userID); err != nil {
				return result, fmt.Errorf("failed to remove %s from room %s: %w", userID, roomID, err)
			}
		}
	}

	return result, nil
}
