package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pscheid92/charades/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const DefaultPresenceTTL = 24 * time.Hour

// PresenceCache keeps one Redis set of member ids per room. Every write refreshes the
// set's TTL so rooms nobody touches expire on their own.
type PresenceCache struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

var _ domain.PresenceCache = (*PresenceCache)(nil)

func NewPresenceCache(rdb goredis.Cmdable, ttl time.Duration) *PresenceCache {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &PresenceCache{rdb: rdb, ttl: ttl}
}

const (
	presenceKeyPrefix = "room:"
	presenceKeySuffix = ":users"
	scanCount         = 100
)

func presenceKey(roomID string) string {
	return presenceKeyPrefix + roomID + presenceKeySuffix
}

func (c *PresenceCache) AddMembers(ctx context.Context, roomID string, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}

	members := make([]any, len(userIDs))
	for i, id := range userIDs {
		members[i] = id
	}

	key := presenceKey(roomID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add presence members: %w", err)
	}
	return nil
}

func (c *PresenceCache) RemoveMember(ctx context.Context, roomID, userID string) error {
	if err := c.rdb.SRem(ctx, presenceKey(roomID), userID).Err(); err != nil {
		return fmt.Errorf("failed to remove presence member: %w", err)
	}
	return nil
}

// Members returns domain.ErrCacheMiss when the room has no cached set.
func (c *PresenceCache) Members(ctx context.Context, roomID string) ([]string, error) {
	ids, err := c.rdb.SMembers(ctx, presenceKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read presence members: %w", err)
	}
	if len(ids) == 0 {
		return nil, domain.ErrCacheMiss
	}
	return ids, nil
}

func (c *PresenceCache) Invalidate(ctx context.Context, roomID string) error {
	if err := c.rdb.Del(ctx, presenceKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate presence set: %w", err)
	}
	return nil
}

// RoomIDs lists every room that currently has a cached member set.
func (c *PresenceCache) RoomIDs(ctx context.Context) ([]string, error) {
	var roomIDs []string
	iter := c.rdb.Scan(ctx, 0, presenceKey("*"), scanCount).Iterator()
	for iter.Next(ctx) {
		key := strings.TrimSuffix(strings.TrimPrefix(iter.Val(), presenceKeyPrefix), presenceKeySuffix)
		roomIDs = append(roomIDs, key)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan presence keys: %w", err)
	}
	return roomIDs, nil
}
