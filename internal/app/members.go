package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pscheid92/charades/internal/domain"
)

// Source names the layer that answered a member resolution.
type Source string

const (
	SourceCache Source = "cache"
	SourceStore Source = "store"
	SourceNone  Source = "none"
)

// Members is the online subset of a room's members and where the membership came from.
type Members struct {
	IDs    []string
	Source Source
}

// ResolveRoomMembers returns the online members of roomID. The presence cache is consulted
// first; on a miss or error the store is read, concurrent store reads for the same room are
// collapsed, and the result is written back to the cache. A failing store yields no members.
func (c *Coordinator) ResolveRoomMembers(ctx context.Context, roomID string) Members {
	ids, source := c.cachedMembers(ctx, roomID)
	if source == SourceNone {
		var err error
		ids, err = c.storeMembers(ctx, roomID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to resolve room members", "room_id", roomID, "error", err)
			c.countLookup(SourceNone)
			return Members{IDs: []string{}, Source: SourceNone}
		}
		source = SourceStore
	}

	online := make([]string, 0, len(ids))
	for _, id := range ids {
		if c.registry.IsOnline(id) {
			online = append(online, id)
		}
	}

	c.countLookup(source)
	return Members{IDs: online, Source: source}
}

// ComputePresence partitions the room's stored members by local liveness, keeping store order.
func (c *Coordinator) ComputePresence(ctx context.Context, roomID string) (online, offline []domain.User, err error) {
	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	users, err := c.store.ListMembers(storeCtx, roomID)
	if err != nil {
		return []domain.User{}, []domain.User{}, fmt.Errorf("failed to list room members: %w", err)
	}

	online = make([]domain.User, 0, len(users))
	offline = make([]domain.User, 0, len(users))
	for _, u := range users {
		if c.registry.IsOnline(u.ID) {
			online = append(online, u)
		} else {
			offline = append(offline, u)
		}
	}
	return online, offline, nil
}

func (c *Coordinator) cachedMembers(ctx context.Context, roomID string) ([]string, Source) {
	if c.cache == nil {
		return nil, SourceNone
	}

	cacheCtx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	ids, err := c.cache.Members(cacheCtx, roomID)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			slog.WarnContext(ctx, "Presence cache read failed, falling back to store", "room_id", roomID, "error", err)
			c.countCacheError("members")
		}
		return nil, SourceNone
	}
	return ids, SourceCache
}

func (c *Coordinator) storeMembers(ctx context.Context, roomID string) ([]string, error) {
	v, err, shared := c.fallbackGroup.Do(roomID, func() (any, error) {
		// Shared by every waiter, so not bound to one caller's cancellation.
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		defer cancel()

		users, err := c.store.ListMembers(storeCtx, roomID)
		if err != nil {
			return nil, err
		}

		ids := make([]string, len(users))
		for i, u := range users {
			ids[i] = u.ID
		}
		c.repairCache(storeCtx, roomID, ids)
		return ids, nil
	})
	if err != nil {
		return nil, err
	}

	if shared && c.metrics.Presence != nil {
		c.metrics.Presence.SharedLookups.Inc()
	}
	return v.([]string), nil
}

func (c *Coordinator) repairCache(ctx context.Context, roomID string, ids []string) {
	if c.cache == nil || len(ids) == 0 {
		return
	}

	cacheCtx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	if err := c.cache.AddMembers(cacheCtx, roomID, ids...); err != nil {
		slog.WarnContext(ctx, "Failed to repopulate presence cache", "room_id", roomID, "error", err)
		c.countCacheError("repair")
	}
}

// cacheJoin records userID in the room's cached set. A cached set is only trusted while it
// holds every online member, so an absent set is first seeded from the store, and a set the
// join could not be written to is dropped so the next lookup repairs it from the store.
func (c *Coordinator) cacheJoin(ctx context.Context, roomID, userID string) {
	if c.cache == nil {
		return
	}

	cacheCtx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	_, err := c.cache.Members(cacheCtx, roomID)
	switch {
	case errors.Is(err, domain.ErrCacheMiss):
		// storeMembers writes the durable members back; the joining user is added below
		if _, err := c.storeMembers(ctx, roomID); err != nil {
			slog.WarnContext(ctx, "Presence cache not seeded, store unavailable", "room_id", roomID, "error", err)
			return
		}
	case err != nil:
		slog.WarnContext(ctx, "Presence cache read failed on join", "room_id", roomID, "error", err)
		c.countCacheError("members")
		c.invalidateCache(cacheCtx, roomID)
		return
	}

	if err := c.cache.AddMembers(cacheCtx, roomID, userID); err != nil {
		slog.WarnContext(ctx, "Failed to add member to presence cache", "room_id", roomID, "user_id", userID, "error", err)
		c.countCacheError("add")
		c.invalidateCache(cacheCtx, roomID)
	}
}

func (c *Coordinator) invalidateCache(ctx context.Context, roomID string) {
	if err := c.cache.Invalidate(ctx, roomID); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate presence cache", "room_id", roomID, "error", err)
		c.countCacheError("invalidate")
	}
}

func (c *Coordinator) countLookup(source Source) {
	if c.metrics.Presence != nil {
		c.metrics.Presence.Lookups.WithLabelValues(string(source)).Inc()
	}
}
