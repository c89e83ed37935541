package domain

import "context"

// PresenceCache mirrors room membership for fast broadcast-target lookup.
// It is never authoritative: Members returns ErrCacheMiss for an absent or empty set
// and callers fall back to the RoomStore. Invalidate drops a room's set so the next
// lookup misses.
type PresenceCache interface {
	AddMembers(ctx context.Context, roomID string, userIDs ...string) error
	RemoveMember(ctx context.Context, roomID, userID string) error
	Members(ctx context.Context, roomID string) ([]string, error)
	Invalidate(ctx context.Context, roomID string) error
}
