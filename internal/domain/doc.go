// Package domain holds the room model (users, rooms, words) and the ports the room
// coordinator depends on: RoomStore for durable membership and words, PresenceCache for the
// fast membership mirror. Adapters implement them; nothing here does I/O.
package domain
