package broadcast

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pscheid92/charades/internal/adapter/metrics"
	"github.com/pscheid92/charades/internal/protocol"
)

const (
	closeReasonReplaced = "Replaced by newer connection"
	closeReasonSlow     = "Slow client"
)

// Handle is one registered client endpoint.
type Handle interface {
	ID() string
	RoomID() string
	// Enqueue hands a frame to the connection without blocking. It reports false when the
	// send queue is full.
	Enqueue(frame []byte) bool
	Close(reason string)
}

// Registry is the process-wide map from user id to its live connection.
// The lock is never held while closing or writing to a connection.
type Registry struct {
	mu      sync.Mutex
	handles map[string]Handle
	metrics *metrics.WebSocketMetrics
}

func NewRegistry(wsMetrics *metrics.WebSocketMetrics) *Registry {
	return &Registry{
		handles: make(map[string]Handle),
		metrics: wsMetrics,
	}
}

// Register makes h the live connection for its id. A previously registered handle for the
// same id is closed and returned.
func (r *Registry) Register(h Handle) Handle {
	r.mu.Lock()
	previous, replaced := r.handles[h.ID()]
	r.handles[h.ID()] = h
	count := len(r.handles)
	r.mu.Unlock()

	r.setActive(count)

	if !replaced || previous == h {
		return nil
	}

	slog.Info("Connection replaced", "user_id", h.ID(), "old_room_id", previous.RoomID(), "room_id", h.RoomID())
	if r.metrics != nil {
		r.metrics.ConnectionsReplaced.Inc()
	}
	previous.Close(closeReasonReplaced)
	return previous
}

// Unregister removes whatever handle is registered for id. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.handles, id)
	count := len(r.handles)
	r.mu.Unlock()

	r.setActive(count)
}

// Detach removes h only if it is still the registered handle for its id.
// It reports false for a handle that was already superseded or removed.
func (r *Registry) Detach(h Handle) bool {
	r.mu.Lock()
	current, ok := r.handles[h.ID()]
	if !ok || current != h {
		r.mu.Unlock()
		return false
	}
	delete(r.handles, h.ID())
	count := len(r.handles)
	r.mu.Unlock()

	r.setActive(count)
	return true
}

// IsOnline reports whether id has a registered connection in this process, in any room.
func (r *Registry) IsOnline(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[id]
	return ok
}

// Count is the number of registered connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Send delivers msg to a single user on whatever room their connection is bound to.
// Offline ids are a no-op.
func (r *Registry) Send(id string, msg protocol.ServerMessage) error {
	return r.deliver(r.snapshot("", []string{id}), msg)
}

// Broadcast encodes msg once and enqueues it for every id in ids whose connection is bound
// to roomID. A member connected to a different room does not receive it.
func (r *Registry) Broadcast(roomID string, ids []string, msg protocol.ServerMessage) error {
	return r.deliver(r.snapshot(roomID, ids), msg)
}

func (r *Registry) deliver(targets []Handle, msg protocol.ServerMessage) error {
	if len(targets) == 0 {
		return nil
	}

	frame, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	var slow []Handle
	for _, h := range targets {
		if !h.Enqueue(frame) {
			slow = append(slow, h)
			continue
		}
		if r.metrics != nil {
			r.metrics.MessagesPublished.Inc()
		}
	}

	for _, h := range slow {
		slog.Warn("Disconnecting slow client", "user_id", h.ID(), "room_id", h.RoomID())
		if r.metrics != nil {
			r.metrics.MessagesDropped.Inc()
			r.metrics.SlowClientsEvicted.Inc()
		}
		go h.Close(closeReasonSlow)
	}

	return nil
}

// CloseAll closes every registered connection with reason. The handles stay registered
// until their own teardown detaches them.
func (r *Registry) CloseAll(reason string) {
	r.mu.Lock()
	all := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		all = append(all, h)
	}
	r.mu.Unlock()

	slog.Info("Closing all connections", "count", len(all), "reason", reason)

	var wg sync.WaitGroup
	for _, h := range all {
		wg.Go(func() { h.Close(reason) })
	}
	wg.Wait()
}

// snapshot returns the registered handles for ids. A non-empty roomID keeps only handles
// bound to that room.
func (r *Registry) snapshot(roomID string, ids []string) []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	targets := make([]Handle, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		h, ok := r.handles[id]
		if !ok || (roomID != "" && h.RoomID() != roomID) {
			continue
		}
		targets = append(targets, h)
	}
	return targets
}

func (r *Registry) setActive(count int) {
	if r.metrics != nil {
		r.metrics.ActiveConnections.Set(float64(count))
	}
}
