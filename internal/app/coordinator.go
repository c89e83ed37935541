package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/charades/internal/adapter/metrics"
	"github.com/pscheid92/charades/internal/broadcast"
	"github.com/pscheid92/charades/internal/domain"
	"github.com/pscheid92/charades/internal/platform/correlation"
	"github.com/pscheid92/charades/internal/protocol"
	"golang.org/x/sync/singleflight"
)

const (
	storeTimeout = 5 * time.Second
	cacheTimeout = 2 * time.Second
	stopTimeout  = 10 * time.Second

	closeReasonShutdown = "Server shutting down"
)

// CoordinatorMetrics bundles the metric sets the coordinator reports to. Any field may be nil.
type CoordinatorMetrics struct {
	WebSocket *metrics.WebSocketMetrics
	Presence  *metrics.PresenceMetrics
	Words     *metrics.WordMetrics
}

// Coordinator runs the room lifecycle: joins, leaves, heartbeat timeouts, word submissions
// and the presence broadcasts they cause. It is safe for concurrent use by all connections.
type Coordinator struct {
	registry     *broadcast.Registry
	store        domain.RoomStore
	cache        domain.PresenceCache
	clock        clockwork.Clock
	clientConfig broadcast.ClientConfig
	metrics      CoordinatorMetrics

	fallbackGroup singleflight.Group

	clients  sync.WaitGroup
	stopOnce sync.Once
}

var _ broadcast.Dispatcher = (*Coordinator)(nil)

// NewCoordinator wires the coordinator. cache may be nil, in which case every member
// resolution goes to the store.
func NewCoordinator(registry *broadcast.Registry, store domain.RoomStore, cache domain.PresenceCache, clock clockwork.Clock, clientConfig broadcast.ClientConfig, m CoordinatorMetrics) *Coordinator {
	return &Coordinator{
		registry:     registry,
		store:        store,
		cache:        cache,
		clock:        clock,
		clientConfig: clientConfig,
		metrics:      m,
	}
}

// Attach turns an upgraded socket into a registered, announced and running client.
func (c *Coordinator) Attach(conn *websocket.Conn, userID, roomID string) *broadcast.Client {
	client := broadcast.NewClient(correlation.WithID(context.Background(), correlation.NewID()), conn, userID, roomID, c.clock, c.clientConfig, c, c.metrics.WebSocket)
	ctx := client.Context()

	c.clients.Add(1)
	go func() {
		<-client.Done()
		c.clients.Done()
	}()

	slog.InfoContext(ctx, "Client connected", "user_id", userID, "room_id", roomID)
	c.OnConnect(ctx, client)
	client.Start()
	return client
}

// OnConnect registers h, records it in the presence cache and announces the room's new
// presence to every online member, including h itself. It returns h's canonical id.
func (c *Coordinator) OnConnect(ctx context.Context, h broadcast.Handle) string {
	c.registry.Register(h)

	c.cacheJoin(ctx, h.RoomID(), h.ID())
	c.announcePresence(ctx, h.RoomID())
	return h.ID()
}

// OnDisconnect removes h and announces the room's new presence. A handle that was already
// replaced by a newer connection of the same user leaves no trace.
func (c *Coordinator) OnDisconnect(ctx context.Context, h broadcast.Handle) {
	if !c.registry.Detach(h) {
		slog.DebugContext(ctx, "Superseded connection closed", "user_id", h.ID(), "room_id", h.RoomID())
		return
	}

	slog.InfoContext(ctx, "Client disconnected", "user_id", h.ID(), "room_id", h.RoomID())

	if c.cache != nil {
		cacheCtx, cancel := context.WithTimeout(ctx, cacheTimeout)
		err := c.cache.RemoveMember(cacheCtx, h.RoomID(), h.ID())
		cancel()
		if err != nil {
			slog.WarnContext(ctx, "Failed to remove member from presence cache", "room_id", h.RoomID(), "user_id", h.ID(), "error", err)
			c.countCacheError("remove")
		}
	}

	c.announcePresence(ctx, h.RoomID())
}

// OnHeartbeatTimeout is OnDisconnect for a client that stopped answering.
func (c *Coordinator) OnHeartbeatTimeout(ctx context.Context, h broadcast.Handle) {
	slog.WarnContext(ctx, "Disconnecting unresponsive client", "user_id", h.ID(), "room_id", h.RoomID())
	if c.metrics.WebSocket != nil {
		c.metrics.WebSocket.HeartbeatTimeouts.Inc()
	}
	c.OnDisconnect(ctx, h)
}

func (c *Coordinator) HandleDisconnect(ctx context.Context, h broadcast.Handle) {
	c.OnDisconnect(ctx, h)
}

func (c *Coordinator) HandleHeartbeatTimeout(ctx context.Context, h broadcast.Handle) {
	c.OnHeartbeatTimeout(ctx, h)
}

// HandleMessage routes one decoded client message.
func (c *Coordinator) HandleMessage(ctx context.Context, h broadcast.Handle, msg protocol.ClientMessage) {
	switch m := msg.(type) {
	case protocol.StartSession:
		slog.DebugContext(ctx, "Ignoring StartSession", "user_id", h.ID(), "room_id", h.RoomID(), "session_id", m.SessionID)
	case protocol.AddWord:
		c.Deliver(ctx, c.AddWord(ctx, h.RoomID(), m.Word, h.ID()))
	default:
		slog.WarnContext(ctx, "Unhandled client message", "user_id", h.ID(), "message_type", fmt.Sprintf("%T", msg))
	}
}

// AddWord stores word for userID in roomID. The author gets a private confirmation with
// their own words; everyone else in the room gets the new word count.
func (c *Coordinator) AddWord(ctx context.Context, roomID, word, userID string) []Delivery {
	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if _, err := c.store.InsertWord(storeCtx, roomID, word, userID); err != nil {
		if errors.Is(err, domain.ErrWordExists) {
			slog.InfoContext(ctx, "Duplicate word rejected", "room_id", roomID, "user_id", userID)
			c.countWord("duplicate")
			return []Delivery{Private{To: userID, Message: protocol.NewError(fmt.Sprintf("Word '%s' already in session", word))}}
		}
		slog.ErrorContext(ctx, "Failed to add word", "room_id", roomID, "user_id", userID, "error", err)
		c.countWord("error")
		return []Delivery{Private{To: userID, Message: protocol.NewError("Could not add word to session")}}
	}

	words, err := c.store.ListWords(storeCtx, roomID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list words after insert", "room_id", roomID, "error", err)
		c.countWord("error")
		return []Delivery{Private{To: userID, Message: protocol.NewError("Could not add word to session")}}
	}

	myWords := make([]string, 0)
	for _, w := range words {
		if w.UserID == userID {
			myWords = append(myWords, w.Word)
		}
	}

	c.countWord("added")
	return []Delivery{
		RoomBroadcast{RoomID: roomID, Message: protocol.WordAdded{NumberOfWords: len(words)}, Exclude: userID},
		Private{To: userID, Message: protocol.WordAddedPersonal{NumberOfWords: len(words), MyWords: myWords}},
	}
}

// Broadcast sends msg to every online member of roomID except exclude.
func (c *Coordinator) Broadcast(ctx context.Context, roomID string, msg protocol.ServerMessage, exclude string) {
	members := c.ResolveRoomMembers(ctx, roomID)

	targets := make([]string, 0, len(members.IDs))
	for _, id := range members.IDs {
		if id != exclude {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return
	}

	if err := c.registry.Broadcast(roomID, targets, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to broadcast message", "room_id", roomID, "error", err)
	}
}

// Send delivers msg to a single user if they are connected to this process.
func (c *Coordinator) Send(ctx context.Context, userID string, msg protocol.ServerMessage) {
	if err := c.registry.Send(userID, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to send message", "user_id", userID, "error", err)
	}
}

func (c *Coordinator) announcePresence(ctx context.Context, roomID string) {
	online, offline, err := c.ComputePresence(ctx, roomID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to compute room presence", "room_id", roomID, "error", err)
		return
	}

	if c.metrics.Presence != nil {
		c.metrics.Presence.Broadcasts.Inc()
	}
	c.Broadcast(ctx, roomID, protocol.UsersUpdate{OnlineUsers: online, OfflineUsers: offline}, "")
}

// Stop closes every connection and waits for their teardown to finish.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.registry.CloseAll(closeReasonShutdown)

		done := make(chan struct{})
		go func() {
			c.clients.Wait()
			close(done)
		}()

		timer := c.clock.NewTimer(stopTimeout)
		defer timer.Stop()

		select {
		case <-done:
			slog.Info("Coordinator stopped gracefully")
		case <-timer.Chan():
			slog.Warn("Coordinator stop timeout exceeded", "timeout", stopTimeout, "remaining_connections", c.registry.Count())
		}
	})
}

func (c *Coordinator) countCacheError(operation string) {
	if c.metrics.Presence != nil {
		c.metrics.Presence.CacheErrors.WithLabelValues(operation).Inc()
	}
}

func (c *Coordinator) countWord(result string) {
	if c.metrics.Words != nil {
		c.metrics.Words.WordsAdded.WithLabelValues(result).Inc()
	}
}
