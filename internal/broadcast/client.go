package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/charades/internal/adapter/metrics"
	"github.com/pscheid92/charades/internal/platform/correlation"
	"github.com/pscheid92/charades/internal/protocol"
)

const (
	writeDeadline  = 5 * time.Second
	maxMessageSize = 4096

	DefaultHeartbeatInterval = 5 * time.Second
	DefaultClientTimeout     = 10 * time.Second
	DefaultSendBufferSize    = 16
)

// Dispatcher receives everything a Client observes. Calls for one client are sequential;
// exactly one of HandleDisconnect or HandleHeartbeatTimeout is called, after which the
// client is gone.
type Dispatcher interface {
	HandleMessage(ctx context.Context, h Handle, msg protocol.ClientMessage)
	HandleDisconnect(ctx context.Context, h Handle)
	HandleHeartbeatTimeout(ctx context.Context, h Handle)
}

type ClientConfig struct {
	HeartbeatInterval time.Duration
	ClientTimeout     time.Duration
	SendBufferSize    int
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.ClientTimeout <= 0 {
		c.ClientTimeout = DefaultClientTimeout
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = DefaultSendBufferSize
	}
	return c
}

// Client is a live WebSocket connection of one user in one room.
type Client struct {
	id         string
	roomID     string
	instanceID uuid.UUID

	ctx        context.Context
	connection *websocket.Conn
	clock      clockwork.Clock
	config     ClientConfig
	dispatcher Dispatcher
	metrics    *metrics.WebSocketMetrics

	sendChannel chan []byte
	doneChannel chan struct{}
	finished    chan struct{}
	startOnce   sync.Once
	stopOnce    sync.Once
	wg          sync.WaitGroup

	lastSeen  time.Time
	seenMutex sync.Mutex
	timedOut  atomic.Bool
}

func NewClient(ctx context.Context, connection *websocket.Conn, id, roomID string, clock clockwork.Clock, config ClientConfig, dispatcher Dispatcher, wsMetrics *metrics.WebSocketMetrics) *Client {
	config = config.withDefaults()
	instanceID := uuid.New()
	return &Client{
		id:          id,
		roomID:      roomID,
		instanceID:  instanceID,
		ctx:         correlation.WithAttrs(ctx, slog.String("instance_id", instanceID.String())),
		connection:  connection,
		clock:       clock,
		config:      config,
		dispatcher:  dispatcher,
		metrics:     wsMetrics,
		sendChannel: make(chan []byte, config.SendBufferSize),
		doneChannel: make(chan struct{}),
		finished:    make(chan struct{}),
		lastSeen:    clock.Now(),
	}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) RoomID() string { return c.roomID }

// InstanceID distinguishes successive connections of the same user in logs.
func (c *Client) InstanceID() uuid.UUID { return c.instanceID }

// Context is the connection's logging context.
func (c *Client) Context() context.Context { return c.ctx }

// Done is closed once the client has terminated and its dispatcher has been notified.
func (c *Client) Done() <-chan struct{} { return c.finished }

// Start launches the read and write goroutines. Calling it more than once has no effect.
func (c *Client) Start() {
	c.startOnce.Do(func() {
		c.configureHandlers()
		c.wg.Add(1)
		go c.writePump()
		go c.readPump()
	})
}

func (c *Client) Enqueue(frame []byte) bool {
	select {
	case c.sendChannel <- frame:
		return true
	default:
		return false
	}
}

// Close stops the writer, sends a close frame with reason and closes the socket.
// The read goroutine then observes the closed socket and notifies the dispatcher.
func (c *Client) Close(reason string) {
	c.stopOnce.Do(func() {
		close(c.doneChannel)

		// The close frame must not race a data frame from the writer.
		c.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = c.connection.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeDeadline))
		_ = c.connection.Close()
	})
}

func (c *Client) stop() {
	c.stopOnce.Do(func() {
		close(c.doneChannel)
		_ = c.connection.Close()
	})
	c.wg.Wait()
}

func (c *Client) readPump() {
	defer close(c.finished)
	defer c.terminate()

	for {
		messageType, data, err := c.connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.DebugContext(c.ctx, "WebSocket read ended", "user_id", c.id, "error", err)
			}
			return
		}
		c.recordActivity()

		if messageType != websocket.TextMessage {
			continue
		}

		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			slog.DebugContext(c.ctx, "Dropping malformed client message", "user_id", c.id, "error", err)
			if c.metrics != nil {
				c.metrics.InboundDropped.Inc()
			}
			continue
		}
		c.dispatcher.HandleMessage(c.ctx, c, msg)
	}
}

func (c *Client) terminate() {
	c.stop()

	if c.timedOut.Load() {
		c.dispatcher.HandleHeartbeatTimeout(c.ctx, c)
		return
	}
	c.dispatcher.HandleDisconnect(c.ctx, c)
}

func (c *Client) writePump() {
	ticker := c.clock.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()
	defer c.wg.Done()

	for {
		select {
		case msg := <-c.sendChannel:
			start := time.Now()
			_ = c.connection.SetWriteDeadline(start.Add(writeDeadline))
			if err := c.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = c.connection.Close()
				return
			}
			if c.metrics != nil {
				c.metrics.MessageSendDuration.Observe(time.Since(start).Seconds())
			}
		case <-ticker.Chan():
			if c.livenessExpired() {
				slog.InfoContext(c.ctx, "Client heartbeat timed out", "user_id", c.id, "room_id", c.roomID)
				c.timedOut.Store(true)
				_ = c.connection.Close()
				return
			}
			if err := c.connection.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				_ = c.connection.Close()
				return
			}
		case <-c.doneChannel:
			return
		}
	}
}

// Ping, pong and data frames all count as signs of life. Socket deadlines are
// wall-clock; liveness is measured on the injected clock.
func (c *Client) configureHandlers() {
	c.connection.SetReadLimit(maxMessageSize)
	c.connection.SetPongHandler(func(string) error {
		c.recordActivity()
		return nil
	})
	c.connection.SetPingHandler(func(appData string) error {
		c.recordActivity()
		err := c.connection.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeDeadline))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
}

func (c *Client) recordActivity() {
	c.seenMutex.Lock()
	defer c.seenMutex.Unlock()
	c.lastSeen = c.clock.Now()
}

func (c *Client) livenessExpired() bool {
	c.seenMutex.Lock()
	defer c.seenMutex.Unlock()
	return c.clock.Since(c.lastSeen) > c.config.ClientTimeout
}
