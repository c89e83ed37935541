package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/charades/internal/adapter/metrics"
	"github.com/pscheid92/charades/internal/broadcast"
	"github.com/pscheid92/charades/internal/domain"
	"github.com/pscheid92/charades/internal/platform/config"
	"github.com/pscheid92/charades/internal/protocol"
	"github.com/stretchr/testify/require"
)

type fakeRooms struct {
	rooms   map[string]*domain.Room
	members map[string][]string
	err     error
}

func (f *fakeRooms) GetRoom(_ context.Context, roomID string) (*domain.Room, error) {
	if f.err != nil {
		return nil, f.err
	}
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func (f *fakeRooms) IsMember(_ context.Context, roomID, userID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return slices.Contains(f.members[roomID], userID), nil
}

type nopDispatcher struct{}

func (nopDispatcher) HandleMessage(context.Context, broadcast.Handle, protocol.ClientMessage) {}
func (nopDispatcher) HandleDisconnect(context.Context, broadcast.Handle)                      {}
func (nopDispatcher) HandleHeartbeatTimeout(context.Context, broadcast.Handle)                {}

type attachCall struct {
	userID string
	roomID string
}

type fakeAttacher struct {
	mu      sync.Mutex
	calls   []attachCall
	clients []*broadcast.Client
}

func (f *fakeAttacher) Attach(conn *websocket.Conn, userID, roomID string) *broadcast.Client {
	client := broadcast.NewClient(context.Background(), conn, userID, roomID, clockwork.NewRealClock(), broadcast.ClientConfig{}, nopDispatcher{}, nil)
	client.Start()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, attachCall{userID: userID, roomID: roomID})
	f.clients = append(f.clients, client)
	return client
}

func (f *fakeAttacher) snapshot() []attachCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]attachCall(nil), f.calls...)
}

type testServer struct {
	*Server
	rooms     *fakeRooms
	attacher  *fakeAttacher
	wsMetrics *metrics.WebSocketMetrics
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                  "development",
		SessionSecret:           "test-secret-key-32-bytes-long!!!",
		MaxWebSocketConnections: 100,
		MaxConnectionsPerIP:     10,
		ConnectionRate:          1000,
		ConnectionBurst:         1000,
	}
}

func newTestServer(t *testing.T, opts ...func(*config.Config)) *testServer {
	t.Helper()

	cfg := testConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	reg := prometheus.NewRegistry()
	wsMetrics := metrics.NewWebSocketMetrics(reg)
	rooms := &fakeRooms{
		rooms:   map[string]*domain.Room{"room1": {ID: "room1", AdminUserID: "admin"}},
		members: map[string][]string{"room1": {"admin", "u1", "u2"}},
	}
	attacher := &fakeAttacher{}

	srv := NewServer(cfg, rooms, attacher, reg, wsMetrics, nil)
	t.Cleanup(func() {
		for _, c := range attacher.clients {
			c.Close("test done")
		}
	})

	return &testServer{Server: srv, rooms: rooms, attacher: attacher, wsMetrics: wsMetrics}
}

func withHealthChecks(srv *Server, checks ...HealthCheck) {
	srv.healthChecks = checks
}

// sessionCookie encodes a session for userID exactly as the account service would.
func sessionCookie(t *testing.T, srv *Server, userID string) *http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	session, err := srv.sessionStore.New(req, sessionName)
	require.NoError(t, err)
	session.Values[sessionKeyUserID] = userID
	require.NoError(t, session.Save(req, rec))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

var errDatabaseDown = errors.New("database down")
