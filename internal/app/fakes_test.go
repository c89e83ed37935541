package app

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/charades/internal/adapter/metrics"
	"github.com/pscheid92/charades/internal/broadcast"
	"github.com/pscheid92/charades/internal/domain"
	"github.com/stretchr/testify/require"
)

// --- memoryStore ---

type memoryStore struct {
	mu      sync.Mutex
	members map[string][]domain.User
	words   map[string][]domain.Word

	listMembersCalls atomic.Int32
	listMembersGate  chan struct{}
	listMembersErr   error
	insertErr        error
	listWordsErr     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		members: make(map[string][]domain.User),
		words:   make(map[string][]domain.Word),
	}
}

func (s *memoryStore) addMembers(roomID string, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.members[roomID] = append(s.members[roomID], domain.User{ID: id, CreatedAt: time.Unix(0, 0).UTC()})
	}
}

func (s *memoryStore) ListMembers(ctx context.Context, roomID string) ([]domain.User, error) {
	s.listMembersCalls.Add(1)
	if s.listMembersGate != nil {
		select {
		case <-s.listMembersGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listMembersErr != nil {
		return nil, s.listMembersErr
	}
	return slices.Clone(s.members[roomID]), nil
}

func (s *memoryStore) InsertWord(_ context.Context, roomID, word, userID string) (*domain.Word, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	for _, w := range s.words[roomID] {
		if w.Word == word {
			return nil, domain.ErrWordExists
		}
	}
	w := domain.Word{Word: word, RoomID: roomID, UserID: userID, CreatedAt: time.Now()}
	s.words[roomID] = append(s.words[roomID], w)
	return &w, nil
}

func (s *memoryStore) ListWords(_ context.Context, roomID string) ([]domain.Word, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listWordsErr != nil {
		return nil, s.listWordsErr
	}
	return slices.Clone(s.words[roomID]), nil
}

// --- memoryCache ---

type memoryCache struct {
	mu      sync.Mutex
	sets    map[string]map[string]struct{}
	err     error
	addErr  error
	adds    [][]string
	removes []string
	dropped []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{sets: make(map[string]map[string]struct{})}
}

func (c *memoryCache) AddMembers(_ context.Context, roomID string, userIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.addErr != nil {
		return c.addErr
	}
	c.adds = append(c.adds, slices.Clone(userIDs))
	set, ok := c.sets[roomID]
	if !ok {
		set = make(map[string]struct{})
		c.sets[roomID] = set
	}
	for _, id := range userIDs {
		set[id] = struct{}{}
	}
	return nil
}

func (c *memoryCache) RemoveMember(_ context.Context, roomID, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.removes = append(c.removes, userID)
	delete(c.sets[roomID], userID)
	return nil
}

func (c *memoryCache) Members(_ context.Context, roomID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	set := c.sets[roomID]
	if len(set) == 0 {
		return nil, domain.ErrCacheMiss
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (c *memoryCache) Invalidate(_ context.Context, roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.dropped = append(c.dropped, roomID)
	delete(c.sets, roomID)
	return nil
}

func (c *memoryCache) snapshot(roomID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0)
	for id := range c.sets[roomID] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// --- testHandle ---

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type testHandle struct {
	id     string
	roomID string

	mu     sync.Mutex
	frames [][]byte
	closed []string
}

func newTestHandle(id, roomID string) *testHandle {
	return &testHandle{id: id, roomID: roomID}
}

func (h *testHandle) ID() string     { return h.id }
func (h *testHandle) RoomID() string { return h.roomID }

func (h *testHandle) Enqueue(frame []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, frame)
	return true
}

func (h *testHandle) Close(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, reason)
}

func (h *testHandle) messages(t *testing.T) []wireMessage {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]wireMessage, 0, len(h.frames))
	for _, f := range h.frames {
		var m wireMessage
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (h *testHandle) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = nil
}

func (h *testHandle) closeReasons() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.closed)
}

type usersUpdatePayload struct {
	OnlineUsers  []domain.User `json:"online_users"`
	OfflineUsers []domain.User `json:"offline_users"`
}

func decodeUsersUpdate(t *testing.T, m wireMessage) (online, offline []string) {
	t.Helper()
	require.Equal(t, "UsersUpdate", m.Type)
	var p usersUpdatePayload
	require.NoError(t, json.Unmarshal(m.Payload, &p))
	for _, u := range p.OnlineUsers {
		online = append(online, u.ID)
	}
	for _, u := range p.OfflineUsers {
		offline = append(offline, u.ID)
	}
	return online, offline
}

func decodePayload[T any](t *testing.T, m wireMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(m.Payload, &v))
	return v
}

// --- wiring ---

type testCoordinator struct {
	*Coordinator
	registry *broadcast.Registry
	store    *memoryStore
	cache    *memoryCache
	metrics  CoordinatorMetrics
}

func newTestCoordinator(t *testing.T, withCache bool) *testCoordinator {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := CoordinatorMetrics{
		WebSocket: metrics.NewWebSocketMetrics(reg),
		Presence:  metrics.NewPresenceMetrics(reg),
		Words:     metrics.NewWordMetrics(reg),
	}

	registry := broadcast.NewRegistry(m.WebSocket)
	store := newMemoryStore()

	tc := &testCoordinator{registry: registry, store: store, metrics: m}
	var cache domain.PresenceCache
	if withCache {
		tc.cache = newMemoryCache()
		cache = tc.cache
	}

	tc.Coordinator = NewCoordinator(registry, store, cache, clockwork.NewRealClock(), broadcast.ClientConfig{}, m)
	return tc
}
