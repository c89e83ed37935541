package app

import (
	"context"
	"errors"
	"testing"

	"github.com/pscheid92/charades/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoomRepo struct {
	*memoryStore
	rooms map[string]*domain.Room
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{memoryStore: newMemoryStore(), rooms: make(map[string]*domain.Room)}
}

func (r *fakeRoomRepo) GetByID(_ context.Context, roomID string) (*domain.Room, error) {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func (r *fakeRoomRepo) Create(_ context.Context, roomID, adminUserID string, public bool) (*domain.Room, error) {
	if _, ok := r.rooms[roomID]; ok {
		return nil, domain.ErrRoomExists
	}
	room := &domain.Room{ID: roomID, AdminUserID: adminUserID, Public: public}
	r.rooms[roomID] = room
	return room, nil
}

func (r *fakeRoomRepo) Join(_ context.Context, roomID, userID string) error {
	members, _ := r.ListMembers(context.Background(), roomID)
	for _, m := range members {
		if m.ID == userID {
			return nil
		}
	}
	r.addMembers(roomID, userID)
	return nil
}

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (r *fakeUserRepo) GetByID(_ context.Context, userID string) (*domain.User, error) {
	u, ok := r.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) Upsert(_ context.Context, userID string, name *string) (*domain.User, error) {
	u, ok := r.users[userID]
	if !ok {
		u = &domain.User{ID: userID}
		r.users[userID] = u
	}
	if name != nil {
		u.Name = name
	}
	return u, nil
}

func newTestService() (*Service, *fakeRoomRepo, *fakeUserRepo) {
	rooms := newFakeRoomRepo()
	users := &fakeUserRepo{users: make(map[string]*domain.User)}
	return NewService(rooms, users), rooms, users
}

func TestService_CreateRoomJoinsAdmin(t *testing.T) {
	svc, rooms, _ := newTestService()
	ctx := context.Background()

	_, err := svc.UpsertUser(ctx, "admin", nil)
	require.NoError(t, err)

	room, err := svc.CreateRoom(ctx, "abc", "admin", true)
	require.NoError(t, err)
	assert.Equal(t, "admin", room.AdminUserID)

	members, err := rooms.ListMembers(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "admin", members[0].ID)
}

func TestService_CreateRoomUnknownAdmin(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateRoom(context.Background(), "abc", "ghost", false)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestService_CreateRoomTwice(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	_, _ = svc.UpsertUser(ctx, "admin", nil)

	_, err := svc.CreateRoom(ctx, "abc", "admin", false)
	require.NoError(t, err)
	_, err = svc.CreateRoom(ctx, "abc", "admin", false)
	assert.ErrorIs(t, err, domain.ErrRoomExists)
}

func TestService_JoinRoom(t *testing.T) {
	svc, rooms, _ := newTestService()
	ctx := context.Background()
	_, _ = svc.UpsertUser(ctx, "admin", nil)
	_, err := svc.CreateRoom(ctx, "abc", "admin", false)
	require.NoError(t, err)

	require.NoError(t, svc.JoinRoom(ctx, "abc", "guest"))
	require.NoError(t, svc.JoinRoom(ctx, "abc", "guest"), "joining twice is not an error")

	members, _ := rooms.ListMembers(ctx, "abc")
	assert.Len(t, members, 2)

	assert.ErrorIs(t, svc.JoinRoom(ctx, "missing", "guest"), domain.ErrRoomNotFound)
}

func TestService_IsMember(t *testing.T) {
	svc, rooms, _ := newTestService()
	ctx := context.Background()
	rooms.addMembers("abc", "admin")

	member, err := svc.IsMember(ctx, "abc", "admin")
	require.NoError(t, err)
	assert.True(t, member)

	member, err = svc.IsMember(ctx, "abc", "stranger")
	require.NoError(t, err)
	assert.False(t, member)

	rooms.listMembersErr = errors.New("connection reset")
	_, err = svc.IsMember(ctx, "abc", "admin")
	assert.Error(t, err)
}

func TestService_UpsertUserKeepsName(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	name := "Alice"

	_, err := svc.UpsertUser(ctx, "u1", &name)
	require.NoError(t, err)
	_, err = svc.UpsertUser(ctx, "u1", nil)
	require.NoError(t, err)

	u, err := svc.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u.Name)
	assert.Equal(t, "Alice", *u.Name)

	room, err := svc.GetRoom(ctx, "nope")
	assert.Nil(t, room)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}
