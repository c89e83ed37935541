package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/pscheid92/charades/internal/domain"
)

// Service exposes room and user lookups to the HTTP layer.
type Service struct {
	rooms domain.RoomRepository
	users domain.UserRepository
}

func NewService(rooms domain.RoomRepository, users domain.UserRepository) *Service {
	return &Service{rooms: rooms, users: users}
}

// GetRoom returns domain.ErrRoomNotFound for unknown rooms.
func (s *Service) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	return s.rooms.GetByID(ctx, roomID)
}

// IsMember reports whether userID has joined roomID.
func (s *Service) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	members, err := s.rooms.ListMembers(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("failed to list room members: %w", err)
	}
	return slices.ContainsFunc(members, func(u domain.User) bool { return u.ID == userID }), nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// CreateRoom creates roomID with adminUserID as its first member.
func (s *Service) CreateRoom(ctx context.Context, roomID, adminUserID string, public bool) (*domain.Room, error) {
	if _, err := s.users.GetByID(ctx, adminUserID); err != nil {
		return nil, fmt.Errorf("failed to load room admin: %w", err)
	}

	room, err := s.rooms.Create(ctx, roomID, adminUserID, public)
	if err != nil {
		return nil, err
	}

	if err := s.rooms.Join(ctx, roomID, adminUserID); err != nil {
		return nil, fmt.Errorf("failed to add admin to room: %w", err)
	}
	return room, nil
}

// JoinRoom adds userID to roomID's durable membership. Joining twice is not an error.
func (s *Service) JoinRoom(ctx context.Context, roomID, userID string) error {
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		return err
	}
	return s.rooms.Join(ctx, roomID, userID)
}

func (s *Service) UpsertUser(ctx context.Context, userID string, name *string) (*domain.User, error) {
	return s.users.Upsert(ctx, userID, name)
}
