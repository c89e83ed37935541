package domain

import (
	"context"
	"time"
)

type Room struct {
	ID          string
	Public      bool
	AdminUserID string
	CreatedAt   time.Time
}

type Word struct {
	Word      string
	RoomID    string
	UserID    string
	CreatedAt time.Time
}

// RoomStore is the durable source of room membership and the shared word list.
// InsertWord returns ErrWordExists when the word is already in the room.
type RoomStore interface {
	ListMembers(ctx context.Context, roomID string) ([]User, error)
	InsertWord(ctx context.Context, roomID, word, userID string) (*Word, error)
	ListWords(ctx context.Context, roomID string) ([]Word, error)
}

type RoomRepository interface {
	RoomStore
	GetByID(ctx context.Context, roomID string) (*Room, error)
	Create(ctx context.Context, roomID, adminUserID string, public bool) (*Room, error)
	Join(ctx context.Context, roomID, userID string) error
}
