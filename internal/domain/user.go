package domain

import (
	"context"
	"time"
)

// User is a room participant. Name is optional for anonymous players.
type User struct {
	ID        string    `json:"id"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*User, error)
	Upsert(ctx context.Context, userID string, name *string) (*User, error)
}
