package domain

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
	ErrWordExists   = errors.New("word already in room")
	ErrCacheMiss    = errors.New("presence cache miss")
)
