package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pscheid92/charades/internal/domain"
)

// ServerMessage is a message pushed to one or more clients. Values are immutable once built.
type ServerMessage interface{ isServerMessage() }

type baseServerMessage struct{}

func (baseServerMessage) isServerMessage() {}

type UsersUpdate struct {
	baseServerMessage
	OnlineUsers  []domain.User `json:"online_users"`
	OfflineUsers []domain.User `json:"offline_users"`
}

// WordAdded is the room-wide notice sent to everyone except the author.
type WordAdded struct {
	baseServerMessage
	NumberOfWords int `json:"number_of_words"`
}

// WordAddedPersonal is the author's private confirmation.
type WordAddedPersonal struct {
	baseServerMessage
	NumberOfWords int      `json:"number_of_words"`
	MyWords       []string `json:"my_words"`
}

type Error struct {
	baseServerMessage
	Message string `json:"error"`
}

type None struct {
	baseServerMessage
}

func NewError(message string) Error {
	return Error{Message: message}
}

// Encode renders msg as a wire frame. None carries no payload.
func Encode(msg ServerMessage) ([]byte, error) {
	var tag string
	switch m := msg.(type) {
	case UsersUpdate:
		tag = "UsersUpdate"
		msg = UsersUpdate{OnlineUsers: nonNil(m.OnlineUsers), OfflineUsers: nonNil(m.OfflineUsers)}
	case WordAdded:
		tag = "AddWord"
	case WordAddedPersonal:
		tag = "AddWordPersonal"
		if m.MyWords == nil {
			m.MyWords = []string{}
			msg = m
		}
	case Error:
		tag = "Error"
	case None:
		return json.Marshal(envelope{Type: "None"})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, msg)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", tag, err)
	}
	return json.Marshal(envelope{Type: tag, Payload: payload})
}

func nonNil(users []domain.User) []domain.User {
	if users == nil {
		return []domain.User{}
	}
	return users
}
