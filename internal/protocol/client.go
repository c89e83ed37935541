package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownType    = errors.New("unknown message type")
	ErrMissingPayload = errors.New("missing message payload")
)

// ClientMessage is a message received from a connected client.
type ClientMessage interface{ isClientMessage() }

type baseClientMessage struct{}

func (baseClientMessage) isClientMessage() {}

type StartSession struct {
	baseClientMessage
	SessionID string
}

type AddWord struct {
	baseClientMessage
	Word string
}

const (
	typeStartSession = "StartSession"
	typeAddWord      = "AddWord"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeClientMessage parses one inbound text frame.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	switch env.Type {
	case typeStartSession:
		var p struct {
			SessionID *string `json:"session_id"`
		}
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		if p.SessionID == nil {
			return nil, fmt.Errorf("%s: %w", env.Type, ErrMissingPayload)
		}
		return StartSession{SessionID: *p.SessionID}, nil

	case typeAddWord:
		var p struct {
			Word *string `json:"word"`
		}
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		if p.Word == nil {
			return nil, fmt.Errorf("%s: %w", env.Type, ErrMissingPayload)
		}
		return AddWord{Word: *p.Word}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return ErrMissingPayload
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}
