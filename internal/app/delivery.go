package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pscheid92/charades/internal/protocol"
)

// Delivery is one routed outbound message produced by a room operation.
type Delivery interface{ isDelivery() }

type baseDelivery struct{}

func (baseDelivery) isDelivery() {}

// Private goes to a single user.
type Private struct {
	baseDelivery
	To      string
	Message protocol.ServerMessage
}

// RoomBroadcast goes to every online member of a room except Exclude.
type RoomBroadcast struct {
	baseDelivery
	RoomID  string
	Message protocol.ServerMessage
	Exclude string
}

// Deliver routes deliveries in order.
func (c *Coordinator) Deliver(ctx context.Context, deliveries []Delivery) {
	for _, d := range deliveries {
		switch d := d.(type) {
		case Private:
			c.Send(ctx, d.To, d.Message)
		case RoomBroadcast:
			c.Broadcast(ctx, d.RoomID, d.Message, d.Exclude)
		default:
			slog.WarnContext(ctx, "Unknown delivery", "delivery_type", fmt.Sprintf("%T", d))
		}
	}
}
