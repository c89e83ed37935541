// Package protocol defines the messages exchanged over a room WebSocket.
//
// Both directions use an adjacently tagged JSON envelope: {"type": "<Variant>", "payload": {...}}.
// ClientMessage and ServerMessage are closed sets; only types in this package implement them.
package protocol
