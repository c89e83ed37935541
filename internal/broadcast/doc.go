// Package broadcast owns the live WebSocket connections of this process.
//
// Registry maps a user id to at most one Handle and is the only authority for whether a
// user is reachable from here. Client is the gorilla/websocket implementation of Handle:
// a buffered send queue drained by a write goroutine, a read goroutine that decodes
// inbound frames, and a clock-driven liveness check. Frames are encoded once per fan-out
// and enqueued without blocking; a client that cannot keep up is disconnected.
package broadcast
