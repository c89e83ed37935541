// Package app provides the application layer.
//
// Coordinator runs the live side of a room: it is the dispatcher for every connection,
// keeps the presence cache in step with the registry and fans out presence and word
// updates. Service covers the request/response side (room and user lookups) the HTTP
// layer needs before a socket is handed to the Coordinator.
// Depends on domain interfaces, not concrete implementations.
package app
