// Package server implements the core HTTP and WebSocket functionality for the
// Parley chat service.
//
// The implementation is organized into specialized files for configuration,
// the room store, the session hub, client connections, routing, and HTTP
// handlers to keep the codebase maintainable and testable as the project grows.
package server
