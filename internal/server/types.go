// Package server defines shared message types and utility helpers that are
// reused across client and hub logic.
package server

import (
	"strings"

	"github.com/google/uuid"
)

// Message is a single chat message as recorded in a room's history. Messages
// are created by the hub when a text frame arrives and are never mutated
// afterwards.
type Message struct {
	RoomID  uuid.UUID `json:"room_id"`
	Sender  string    `json:"sender"`
	Content string    `json:"content"`
}

// BroadcastMessage carries an inbound text frame from a client session to the
// hub. The sender identifies the originating session and, through it, the room
// the message is scoped to.
type BroadcastMessage struct {
	Sender  *Client
	Content string
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
