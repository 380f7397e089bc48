// Package integration contains security-focused integration tests.
//
// These tests verify that the security constraints are properly enforced,
// including origin validation, message size limits, and rate limiting.
package integration

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"parley/internal/server"
	"parley/test/testhelpers"
)

func TestOriginValidation(t *testing.T) {
	env := startTestEnv(t, nil)
	room := createRoom(t, env, "general", "alice")
	wsURL := buildWebSocketURL(t, env.server.URL, room.ID.String(), "alice")

	t.Run("Missing Origin header", func(t *testing.T) {
		conn, resp, err := testhelpers.ConnectWebSocket(wsURL, "")
		if err == nil {
			_ = conn.Close()
			t.Fatal("Expected connection to fail with missing origin")
		}
		if resp != nil {
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != http.StatusForbidden {
				t.Errorf("Expected status %d, got %d", http.StatusForbidden, resp.StatusCode)
			}
		}
	})

	t.Run("Disallowed origin", func(t *testing.T) {
		conn, resp, err := testhelpers.ConnectWebSocket(wsURL, "http://evil.example")
		if err == nil {
			_ = conn.Close()
			t.Fatal("Expected connection to fail with disallowed origin")
		}
		if resp != nil {
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != http.StatusForbidden {
				t.Errorf("Expected status %d, got %d", http.StatusForbidden, resp.StatusCode)
			}
		}
	})

	t.Run("Allowed origin connects", func(t *testing.T) {
		conn, resp, err := testhelpers.ConnectWebSocket(wsURL, env.server.URL)
		if err != nil {
			t.Fatalf("Expected connection to succeed: %v", err)
		}
		defer func() { _ = conn.Close() }()
		_ = resp.Body.Close()
	})
}

func TestMessageSizeLimit(t *testing.T) {
	env := startTestEnv(t, func(cfg *server.Config) {
		cfg.MaxMessageSize = 32
	})
	room := createRoom(t, env, "general", "alice")

	sender := dialRoom(t, env, room.ID.String(), "sender")
	receiver := dialRoom(t, env, room.ID.String(), "receiver")

	oversized := strings.Repeat("x", 128)
	if err := sender.WriteMessage(websocket.TextMessage, []byte(oversized)); err != nil {
		t.Fatalf("Failed to send oversized message: %v", err)
	}

	// The oversized frame terminates the sender's read loop; nothing is
	// broadcast or recorded.
	expectNoMessage(t, receiver, 300*time.Millisecond)

	history, _ := env.rooms.History(room.ID)
	if len(history) != 0 {
		t.Errorf("Oversized message must not reach history, got %d entries", len(history))
	}
}

func TestRateLimitDropsExcessMessages(t *testing.T) {
	env := startTestEnv(t, func(cfg *server.Config) {
		cfg.RateLimit.Burst = 2
		cfg.RateLimit.RefillInterval = time.Minute
	})
	room := createRoom(t, env, "general", "alice")

	sender := dialRoom(t, env, room.ID.String(), "sender")
	receiver := dialRoom(t, env, room.ID.String(), "receiver")

	for i := 0; i < 4; i++ {
		if err := sender.WriteMessage(websocket.TextMessage, []byte("burst")); err != nil {
			t.Fatalf("Failed to send message %d: %v", i, err)
		}
	}

	messages := collectMessages(t, receiver, 500*time.Millisecond)
	if len(messages) != 2 {
		t.Errorf("Expected exactly 2 deliveries within the burst, got %d (%v)", len(messages), messages)
	}

	history, _ := env.rooms.History(room.ID)
	if len(history) != 2 {
		t.Errorf("Expected 2 history entries within the burst, got %d", len(history))
	}
}
