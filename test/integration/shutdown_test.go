package integration

import (
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"parley/internal/server"
	"parley/test/testhelpers"
)

// TestGracefulShutdown verifies that an idle hub shuts down cleanly.
func TestGracefulShutdown(t *testing.T) {
	hub := server.NewHub(server.NewRoomStore())
	go hub.Run()

	time.Sleep(50 * time.Millisecond)

	if err := hub.Shutdown(5 * time.Second); err != nil {
		t.Errorf("Hub shutdown failed: %v", err)
	}
}

// TestGracefulShutdownWithClients verifies that active client connections are
// properly closed during graceful shutdown.
func TestGracefulShutdownWithClients(t *testing.T) {
	env := startTestEnv(t, nil)
	room := createRoom(t, env, "general", "alice")

	const numClients = 5
	conns := make([]*websocket.Conn, numClients)
	for i := range conns {
		conns[i] = dialRoom(t, env, room.ID.String(), "user")
	}

	if err := env.hub.Shutdown(5 * time.Second); err != nil {
		t.Errorf("Hub shutdown failed: %v", err)
	}

	// Every connection should observe a close or error shortly after.
	for i, conn := range conns {
		if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
			t.Fatalf("Failed to set read deadline: %v", err)
		}
		if _, _, err := conn.ReadMessage(); err == nil {
			t.Errorf("Client %d still connected after shutdown", i)
		}
	}
}

// TestAttachAfterShutdownClosesConnection verifies that an upgrade arriving
// after the hub has stopped does not strand the handler: the socket is closed
// promptly instead of the registration blocking forever.
func TestAttachAfterShutdownClosesConnection(t *testing.T) {
	env := startTestEnv(t, nil)
	room := createRoom(t, env, "general", "alice")

	if err := env.hub.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Hub shutdown failed: %v", err)
	}

	wsURL := buildWebSocketURL(t, env.server.URL, room.ID.String(), "late")
	conn, resp, err := testhelpers.ConnectWebSocket(wsURL, env.server.URL)
	if err != nil {
		// Rejected during the handshake is an acceptable outcome too.
		return
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, _, err = conn.ReadMessage()
	if err == nil {
		t.Fatal("Expected the connection to be closed after shutdown")
	}
	// A deadline timeout means the socket was left open and the attach is
	// still parked somewhere; only a close/EOF style error is acceptable.
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		t.Errorf("Connection still open after shutdown: %v", err)
	}
}

// TestShutdownIsIdempotent verifies that shutting an already-stopped hub down
// again returns promptly.
func TestShutdownIsIdempotent(t *testing.T) {
	hub := server.NewHub(server.NewRoomStore())
	go hub.Run()
	time.Sleep(20 * time.Millisecond)

	if err := hub.Shutdown(time.Second); err != nil {
		t.Errorf("First shutdown failed: %v", err)
	}
	if err := hub.Shutdown(time.Second); err != nil {
		t.Errorf("Second shutdown failed: %v", err)
	}
}
