package server

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestNonTextFrameRepliesToSenderOnly(t *testing.T) {
	store := NewRoomStore()
	room := store.CreateRoom("general", "alice")
	hub := NewHub(store)

	alice := newTestClient(hub, room.ID, "alice")
	bob := newTestClient(hub, room.ID, "bob")
	hub.attach(alice)
	hub.attach(bob)

	processed := alice.processFrame(websocket.BinaryMessage, []byte{0x01, 0x02})
	require.False(t, processed)

	// The diagnostic goes to the offending session only; nothing is broadcast
	// and nothing reaches history.
	require.Equal(t, nonTextWarning, receive(t, alice))
	expectNothing(t, bob)

	history, ok := store.History(room.ID)
	require.True(t, ok)
	require.Empty(t, history)
}

func TestNonTextFrameLeavesSessionAttached(t *testing.T) {
	hub := NewHub(NewRoomStore())
	client := newTestClient(hub, uuid.New(), "alice")
	hub.attach(client)

	client.processFrame(websocket.BinaryMessage, nil)

	snapshot, ok := hub.roomSnapshot(client.roomID)
	require.True(t, ok)
	require.Contains(t, snapshot, client)
}

func TestNewClientAppliesConfiguredRateLimit(t *testing.T) {
	SetConfig(&Config{RateLimit: RateLimitConfig{Burst: 2, RefillInterval: time.Minute}})
	t.Cleanup(func() { SetConfig(nil) })

	hub := NewHub(NewRoomStore())
	client := newTestClient(hub, uuid.New(), "alice")

	require.True(t, client.checkRateLimit())
	require.True(t, client.checkRateLimit())
	require.False(t, client.checkRateLimit())
}
