package server

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCreateRoomReturnsEmptyRoom(t *testing.T) {
	store := NewRoomStore()

	room := store.CreateRoom("general", "alice")

	require.NotEqual(t, uuid.Nil, room.ID)
	require.Equal(t, "general", room.Name)
	require.Equal(t, "alice", room.CreatedBy)
	require.Empty(t, room.Participants)
	require.Empty(t, room.MessageLog)

	rooms := store.ListRooms()
	require.Len(t, rooms, 1)
	require.Equal(t, room.ID, rooms[0].ID)
	require.Empty(t, rooms[0].MessageLog)
}

func TestCreateRoomAllocatesUniqueIDs(t *testing.T) {
	store := NewRoomStore()

	seen := make(map[uuid.UUID]struct{})
	for i := 0; i < 100; i++ {
		room := store.CreateRoom("room", "creator")
		_, dup := seen[room.ID]
		require.False(t, dup, "room id %s allocated twice", room.ID)
		seen[room.ID] = struct{}{}
	}
}

func TestAddParticipantIsIdempotent(t *testing.T) {
	store := NewRoomStore()
	room := store.CreateRoom("general", "alice")

	first, err := store.AddParticipant(room.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, []string{"bob"}, first.Participants)

	second, err := store.AddParticipant(room.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, first.Participants, second.Participants)
}

func TestAddParticipantUnknownRoom(t *testing.T) {
	store := NewRoomStore()
	store.CreateRoom("general", "alice")

	before := store.ListRooms()

	_, err := store.AddParticipant(uuid.New(), "bob")
	require.ErrorIs(t, err, ErrRoomNotFound)

	// Failed lookups must not mutate any state.
	require.Equal(t, before, store.ListRooms())
}

func TestAppendMessagePreservesInsertionOrder(t *testing.T) {
	store := NewRoomStore()
	room := store.CreateRoom("general", "alice")

	contents := []string{"first", "second", "third"}
	for _, content := range contents {
		store.AppendMessage(room.ID, Message{RoomID: room.ID, Sender: "alice", Content: content})
	}

	history, ok := store.History(room.ID)
	require.True(t, ok)
	require.Len(t, history, len(contents))
	for i, content := range contents {
		require.Equal(t, content, history[i].Content)
	}
}

func TestAppendMessageUnknownRoomIsDropped(t *testing.T) {
	store := NewRoomStore()
	room := store.CreateRoom("general", "alice")

	store.AppendMessage(uuid.New(), Message{Sender: "ghost", Content: "lost"})

	history, ok := store.History(room.ID)
	require.True(t, ok)
	require.Empty(t, history)
}

func TestHistoryUnknownRoom(t *testing.T) {
	store := NewRoomStore()

	history, ok := store.History(uuid.New())
	require.False(t, ok)
	require.Nil(t, history)
}

func TestListRoomsOrderIsStable(t *testing.T) {
	store := NewRoomStore()
	for i := 0; i < 10; i++ {
		store.CreateRoom("room", "creator")
	}

	first := store.ListRooms()
	second := store.ListRooms()
	require.Equal(t, first, second)
}

func TestSnapshotsDoNotAliasStoreState(t *testing.T) {
	store := NewRoomStore()
	room := store.CreateRoom("general", "alice")

	snapshot, err := store.AddParticipant(room.ID, "bob")
	require.NoError(t, err)
	store.AppendMessage(room.ID, Message{RoomID: room.ID, Sender: "bob", Content: "hi"})

	// Mutating a snapshot must not reach back into the store.
	snapshot.Participants[0] = "mallory"

	fresh, err := store.AddParticipant(room.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, []string{"bob"}, fresh.Participants)

	history, ok := store.History(room.ID)
	require.True(t, ok)
	history[0].Content = "tampered"

	again, _ := store.History(room.ID)
	require.Equal(t, "hi", again[0].Content)
}
