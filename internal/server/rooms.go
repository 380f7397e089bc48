// Package server owns the room store: room metadata, the declared participant
// roster, and the append-only in-process message history.
package server

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ErrRoomNotFound is returned when an operation references a room id that was
// never created.
var ErrRoomNotFound = errors.New("room not found")

// Room is a point-in-time snapshot of a chat room. Participants are the
// declared roster (a participant may be offline); connected sessions are
// tracked separately by the Hub. The JSON shape is the service's wire format
// for room representations.
type Room struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	CreatedBy    string    `json:"created_by"`
	Participants []string  `json:"participants"`
	MessageLog   []Message `json:"message_log"`
}

// roomState is the store-owned mutable form of a room. Snapshots copy it out
// so callers never alias store internals.
type roomState struct {
	id           uuid.UUID
	name         string
	createdBy    string
	participants map[string]struct{}
	messages     []Message
}

func (r *roomState) snapshot() Room {
	names := lo.Keys(r.participants)
	sort.Strings(names)

	return Room{
		ID:           r.id,
		Name:         r.name,
		CreatedBy:    r.createdBy,
		Participants: names,
		MessageLog:   append([]Message(nil), r.messages...),
	}
}

// RoomStore holds every room for the lifetime of the process. Rooms are never
// deleted. The store is safe for concurrent use and is injected into the hub
// and the HTTP handlers rather than living as a package global.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*roomState
}

// NewRoomStore creates an empty RoomStore.
func NewRoomStore() *RoomStore {
	return &RoomStore{rooms: make(map[uuid.UUID]*roomState)}
}

// CreateRoom allocates a room with a fresh unique id, an empty roster, and an
// empty history, and returns a snapshot of it. It never fails.
func (s *RoomStore) CreateRoom(name, creator string) Room {
	state := &roomState{
		id:           uuid.New(),
		name:         name,
		createdBy:    creator,
		participants: make(map[string]struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms[state.id] = state
	return state.snapshot()
}

// AddParticipant inserts username into the room's roster and returns the
// updated snapshot. Adding an existing participant is a no-op. Unknown room
// ids yield ErrRoomNotFound with no state mutated.
func (s *RoomStore) AddParticipant(roomID uuid.UUID, username string) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}

	state.participants[username] = struct{}{}
	return state.snapshot(), nil
}

// ListRooms returns a snapshot of every room, ordered by room id so repeated
// calls observe a stable order absent concurrent writes.
func (s *RoomStore) ListRooms() []Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := lo.MapToSlice(s.rooms, func(_ uuid.UUID, state *roomState) Room {
		return state.snapshot()
	})
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].ID.String() < rooms[j].ID.String()
	})
	return rooms
}

// AppendMessage appends msg to the room's history. Messages for rooms that
// were never created are silently dropped; session binding rules make that
// case unreachable in practice, but it must not crash.
func (s *RoomStore) AppendMessage(roomID uuid.UUID, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.rooms[roomID]
	if !ok {
		return
	}
	state.messages = append(state.messages, msg)
}

// History returns a copy of the room's message history in insertion order.
// The second return value reports whether the room exists.
func (s *RoomStore) History(roomID uuid.UUID) ([]Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	return append([]Message(nil), state.messages...), true
}
