// Package server coordinates session attach/detach and per-room message
// fan-out for the Parley WebSocket system via the Hub type.
package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Hub is the session registry and broadcast dispatcher. It tracks, per room,
// the set of currently attached client sessions and fans every inbound text
// frame out to all of them. Registration, unregistration, and broadcast all
// flow through channels consumed by a single Run loop; the session map itself
// is additionally mutex-protected so delivery paths can read it safely.
type Hub struct {
	rooms      *RoomStore
	sessions   map[uuid.UUID]map[*Client]struct{}
	broadcast  chan BroadcastMessage
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub that appends broadcast messages to the given room
// store. The returned Hub is ready once Run is started in a goroutine.
func NewHub(rooms *RoomStore) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:      rooms,
		sessions:   make(map[uuid.UUID]map[*Client]struct{}),
		broadcast:  make(chan BroadcastMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for attaching new client sessions.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for detaching client sessions.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// GetBroadcastChan returns the channel used for dispatching inbound messages.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetBroadcastChan() chan<- BroadcastMessage {
	return h.broadcast
}

// Run starts the hub's main event loop, handling session attach, detach, and
// message dispatch. This method should be called in a separate goroutine as
// it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			// Attach before the pumps start so the session's own room entry
			// exists by the time its first inbound frame arrives.
			h.attach(client)

			// A handle without a network connection gets no pumps.
			if client.conn != nil {
				h.wg.Add(2)
				go func() {
					defer h.wg.Done()
					client.writePump()
				}()
				go func() {
					defer h.wg.Done()
					client.readPump()
				}()
			}

		case client := <-h.unregister:
			h.detach(client)

		case broadcastMsg := <-h.broadcast:
			h.handleBroadcast(broadcastMsg)
		}
	}
}

// attach registers the client's handle under its room, creating the room's
// membership entry on first use.
func (h *Hub) attach(client *Client) {
	h.mutex.Lock()
	client.closed = false
	members, ok := h.sessions[client.roomID]
	if !ok {
		members = make(map[*Client]struct{})
		h.sessions[client.roomID] = members
	}
	members[client] = struct{}{}
	occupancy := len(members)
	h.mutex.Unlock()

	log.Printf("Client %s attached to room %s as %q. Occupancy: %d", client.addr, client.roomID, client.username, occupancy)
}

// detach removes the client's handle from its room by identity. Detaching a
// handle that was already removed is a no-op, which covers abnormal
// double-close. The send channel is closed only after the handle has left the
// registry, so the registry never holds a dangling handle.
func (h *Hub) detach(client *Client) {
	if client == nil {
		return
	}

	h.mutex.Lock()
	members, ok := h.sessions[client.roomID]
	if ok {
		_, ok = members[client]
	}
	if !ok {
		h.mutex.Unlock()
		return
	}
	delete(members, client)
	client.closed = true
	occupancy := len(members)
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	log.Printf("Client %s detached from room %s. Occupancy: %d", client.addr, client.roomID, occupancy)
}

// roomSnapshot returns a copied view of the room's current membership. The
// second return value reports whether the room has a membership entry at all;
// an existing-but-empty entry is not the same as no entry.
func (h *Hub) roomSnapshot(roomID uuid.UUID) ([]*Client, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	members, ok := h.sessions[roomID]
	if !ok {
		return nil, false
	}

	snapshot := make([]*Client, 0, len(members))
	for client := range members {
		snapshot = append(snapshot, client)
	}
	return snapshot, true
}

// handleBroadcast dispatches one inbound text frame: snapshot the room's
// membership, deliver the content to every attached session including the
// sender, then append the message to the room's history.
func (h *Hub) handleBroadcast(broadcastMsg BroadcastMessage) {
	sender := broadcastMsg.Sender
	if sender == nil {
		log.Printf("Dropping broadcast without a sender")
		return
	}

	recipients, ok := h.roomSnapshot(sender.roomID)
	if !ok {
		// No membership entry for the room: nothing is sent, nothing recorded.
		log.Printf("Dropping message for room %s with no membership entry", sender.roomID)
		return
	}

	msg := Message{RoomID: sender.roomID, Sender: sender.username, Content: broadcastMsg.Content}
	payload := []byte(msg.Content)

	log.Printf("Broadcasting message from %q to %d sessions in room %s", msg.Sender, len(recipients), msg.RoomID)

	var failed []*Client
	for _, client := range recipients {
		// Delivery is unconditional over the snapshot; the sender hears its
		// own message back. A recipient that is gone or saturated never
		// aborts the remaining fan-out.
		if !h.safeSend(client, payload) {
			failed = append(failed, client)
		}
	}
	h.removeFailedClients(failed)

	// History is appended after delivery completes. Unknown rooms are
	// silently skipped by the store; delivery is not rolled back.
	h.rooms.AppendMessage(msg.RoomID, msg)
}

func (h *Hub) safeSend(client *Client, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	members, ok := h.sessions[client.roomID]
	if !ok {
		return false
	}
	if _, attached := members[client]; !attached || client.closed {
		return false
	}

	// Try to send the message (channel might be closed, so we need to recover from panic)
	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// removeFailedClients detaches sessions whose delivery failed and closes
// their send channels outside the lock.
func (h *Hub) removeFailedClients(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range failed {
		members, ok := h.sessions[client.roomID]
		if !ok {
			continue
		}
		if _, attached := members[client]; attached {
			delete(members, client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			log.Printf("Client %s removed from room %s due to full send buffer", client.addr, client.roomID)
		}
	}
	h.mutex.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients detaches and closes every active client connection across
// all rooms. The registry is emptied under the lock first so no delivery path
// can race the channel closes; closing the send channels is what lets the
// write pumps drain and exit.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	var clients []*Client
	for _, members := range h.sessions {
		for client := range members {
			client.closed = true
			clients = append(clients, client)
		}
	}
	h.sessions = make(map[uuid.UUID]map[*Client]struct{})
	h.mutex.Unlock()

	for _, client := range clients {
		close(client.send)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines
// to complete. It returns after all client connections are closed and
// goroutines have finished, or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	// Signal shutdown
	h.cancel()

	// Wait for Run() to complete
	<-h.done

	// Wait for all client goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
