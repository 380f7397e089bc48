// Package server exposes HTTP handlers, including account endpoints, room
// management, WebSocket attach, health checks, and the built-in test page.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"parley/internal/auth"
)

// defaultUsername is substituted when a connection attaches without a
// username. No uniqueness is enforced.
const defaultUsername = "guest"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

var validate = validator.New()

// API bundles the shared stores behind the HTTP handlers. Both registries are
// injected here and into the hub; nothing is reached through package globals.
type API struct {
	hub      *Hub
	rooms    *RoomStore
	accounts *auth.Store
}

// NewAPI creates the handler set around the given hub, room store, and
// account store.
func NewAPI(hub *Hub, rooms *RoomStore, accounts *auth.Store) *API {
	return &API{hub: hub, rooms: rooms, accounts: accounts}
}

type credentialsPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type createRoomPayload struct {
	Name    string `json:"name" validate:"required"`
	Creator string `json:"creator" validate:"required"`
}

type addParticipantPayload struct {
	RoomID   uuid.UUID `json:"room_id" validate:"required"`
	Username string    `json:"username" validate:"required"`
}

// decodeJSON decodes and validates a JSON request body into dst, writing a
// 400 response and returning false when the payload is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		http.Error(w, "Missing or invalid fields", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, fmt.Sprintf("Method not allowed. This endpoint only accepts %s requests.", method), http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// RegisterHandler creates a new user account from a JSON credentials payload.
// Registering an existing username yields 409.
func (a *API) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var payload credentialsPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	if err := a.accounts.Register(payload.Username, payload.Password); err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			http.Error(w, "User already exists", http.StatusConflict)
			return
		}
		log.Printf("Error registering user %q: %v", payload.Username, err)
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "User registered successfully")
}

// LoginHandler verifies a JSON credentials payload against the account store.
func (a *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var payload credentialsPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	if !a.accounts.Authenticate(payload.Username, payload.Password) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Login successful")
}

// CreateRoomHandler allocates a new room and returns its representation.
// Room creation never fails; name collisions are not rejected.
func (a *API) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var payload createRoomPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	room := a.rooms.CreateRoom(payload.Name, payload.Creator)
	log.Printf("Room %s (%q) created by %q", room.ID, room.Name, room.CreatedBy)
	writeJSON(w, http.StatusOK, room)
}

// AddParticipantHandler adds a username to a room's declared roster and
// returns the updated room, or 404 if the room id is unknown.
func (a *API) AddParticipantHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var payload addParticipantPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	room, err := a.rooms.AddParticipant(payload.RoomID, payload.Username)
	if err != nil {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// ListRoomsHandler returns a snapshot of every room.
func (a *API) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, a.rooms.ListRooms())
}

// WebSocketHandler attaches a connection to a room. The request must carry a
// roomId query parameter that parses as a valid room id; otherwise the attempt
// is rejected before any session is created. The username parameter is
// optional and defaults to "guest".
func (a *API) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	roomID, err := uuid.Parse(r.URL.Query().Get("roomId"))
	if err != nil {
		http.Error(w, "Invalid roomId", http.StatusBadRequest)
		return
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		username = defaultUsername
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, a.hub, r.RemoteAddr, roomID, username)

	// Register the client with the hub; the hub will launch the pump
	// goroutines. If the hub has already stopped consuming registrations,
	// close the socket instead of blocking the handler forever.
	select {
	case a.hub.GetRegisterChan() <- client:
	case <-a.hub.ctx.Done():
		_ = conn.Close()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func (a *API) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Parley server is running!")
}

// TestPageHandler serves an HTML page for exercising the room endpoints and
// the WebSocket attach flow from a browser.
func (a *API) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Parley WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Parley WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="roomName" placeholder="Room name...">
        <button onclick="createRoom()">Create room</button>
        <span id="roomId"></span>
    </div>
    <div style="margin-top: 10px;">
        <input type="text" id="usernameInput" placeholder="Username (optional)">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div style="margin-top: 10px;">
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        let currentRoomId = null;
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function addMessage(message, type = 'info') {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            if (type === 'received') {
                el.style.color = 'green';
                el.textContent = message;
            } else {
                el.style.color = 'gray';
                el.innerHTML = '<em>' + message + '</em>';
            }
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        async function createRoom() {
            const name = document.getElementById('roomName').value.trim() || 'general';
            const resp = await fetch('/create_room', {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify({ name: name, creator: 'test-page' })
            });
            const room = await resp.json();
            currentRoomId = room.id;
            document.getElementById('roomId').textContent = room.id;
            addMessage('Created room ' + room.name + ' (' + room.id + ')');
        }

        function connect() {
            if (!currentRoomId) {
                addMessage('Create a room first');
                return;
            }
            const username = document.getElementById('usernameInput').value.trim();
            let url = 'ws://' + location.host + '/ws?roomId=' + currentRoomId;
            if (username) { url += '&username=' + encodeURIComponent(username); }
            ws = new WebSocket(url);
            ws.onopen = function() { addMessage('Connected'); updateStatus(true); };
            ws.onmessage = function(event) { addMessage(event.data, 'received'); };
            ws.onclose = function() { addMessage('Connection closed'); updateStatus(false); ws = null; };
            ws.onerror = function() { addMessage('Connection error'); updateStatus(false); };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) { ws.close(); } else { connect(); }
        }

        function sendMessage() {
            const message = messageInput.value.trim();
            if (message && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(message);
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') { sendMessage(); }
        });
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
