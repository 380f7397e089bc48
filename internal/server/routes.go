// Package server wires HTTP handlers into a ServeMux for the Parley
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: health check, account endpoints, room management, WebSocket attach,
// and the test page.
func SetupRoutes(api *API) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", api.HealthHandler)
	mux.HandleFunc("/register", api.RegisterHandler)
	mux.HandleFunc("/login", api.LoginHandler)
	mux.HandleFunc("/create_room", api.CreateRoomHandler)
	mux.HandleFunc("/add_user", api.AddParticipantHandler)
	mux.HandleFunc("/list_rooms", api.ListRoomsHandler)
	mux.HandleFunc("/ws", api.WebSocketHandler)
	mux.HandleFunc("/test", api.TestPageHandler)
	return mux
}
