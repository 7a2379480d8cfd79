package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Emmyhack/TFN/internal/coordinator"
)

// Configure the websocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// The coordinator performs no authentication; identity comes from an
	// external provider. Origin checks belong at the deployment edge.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs returns an http.HandlerFunc that upgrades requests to websocket
// connections and registers them with the hub.
func ServeWs(hub *coordinator.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("failed to upgrade connection", "err", err)
			return
		}

		client := coordinator.NewClient(hub, conn)
		client.Hub.Register <- client

		// Start the client's read and write pumps in separate
		// goroutines; they own the connection from here on.
		go client.WritePump()
		go client.ReadPump()
	}
}

// Health handles liveness probes.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// NewMux returns the coordinator's HTTP routes.
func NewMux(hub *coordinator.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", Health)
	mux.HandleFunc("/ws", ServeWs(hub))
	return mux
}
