package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nilrun/statekit/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests to WebSocket connections registered
// against a Hub.
type Handler struct {
	hub *Hub
}

// NewHandler builds a Handler serving connections through hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// ServeWS upgrades the request and hands the resulting client to the hub,
// subscribed to every trace.Kind by default.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	client := NewClient(h.hub, conn)
	client.SubscribeAll()
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	logger.Info().
		Str("client_id", client.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("websocket client connected")
}
