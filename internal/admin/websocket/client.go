package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nilrun/statekit/internal/logger"
	"github.com/nilrun/statekit/internal/trace"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait).
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Send buffer size.
	sendBufferSize = 256
)

// Client is one WebSocket connection subscribed to a subset of trace.Kinds.
type Client struct {
	ID            string
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[trace.Kind]bool
	subMu         sync.RWMutex
}

// NewClient wraps conn as a hub-managed client with no subscriptions yet.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:            uuid.New().String()[:8],
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		subscriptions: make(map[trace.Kind]bool),
	}
}

// Subscribe adds kind to the client's subscription set.
func (c *Client) Subscribe(kind trace.Kind) {
	c.subMu.Lock()
	c.subscriptions[kind] = true
	c.subMu.Unlock()
}

// Unsubscribe removes kind from the client's subscription set.
func (c *Client) Unsubscribe(kind trace.Kind) {
	c.subMu.Lock()
	delete(c.subscriptions, kind)
	c.subMu.Unlock()
}

// SubscribeAll subscribes the client to every known trace.Kind.
func (c *Client) SubscribeAll() {
	c.subMu.Lock()
	c.subscriptions[trace.KindContextSwitch] = true
	c.subscriptions[trace.KindTaskCreated] = true
	c.subscriptions[trace.KindTaskStarted] = true
	c.subscriptions[trace.KindTaskTerminated] = true
	c.subscriptions[trace.KindSemaphoreTake] = true
	c.subscriptions[trace.KindSemaphoreGive] = true
	c.subscriptions[trace.KindFlagGive] = true
	c.subMu.Unlock()
}

// IsSubscribed reports whether the client wants events of kind. A client
// with no subscriptions at all receives everything.
func (c *Client) IsSubscribed(kind trace.Kind) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	if len(c.subscriptions) == 0 {
		return true
	}
	return c.subscriptions[kind]
}

// ReadPump pumps client messages (subscription commands) into handleMessage
// until the connection closes, then unregisters the client from the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error().Err(err).Str("client_id", c.ID).Msg("websocket read error")
			}
			break
		}
		c.handleMessage(message)
	}
}

// WritePump drains c.send to the connection and keeps it alive with
// periodic pings until the channel closes or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				_, _ = w.Write([]byte{'\n'})
				_, _ = w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ClientMessage is a client->server control message, e.g. a subscription
// change. Only logged today; no commands are interpreted yet.
type ClientMessage struct {
	Action string   `json:"action"`
	Kinds  []string `json:"kinds,omitempty"`
}

func (c *Client) handleMessage(message []byte) {
	logger.Debug().
		Str("client_id", c.ID).
		Str("message", string(message)).
		Msg("received client message")
}
