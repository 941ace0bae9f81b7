package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Kind identifies what a trace Event records, mirroring trace.Kind.
type Kind string

const (
	KindContextSwitch  Kind = "context_switch"
	KindTaskCreated    Kind = "task_created"
	KindTaskStarted    Kind = "task_started"
	KindTaskTerminated Kind = "task_terminated"
	KindSemaphoreTake  Kind = "semaphore_take"
	KindSemaphoreGive  Kind = "semaphore_give"
	KindFlagGive       Kind = "flag_give"
)

// Event mirrors trace.Event's JSON shape.
type Event struct {
	Kind     Kind                   `json:"kind"`
	Time     time.Time              `json:"time"`
	TaskID   uint64                 `json:"task_id,omitempty"`
	TaskName string                 `json:"task_name,omitempty"`
	FromID   uint64                 `json:"from_id,omitempty"`
	FromName string                 `json:"from_name,omitempty"`
	Extra    map[string]interface{} `json:"extra,omitempty"`
}

// WebSocketClient handles the WebSocket connection to the admin surface's
// trace-event stream.
type WebSocketClient struct {
	conn      *websocket.Conn
	baseURL   string
	events    chan *Event
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	connected bool
	apiKey    string
}

func newWebSocketClient(baseURL, apiKey string) *WebSocketClient {
	return &WebSocketClient{
		baseURL: baseURL,
		events:  make(chan *Event, 100),
		done:    make(chan struct{}),
		apiKey:  apiKey,
	}
}

// Connect establishes a WebSocket connection to the admin surface.
func (ws *WebSocketClient) Connect(ctx context.Context) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.connected {
		return nil
	}

	u, err := url.Parse(ws.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/admin/ws"

	headers := make(map[string][]string)
	if ws.apiKey != "" {
		headers["X-API-Key"] = []string{ws.apiKey}
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	ws.conn = conn
	ws.connected = true
	ws.done = make(chan struct{})

	go ws.readLoop()

	return nil
}

func (ws *WebSocketClient) readLoop() {
	defer func() {
		ws.mu.Lock()
		ws.connected = false
		ws.mu.Unlock()
		close(ws.events)
	}()

	for {
		select {
		case <-ws.done:
			return
		default:
			_, message, err := ws.conn.ReadMessage()
			if err != nil {
				return
			}

			var event Event
			if err := json.Unmarshal(message, &event); err != nil {
				continue
			}

			select {
			case ws.events <- &event:
			case <-ws.done:
				return
			default:
				select {
				case <-ws.events:
				default:
				}
				ws.events <- &event
			}
		}
	}
}

// Events returns a channel that receives trace events from the server.
func (ws *WebSocketClient) Events() <-chan *Event {
	return ws.events
}

// Close closes the WebSocket connection.
func (ws *WebSocketClient) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		close(ws.done)
		ws.mu.Lock()
		defer ws.mu.Unlock()
		if ws.conn != nil {
			err = ws.conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			_ = ws.conn.Close()
		}
	})
	return err
}

// IsConnected returns whether the WebSocket is currently connected.
func (ws *WebSocketClient) IsConnected() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.connected
}

// Subscribe sends a subscription request for specific trace Kinds.
func (ws *WebSocketClient) Subscribe(kinds ...Kind) error {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	if !ws.connected || ws.conn == nil {
		return fmt.Errorf("not connected")
	}

	msg := map[string]interface{}{
		"action": "subscribe",
		"kinds":  kinds,
	}

	return ws.conn.WriteJSON(msg)
}

// Unsubscribe sends an unsubscription request for specific trace Kinds.
func (ws *WebSocketClient) Unsubscribe(kinds ...Kind) error {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	if !ws.connected || ws.conn == nil {
		return fmt.Errorf("not connected")
	}

	msg := map[string]interface{}{
		"action": "unsubscribe",
		"kinds":  kinds,
	}

	return ws.conn.WriteJSON(msg)
}
