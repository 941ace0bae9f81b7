// Package websocket broadcasts kernel trace events to subscribed admin
// clients, the same connection-fan-out shape the teacher's hub uses for
// task events, rebuilt over trace.Sink.Tail instead of Redis pub/sub.
package websocket

import (
	"context"
	"sync"

	"github.com/nilrun/statekit/internal/logger"
	"github.com/nilrun/statekit/internal/metrics"
	"github.com/nilrun/statekit/internal/trace"
)

// Hub manages connected WebSocket clients and fans out trace events to
// whichever of them are subscribed to each event's Kind.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *trace.Event
	register   chan *Client
	unregister chan *Client
	sink       *trace.Sink
	name       string
	mu         sync.RWMutex
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewHub builds a Hub that will tail sink under consumer name (the
// trace.Sink.Tail reader identity) once Run is called. sink may be nil,
// in which case the hub still accepts direct Broadcast calls but has
// nothing to tail.
func NewHub(sink *trace.Sink, name string) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *trace.Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sink:       sink,
		name:       name,
		stopCh:     make(chan struct{}),
	}
}

// Run starts the hub's tail-and-fanout loop. It returns once both internal
// goroutines are launched; they keep running until ctx is cancelled or
// Stop is called.
func (h *Hub) Run(ctx context.Context) {
	if h.sink != nil {
		eventCh, err := h.sink.Tail(ctx, h.name)
		if err != nil {
			logger.Error().Err(err).Msg("failed to tail trace stream")
			return
		}

		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-h.stopCh:
					return
				case event, ok := <-eventCh:
					if !ok {
						return
					}
					h.broadcast <- event
				}
			}
		}()
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ctx.Done():
				h.closeAllClients()
				return
			case <-h.stopCh:
				h.closeAllClients()
				return
			case client := <-h.register:
				h.mu.Lock()
				h.clients[client] = true
				h.mu.Unlock()
				metrics.SetWebSocketConnections(float64(h.ClientCount()))
				logger.Debug().Str("client_id", client.ID).Msg("client registered")

			case client := <-h.unregister:
				h.mu.Lock()
				if _, ok := h.clients[client]; ok {
					delete(h.clients, client)
					close(client.send)
				}
				h.mu.Unlock()
				metrics.SetWebSocketConnections(float64(h.ClientCount()))
				logger.Debug().Str("client_id", client.ID).Msg("client unregistered")

			case event := <-h.broadcast:
				h.broadcastEvent(event)
			}
		}
	}()

	logger.Info().Msg("admin websocket hub started")
}

// Stop shuts the hub down and waits for its goroutines to exit.
func (h *Hub) Stop() {
	close(h.stopCh)
	h.wg.Wait()
	logger.Info().Msg("admin websocket hub stopped")
}

// Register adds client to the hub's fanout set.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes client from the hub's fanout set.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast queues event for fanout, dropping it if the internal buffer
// is full rather than blocking the caller.
func (h *Hub) Broadcast(event *trace.Event) {
	select {
	case h.broadcast <- event:
	default:
		logger.Warn().Msg("broadcast channel full, dropping trace event")
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastEvent(event *trace.Event) {
	data, err := event.ToJSON()
	if err != nil {
		logger.Error().Err(err).Msg("failed to serialize trace event for broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.IsSubscribed(event.Kind) {
			continue
		}

		select {
		case client.send <- data:
			metrics.RecordWebSocketMessage(string(event.Kind))
		default:
			go func(c *Client) {
				h.unregister <- c
			}(client)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}
