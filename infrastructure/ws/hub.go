// Package ws implements the event bus over WebSocket connections.
// The hub tracks live clients and fans frames out to them; inbound frames
// are decoded and dispatched to the registered event handler.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"duochat/contract"
	"duochat/domain"
	"duochat/observability"
)

// EventHandler receives decoded client events. Implemented by the chat
// service; declared here so the transport does not depend on it.
type EventHandler interface {
	HandleJoin(conn contract.ConnID, identity, token string)
	HandleMessage(conn contract.ConnID, body string, replyTo *domain.ReplySnapshot)
	HandleToggleReaction(conn contract.ConnID, messageID int64, emoji string)
	HandleTyping(conn contract.ConnID)
	HandleStopTyping(conn contract.ConnID)
	HandleDisconnect(conn contract.ConnID)
}

// envelope is the wire frame: {"event": "...", "data": {...}}.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub manages all WebSocket client connections. It implements
// contract.EventBus and runs as a supervised worker.
type Hub struct {
	mu         sync.RWMutex
	clients    map[contract.ConnID]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	handler    EventHandler
	monitoring *observability.Manager
	log        *slog.Logger
}

func NewHub(log *slog.Logger, monitoring *observability.Manager) *Hub {
	return &Hub{
		clients:    make(map[contract.ConnID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		monitoring: monitoring,
		log:        log,
	}
}

// BindHandler attaches the event handler. Called once during wiring,
// before the hub accepts its first connection.
func (h *Hub) BindHandler(handler EventHandler) {
	h.handler = handler
}

// Run is the hub's event loop: client registration, unregistration, and
// shutdown. Fan-out does not go through this loop; Emit* work directly on
// a locked snapshot so a stalled loop cannot block delivery.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			// Closing done unblocks pumps still trying to register or
			// unregister after this loop has stopped listening.
			close(h.done)
			h.shutdownClients()
			return ctx.Err()

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()

			h.monitoring.IncrConnectedClients(1)
			h.log.Info("Client connected", "conn", client.id, "total", total)

			go client.writePump()
			go client.readPump()

		case client := <-h.unregister:
			if h.drop(client) {
				h.monitoring.IncrConnectedClients(-1)
				h.handler.HandleDisconnect(client.id)
			}
		}
	}
}

// drop removes a client from the map and closes its send channel exactly
// once. Reports whether the client was still registered.
func (h *Hub) drop(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.id]; !ok {
		return false
	}
	delete(h.clients, client.id)
	close(client.send)
	h.log.Info("Client disconnected", "conn", client.id, "total", len(h.clients))
	return true
}

func (h *Hub) EmitAll(event string, payload any) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		h.log.Error("Encoding frame failed", "event", event, "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		client.trySend(frame)
	}
}

func (h *Hub) EmitTo(conn contract.ConnID, event string, payload any) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		h.log.Error("Encoding frame failed", "event", event, "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if client, ok := h.clients[conn]; ok {
		client.trySend(frame)
	}
}

func (h *Hub) EmitAllExcept(conn contract.ConnID, event string, payload any) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		h.log.Error("Encoding frame failed", "event", event, "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, client := range h.clients {
		if id == conn {
			continue
		}
		client.trySend(frame)
	}
}

// Close force-closes a connection. Queued frames (such as a final
// auth_error) are flushed by the write pump before the close frame goes
// out.
func (h *Hub) Close(conn contract.ConnID) {
	h.mu.RLock()
	client, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if h.drop(client) {
		h.monitoring.IncrConnectedClients(-1)
	}
}

func (h *Hub) shutdownClients() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[contract.ConnID]*Client)
	h.mu.Unlock()

	for _, client := range clients {
		close(client.send)
	}
	h.log.Info("Closed all client connections", "count", len(clients))
}

func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: event, Data: data})
}
