package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"duochat/contract"
	"duochat/domain"
)

const (
	maxMessageSize = 8192
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
	sendBuffer     = 256
)

// Client is one WebSocket connection. The hub owns its lifecycle; the
// read pump feeds decoded events to the handler, the write pump drains
// the send channel.
type Client struct {
	id   contract.ConnID
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	log  *slog.Logger
}

func NewClient(conn *websocket.Conn, hub *Hub, log *slog.Logger) *Client {
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		id:   contract.ConnID(uuid.New().String()),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  hub,
		log:  log,
	}
}

// trySend queues a frame without blocking. A client that cannot keep up
// loses frames rather than stalling the broadcast.
func (c *Client) trySend(frame []byte) {
	select {
	case c.send <- frame:
	default:
		c.log.Warn("Send buffer full, dropping frame", "conn", c.id)
	}
}

type joinPayload struct {
	Identity string `json:"identity"`
	Token    string `json:"token"`
}

type chatPayload struct {
	Body    string                `json:"body"`
	ReplyTo *domain.ReplySnapshot `json:"replyTo"`
}

type reactionPayload struct {
	MessageID int64  `json:"messageId"`
	Emoji     string `json:"emoji"`
	// User is accepted on the wire but never trusted; the bound identity
	// is authoritative.
	User string `json:"user"`
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("Unexpected close", "conn", c.id, "err", err)
			}
			return
		}
		c.dispatch(raw)
	}
}

// dispatch decodes one inbound frame and routes it to the handler.
// Malformed frames are dropped without notifying the client.
func (c *Client) dispatch(raw []byte) {
	var frame envelope
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.log.Debug("Dropping malformed frame", "conn", c.id, "err", err)
		return
	}

	switch frame.Event {
	case contract.EventJoin:
		var payload joinPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return
		}
		c.hub.handler.HandleJoin(c.id, payload.Identity, payload.Token)

	case contract.EventChatMessage:
		var payload chatPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return
		}
		c.hub.handler.HandleMessage(c.id, payload.Body, payload.ReplyTo)

	case contract.EventToggleReaction:
		var payload reactionPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return
		}
		c.hub.handler.HandleToggleReaction(c.id, payload.MessageID, payload.Emoji)

	case contract.EventTyping:
		c.hub.handler.HandleTyping(c.id)

	case contract.EventStopTyping:
		c.hub.handler.HandleStopTyping(c.id)

	default:
		c.log.Debug("Dropping unknown event", "conn", c.id, "event", frame.Event)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub dropped this client: say goodbye properly.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
