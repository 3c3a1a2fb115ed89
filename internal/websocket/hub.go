// Package websocket carries the real-time side of the server: the
// connection registry, the per-connection read/write pumps, the typed
// message protocol, and the audio streaming path.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sorivoice/server/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Outbound buffer per connection. A full buffer marks the
	// connection dead rather than blocking the sender.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ErrConnectionClosed is returned by SendTo once a connection is dead.
// Callers must not retry sends to that connection.
var ErrConnectionClosed = errors.New("connection closed")

// WriteData is one outbound frame.
type WriteData struct {
	// Type is the websocket frame type, websocket.TextMessage or
	// websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// ConnectionHandler receives per-connection protocol events. Each
// WebSocket endpoint provides its own implementation.
type ConnectionHandler interface {
	// OnOpen runs once after the connection is registered.
	OnOpen(c *Client)
	// OnText runs for every inbound text frame.
	OnText(c *Client, data []byte)
	// OnClose runs exactly once when the connection leaves the
	// registry, on every exit path including abnormal disconnect.
	OnClose(c *Client)
}

// Hub is the connection registry. It owns every live Client; other
// components refer to connections only by their stable identifier.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewHub creates an empty registry.
func NewHub(m *metrics.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
		metrics: m,
	}
}

// Register adds a client. Adding an already-registered client is a no-op.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		return
	}
	h.clients[c.id] = c
	h.metrics.ActiveConnections.Inc()
	h.logger.Info("client registered", zap.String("connID", c.id))
}

// Unregister removes a client and runs its close hook. Safe to call
// multiple times; only the first call has an effect.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	existing, ok := h.clients[c.id]
	if !ok || existing != c {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	h.mu.Unlock()

	c.cancel()
	h.metrics.ActiveConnections.Dec()
	h.logger.Info("client unregistered", zap.String("connID", c.id))

	if c.handler != nil {
		c.handler.OnClose(c)
	}
}

// SendTo queues one frame for a connection. On failure the connection is
// removed from the registry as a side effect; the caller must treat it
// as dead.
func (h *Hub) SendTo(connID string, frame WriteData) error {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionClosed, connID)
	}

	if c.ctx.Err() != nil {
		return fmt.Errorf("%w: %s", ErrConnectionClosed, connID)
	}

	select {
	case c.send <- frame:
		h.metrics.MessagesSent.Inc()
		return nil
	default:
		// Slow consumer: the peer stopped draining. Presumed dead.
		h.metrics.SendFailures.Inc()
		h.Unregister(c)
		return fmt.Errorf("%w: send buffer full for %s", ErrConnectionClosed, connID)
	}
}

// SendJSON marshals v and queues it as a text frame.
func (h *Hub) SendJSON(connID string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return h.SendTo(connID, WriteData{Type: websocket.TextMessage, Payload: payload})
}

// Broadcast queues a text frame for every connection. Best effort: a
// failing connection is removed but the fan-out continues.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		if err := h.SendTo(id, WriteData{Type: websocket.TextMessage, Payload: payload}); err != nil {
			h.logger.Warn("broadcast delivery failed", zap.String("connID", id), zap.Error(err))
		}
	}
}

// ConnContext returns the connection's context, cancelled when the
// connection leaves the registry.
func (h *Hub) ConnContext(connID string) (context.Context, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	if !ok {
		return nil, false
	}
	return c.ctx, true
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is the middleman between one websocket connection and the hub.
// All writes to the connection flow through the send channel and a
// single writePump, keeping frames on the wire serialized.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan WriteData
	handler ConnectionHandler
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// ID returns the stable connection identifier.
func (c *Client) ID() string {
	return c.id
}

// Context is cancelled when the connection dies.
func (c *Client) Context() context.Context {
	return c.ctx
}

// Serve upgrades the HTTP request and runs the connection until it
// closes. The handler's OnClose is guaranteed to run on every exit path.
func Serve(hub *Hub, c echo.Context, handler ConnectionHandler, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("websocket upgrade failed", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		id:      uuid.NewString(),
		hub:     hub,
		conn:    conn,
		send:    make(chan WriteData, sendBufferSize),
		handler: handler,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	hub.Register(client)
	handler.OnOpen(client)

	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps inbound frames to the handler. It is the only place
// that blocks indefinitely on network reads.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read error", zap.String("connID", c.id), zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.handler.OnText(c, message)
		case websocket.BinaryMessage:
			c.logger.Warn("ignoring unexpected binary frame",
				zap.String("connID", c.id),
				zap.Int("size", len(message)))
		default:
			c.logger.Warn("received unknown frame type",
				zap.String("connID", c.id),
				zap.Int("type", messageType))
		}
	}
}

// writePump is the single writer for the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(frame.Type, frame.Payload); err != nil {
				c.logger.Error("failed to write frame",
					zap.String("connID", c.id),
					zap.Error(err))
				c.hub.Unregister(c)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.Unregister(c)
				return
			}
		}
	}
}
