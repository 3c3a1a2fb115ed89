package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sorivoice/server/internal/metrics"
)

type countingHandler struct {
	opens  atomic.Int64
	closes atomic.Int64
}

func (h *countingHandler) OnOpen(c *Client)              { h.opens.Add(1) }
func (h *countingHandler) OnText(c *Client, data []byte) {}
func (h *countingHandler) OnClose(c *Client)             { h.closes.Add(1) }

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(metrics.New(prometheus.NewRegistry()), zap.NewNop())
}

func newTestClient(id string, hub *Hub, handler ConnectionHandler, buffer int) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:      id,
		hub:     hub,
		send:    make(chan WriteData, buffer),
		handler: handler,
		logger:  zap.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	hub := newTestHub(t)
	c := newTestClient("conn-1", hub, &countingHandler{}, 1)

	hub.Register(c)
	hub.Register(c)

	if got := hub.Count(); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
}

func TestUnregisterRunsCloseHookOnce(t *testing.T) {
	hub := newTestHub(t)
	handler := &countingHandler{}
	c := newTestClient("conn-1", hub, handler, 1)

	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c)

	if got := handler.closes.Load(); got != 1 {
		t.Errorf("OnClose ran %d times, want 1", got)
	}
	if hub.Count() != 0 {
		t.Errorf("count = %d, want 0", hub.Count())
	}
	if c.ctx.Err() == nil {
		t.Error("client context should be cancelled after unregister")
	}
}

func TestSendToUnknownConnection(t *testing.T) {
	hub := newTestHub(t)

	err := hub.SendTo("missing", WriteData{Type: websocket.TextMessage, Payload: []byte("hi")})
	if !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("err = %v, want ErrConnectionClosed", err)
	}
}

func TestSendToQueuesFrame(t *testing.T) {
	hub := newTestHub(t)
	c := newTestClient("conn-1", hub, &countingHandler{}, 4)
	hub.Register(c)

	if err := hub.SendTo("conn-1", WriteData{Type: websocket.TextMessage, Payload: []byte("hi")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case frame := <-c.send:
		if string(frame.Payload) != "hi" {
			t.Errorf("payload = %q", frame.Payload)
		}
	default:
		t.Fatal("frame not queued")
	}
}

func TestSendToFullBufferRemovesClient(t *testing.T) {
	hub := newTestHub(t)
	handler := &countingHandler{}
	c := newTestClient("conn-1", hub, handler, 1)
	hub.Register(c)

	if err := hub.SendTo("conn-1", WriteData{Type: websocket.TextMessage, Payload: []byte("a")}); err != nil {
		t.Fatalf("first send should succeed: %v", err)
	}
	err := hub.SendTo("conn-1", WriteData{Type: websocket.TextMessage, Payload: []byte("b")})
	if !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("err = %v, want ErrConnectionClosed", err)
	}

	if hub.Count() != 0 {
		t.Error("slow consumer should be removed from the registry")
	}
	if handler.closes.Load() != 1 {
		t.Error("close hook should run for the removed client")
	}
}

func TestSendToAfterCancelFails(t *testing.T) {
	hub := newTestHub(t)
	c := newTestClient("conn-1", hub, &countingHandler{}, 4)
	hub.Register(c)
	c.cancel()

	err := hub.SendTo("conn-1", WriteData{Type: websocket.TextMessage, Payload: []byte("hi")})
	if !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("err = %v, want ErrConnectionClosed", err)
	}
}

func TestSendJSON(t *testing.T) {
	hub := newTestHub(t)
	c := newTestClient("conn-1", hub, &countingHandler{}, 4)
	hub.Register(c)

	if err := hub.SendJSON("conn-1", NewPongMessage("ts")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frame := <-c.send
	if frame.Type != websocket.TextMessage {
		t.Errorf("frame type = %d, want text", frame.Type)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(frame.Payload, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded["type"] != "pong" {
		t.Errorf("type = %v, want pong", decoded["type"])
	}
}

func TestBroadcastReachesEveryConnection(t *testing.T) {
	hub := newTestHub(t)
	a := newTestClient("conn-a", hub, &countingHandler{}, 4)
	b := newTestClient("conn-b", hub, &countingHandler{}, 4)
	hub.Register(a)
	hub.Register(b)

	hub.Broadcast([]byte("all"))

	for _, c := range []*Client{a, b} {
		select {
		case frame := <-c.send:
			if string(frame.Payload) != "all" {
				t.Errorf("payload = %q", frame.Payload)
			}
		default:
			t.Errorf("client %s did not receive the broadcast", c.id)
		}
	}
}

func TestConnContext(t *testing.T) {
	hub := newTestHub(t)
	c := newTestClient("conn-1", hub, &countingHandler{}, 1)
	hub.Register(c)

	ctx, ok := hub.ConnContext("conn-1")
	if !ok {
		t.Fatal("context should exist for a registered connection")
	}
	if ctx.Err() != nil {
		t.Error("context should be live")
	}

	hub.Unregister(c)
	if ctx.Err() == nil {
		t.Error("context should be cancelled after unregister")
	}

	if _, ok := hub.ConnContext("conn-1"); ok {
		t.Error("context lookup should fail after unregister")
	}
}
