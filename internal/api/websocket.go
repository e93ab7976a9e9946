package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// wsEvent is the envelope every broadcast real-time message is wrapped
// in: {"event": "firehose:post", "payload": ...}, matching spec.md §5's
// connected / firehose:post / firehose:stats / job:progress channel.
type wsEvent struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans out broadcast events to every connected /ws client, grounded
// on the gorilla/websocket register/unregister/broadcast idiom the rest
// of the retrieved pack's websocket-backed services use.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub builds an empty client registry.
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast marshals event/payload and pushes it to every connected
// client's send buffer; for a client whose buffer is full the message is
// dropped (the client stays registered) rather than allowed to stall the
// broadcaster.
func (h *Hub) Broadcast(event string, payload any) {
	body, err := json.Marshal(wsEvent{Event: event, Payload: payload})
	if err != nil {
		slog.Error("ws broadcast marshal failed", "event", event, "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- body:
		default:
			slog.Warn("ws client send buffer full, dropping message", "event", event)
		}
	}
}

// handleWebSocket implements GET /ws: upgrades the connection, registers
// it with the Hub, sends an initial "connected" event, then relays
// whatever the Hub broadcasts until the client disconnects.
func (a *App) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 32)}
	a.Hub.register(client)

	go client.writeLoop()
	go client.readLoop(a.Hub)

	client.send <- mustMarshalEvent("connected", gin.H{"connected": true})
}

func mustMarshalEvent(event string, payload any) []byte {
	body, _ := json.Marshal(wsEvent{Event: event, Payload: payload})
	return body
}

// readLoop only exists to detect client-initiated close/errors; the
// facade protocol is server-push only, so inbound frames are discarded.
func (c *wsClient) readLoop(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop drains send and periodically pings, mirroring the standard
// gorilla/websocket chat-hub pattern.
func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
