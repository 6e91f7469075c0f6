package web

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"snipsense/internal/agent"
	"snipsense/internal/snippet"
)

// writeWait bounds a single websocket write.
const writeWait = time.Second

// sendBuffer is the per-client frame backlog. A client that falls further
// behind than this is dropped.
const sendBuffer = 16

// eventFrame is the wire format pushed to dashboard clients.
type eventFrame struct {
	Type        string               `json:"type"` // "state" or "suggestions"
	State       string               `json:"state,omitempty"`
	Analyzing   bool                 `json:"analyzing,omitempty"`
	Suggestions []snippet.Suggestion `json:"suggestions,omitempty"`
}

// Hub fans controller events out to websocket clients. It implements
// agent.Observer; subscribe it to the controller and hand it to NewServer.
// Broadcasting only enqueues: each connection has its own writer goroutine,
// so a slow client never holds up the caller.
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard binds to localhost; same-host pages are fine.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]chan []byte),
	}
}

// OnStateChange implements agent.Observer.
func (h *Hub) OnStateChange(state agent.State, analyzing bool) {
	h.broadcast(eventFrame{
		Type:      "state",
		State:     string(state),
		Analyzing: analyzing,
	})
}

// OnSuggestions implements agent.Observer.
func (h *Hub) OnSuggestions(suggestions []snippet.Suggestion) {
	h.broadcast(eventFrame{
		Type:        "suggestions",
		Suggestions: suggestions,
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// broadcast enqueues one frame for every client. A client whose backlog is
// full is dropped; the send never blocks.
func (h *Hub) broadcast(frame eventFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("web: encoding event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, send := range h.conns {
		select {
		case send <- payload:
		default:
			log.Printf("web: dropping stalled event client")
			close(send)
			delete(h.conns, conn)
		}
	}
}

// drop unregisters one connection. Safe to call after broadcast has already
// cut it loose.
func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if send, ok := h.conns[conn]; ok {
		close(send)
		delete(h.conns, conn)
	}
}

// writeLoop drains one client's backlog onto the wire. It owns the
// connection's write side and closes the socket when the backlog channel is
// closed or a write fails.
func (h *Hub) writeLoop(conn *websocket.Conn, send <-chan []byte) {
	defer conn.Close()
	for payload := range send {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.drop(conn)
			return
		}
	}
}

// HandleEvents upgrades the request and keeps the connection registered
// until the client goes away. Clients only listen; inbound messages are
// drained to service control frames.
func (h *Hub) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade: %v", err)
		return
	}

	send := make(chan []byte, sendBuffer)
	h.mu.Lock()
	h.conns[conn] = send
	h.mu.Unlock()

	go h.writeLoop(conn, send)

	go func() {
		defer func() {
			h.drop(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Close drops every client connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, send := range h.conns {
		close(send)
		conn.Close()
		delete(h.conns, conn)
	}
}
