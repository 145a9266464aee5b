// Package ws pushes connectivity state changes to connected UIs over a
// websocket, so the status indicator updates without polling.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"tillsync/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The server binds to loopback for the local UI; origin checks add
	// nothing there.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans state snapshots out to every connected client.
type Hub struct {
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	last    []byte
}

// NewHub creates a hub. Call Run in a goroutine before serving.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 8),
		clients:    make(map[*websocket.Conn]bool),
	}
}

// Run is the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			last := h.last
			h.mu.Unlock()
			log.Printf("[WSHub] Client connected")

			// New clients get the current state right away.
			if last != nil {
				if err := conn.WriteMessage(websocket.TextMessage, last); err != nil {
					h.drop(conn)
				}
			}

		case conn := <-h.unregister:
			h.drop(conn)

		case message := <-h.broadcast:
			h.mu.Lock()
			h.last = message
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// BroadcastState serializes a connectivity snapshot and sends it to all
// clients. Wire it as a tracker subscriber.
func (h *Hub) BroadcastState(state model.ConnectivityState) {
	data, err := json.Marshal(state)
	if err != nil {
		log.Printf("[WSHub] Failed to marshal state: %v", err)
		return
	}
	h.broadcast <- data
}

// ServeHTTP upgrades the request and parks the connection in the hub.
// Clients are write-only from the server's perspective; the read loop
// exists to detect disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WSHub] Upgrade failed: %v", err)
		return
	}
	h.register <- conn

	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
