package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go-batch-ledger/internal/model"
	"go-batch-ledger/pkg/logger"

	"github.com/gofiber/contrib/websocket"
)

// BroadcastBuffer is how many events may wait for the hub loop before
// Publish starts dropping them
const BroadcastBuffer = 256

// Hub fans committed ledger events out to every connected websocket client,
// in the order they were published
type Hub struct {
	Clients    map[*websocket.Conn]bool
	Register   chan *websocket.Conn
	Unregister chan *websocket.Conn
	Broadcast  chan []byte
	mutex      sync.Mutex
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[*websocket.Conn]bool),
		Register:   make(chan *websocket.Conn),
		Unregister: make(chan *websocket.Conn),
		Broadcast:  make(chan []byte, BroadcastBuffer),
		done:       make(chan struct{}),
	}
}

// Run must be called once. After ctx is done Publish no longer queues.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for conn := range h.Clients {
				conn.Close()
				delete(h.Clients, conn)
			}
			h.mutex.Unlock()
			return

		case conn := <-h.Register:
			h.mutex.Lock()
			h.Clients[conn] = true
			h.mutex.Unlock()
			logger.Get().WithField("clients", h.ClientCount()).Debug("ws client connected")

		case conn := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.Clients[conn]; ok {
				delete(h.Clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()

		case message := <-h.Broadcast:
			h.mutex.Lock()
			for conn := range h.Clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					delete(h.Clients, conn)
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.Clients)
}

// Publish queues event for broadcast without blocking the caller. Events are
// dropped once the hub has stopped or its buffer is full.
func (h *Hub) Publish(event model.LedgerEvent) {
	select {
	case <-h.done:
		return
	default:
	}

	msg, err := json.Marshal(event)
	if err != nil {
		logger.LogError("ws", "Publish", "marshal ledger event", event.Type, err)
		return
	}
	select {
	case h.Broadcast <- msg:
	default:
		logger.Get().WithField("type", event.Type).Warn("ws broadcast buffer full, event dropped")
	}
}
