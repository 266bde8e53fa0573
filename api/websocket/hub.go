package websocket

import (
	"sync"

	"github.com/predictops/autoscaler/internal/logger"
	"github.com/predictops/autoscaler/pkg/config"
)

const defaultBroadcastBuffer = 256

// Hub tracks connected clients and fans broadcast messages out to them.
// Clients that stop draining their send buffer are disconnected rather
// than allowed to back up the fan-out.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]bool
	settings *WebSocketSettings

	broadcast chan []byte
}

func NewHub(cfg *config.WebSocketConfig) *Hub {
	buffer := defaultBroadcastBuffer
	if cfg != nil && cfg.BroadcastBuffer > 0 {
		buffer = cfg.BroadcastBuffer
	}

	return &Hub{
		clients:   make(map[*Client]bool),
		settings:  NewWebSocketSettings(cfg),
		broadcast: make(chan []byte, buffer),
	}
}

// Run drains the broadcast queue. It is expected to run as a goroutine
// for the lifetime of the server.
func (h *Hub) Run() {
	for message := range h.broadcast {
		h.fanOut(message)
	}
}

func (h *Hub) fanOut(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			// Slow consumer, drop the connection.
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	logger.Infof("WebSocket client connected (total: %d)", total)
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	logger.Infof("WebSocket client disconnected (total: %d)", total)
}

func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		logger.Warn("Broadcast channel full, dropping message")
	}
}

// BroadcastToTarget sends a message only to clients subscribed to the target.
func (h *Hub) BroadcastToTarget(targetID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.targetID == targetID {
			select {
			case client.send <- message:
			default:
			}
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
