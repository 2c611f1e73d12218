package websocket

import (
	"context"
	"sync"

	"github.com/anjiri1684/companion_booking/logger"
	"github.com/anjiri1684/companion_booking/notifications"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

type Client struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
}

// Hub keeps one live connection per user and pushes notification intents to
// whoever is online. Offline users simply miss the push.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]*websocket.Conn
	register   chan *Client
	unregister chan *Client
	broadcast  chan notifications.Intent
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*websocket.Conn),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan notifications.Intent, 64),
	}
}

func (h *Hub) Register(c *Client)   { h.register <- c }
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

func (h *Hub) Name() string { return "websocket" }

func (h *Hub) Deliver(ctx context.Context, intent notifications.Intent) error {
	select {
	case h.broadcast <- intent:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Connected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			logger.Log.Debug("Client registered", "user_id", client.UserID)
			h.mu.Lock()
			h.clients[client.UserID] = client.Conn
			h.mu.Unlock()
		case client := <-h.unregister:
			logger.Log.Debug("Client unregistered", "user_id", client.UserID)
			h.mu.Lock()
			if conn, ok := h.clients[client.UserID]; ok && conn == client.Conn {
				delete(h.clients, client.UserID)
			}
			h.mu.Unlock()
		case intent := <-h.broadcast:
			h.mu.RLock()
			conn, ok := h.clients[intent.UserID]
			h.mu.RUnlock()
			if !ok {
				continue
			}
			if err := conn.WriteJSON(intent); err != nil {
				logger.Log.Warn("Error sending notification to client", "user_id", intent.UserID, "error", err)
				conn.Close()
				h.mu.Lock()
				if current, ok := h.clients[intent.UserID]; ok && current == conn {
					delete(h.clients, intent.UserID)
				}
				h.mu.Unlock()
			}
		}
	}
}
