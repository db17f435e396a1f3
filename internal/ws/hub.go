package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// Client wraps a websocket connection for one user. Writes are
// serialized because gorilla connections allow a single writer.
type Client struct {
	Conn *websocket.Conn
	Info ConnInfo

	writeMu sync.Mutex
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, info ConnInfo) *Client {
	return &Client{Conn: conn, Info: info}
}

func (c *Client) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains the active connection per user and the chat rooms each
// connection belongs to. One connection per user: a reconnect replaces
// the previous connection.
type Hub struct {
	clients map[int]*Client
	rooms   map[int]map[int]*Client
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[int]*Client),
		rooms:   make(map[int]map[int]*Client),
	}
}

// Register binds the client to its user and rooms. Any previous
// connection for the same user is closed and replaced.
func (h *Hub) Register(_ context.Context, client *Client, rooms []int) {
	userID := client.Info.UserID

	h.mu.Lock()
	prev := h.clients[userID]
	h.clients[userID] = client
	for _, chatID := range rooms {
		if _, ok := h.rooms[chatID]; !ok {
			h.rooms[chatID] = make(map[int]*Client)
		}
		h.rooms[chatID][userID] = client
	}
	h.mu.Unlock()

	if prev != nil && prev.Conn != nil {
		prev.Conn.Close()
	}
}

// Unregister removes the client. A newer connection for the same user
// is left untouched.
func (h *Hub) Unregister(_ context.Context, client *Client) {
	userID := client.Info.UserID

	h.mu.Lock()
	if current, ok := h.clients[userID]; !ok || current != client {
		h.mu.Unlock()
		return
	}
	delete(h.clients, userID)
	for chatID, members := range h.rooms {
		if members[userID] == client {
			delete(members, userID)
			if len(members) == 0 {
				delete(h.rooms, chatID)
			}
		}
	}
	h.mu.Unlock()
}

// JoinRoom subscribes a connected user to a chat room.
func (h *Hub) JoinRoom(userID, chatID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[userID]
	if !ok {
		return
	}
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[int]*Client)
	}
	h.rooms[chatID][userID] = client
}

// IsOnline reports whether the user has a live connection on this
// instance.
func (h *Hub) IsOnline(userID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Send delivers one event to one user.
func (h *Hub) Send(userID int, event string, payload interface{}) bool {
	h.mu.RLock()
	client := h.clients[userID]
	h.mu.RUnlock()
	if client == nil {
		return false
	}

	data, err := json.Marshal(models.SocketEvent{Event: event, Payload: payload})
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return false
	}
	if err := client.write(data); err != nil {
		log.Printf("websocket write error: %v", err)
		h.drop(client, event, err)
		return false
	}
	observability.IncWSEvent(event)
	return true
}

// BroadcastToRoom sends an event to every connected member of a chat.
func (h *Hub) BroadcastToRoom(chatID int, exceptUserID int, event string, payload interface{}) {
	h.mu.RLock()
	members := make(map[int]*Client, len(h.rooms[chatID]))
	for userID, client := range h.rooms[chatID] {
		members[userID] = client
	}
	h.mu.RUnlock()

	data, err := json.Marshal(models.SocketEvent{Event: event, Payload: payload})
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return
	}
	for userID, client := range members {
		if userID == exceptUserID {
			continue
		}
		if err := client.write(data); err != nil {
			log.Printf("websocket write error: %v", err)
			h.drop(client, event, err)
			continue
		}
		observability.IncWSEvent(event)
	}
}

func (h *Hub) drop(client *Client, event string, cause error) {
	client.Conn.Close()
	h.Unregister(context.Background(), client)
	_ = observability.PublishEvent(context.Background(), "ws_events.connections",
		observability.NewEnvelope("ws_events", "ws_error", map[string]interface{}{
			"conn_id": client.Info.ConnID,
			"user_id": client.Info.UserID,
			"event":   event,
			"reason":  cause.Error(),
		}),
		observability.BuildHeaders(client.Info.RequestID, client.Info.TraceID))
}
