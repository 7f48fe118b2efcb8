package broadcast

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/nasif-muhamed/LearNerd-sub001/domain/chat"
)

// Frame is one outbound socket frame. The shape mirrors the client's
// inbound frame set: a "type" discriminant plus the union of payloads.
type Frame struct {
	Type            string            `json:"type"`
	Message         *chat.Message     `json:"message,omitempty"`
	User            *chat.Participant `json:"user,omitempty"`
	UserID          string            `json:"user_id,omitempty"`
	IsTyping        bool              `json:"is_typing,omitempty"`
	IsOnline        bool              `json:"is_online,omitempty"`
	OnlineUserCount int               `json:"online_user_count,omitempty"`
	Meeting         *chat.Meeting     `json:"meeting,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// Client represents one connected room socket.
type Client struct {
	ID     string
	User   chat.Participant
	RoomID string
	Conn   *websocket.Conn

	writeMu sync.Mutex
}

func (c *Client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// Send marshals and writes one frame to this socket only.
func (c *Client) Send(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.write(data)
}

// broadcastRequest routes one frame to a room, optionally skipping the
// originating user.
type broadcastRequest struct {
	RoomID     string
	ExceptUser string
	Frame      Frame
}

// Hub manages room sockets, presence fan-out and frame broadcasting.
type Hub struct {
	clients    map[string]*Client
	rooms      map[string]map[string]bool // roomID -> set of clientIDs
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastRequest
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastRequest, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[broadcast] shutting down hub")
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case req := <-h.broadcast:
			h.handleBroadcast(req)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// Register adds a room socket and fans out presence: an incremental
// online_status to the other members and an authoritative
// room_online_status snapshot to everyone (self included; the client
// suppresses its own echo).
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a room socket and fans out the matching presence
// updates.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast sends a frame to every socket in the room.
func (h *Hub) Broadcast(roomID string, frame Frame) {
	h.broadcast <- broadcastRequest{RoomID: roomID, Frame: frame}
}

// BroadcastExcept sends a frame to every socket in the room except
// those belonging to userID.
func (h *Hub) BroadcastExcept(roomID, userID string, frame Frame) {
	h.broadcast <- broadcastRequest{RoomID: roomID, ExceptUser: userID, Frame: frame}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	if h.rooms[client.RoomID] == nil {
		h.rooms[client.RoomID] = make(map[string]bool)
	}
	h.rooms[client.RoomID][client.ID] = true
	h.mu.Unlock()

	log.Printf("[broadcast] %s connected to room %s", client.User.UserID, client.RoomID)
	h.fanOutPresence(client, true)
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	_, known := h.clients[client.ID]
	if known {
		delete(h.clients, client.ID)
		if h.rooms[client.RoomID] != nil {
			delete(h.rooms[client.RoomID], client.ID)
			if len(h.rooms[client.RoomID]) == 0 {
				delete(h.rooms, client.RoomID)
			}
		}
	}
	h.mu.Unlock()

	if known {
		log.Printf("[broadcast] %s disconnected from room %s", client.User.UserID, client.RoomID)
		h.fanOutPresence(client, false)
	}
}

func (h *Hub) fanOutPresence(client *Client, online bool) {
	h.handleBroadcast(broadcastRequest{
		RoomID:     client.RoomID,
		ExceptUser: client.User.UserID,
		Frame: Frame{
			Type:     "online_status",
			UserID:   client.User.UserID,
			IsOnline: online,
		},
	})
	h.handleBroadcast(broadcastRequest{
		RoomID: client.RoomID,
		Frame: Frame{
			Type:            "room_online_status",
			OnlineUserCount: h.RoomUserCount(client.RoomID),
		},
	})
}

func (h *Hub) handleBroadcast(req broadcastRequest) {
	data, err := json.Marshal(req.Frame)
	if err != nil {
		log.Printf("[broadcast] failed to marshal frame: %v", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[req.RoomID]))
	for clientID := range h.rooms[req.RoomID] {
		client, ok := h.clients[clientID]
		if !ok {
			continue
		}
		if req.ExceptUser != "" && client.User.UserID == req.ExceptUser {
			continue
		}
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if err := client.write(data); err != nil {
			log.Printf("[broadcast] failed to send to %s: %v", client.User.UserID, err)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		_ = client.Conn.Close()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]bool)
}

// RoomUserCount returns the number of distinct users connected to a
// room. A user with two sockets counts once.
func (h *Hub) RoomUserCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make(map[string]bool)
	for clientID := range h.rooms[roomID] {
		if client, ok := h.clients[clientID]; ok {
			users[client.User.UserID] = true
		}
	}
	return len(users)
}

// ClientCount returns the total number of connected sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
