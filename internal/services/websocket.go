package services

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/chachabrian/swiftride-backend/internal/observability"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Real-time event names. Every event payload carries the ride id and a
// server timestamp.
const (
	EventNewRideRequest   = "new-ride-request"
	EventRideAccepted     = "ride:accepted"
	EventRideStatusChange = "ride:status-changed"
	EventDriverArrived    = "ride:driver-arrived"
	EventRideStarted      = "ride:started"
	EventRideCompleted    = "ride:completed"
	EventRideCancelled    = "ride:cancelled"
	EventRequestExpired   = "ride:request-expired"
)

// Client represents a WebSocket client
type Client struct {
	ID       uint
	UserType string
	RideID   uint // ride the client has joined, 0 if none
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
}

// Hub maintains the set of active clients and broadcasts messages.
// It is process-local and rebuilt from scratch on every start; ride state
// always lives in the durable store, never here.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex

	// OnDisconnect is invoked after a client is removed, e.g. to reset a
	// driver's availability flags.
	OnDisconnect func(userID uint, userType string)
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			observability.ConnectedClients.Inc()
			if err := SetUserPresence(context.Background(), client.ID, client.UserType); err != nil {
				log.Printf("Failed to mirror presence for user %d: %v", client.ID, err)
			}
			log.Printf("Client %d (%s) connected", client.ID, client.UserType)

		case client := <-h.unregister:
			h.mutex.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mutex.Unlock()
			if ok {
				observability.ConnectedClients.Dec()
				if err := ClearUserPresence(context.Background(), client.ID); err != nil {
					log.Printf("Failed to clear presence for user %d: %v", client.ID, err)
				}
				if h.OnDisconnect != nil {
					h.OnDisconnect(client.ID, client.UserType)
				}
				log.Printf("Client %d disconnected", client.ID)
			}
		}
	}
}

// IsConnected reports whether any connection exists for the user.
func (h *Hub) IsConnected(userID uint) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		if client.ID == userID {
			return true
		}
	}
	return false
}

// ConnectedDriverIDs returns the ids of all currently connected drivers.
func (h *Hub) ConnectedDriverIDs() []uint {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	seen := make(map[uint]bool)
	var ids []uint
	for client := range h.clients {
		if client.UserType == "driver" && !seen[client.ID] {
			seen[client.ID] = true
			ids = append(ids, client.ID)
		}
	}
	return ids
}

// JoinRide records the ride a user's connections are following.
func (h *Hub) JoinRide(userID, rideID uint) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		if client.ID == userID {
			client.RideID = rideID
		}
	}
}

// BroadcastToUser sends a message to a specific user
func (h *Hub) BroadcastToUser(userID uint, message []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		if client.ID == userID {
			select {
			case client.Send <- message:
			default:
				// Channel full; drop rather than block the caller.
				log.Printf("Warning: could not send to client %d (channel full)", client.ID)
			}
		}
	}
}

// BroadcastToUserType sends a message to all users of a specific type
func (h *Hub) BroadcastToUserType(userType string, message []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		if client.UserType == userType {
			select {
			case client.Send <- message:
			default:
				log.Printf("Warning: could not send to client %d (channel full)", client.ID)
			}
		}
	}
}

// GetConnectedClients returns the number of connected clients
func (h *Hub) GetConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// WebSocket message envelope
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SendEvent marshals and delivers an event to one user, stamping the
// payload with the server time.
func (h *Hub) SendEvent(userID uint, event string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	message := WebSocketMessage{Type: event, Data: data}
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling %s event: %v", event, err)
		return
	}
	h.BroadcastToUser(userID, payload)
}

// HandleWebSocket handles WebSocket connections
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, userID uint, userType string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		ID:       userID,
		UserType: userType,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      hub,
	}

	client.Hub.register <- client

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var wsMessage WebSocketMessage
		if err := json.Unmarshal(message, &wsMessage); err != nil {
			log.Printf("Error unmarshaling WebSocket message: %v", err)
			continue
		}

		switch wsMessage.Type {
		case "ping":
			if err := RefreshUserPresence(context.Background(), c.ID); err != nil {
				log.Printf("Failed to refresh presence for user %d: %v", c.ID, err)
			}
			pong, _ := json.Marshal(WebSocketMessage{Type: "pong", Data: time.Now().Unix()})
			select {
			case c.Send <- pong:
			default:
			}
		case "join_ride":
			c.handleJoinRide(wsMessage.Data)
		}
	}
}

// handleJoinRide records which ride this connection is following.
func (c *Client) handleJoinRide(data interface{}) {
	payload, ok := data.(map[string]interface{})
	if !ok {
		return
	}
	rideID, ok := payload["rideId"].(float64)
	if !ok || rideID <= 0 {
		return
	}
	c.Hub.JoinRide(c.ID, uint(rideID))
	log.Printf("Client %d joined ride %d", c.ID, uint(rideID))
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
