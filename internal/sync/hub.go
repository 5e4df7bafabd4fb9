// internal/sync/hub.go
package sync

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// UpdateType identifies what a connected client should resync
type UpdateType string

const (
	// Vault updates
	UpdateCiphers UpdateType = "sync_ciphers"
	UpdateVault   UpdateType = "sync_vault"

	// Organization updates
	UpdateOrgKeys UpdateType = "sync_org_keys"

	// System messages
	UpdatePing UpdateType = "ping"
	UpdatePong UpdateType = "pong"
	UpdateAck  UpdateType = "ack"
)

// Message is a notification sent to a client
type Message struct {
	Type      UpdateType             `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Hub maintains the set of connected clients. Clients are indexed by user ID
// for direct updates and by organization room for org-wide broadcasts.
type Hub struct {
	clients map[*Client]bool

	// Clients indexed by user ID
	userClients map[string]map[*Client]bool

	// Clients indexed by organization room
	orgClients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// Direct update to one user's connections
	userUpdate chan *userMessage

	// Broadcast to every member connected for one organization
	orgUpdate chan *orgMessage

	mu sync.RWMutex
}

type userMessage struct {
	UserID  string
	Message []byte
}

type orgMessage struct {
	OrgID   string
	Message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[string]map[*Client]bool),
		orgClients:  make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		userUpdate:  make(chan *userMessage, 256),
		orgUpdate:   make(chan *orgMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	log.Println("[Hub] Sync notification hub started")

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case um := <-h.userUpdate:
			h.sendToUser(um)

		case om := <-h.orgUpdate:
			h.sendToOrg(om)

		case <-pingTicker.C:
			h.pingClients()
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	if h.userClients[client.UserID] == nil {
		h.userClients[client.UserID] = make(map[*Client]bool)
	}
	h.userClients[client.UserID][client] = true

	log.Printf("[Hub] ✅ Client registered: user=%s, id=%s, total_clients=%d",
		client.UserID, client.ID, len(h.clients))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)

		if clients, ok := h.userClients[client.UserID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.userClients, client.UserID)
			}
		}

		for orgID := range client.Orgs {
			if clients, ok := h.orgClients[orgID]; ok {
				delete(clients, client)
				if len(clients) == 0 {
					delete(h.orgClients, orgID)
				}
			}
		}

		close(client.Send)
		log.Printf("[Hub] ❌ Client disconnected: user=%s, id=%s, total_clients=%d",
			client.UserID, client.ID, len(h.clients))
	}
}

func (h *Hub) sendToUser(um *userMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.userClients[um.UserID]
	if !ok {
		return
	}

	for client := range clients {
		select {
		case client.Send <- um.Message:
		default:
			go func(c *Client) {
				h.unregister <- c
			}(client)
		}
	}
}

func (h *Hub) sendToOrg(om *orgMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.orgClients[om.OrgID]
	if !ok {
		return
	}

	for client := range clients {
		select {
		case client.Send <- om.Message:
		default:
			go func(c *Client) {
				h.unregister <- c
			}(client)
		}
	}
}

func (h *Hub) pingClients() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg := Message{
		Type:      UpdatePing,
		Timestamp: time.Now(),
	}
	data, _ := json.Marshal(msg)

	for client := range h.clients {
		select {
		case client.Send <- data:
		default:
			go func(c *Client) {
				h.unregister <- c
			}(client)
		}
	}
}

// JoinOrg subscribes a client to an organization's broadcasts
func (h *Hub) JoinOrg(client *Client, orgID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	client.Orgs[orgID] = true
	client.mu.Unlock()

	if h.orgClients[orgID] == nil {
		h.orgClients[orgID] = make(map[*Client]bool)
	}
	h.orgClients[orgID][client] = true
}

// LeaveOrg unsubscribes a client from an organization's broadcasts
func (h *Hub) LeaveOrg(client *Client, orgID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	delete(client.Orgs, orgID)
	client.mu.Unlock()

	if clients, ok := h.orgClients[orgID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.orgClients, orgID)
		}
	}
}

// SendToUser sends an update to all of a user's connections
func (h *Hub) SendToUser(userID string, updateType UpdateType, payload map[string]interface{}) {
	msg := Message{
		Type:      updateType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Hub] Error marshaling message: %v", err)
		return
	}

	h.userUpdate <- &userMessage{UserID: userID, Message: data}
}

// SendToOrg broadcasts an update to every client subscribed to an
// organization
func (h *Hub) SendToOrg(orgID string, updateType UpdateType, payload map[string]interface{}) {
	msg := Message{
		Type:      updateType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Hub] Error marshaling message: %v", err)
		return
	}

	h.orgUpdate <- &orgMessage{OrgID: orgID, Message: data}
}

// IsUserOnline checks if a user has at least one open connection
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.userClients[userID]
	return ok
}

// GetConnectedClientsCount returns total connected clients
func (h *Hub) GetConnectedClientsCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
