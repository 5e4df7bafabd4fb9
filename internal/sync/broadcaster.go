// internal/sync/broadcaster.go
package sync

import "log"

// Broadcaster provides high-level methods for pushing sync updates. It is
// the service layer's SyncNotifier.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// SendUserUpdate tells all of a user's connected clients to resync
func (b *Broadcaster) SendUserUpdate(userID string, updateType string) {
	log.Printf("[Broadcaster] 📤 user=%s type=%s", userID, updateType)
	b.hub.SendToUser(userID, UpdateType(updateType), nil)
}

// SendOrgUpdate tells every client subscribed to an organization to resync
func (b *Broadcaster) SendOrgUpdate(orgID string, updateType string) {
	log.Printf("[Broadcaster] 📤 org=%s type=%s", orgID, updateType)
	b.hub.SendToOrg(orgID, UpdateType(updateType), nil)
}
