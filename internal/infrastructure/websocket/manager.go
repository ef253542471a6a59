package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"tradepost/internal/infrastructure/presence"
	"tradepost/pkg/logger"
)

// EventHandler routes one decoded inbound frame. It is installed after
// construction so the handler can depend on the use cases while the use cases
// depend on the manager for broadcasting.
type EventHandler interface {
	HandleEvent(client *Client, raw []byte)
}

// Manager owns every live connection and the room subscription table. It is
// the single implementation of the broadcast interface the use cases depend
// on. All maps are guarded by one mutex. Send channels are closed only under
// the write lock and written only under the read lock, so a send can never hit
// a channel that unregistration has already closed.
type Manager struct {
	Unregister chan *Client

	mu          sync.RWMutex
	clients     map[string]*Client            // connID -> client
	rooms       map[string]map[string]*Client // roomID -> connID -> client
	clientRooms map[string]map[string]bool    // connID -> roomID set

	presence presence.Registry
	handler  EventHandler
}

func NewManager(presence presence.Registry) *Manager {
	return &Manager{
		Unregister:  make(chan *Client),
		clients:     make(map[string]*Client),
		rooms:       make(map[string]map[string]*Client),
		clientRooms: make(map[string]map[string]bool),
		presence:    presence,
	}
}

// SetEventHandler installs the inbound event router. Must be called before
// Start.
func (m *Manager) SetEventHandler(handler EventHandler) {
	m.handler = handler
}

// Start runs the unregister loop until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Unregister:
				m.removeClient(client)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RegisterClient makes the connection known to the manager. It is synchronous:
// once it returns, Subscribe and broadcasts see the client, so callers must
// register before starting the read pump.
func (m *Manager) RegisterClient(client *Client) {
	m.mu.Lock()
	m.clients[client.ID] = client
	m.clientRooms[client.ID] = make(map[string]bool)
	m.mu.Unlock()

	m.presence.Add(client.UserID, client.ID)
	logger.Info("Connection %s registered for user %s", client.ID, client.UserID)
}

func (m *Manager) removeClient(client *Client) {
	m.mu.Lock()
	if _, ok := m.clients[client.ID]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, client.ID)

	roomIDs := make([]string, 0, len(m.clientRooms[client.ID]))
	for roomID := range m.clientRooms[client.ID] {
		roomIDs = append(roomIDs, roomID)
		m.dropSubscription(roomID, client.ID)
	}
	delete(m.clientRooms, client.ID)
	// Safe: senders hold the read lock, so none can be mid-send here.
	close(client.Send)
	m.mu.Unlock()

	wasLast := m.presence.Remove(client.UserID, client.ID)
	logger.Info("Connection %s closed for user %s", client.ID, client.UserID)

	// Other participants see the departure once the user's last connection
	// in that room is gone.
	if wasLast {
		for _, roomID := range roomIDs {
			m.notifyLeft(roomID, client.UserID)
		}
	}
}

// dropSubscription removes one connection from one room. Caller holds mu.
func (m *Manager) dropSubscription(roomID, connID string) {
	subscribers, ok := m.rooms[roomID]
	if !ok {
		return
	}
	delete(subscribers, connID)
	if len(subscribers) == 0 {
		delete(m.rooms, roomID)
	}
}

// Subscribe adds the connection to a room's fan-out set. Authorization is the
// caller's responsibility; the manager only tracks membership of live
// connections.
func (m *Manager) Subscribe(client *Client, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	subscribers, ok := m.rooms[roomID]
	if !ok {
		subscribers = make(map[string]*Client)
		m.rooms[roomID] = subscribers
	}
	subscribers[client.ID] = client
	m.clientRooms[client.ID][roomID] = true
}

func (m *Manager) Unsubscribe(client *Client, roomID string) {
	m.mu.Lock()
	m.dropSubscription(roomID, client.ID)
	if set, ok := m.clientRooms[client.ID]; ok {
		delete(set, roomID)
	}
	m.mu.Unlock()
}

// IsSubscribed reports whether the connection currently belongs to the room.
func (m *Manager) IsSubscribed(client *Client, roomID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.clientRooms[client.ID]
	return ok && set[roomID]
}

// BroadcastToRoom sends the payload to every connection subscribed to the
// room. Slow consumers are skipped rather than blocking the fan-out.
func (m *Manager) BroadcastToRoom(roomID string, payload []byte) {
	m.broadcast(roomID, "", payload)
}

// BroadcastToRoomExcept sends the payload to every subscribed connection
// except those belonging to excludeUserID.
func (m *Manager) BroadcastToRoomExcept(roomID, excludeUserID string, payload []byte) {
	m.broadcast(roomID, excludeUserID, payload)
}

// broadcast delivers under the read lock. Unregistration closes Send under
// the write lock, so no subscriber channel can be closed while a send is in
// flight. Sends never block (select with default), so the lock is held only
// for the fan-out itself.
func (m *Manager) broadcast(roomID, excludeUserID string, payload []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, client := range m.rooms[roomID] {
		if excludeUserID != "" && client.UserID == excludeUserID {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			logger.Warn("Connection %s send buffer full, dropping room %s event", client.ID, roomID)
		}
	}
}

// SendToClient delivers a payload to one connection only, for direct replies
// like acks and errors. Connections already unregistered are skipped; their
// Send channel is closed.
func (m *Manager) SendToClient(client *Client, payload []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	select {
	case client.Send <- payload:
	default:
		logger.Warn("Connection %s send buffer full, dropping direct event", client.ID)
	}
}

func (m *Manager) IsUserOnline(userID string) bool {
	return m.presence.IsOnline(userID)
}

func (m *Manager) handleEvent(client *Client, raw []byte) {
	if m.handler == nil {
		logger.Error("No event handler installed, dropping event from %s", client.ID)
		return
	}
	m.handler.HandleEvent(client, raw)
}

func (m *Manager) notifyLeft(roomID, userID string) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":    "user_left",
		"room_id": roomID,
		"user_id": userID,
	})
	if err != nil {
		return
	}
	m.BroadcastToRoom(roomID, payload)
}
