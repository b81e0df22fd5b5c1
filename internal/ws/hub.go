package ws

import (
	"sync"

	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
)

// Hub maintains conversation rooms and routes events to them and to
// per-user personal channels. Rooms are a UI optimization; the personal
// channel (every live connection of a user) is the authoritative
// delivery path.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[int64]map[*Conn]struct{}
	registry *presence.Registry
	logger   *zap.Logger
}

// NewHub creates an empty hub over the presence registry.
func NewHub(registry *presence.Registry, logger *zap.Logger) *Hub {
	return &Hub{
		rooms:    make(map[int64]map[*Conn]struct{}),
		registry: registry,
		logger:   logger,
	}
}

// JoinRoom subscribes a connection to a conversation room. Authorization
// is the gateway's job; the hub only tracks membership.
func (h *Hub) JoinRoom(conversationID int64, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*Conn]struct{})
	}
	h.rooms[conversationID][conn] = struct{}{}
}

// LeaveRoom removes a connection from a room.
func (h *Hub) LeaveRoom(conversationID int64, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(conversationID, conn)
}

// RemoveConn drops the connection from every room it joined.
func (h *Hub) RemoveConn(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conversationID := range h.rooms {
		h.removeLocked(conversationID, conn)
	}
}

func (h *Hub) removeLocked(conversationID int64, conn *Conn) {
	if conns, ok := h.rooms[conversationID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// BroadcastToRoom delivers an event to every room subscriber except the
// optional originator. Write failures evict the connection.
func (h *Hub) BroadcastToRoom(conversationID int64, event string, data interface{}, exclude presence.Handle) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.rooms[conversationID]))
	for conn := range h.rooms[conversationID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if exclude != nil && presence.Handle(conn) == exclude {
			continue
		}
		if err := conn.SendEvent(event, data); err != nil {
			h.logger.Warn("room write failed, evicting connection",
				zap.Int64("conversation_id", conversationID),
				zap.Int64("user_id", conn.UserID()),
				zap.Error(err))
			h.evict(conn)
		}
	}
	observability.IncWSEvent(event)
}

// SendToUser delivers an event to all of the user's live connections and
// returns how many received it. Zero means the user is offline.
func (h *Hub) SendToUser(userID int64, event string, data interface{}) int {
	delivered := 0
	for _, handle := range h.registry.ConnectionsFor(userID) {
		if err := handle.SendEvent(event, data); err != nil {
			h.logger.Warn("personal channel write failed, evicting connection",
				zap.Int64("user_id", userID),
				zap.Error(err))
			if conn, ok := handle.(*Conn); ok {
				h.evict(conn)
			}
			continue
		}
		delivered++
	}
	if delivered > 0 {
		observability.IncWSEvent(event)
	}
	return delivered
}

// BroadcastPresence announces a presence flip to every other connected
// user.
func (h *Hub) BroadcastPresence(userID int64, online bool) {
	event := models.UserOnlineEvent{UserID: userID, IsOnline: online}
	for _, handle := range h.registry.AllConnections() {
		if handle.UserID() == userID {
			continue
		}
		if err := handle.SendEvent(models.EventUserOnline, event); err != nil {
			if conn, ok := handle.(*Conn); ok {
				h.evict(conn)
			}
		}
	}
	observability.IncWSEvent(models.EventUserOnline)
}

// IsOnline reports whether the user has any live connection.
func (h *Hub) IsOnline(userID int64) bool {
	return h.registry.IsOnline(userID)
}

// evict closes the socket and drops room membership. The gateway read
// loop observes the close and finishes the rest of the teardown, so the
// active-connection gauge is adjusted exactly once.
func (h *Hub) evict(conn *Conn) {
	_ = conn.Close()
	h.RemoveConn(conn)
	h.registry.Unregister(conn)
}
