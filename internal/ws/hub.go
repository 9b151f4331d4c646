package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/presence"
)

// PresenceLookup resolves a user's current connection.
type PresenceLookup interface {
	Lookup(userID int64) (presence.Handle, bool)
}

// Hub maintains conversation channels: which live connections are subscribed
// to which conversation. It implements services.Notifier.
type Hub struct {
	mu    sync.RWMutex
	rooms map[int64]map[presence.Handle]struct{}
	subs  map[presence.Handle]map[int64]struct{}

	presence PresenceLookup
	log      *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(lookup PresenceLookup, log *zap.Logger) *Hub {
	return &Hub{
		rooms:    make(map[int64]map[presence.Handle]struct{}),
		subs:     make(map[presence.Handle]map[int64]struct{}),
		presence: lookup,
		log:      log,
	}
}

// Join subscribes h to a conversation channel.
func (h *Hub) Join(conn presence.Handle, conversationID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.join(conn, conversationID)
}

// JoinAll subscribes h to every listed conversation.
func (h *Hub) JoinAll(conn presence.Handle, conversationIDs []int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range conversationIDs {
		h.join(conn, id)
	}
}

func (h *Hub) join(conn presence.Handle, conversationID int64) {
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[presence.Handle]struct{})
	}
	h.rooms[conversationID][conn] = struct{}{}
	if _, ok := h.subs[conn]; !ok {
		h.subs[conn] = make(map[int64]struct{})
	}
	h.subs[conn][conversationID] = struct{}{}
}

// Leave unsubscribes h from a conversation channel.
func (h *Hub) Leave(conn presence.Handle, conversationID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(conn, conversationID)
}

func (h *Hub) leave(conn presence.Handle, conversationID int64) {
	if conns, ok := h.rooms[conversationID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	if convs, ok := h.subs[conn]; ok {
		delete(convs, conversationID)
		if len(convs) == 0 {
			delete(h.subs, conn)
		}
	}
}

// LeaveAll drops every subscription of h.
func (h *Hub) LeaveAll(conn presence.Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.subs[conn] {
		h.leave(conn, id)
	}
}

// IsSubscribed reports whether h is subscribed to the conversation channel.
func (h *Hub) IsSubscribed(conn presence.Handle, conversationID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[conversationID][conn]
	return ok
}

// RoomSize returns the number of connections subscribed to a conversation.
func (h *Hub) RoomSize(conversationID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// BroadcastToConversation sends event to every subscriber except one.
func (h *Hub) BroadcastToConversation(conversationID int64, event models.Event, except presence.Handle) {
	payload, ok := h.encode(event)
	if !ok {
		return
	}

	h.mu.RLock()
	targets := make([]presence.Handle, 0, len(h.rooms[conversationID]))
	for conn := range h.rooms[conversationID] {
		if except != nil && conn == except {
			continue
		}
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		if !conn.Send(payload) {
			h.log.Debug("broadcast skipped closed connection",
				zap.String("event", event.Type), zap.String("conn_id", conn.ConnID()))
		}
	}
}

// SendToUser delivers event to the user's current connection.
func (h *Hub) SendToUser(userID int64, event models.Event) bool {
	conn, ok := h.presence.Lookup(userID)
	if !ok {
		return false
	}
	payload, ok := h.encode(event)
	if !ok {
		return false
	}
	return conn.Send(payload)
}

// JoinConversation subscribes the user's current connection, if any.
func (h *Hub) JoinConversation(userID, conversationID int64) bool {
	conn, ok := h.presence.Lookup(userID)
	if !ok {
		return false
	}
	h.Join(conn, conversationID)
	return true
}

// LeaveConversation unsubscribes every connection of the user, including a
// displaced one that is still open.
func (h *Hub) LeaveConversation(userID, conversationID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.rooms[conversationID] {
		if conn.UserID() == userID {
			h.leave(conn, conversationID)
		}
	}
}

func (h *Hub) encode(event models.Event) ([]byte, bool) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("encode event failed", zap.String("event", event.Type), zap.Error(err))
		return nil, false
	}
	return payload, true
}
