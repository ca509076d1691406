package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hakanuyysal/aiku-backend-sub000/internal/models"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/observability"
)

// SessionChannel names the broadcast room of a chat session.
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}

// UserChannel names the private broadcast room of a user.
func UserChannel(userID string) string {
	return "user:" + userID
}

// PresenceChannel is the global room for online/offline transitions.
const PresenceChannel = "presence"

// Hub maintains named broadcast rooms over live websocket connections.
// Delivery is fire-and-forget: events are not persisted or replayed, and a
// failed write evicts the connection without retry.
type Hub struct {
	rooms     map[string]map[*websocket.Conn]bool
	connRooms map[*websocket.Conn]map[string]bool
	connInfo  map[*websocket.Conn]ConnInfo
	mu        sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:     make(map[string]map[*websocket.Conn]bool),
		connRooms: make(map[*websocket.Conn]map[string]bool),
		connInfo:  make(map[*websocket.Conn]ConnInfo),
	}
}

// Register records connection metadata. A connection must be registered
// before it can subscribe to rooms.
func (h *Hub) Register(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connInfo[conn] = info
	if _, ok := h.connRooms[conn]; !ok {
		h.connRooms[conn] = make(map[string]bool)
	}
}

// Subscribe adds the connection to a room.
func (h *Hub) Subscribe(conn *websocket.Conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[channel]; !ok {
		h.rooms[channel] = make(map[*websocket.Conn]bool)
	}
	h.rooms[channel][conn] = true
	if _, ok := h.connRooms[conn]; !ok {
		h.connRooms[conn] = make(map[string]bool)
	}
	h.connRooms[conn][channel] = true
}

// Unsubscribe removes the connection from a room.
func (h *Hub) Unsubscribe(conn *websocket.Conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(conn, channel)
	if rooms, ok := h.connRooms[conn]; ok {
		delete(rooms, channel)
	}
}

// RemoveConnection drops the connection from every room it joined.
// Idempotent: removing an unknown connection is a no-op.
func (h *Hub) RemoveConnection(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel := range h.connRooms[conn] {
		h.removeFromRoom(conn, channel)
	}
	delete(h.connRooms, conn)
	delete(h.connInfo, conn)
}

func (h *Hub) removeFromRoom(conn *websocket.Conn, channel string) {
	if conns, ok := h.rooms[channel]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, channel)
		}
	}
}

// Publish sends an event to every connection in a room.
func (h *Hub) Publish(channel, eventType string, payload any) {
	h.publish(channel, eventType, payload, "")
}

// PublishExcept sends an event to a room, skipping connections owned by the
// given user. Used for typing indicators so a sender does not echo itself.
func (h *Hub) PublishExcept(channel, eventType string, payload any, exceptUserID string) {
	h.publish(channel, eventType, payload, exceptUserID)
}

func (h *Hub) publish(channel, eventType string, payload any, exceptUserID string) {
	event := models.Event{Type: eventType, Payload: payload}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}

	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.rooms[channel]))
	for conn := range h.rooms[channel] {
		if exceptUserID != "" && h.connInfo[conn].UserID == exceptUserID {
			continue
		}
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.publishWSError(channel, conn, err)
			h.RemoveConnection(conn)
		}
	}
}

// PublishToSession sends an event to a session room.
func (h *Hub) PublishToSession(sessionID, eventType string, payload any) {
	h.publish(SessionChannel(sessionID), eventType, payload, "")
}

// PublishToSessionExcept sends an event to a session room, skipping every
// connection owned by the given user.
func (h *Hub) PublishToSessionExcept(sessionID, eventType string, payload any, exceptUserID string) {
	h.publish(SessionChannel(sessionID), eventType, payload, exceptUserID)
}

// PublishToUser sends an event to a user's private room.
func (h *Hub) PublishToUser(userID, eventType string, payload any) {
	h.publish(UserChannel(userID), eventType, payload, "")
}

// PublishPresence sends an event to the global presence room.
func (h *Hub) PublishPresence(eventType string, payload any) {
	h.publish(PresenceChannel, eventType, payload, "")
}

// Subscribers reports how many connections are in a room.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[channel])
}

func (h *Hub) publishWSError(channel string, conn *websocket.Conn, err error) {
	h.mu.RLock()
	info, ok := h.connInfo[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"channel":     channel,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.MirrorEvent(context.Background(), observability.RoutingWSError,
		observability.NewWSEnvelope("ws_error", payload), headers)
	observability.IncWSEvent("ws_error")
}
