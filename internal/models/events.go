package models

import "time"

// Event types broadcast over websocket channels.
const (
	EventMessage      = "message"
	EventNotification = "notification"
	EventTyping       = "typing"
	EventMessagesRead = "messages_read"
	EventUserOnline   = "user_online"
	EventUserOffline  = "user_offline"
	EventArchived     = "session_archived"
	EventDeleted      = "session_deleted"
)

// Event is the envelope written to websocket subscribers. Delivery is
// best-effort: events are neither persisted nor replayed for connections
// that subscribe later.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// NotificationPayload accompanies a notification event on the recipient's
// user channel.
type NotificationPayload struct {
	SessionID   string   `json:"session_id"`
	Message     *Message `json:"message"`
	UnreadCount int64    `json:"unread_count"`
}

// TypingPayload is published to the session channel while a party types.
type TypingPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	IsTyping  bool   `json:"is_typing"`
}

// PresencePayload describes an online/offline transition.
type PresencePayload struct {
	UserID   string    `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// ReadPayload is published when a party marks a session read.
type ReadPayload struct {
	SessionID string `json:"session_id"`
	ReaderID  string `json:"reader_id"`
}

// SessionStatePayload describes an archive or delete flag change.
type SessionStatePayload struct {
	SessionID string `json:"session_id"`
	CompanyID string `json:"company_id"`
	Archived  bool   `json:"archived,omitempty"`
}
