package models

import "time"

// PresenceStatus is the persisted presence cache for a user. The in-memory
// registry is authoritative while the process runs; these fields exist for
// subsystems that cannot query the registry directly.
type PresenceStatus struct {
	UserID   string    `bson:"_id" json:"user_id"`
	IsOnline bool      `bson:"is_online" json:"is_online"`
	LastSeen time.Time `bson:"last_seen" json:"last_seen"`
}
