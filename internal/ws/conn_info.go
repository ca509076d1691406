package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo is the per-connection metadata carried for presence bookkeeping
// and mirrored events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// newConnID mints the handle the presence registry tracks a connection by.
func newConnID() string {
	return uuid.NewString()
}
