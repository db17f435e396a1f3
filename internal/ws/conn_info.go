package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo captures connection identity for lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// newConnID identifies a single socket; the redis registry also uses it as
// the per-instance origin id on the fanout channel.
func newConnID() string {
	return uuid.NewString()
}
