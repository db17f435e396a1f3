package models

import "time"

// User carries the presence fields persisted alongside connection state so
// REST reads reflect the last known status without an open socket.
type User struct {
	ID       int        `db:"id" json:"id"`
	IsOnline bool       `db:"is_online" json:"is_online"`
	LastSeen *time.Time `db:"last_seen" json:"last_seen,omitempty"`
}
