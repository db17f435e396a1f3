package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// MediaType describes what a message carries besides plain text.
type MediaType string

const (
	MediaText      MediaType = "text"
	MediaImage     MediaType = "image"
	MediaVideo     MediaType = "video"
	MediaTextImage MediaType = "text_image"
	MediaTextVideo MediaType = "text_video"
)

// DeletedPlaceholder replaces the content of soft-deleted messages.
const DeletedPlaceholder = "This message was deleted"

// Message represents a chat message together with its receipt state.
type Message struct {
	ID            int           `db:"id" json:"id"`
	ChatID        int           `db:"chat_id" json:"chat_id"`
	SenderID      int           `db:"sender_id" json:"sender_id"`
	SenderName    string        `db:"sender_name" json:"sender_name"`
	SenderPhoto   string        `db:"sender_photo" json:"sender_photo,omitempty"`
	Content       string        `db:"content" json:"content"`
	MediaType     MediaType     `db:"media_type" json:"media_type"`
	MediaURL      string        `db:"media_url" json:"media_url,omitempty"`
	MediaMetadata MediaMetadata `db:"media_metadata" json:"media_metadata,omitempty"`
	IsDeleted     bool          `db:"is_deleted" json:"is_deleted"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`

	DeliveredTo []Receipt `json:"delivered_to,omitempty"`
	ReadBy      []Receipt `json:"read_by,omitempty"`
}

// Receipt records that a message reached, or was read by, one user.
// Receipts are set-valued: at most one row per (message, user).
type Receipt struct {
	UserID      int        `db:"user_id" json:"user_id"`
	DeliveredAt time.Time  `db:"delivered_at" json:"delivered_at"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
}

// MediaMetadata holds arbitrary attachment details (dimensions, duration).
type MediaMetadata map[string]interface{}

func (m *MediaMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, m)
}

func (m MediaMetadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}
