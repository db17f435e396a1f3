package models

import "time"

// ChatType distinguishes direct chats from group chats.
type ChatType string

const (
	ChatDirect ChatType = "direct"
	ChatGroup  ChatType = "group"
)

// Chat represents a conversation between two or more users.
type Chat struct {
	ID            int       `db:"id" json:"id"`
	Type          ChatType  `db:"type" json:"type"`
	LastMessageID *int      `db:"last_message_id" json:"last_message_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Participant is one member of a chat roster, keyed by user id.
// The unread counter lives on the roster row so increments stay atomic.
type Participant struct {
	ChatID       int    `db:"chat_id" json:"chat_id"`
	UserID       int    `db:"user_id" json:"user_id"`
	UserName     string `db:"user_name" json:"user_name"`
	ProfilePhoto string `db:"profile_photo" json:"profile_photo,omitempty"`
	UnreadCount  int    `db:"unread_count" json:"unread_count"`
}

// ChatSummary provides an API-friendly view of a chat for one user.
type ChatSummary struct {
	ChatID      int       `db:"id" json:"chat_id"`
	Type        ChatType  `db:"type" json:"type"`
	UnreadCount int       `db:"unread_count" json:"unread_count"`
	LastMessage *Message  `json:"last_message,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
