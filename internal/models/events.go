package models

import "time"

// Socket event names produced by the service.
const (
	EventMessageReceived   = "message:received"
	EventMessageDelivered  = "message:delivered"
	EventMessageReadUpdate = "message:read:update"
	EventTypingUpdate      = "typing:update"
	EventUserStatus        = "user:status"
	EventGroupNew          = "group:new"
	EventGroupAdded        = "group:added"
	EventGroupParticipants = "group:participants_updated"
	EventNotificationNew   = "notification:new"
)

// SocketEvent is the envelope written to websocket connections.
type SocketEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// DeliveredPayload acknowledges that a message reached a recipient.
type DeliveredPayload struct {
	MessageID int `json:"message_id"`
	ChatID    int `json:"chat_id"`
	UserID    int `json:"user_id"`
}

// ReadUpdatePayload announces newly read messages to a room.
type ReadUpdatePayload struct {
	ChatID     int       `json:"chat_id"`
	UserID     int       `json:"user_id"`
	MessageIDs []int     `json:"message_ids"`
	Timestamp  time.Time `json:"timestamp"`
}

// TypingPayload is relayed verbatim to the other room members.
type TypingPayload struct {
	ChatID   int  `json:"chat_id"`
	UserID   int  `json:"user_id"`
	IsTyping bool `json:"is_typing"`
}

// StatusPayload announces an online/offline transition.
type StatusPayload struct {
	UserID   int        `json:"user_id"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// FanoutJob is the durable delivery job queued on every message send.
type FanoutJob struct {
	MessageID int `json:"message_id"`
	ChatID    int `json:"chat_id"`
	SenderID  int `json:"sender_id"`
}

// BatchMessage is one user-group of notifications published to the batch queue.
type BatchMessage struct {
	BatchID         string `json:"batch_id"`
	UserID          int    `json:"user_id"`
	NotificationIDs []int  `json:"notification_ids"`
}
