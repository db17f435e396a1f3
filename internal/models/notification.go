package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// NotificationChannel selects how a notification is delivered.
type NotificationChannel string

const (
	ChannelInApp NotificationChannel = "in_app"
	ChannelPush  NotificationChannel = "push"
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
)

// NotificationStatus is the lifecycle state of a notification.
// Pending -> Processing -> {Delivered, Failed, Skipped}; a quiet-hours
// reschedule moves Processing back to Pending with a later scheduled_for.
type NotificationStatus string

const (
	StatusPending    NotificationStatus = "pending"
	StatusProcessing NotificationStatus = "processing"
	StatusDelivered  NotificationStatus = "delivered"
	StatusFailed     NotificationStatus = "failed"
	StatusSkipped    NotificationStatus = "skipped"
)

// NotificationPriority maps onto broker queue priorities.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
)

// QueuePriority converts the priority label to its numeric queue priority.
func (p NotificationPriority) QueuePriority() uint8 {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// Notification is one user-facing event routed through the dispatch pipeline.
type Notification struct {
	ID           int                  `db:"id" json:"id"`
	UserID       int                  `db:"user_id" json:"user_id"`
	Type         NotificationChannel  `db:"type" json:"type"`
	Title        string               `db:"title" json:"title"`
	Body         string               `db:"body" json:"body"`
	Data         NotificationData     `db:"data" json:"data,omitempty"`
	Status       NotificationStatus   `db:"status" json:"status"`
	Priority     NotificationPriority `db:"priority" json:"priority"`
	Category     string               `db:"category" json:"category"`
	ScheduledFor time.Time            `db:"scheduled_for" json:"scheduled_for"`
	BatchID      *string              `db:"batch_id" json:"batch_id,omitempty"`
	DeliveredAt  *time.Time           `db:"delivered_at" json:"delivered_at,omitempty"`
	SeenAt       *time.Time           `db:"seen_at" json:"seen_at,omitempty"`
	Error        *string              `db:"error" json:"error,omitempty"`
	CreatedAt    time.Time            `db:"created_at" json:"created_at"`
}

// NotificationData carries arbitrary event payload data.
type NotificationData map[string]interface{}

func (nd *NotificationData) Scan(value interface{}) error {
	if value == nil {
		*nd = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, nd)
}

func (nd NotificationData) Value() (driver.Value, error) {
	if nd == nil {
		return "{}", nil
	}
	return json.Marshal(nd)
}
