package models

import "time"

// MaxGroupMembers caps how many participants a group chat may hold.
const MaxGroupMembers = 400

// Group represents a group chat that owns exactly one Chat.
type Group struct {
	ID                  int       `db:"id" json:"id"`
	ChatID              int       `db:"chat_id" json:"chat_id"`
	Name                string    `db:"name" json:"name"`
	Description         string    `db:"description" json:"description,omitempty"`
	Photo               string    `db:"photo" json:"photo,omitempty"`
	OnlyAdminCanMessage bool      `db:"only_admin_can_message" json:"only_admin_can_message"`
	InviteToken         string    `db:"invite_token" json:"invite_token,omitempty"`
	MemberCount         int       `db:"member_count" json:"member_count"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`

	Admins []int `json:"admins,omitempty"`
}

// IsAdmin reports whether the user is in the loaded admin set.
func (g Group) IsAdmin(userID int) bool {
	for _, id := range g.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// GroupSettingsUpdate is a partial update of mutable group settings.
type GroupSettingsUpdate struct {
	Name                *string `json:"name,omitempty"`
	Description         *string `json:"description,omitempty"`
	OnlyAdminCanMessage *bool   `json:"only_admin_can_message,omitempty"`
}
