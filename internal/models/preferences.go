package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Preferences holds one user's notification delivery settings.
// A row is lazily created with defaults on first access.
type Preferences struct {
	UserID  int  `db:"user_id" json:"user_id"`
	Enabled bool `db:"enabled" json:"enabled"`

	PushEnabled  bool   `db:"push_enabled" json:"push_enabled"`
	PushToken    string `db:"push_token" json:"push_token,omitempty"`
	EmailEnabled bool   `db:"email_enabled" json:"email_enabled"`
	EmailAddress string `db:"email_address" json:"email_address,omitempty"`
	SMSEnabled   bool   `db:"sms_enabled" json:"sms_enabled"`
	PhoneNumber  string `db:"phone_number" json:"phone_number,omitempty"`
	InAppEnabled bool   `db:"in_app_enabled" json:"in_app_enabled"`

	// Categories maps a notification category to an opt-in flag.
	// Absent categories default to enabled.
	Categories CategoryFlags `db:"categories" json:"categories,omitempty"`

	QuietHoursEnabled bool   `db:"quiet_hours_enabled" json:"quiet_hours_enabled"`
	QuietHoursStart   string `db:"quiet_hours_start" json:"quiet_hours_start,omitempty"`
	QuietHoursEnd     string `db:"quiet_hours_end" json:"quiet_hours_end,omitempty"`
	QuietHoursTZ      string `db:"quiet_hours_tz" json:"quiet_hours_tz,omitempty"`

	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultPreferences returns the settings used until the user changes them.
func DefaultPreferences(userID int) Preferences {
	return Preferences{
		UserID:       userID,
		Enabled:      true,
		PushEnabled:  true,
		EmailEnabled: true,
		SMSEnabled:   false,
		InAppEnabled: true,
		QuietHoursTZ: "UTC",
	}
}

// CategoryAllowed reports whether the category is enabled for the user.
func (p Preferences) CategoryAllowed(category string) bool {
	if p.Categories == nil {
		return true
	}
	if allowed, ok := p.Categories[category]; ok {
		return allowed
	}
	return true
}

// CategoryFlags is stored as a jsonb column.
type CategoryFlags map[string]bool

func (cf *CategoryFlags) Scan(value interface{}) error {
	if value == nil {
		*cf = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, cf)
}

func (cf CategoryFlags) Value() (driver.Value, error) {
	if cf == nil {
		return "{}", nil
	}
	return json.Marshal(cf)
}

// PreferencesUpdate is a partial update of notification preferences.
type PreferencesUpdate struct {
	Enabled      *bool   `json:"enabled,omitempty"`
	PushEnabled  *bool   `json:"push_enabled,omitempty"`
	PushToken    *string `json:"push_token,omitempty"`
	EmailEnabled *bool   `json:"email_enabled,omitempty"`
	EmailAddress *string `json:"email_address,omitempty"`
	SMSEnabled   *bool   `json:"sms_enabled,omitempty"`
	PhoneNumber  *string `json:"phone_number,omitempty"`
	InAppEnabled *bool   `json:"in_app_enabled,omitempty"`

	Categories CategoryFlags `json:"categories,omitempty"`

	QuietHoursEnabled *bool   `json:"quiet_hours_enabled,omitempty"`
	QuietHoursStart   *string `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd     *string `json:"quiet_hours_end,omitempty"`
	QuietHoursTZ      *string `json:"quiet_hours_tz,omitempty"`
}
