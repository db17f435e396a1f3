package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

const preferenceColumns = `user_id, enabled, push_enabled, push_token, email_enabled, email_address, sms_enabled, phone_number, in_app_enabled, categories, quiet_hours_enabled, quiet_hours_start, quiet_hours_end, quiet_hours_tz, updated_at`

// PreferenceRepository persists per-user notification preferences.
type PreferenceRepository interface {
	GetOrCreate(ctx context.Context, userID int) (models.Preferences, error)
	Update(ctx context.Context, userID int, update models.PreferencesUpdate) (models.Preferences, error)
}

// PreferenceRepo is a sqlx implementation of PreferenceRepository.
type PreferenceRepo struct {
	db *sqlx.DB
}

// NewPreferenceRepo constructs a PreferenceRepo.
func NewPreferenceRepo(db *sqlx.DB) *PreferenceRepo {
	return &PreferenceRepo{db: db}
}

// GetOrCreate returns the user's preferences, lazily inserting the defaults
// on first access.
func (r *PreferenceRepo) GetOrCreate(ctx context.Context, userID int) (models.Preferences, error) {
	defaults := models.DefaultPreferences(userID)
	if _, err := r.db.ExecContext(ctx, `INSERT INTO notification_preferences (user_id, enabled, push_enabled, email_enabled, sms_enabled, in_app_enabled, quiet_hours_tz)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (user_id) DO NOTHING`,
		userID, defaults.Enabled, defaults.PushEnabled, defaults.EmailEnabled, defaults.SMSEnabled, defaults.InAppEnabled, defaults.QuietHoursTZ); err != nil {
		return models.Preferences{}, err
	}

	var prefs models.Preferences
	err := r.db.GetContext(ctx, &prefs, `SELECT `+preferenceColumns+` FROM notification_preferences WHERE user_id=$1`, userID)
	return prefs, err
}

// Update applies a partial preference update and returns the new state.
func (r *PreferenceRepo) Update(ctx context.Context, userID int, update models.PreferencesUpdate) (models.Preferences, error) {
	// Row must exist before a partial update can apply.
	if _, err := r.GetOrCreate(ctx, userID); err != nil {
		return models.Preferences{}, err
	}

	var categories interface{}
	if update.Categories != nil {
		categories = update.Categories
	}

	var prefs models.Preferences
	err := r.db.QueryRowxContext(ctx, `UPDATE notification_preferences SET
            enabled = COALESCE($2, enabled),
            push_enabled = COALESCE($3, push_enabled),
            push_token = COALESCE($4, push_token),
            email_enabled = COALESCE($5, email_enabled),
            email_address = COALESCE($6, email_address),
            sms_enabled = COALESCE($7, sms_enabled),
            phone_number = COALESCE($8, phone_number),
            in_app_enabled = COALESCE($9, in_app_enabled),
            categories = COALESCE($10, categories),
            quiet_hours_enabled = COALESCE($11, quiet_hours_enabled),
            quiet_hours_start = COALESCE($12, quiet_hours_start),
            quiet_hours_end = COALESCE($13, quiet_hours_end),
            quiet_hours_tz = COALESCE($14, quiet_hours_tz),
            updated_at = NOW()
        WHERE user_id=$1
        RETURNING `+preferenceColumns,
		userID,
		update.Enabled, update.PushEnabled, update.PushToken,
		update.EmailEnabled, update.EmailAddress,
		update.SMSEnabled, update.PhoneNumber,
		update.InAppEnabled, categories,
		update.QuietHoursEnabled, update.QuietHoursStart, update.QuietHoursEnd, update.QuietHoursTZ).
		StructScan(&prefs)
	return prefs, err
}
