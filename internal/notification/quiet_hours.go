package notification

import (
	"time"

	"messaging-service/internal/models"
)

const clockLayout = "15:04"

// quietWindow resolves the user's quiet-hours bounds in their timezone.
// Returns ok=false when quiet hours are disabled or misconfigured.
func quietWindow(prefs models.Preferences) (start, end time.Time, loc *time.Location, ok bool) {
	if !prefs.QuietHoursEnabled || prefs.QuietHoursStart == "" || prefs.QuietHoursEnd == "" {
		return time.Time{}, time.Time{}, nil, false
	}
	loc, err := time.LoadLocation(prefs.QuietHoursTZ)
	if err != nil {
		loc = time.UTC
	}
	start, err = time.Parse(clockLayout, prefs.QuietHoursStart)
	if err != nil {
		return time.Time{}, time.Time{}, nil, false
	}
	end, err = time.Parse(clockLayout, prefs.QuietHoursEnd)
	if err != nil {
		return time.Time{}, time.Time{}, nil, false
	}
	return start, end, loc, true
}

// inQuietHours reports whether now falls inside the user's quiet-hours
// window. A window that wraps midnight (start > end) covers
// now >= start OR now <= end.
func inQuietHours(prefs models.Preferences, now time.Time) bool {
	start, end, loc, ok := quietWindow(prefs)
	if !ok {
		return false
	}

	local := now.In(loc)
	minutes := local.Hour()*60 + local.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	if startMin > endMin {
		return minutes >= startMin || minutes <= endMin
	}
	return minutes >= startMin && minutes <= endMin
}

// quietHoursEnd returns the first instant after the current quiet-hours
// window ends, rolling to the next day when that time already passed.
func quietHoursEnd(prefs models.Preferences, now time.Time) time.Time {
	_, end, loc, ok := quietWindow(prefs)
	if !ok {
		return now
	}

	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), end.Hour(), end.Minute(), 0, 0, loc)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate.UTC()
}
