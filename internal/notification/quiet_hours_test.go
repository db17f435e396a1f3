package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"messaging-service/internal/models"
)

func quietPrefs(start, end string) models.Preferences {
	return models.Preferences{
		QuietHoursEnabled: true,
		QuietHoursStart:   start,
		QuietHoursEnd:     end,
		QuietHoursTZ:      "UTC",
	}
}

func TestInQuietHours(t *testing.T) {
	cases := []struct {
		name  string
		start string
		end   string
		now   string
		want  bool
	}{
		{"inside plain window", "09:00", "17:00", "2026-03-10T12:00:00Z", true},
		{"before plain window", "09:00", "17:00", "2026-03-10T08:59:00Z", false},
		{"after plain window", "09:00", "17:00", "2026-03-10T17:01:00Z", false},
		{"wraparound late evening", "22:00", "07:00", "2026-03-10T23:30:00Z", true},
		{"wraparound early morning", "22:00", "07:00", "2026-03-10T06:00:00Z", true},
		{"wraparound midday", "22:00", "07:00", "2026-03-10T12:00:00Z", false},
		{"boundary start", "22:00", "07:00", "2026-03-10T22:00:00Z", true},
		{"boundary end", "22:00", "07:00", "2026-03-10T07:00:00Z", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now, err := time.Parse(time.RFC3339, tc.now)
			if err != nil {
				t.Fatal(err)
			}
			assert.Equal(t, tc.want, inQuietHours(quietPrefs(tc.start, tc.end), now))
		})
	}
}

func TestInQuietHoursDisabled(t *testing.T) {
	prefs := quietPrefs("22:00", "07:00")
	prefs.QuietHoursEnabled = false
	now, _ := time.Parse(time.RFC3339, "2026-03-10T23:30:00Z")
	assert.False(t, inQuietHours(prefs, now))
}

func TestInQuietHoursTimezone(t *testing.T) {
	prefs := quietPrefs("22:00", "07:00")
	prefs.QuietHoursTZ = "Europe/Berlin"

	// 21:30 UTC in winter is 22:30 in Berlin, inside the window
	now, _ := time.Parse(time.RFC3339, "2026-01-10T21:30:00Z")
	assert.True(t, inQuietHours(prefs, now))
}

func TestQuietHoursEndSameDay(t *testing.T) {
	now, _ := time.Parse(time.RFC3339, "2026-03-10T02:00:00Z")
	end := quietHoursEnd(quietPrefs("22:00", "07:00"), now)
	assert.Equal(t, "2026-03-10T07:00:00Z", end.Format(time.RFC3339))
}

func TestQuietHoursEndRollsToNextDay(t *testing.T) {
	now, _ := time.Parse(time.RFC3339, "2026-03-10T23:30:00Z")
	end := quietHoursEnd(quietPrefs("22:00", "07:00"), now)
	assert.Equal(t, "2026-03-11T07:00:00Z", end.Format(time.RFC3339))
}
