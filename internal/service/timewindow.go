package service

import "time"

// Window tokens accepted by the dashboard.
const (
	WindowToday = "Today"
	WindowWeek  = "Week"
	WindowMonth = "Month"
)

// ResolveWindow maps a named range token to its absolute lower bound in UTC.
// Unrecognized tokens behave exactly like "Today".
func ResolveWindow(token string, now time.Time) time.Time {
	switch token {
	case WindowWeek:
		return now.UTC().Add(-7 * 24 * time.Hour)
	case WindowMonth:
		return now.UTC().Add(-30 * 24 * time.Hour)
	default:
		return now.UTC().Add(-24 * time.Hour)
	}
}
