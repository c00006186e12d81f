package ledger

import "time"

const (
	// windowDays spans four full weeks from the starting Monday, ending on Sunday.
	windowDays    = 27
	extensionDays = 7
)

// DateOnly drops the clock part of t, keeping its calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekStartMonday returns the Monday on or before d.
func WeekStartMonday(d time.Time) time.Time {
	d = DateOnly(d)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// ComputeExpiry returns the base expiry of a package starting on start: the
// Sunday closing the fourth week.
func ComputeExpiry(start time.Time) time.Time {
	return WeekStartMonday(start).AddDate(0, 0, windowDays)
}

// NextExtensionExpiry pushes an expiry by one week.
func NextExtensionExpiry(current time.Time) time.Time {
	return DateOnly(current).AddDate(0, 0, extensionDays)
}

// ExpiryWithExtensions is the expiry of a package with n weekly extensions applied.
func ExpiryWithExtensions(start time.Time, extensions int) time.Time {
	if extensions < 0 {
		extensions = 0
	}
	return ComputeExpiry(start).AddDate(0, 0, extensionDays*extensions)
}

// NextMondayAfter returns the first Monday strictly after d.
func NextMondayAfter(d time.Time) time.Time {
	return WeekStartMonday(d).AddDate(0, 0, 7)
}
