package alerts

import (
	"math"
	"strings"
	"time"
)

// dateLayouts are the formats the backend is known to emit
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// parseDate parses a backend date string. Zone-less values are read in loc.
// An empty or unparsable value yields false and carries no signal.
func parseDate(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// calendarDays returns the number of calendar days from a to b in b's location.
// It is negative when a is after b.
func calendarDays(a, b time.Time) int {
	loc := b.Location()
	a = a.In(loc)
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, loc)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, loc)
	return int(math.Round(db.Sub(da).Hours() / 24))
}

// daysSince returns whole days elapsed since t, clamped to zero
func daysSince(t, now time.Time) int {
	d := calendarDays(t, now)
	if d < 0 {
		return 0
	}
	return d
}

// daysUntil returns whole days from now until t; negative when t is past
func daysUntil(t, now time.Time) int {
	return -calendarDays(t, now)
}

// firstDate parses the first non-empty value. Later values only stand in
// for missing ones; a present but unparsable value yields false.
func firstDate(loc *time.Location, values ...string) (time.Time, bool) {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return parseDate(v, loc)
		}
	}
	return time.Time{}, false
}
