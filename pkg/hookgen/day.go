package hookgen

import "time"

// dayLayout is the calendar-day format stored in Record.LastGenerationDate.
const dayLayout = "2006-01-02"

// DayKey returns the UTC calendar day of t, e.g. "2026-10-18".
func DayKey(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// startOfDayUTC returns the start of day (00:00:00) in UTC for the given time.
func startOfDayUTC(t time.Time) time.Time {
	tt := t.UTC()
	return time.Date(tt.Year(), tt.Month(), tt.Day(), 0, 0, 0, 0, time.UTC)
}

// nextResetUTC returns when the daily counter next rolls over.
func nextResetUTC(t time.Time) time.Time {
	return startOfDayUTC(t).Add(24 * time.Hour)
}
