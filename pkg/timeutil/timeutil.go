// Package timeutil provides due-date and deadline utilities for Courseware Hub.
// Course schedules are authored in UTC; helpers here handle comparison,
// formatting, and relative rendering of due dates shown in the table of contents.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// Date creates a UTC time with the given date at midnight.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// DateTime creates a UTC time with the given date and time.
func DateTime(year, month, day, hour, min, sec int) time.Time {
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
}

// StartOfDay returns the start of the day (00:00:00) in UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in UTC.
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 999999999, time.UTC)
}

// IsSameDay returns true if both times fall on the same UTC day.
func IsSameDay(t1, t2 time.Time) bool {
	u1, u2 := t1.UTC(), t2.UTC()
	return u1.Year() == u2.Year() && u1.YearDay() == u2.YearDay()
}

// Common layouts for due dates.
const (
	// DueDateLayout is the layout used for due dates in course metadata.
	DueDateLayout = "2006-01-02T15:04:05Z07:00"

	// DueDisplayLayout is the human-readable layout shown in the TOC.
	DueDisplayLayout = "Jan 2, 2006 15:04 UTC"
)

// ParseDue parses a due date from course metadata.
// Empty strings parse to the zero time with no error.
func ParseDue(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(DueDateLayout, value)
}

// FormatDue formats a due date for display. Zero times format to "".
func FormatDue(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DueDisplayLayout)
}

// IsOverdue returns true if the deadline has passed relative to now.
// Zero deadlines are never overdue.
func IsOverdue(due, now time.Time) bool {
	if due.IsZero() {
		return false
	}
	return now.After(due)
}

// UntilDue returns the remaining time before the deadline.
// Zero deadlines return 0. Past deadlines return a negative duration.
func UntilDue(due, now time.Time) time.Duration {
	if due.IsZero() {
		return 0
	}
	return due.Sub(now)
}

// FormatRelative renders a due date relative to now ("due in 2 days",
// "overdue by 3 hours"). Zero times render to "".
func FormatRelative(due, now time.Time) string {
	if due.IsZero() {
		return ""
	}

	d := due.Sub(now)
	if d >= 0 {
		return "due in " + formatDuration(d)
	}
	return "overdue by " + formatDuration(-d)
}

// formatDuration renders a duration in the largest sensible unit.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "less than a minute"
	case d < time.Hour:
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}

// DaysBetween returns the number of whole UTC days between two times.
// The result is negative if t2 is before t1.
func DaysBetween(t1, t2 time.Time) int {
	d1 := StartOfDay(t1)
	d2 := StartOfDay(t2)
	return int(d2.Sub(d1).Hours() / 24)
}
