package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDue(t *testing.T) {
	due, err := ParseDue("2026-10-05T23:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, DateTime(2026, 10, 5, 23, 30, 0), due)

	// Metadata without a due date parses to the zero time.
	due, err = ParseDue("")
	require.NoError(t, err)
	assert.True(t, due.IsZero())

	_, err = ParseDue("next tuesday")
	assert.Error(t, err)
}

func TestFormatDue(t *testing.T) {
	assert.Equal(t, "Oct 5, 2026 23:30 UTC", FormatDue(DateTime(2026, 10, 5, 23, 30, 0)))
	assert.Empty(t, FormatDue(time.Time{}))
}

func TestIsOverdue(t *testing.T) {
	now := DateTime(2026, 10, 6, 0, 0, 0)

	assert.True(t, IsOverdue(DateTime(2026, 10, 5, 23, 30, 0), now))
	assert.False(t, IsOverdue(DateTime(2026, 10, 7, 0, 0, 0), now))
	assert.False(t, IsOverdue(now, now))
	assert.False(t, IsOverdue(time.Time{}, now))
}

func TestUntilDue(t *testing.T) {
	now := DateTime(2026, 10, 6, 0, 0, 0)

	assert.Equal(t, 12*time.Hour, UntilDue(DateTime(2026, 10, 6, 12, 0, 0), now))
	assert.Equal(t, -time.Hour, UntilDue(DateTime(2026, 10, 5, 23, 0, 0), now))
	assert.Zero(t, UntilDue(time.Time{}, now))
}

func TestFormatRelative(t *testing.T) {
	now := DateTime(2026, 10, 6, 0, 0, 0)

	cases := []struct {
		due  time.Time
		want string
	}{
		{time.Time{}, ""},
		{now.Add(30 * time.Second), "due in less than a minute"},
		{now.Add(time.Minute), "due in 1 minute"},
		{now.Add(45 * time.Minute), "due in 45 minutes"},
		{now.Add(time.Hour), "due in 1 hour"},
		{now.Add(6 * time.Hour), "due in 6 hours"},
		{now.Add(24 * time.Hour), "due in 1 day"},
		{now.Add(72 * time.Hour), "due in 3 days"},
		{now.Add(-30 * time.Second), "overdue by less than a minute"},
		{now.Add(-3 * time.Hour), "overdue by 3 hours"},
		{now.Add(-48 * time.Hour), "overdue by 2 days"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatRelative(tc.due, now))
	}
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, DaysBetween(DateTime(2026, 10, 5, 1, 0, 0), DateTime(2026, 10, 5, 23, 0, 0)))
	// Clock times do not matter, only the UTC day.
	assert.Equal(t, 1, DaysBetween(DateTime(2026, 10, 5, 23, 0, 0), DateTime(2026, 10, 6, 1, 0, 0)))
	assert.Equal(t, 31, DaysBetween(Date(2026, 10, 5), Date(2026, 11, 5)))
	assert.Equal(t, -2, DaysBetween(Date(2026, 10, 5), Date(2026, 10, 3)))
}

func TestDayBoundaries(t *testing.T) {
	ts := DateTime(2026, 10, 5, 13, 45, 12)

	assert.Equal(t, Date(2026, 10, 5), StartOfDay(ts))
	assert.Equal(t, time.Date(2026, 10, 5, 23, 59, 59, 999999999, time.UTC), EndOfDay(ts))

	assert.True(t, IsSameDay(StartOfDay(ts), EndOfDay(ts)))
	assert.False(t, IsSameDay(ts, Date(2026, 10, 6)))
}
