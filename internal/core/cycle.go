// Billing cycle projection: recurring monthly day-of-month targets resolved
// forward to their next calendar occurrence.
package core

import "time"

// NextOccurrence returns the next date, on or after the start of ref's day,
// whose day-of-month equals day. The day is clamped to [1, 31] and then to
// the length of the resolved month, so projecting day 31 from February lands
// on February's last day. A candidate earlier than the start of ref's day
// rolls over to the following month; a same-day candidate is accepted as-is.
func NextOccurrence(day int, ref time.Time) time.Time {
	day = ClampCycleDay(day)
	year, month, _ := ref.Date()
	loc := ref.Location()

	candidate := time.Date(year, month, resolveDay(day, year, month), 0, 0, 0, 0, loc)
	if candidate.Before(DayStart(ref)) {
		year, month = nextMonth(year, month)
		candidate = time.Date(year, month, resolveDay(day, year, month), 0, 0, 0, 0, loc)
	}
	return candidate
}

// DaysUntil counts whole days from the start of ref's day to the projection
// of day. Day boundaries, not instants: the time of day of ref never affects
// the count. A same-day occurrence yields zero. The boundaries are
// differenced as plain calendar dates rebuilt in UTC, so a DST transition
// inside the span cannot shift the count by a day.
func DaysUntil(day int, ref time.Time) int {
	target := NextOccurrence(day, ref)
	return int(civilDate(target).Sub(civilDate(ref)).Hours() / 24)
}

// civilDate strips location and time of day, keeping only the calendar date.
func civilDate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DayStart returns midnight of t's calendar day in t's location.
func DayStart(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day zero of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func resolveDay(day, year int, month time.Month) int {
	if last := DaysInMonth(year, month); day > last {
		return last
	}
	return day
}

func nextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}
