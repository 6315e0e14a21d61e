// Package dates implements the calendar arithmetic the pipeline depends on.
//
// Every date in the system is a month-end calendar date. Computations are
// timezone-independent: only year/month/day matter, and all constructed dates
// are pinned to UTC midnight so equality checks behave.
package dates

import (
	"fmt"
	"time"
)

// CollectionStart is the month-end of the first collected snapshot. Entries
// present when collection began are dated here during a backfilled first run.
var CollectionStart = time.Date(2022, time.April, 30, 0, 0, 0, 0, time.UTC)

// MonthEnd returns the last calendar day of t's month at UTC midnight.
func MonthEnd(t time.Time) time.Time {
	// Day 0 of the next month normalizes to the last day of this month.
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// NextMonthEnd returns the month-end of the month after t's month.
func NextMonthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+2, 0, 0, 0, 0, 0, time.UTC)
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthEnds returns every month-end from the month of 'from' through the month
// of 'to', inclusive and ascending. Returns nil when from is after to.
func MonthEnds(from, to time.Time) []time.Time {
	if from.After(to) && !SameMonth(from, to) {
		return nil
	}
	var out []time.Time
	cur := MonthEnd(from)
	end := MonthEnd(to)
	for !cur.After(end) {
		out = append(out, cur)
		cur = NextMonthEnd(cur)
	}
	return out
}

// YearQuarter renders t as a period label like "2022Q2".
func YearQuarter(t time.Time) string {
	q := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("%dQ%d", t.Year(), q)
}

// YearMonth renders t as a period label like "2022-04".
func YearMonth(t time.Time) string {
	return t.Format("2006-01")
}

// FormatDate renders a calendar date as YYYY-MM-DD, the on-disk date format.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseDate parses a YYYY-MM-DD calendar date into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
