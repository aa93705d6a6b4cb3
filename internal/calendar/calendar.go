// Package calendar holds the month arithmetic behind billing cycles. All
// values are calendar dates at UTC midnight.
package calendar

import "time"

// Date builds a UTC midnight date. Out-of-range values normalize the way
// time.Date does.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf drops the clock part of t, keeping its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month) int {
	return Date(year, month+1, 0).Day()
}

// EffectiveDay clamps day to the last day of the month, so a day-31
// setting falls on the 30th in April and on the 28th or 29th in February.
func EffectiveDay(year int, month time.Month, day int) int {
	if last := DaysIn(year, month); day > last {
		return last
	}
	if day < 1 {
		return 1
	}
	return day
}

// AddMonths moves t by n months, clamping the day to the target month.
// Jan 31 plus one month is Feb 28 (or 29).
func AddMonths(t time.Time, n int) time.Time {
	year, month := Shift(t.Year(), t.Month(), n)
	return Date(year, month, EffectiveDay(year, month, t.Day()))
}

// Shift moves a (year, month) period by n months.
func Shift(year int, month time.Month, n int) (int, time.Month) {
	idx := year*12 + int(month) - 1 + n
	return idx / 12, time.Month(idx%12 + 1)
}

// NextPeriod is Shift by one month.
func NextPeriod(year int, month time.Month) (int, time.Month) {
	return Shift(year, month, 1)
}

// ClampedDate builds the date for day in the given month, clamped.
func ClampedDate(year int, month time.Month, day int) time.Time {
	return Date(year, month, EffectiveDay(year, month, day))
}
