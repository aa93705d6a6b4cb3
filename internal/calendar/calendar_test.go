package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 31, DaysIn(2024, time.January))
	assert.Equal(t, 29, DaysIn(2024, time.February))
	assert.Equal(t, 28, DaysIn(2023, time.February))
	assert.Equal(t, 30, DaysIn(2024, time.April))
	assert.Equal(t, 31, DaysIn(2024, time.December))
}

func TestEffectiveDay(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		day   int
		want  int
	}{
		{2024, time.January, 10, 10},
		{2024, time.February, 31, 29},
		{2023, time.February, 30, 28},
		{2024, time.April, 31, 30},
		{2024, time.March, 28, 28},
		{2024, time.March, 0, 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, EffectiveDay(tc.year, tc.month, tc.day), "%d-%02d day %d", tc.year, tc.month, tc.day)
	}
}

func TestAddMonths(t *testing.T) {
	cases := []struct {
		in   time.Time
		n    int
		want time.Time
	}{
		{Date(2024, time.January, 31), 1, Date(2024, time.February, 29)},
		{Date(2023, time.January, 31), 1, Date(2023, time.February, 28)},
		{Date(2024, time.March, 15), 0, Date(2024, time.March, 15)},
		{Date(2024, time.November, 30), 3, Date(2025, time.February, 28)},
		{Date(2024, time.December, 5), 1, Date(2025, time.January, 5)},
		{Date(2024, time.March, 31), -1, Date(2024, time.February, 29)},
		{Date(2024, time.January, 10), -13, Date(2022, time.December, 10)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, AddMonths(tc.in, tc.n), "%s %+d", tc.in.Format(time.DateOnly), tc.n)
	}
}

func TestShift(t *testing.T) {
	y, m := NextPeriod(2024, time.December)
	assert.Equal(t, 2025, y)
	assert.Equal(t, time.January, m)

	y, m = Shift(2024, time.January, -1)
	assert.Equal(t, 2023, y)
	assert.Equal(t, time.December, m)

	y, m = Shift(2024, time.June, 24)
	assert.Equal(t, 2026, y)
	assert.Equal(t, time.June, m)
}

func TestDateOf(t *testing.T) {
	in := time.Date(2024, time.May, 3, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, Date(2024, time.May, 3), DateOf(in))
}
