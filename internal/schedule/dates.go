package schedule

import (
	"fmt"
	"time"
)

// Pure date helpers. All of them return new values; nothing is mutated.

// DayKey truncates t to local midnight in t's location.
func DayKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay compares year and day-of-year, ignoring the time of day.
// b is converted into a's location first.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// AddDays shifts t by n calendar days keeping the wall clock time.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// ISOWeekday returns 1=Monday .. 7=Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// StartOfWeek returns midnight of the first day of the week containing t.
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	day := DayKey(t)
	diff := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return AddDays(day, -diff)
}

// AtMinutes returns day's midnight plus the given minutes of the day.
func AtMinutes(day time.Time, minutes int) time.Time {
	d := DayKey(day)
	return time.Date(d.Year(), d.Month(), d.Day(), minutes/60, minutes%60, 0, 0, d.Location())
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// WeekRangeLabel renders "Jan 2 - Jan 8" for the week starting at start.
func WeekRangeLabel(start time.Time) string {
	end := AddDays(start, 6)
	return start.Format("Jan 2") + " - " + end.Format("Jan 2")
}

// MonthLabel renders "January 2024".
func MonthLabel(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}
