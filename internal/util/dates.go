package util

import "time"

// DateLayout is the wire format used for calendar dates.
const DateLayout = "2006-01-02"

// DateOnly truncates t to midnight UTC of the same calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonths moves t forward by n calendar months keeping the day of month.
// Days that do not exist in the target month overflow into the next one
// (Jan 31 + 1 month = Mar 3 in a non-leap year), same as time.AddDate.
func AddMonths(t time.Time, n int) time.Time {
	return DateOnly(t).AddDate(0, n, 0)
}

// PeriodOf returns the month (1-12) and year a date falls in.
func PeriodOf(t time.Time) (month, year int32) {
	return int32(t.Month()), int32(t.Year())
}

// ParseDate parses a YYYY-MM-DD string into a UTC date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
