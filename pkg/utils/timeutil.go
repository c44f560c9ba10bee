// Package utils provides date helpers shared by the rating pipeline.
package utils

import (
	"fmt"
	"strings"
	"time"
)

// DaysPerYear converts day counts into the year unit used by hazard models.
const DaysPerYear = 365.25

// DateLayout is the calendar date format used in data files and reports.
const DateLayout = "2006-01-02"

// DaysBetween returns the whole number of days from a to b (negative when b < a).
func DaysBetween(a, b time.Time) int {
	return int(Truncate(b).Sub(Truncate(a)).Hours() / 24)
}

// YearFraction returns the time from a to b in years.
func YearFraction(a, b time.Time) float64 {
	return float64(DaysBetween(a, b)) / DaysPerYear
}

// DaysToYears converts a day count to years.
func DaysToYears(days int) float64 {
	return float64(days) / DaysPerYear
}

// Truncate drops the clock part of t, keeping the calendar date in UTC.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses "2006-01-02" and RFC3339 timestamps into a UTC date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return Truncate(t), nil
}

// MustDate parses a date and panics on error. Intended for literals.
func MustDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// FormatDate formats t as "2006-01-02".
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Within reports whether t lies in the inclusive date range [start, end].
func Within(t, start, end time.Time) bool {
	d := Truncate(t)
	return !d.Before(Truncate(start)) && !d.After(Truncate(end))
}
