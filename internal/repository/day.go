package repository

import (
	"fmt"
	"time"
)

const (
	DayLayout   = "2006-01-02"
	ClockLayout = "15:04:05"
)

// SplitTimestamp returns the calendar date (YYYY-MM-DD) and wall-clock time
// (HH:MM:SS) of ts in its own location.
func SplitTimestamp(ts time.Time) (date, clock string) {
	return ts.Format(DayLayout), ts.Format(ClockLayout)
}

// Day returns the calendar date of ts.
func Day(ts time.Time) string {
	return ts.Format(DayLayout)
}

// ParseDay validates a YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	d, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidInput, s)
	}
	return d, nil
}

// ParseClock validates an HH:MM:SS time and returns its offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: time %q", ErrInvalidInput, s)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

// FormatClock renders an offset from midnight as HH:MM:SS.
func FormatClock(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%02d:%02d:%02d", h, m, d/time.Second)
}
