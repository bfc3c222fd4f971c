package model

import (
	"strconv"
	"time"
)

// Date key layouts. DateKeyLayout is what new entries are written with;
// ISODateLayout is only accepted when reading.
const (
	DateKeyLayout = "Mon Jan 02 2006"
	ISODateLayout = "2006-01-02"
)

const daysPerWeek = 7

// DateKey returns the calendar-day key for t in t's location.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// ParseDateKey parses a daily key as local midnight in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range []string{DateKeyLayout, ISODateLayout} {
		if t, err := time.ParseInLocation(layout, key, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// WeekNumber returns ceil((daysSinceJan1 + weekdayOfJan1 + 1) / 7) for the
// calendar date of t, with Sunday as weekday 0.
func WeekNumber(t time.Time) int {
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	days := t.YearDay() - 1
	n := days + int(jan1.Weekday()) + 1
	return (n + daysPerWeek - 1) / daysPerWeek
}

// WeekKey is the weekly stats key for t. It carries no year, so week N of
// different years share a bucket.
func WeekKey(t time.Time) string {
	return strconv.Itoa(WeekNumber(t))
}
