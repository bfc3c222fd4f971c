// Package schedule evaluates whether a moment of the day falls inside the
// configured work intervals.
package schedule

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock bounds.
const (
	MinutesPerDay = 24 * 60
	minutesPerHr  = 60
)

// Schedule is a day split into a morning and an afternoon work interval.
// Values are minutes since local midnight. Ordering is not enforced here.
type Schedule struct {
	StartWork  int
	LunchStart int
	LunchEnd   int
	EndWork    int
}

// IsWorkTime reports whether nowMinutes lies in [StartWork, LunchStart) or
// [LunchEnd, EndWork). A nil schedule is never work time.
func IsWorkTime(nowMinutes int, s *Schedule) bool {
	if s == nil {
		return false
	}
	morning := nowMinutes >= s.StartWork && nowMinutes < s.LunchStart
	afternoon := nowMinutes >= s.LunchEnd && nowMinutes < s.EndWork
	return morning || afternoon
}

// MinuteOfDay returns the minutes elapsed since midnight in t's location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*minutesPerHr + t.Minute()
}

// ParseClock parses "HH:MM" (24h) into minutes since midnight.
func ParseClock(v string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, v)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("%w: hour in %q", ErrInvalidClock, v)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 || len(m) != 2 {
		return 0, fmt.Errorf("%w: minute in %q", ErrInvalidClock, v)
	}
	return hh*minutesPerHr + mm, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/minutesPerHr, minutes%minutesPerHr)
}

// Parse builds a schedule from four "HH:MM" values.
func Parse(startWork, lunchStart, lunchEnd, endWork string) (*Schedule, error) {
	var s Schedule
	fields := []struct {
		dst *int
		v   string
	}{
		{&s.StartWork, startWork},
		{&s.LunchStart, lunchStart},
		{&s.LunchEnd, lunchEnd},
		{&s.EndWork, endWork},
	}
	for _, f := range fields {
		m, err := ParseClock(f.v)
		if err != nil {
			return nil, err
		}
		*f.dst = m
	}
	return &s, nil
}

// Validate checks that every value is a minute of the day and the four
// points are ordered. The evaluator itself tolerates unordered schedules.
func (s *Schedule) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: missing", ErrInvalidSchedule)
	}
	for _, v := range []int{s.StartWork, s.LunchStart, s.LunchEnd, s.EndWork} {
		if v < 0 || v >= MinutesPerDay {
			return fmt.Errorf("%w: %d is not a minute of the day", ErrInvalidSchedule, v)
		}
	}
	if s.StartWork > s.LunchStart || s.LunchStart > s.LunchEnd || s.LunchEnd > s.EndWork {
		return fmt.Errorf("%w: expected startWork <= lunchStart <= lunchEnd <= endWork", ErrInvalidSchedule)
	}
	return nil
}

// String renders the schedule for logs.
func (s *Schedule) String() string {
	if s == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s-%s,%s-%s",
		FormatClock(s.StartWork), FormatClock(s.LunchStart),
		FormatClock(s.LunchEnd), FormatClock(s.EndWork))
}

type wireSchedule struct {
	StartWork  string `json:"startWork"`
	LunchStart string `json:"lunchStart"`
	LunchEnd   string `json:"lunchEnd"`
	EndWork    string `json:"endWork"`
}

// MarshalJSON writes the "HH:MM" object form.
func (s Schedule) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSchedule{
		StartWork:  FormatClock(s.StartWork),
		LunchStart: FormatClock(s.LunchStart),
		LunchEnd:   FormatClock(s.LunchEnd),
		EndWork:    FormatClock(s.EndWork),
	})
}

// UnmarshalJSON reads the "HH:MM" object form.
func (s *Schedule) UnmarshalJSON(b []byte) error {
	var w wireSchedule
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	parsed, err := Parse(w.StartWork, w.LunchStart, w.LunchEnd, w.EndWork)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}
