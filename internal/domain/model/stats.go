// Package model contains domain models passed between layers.
package model

import "time"

// Persisted key names. They match the layout existing stores already hold.
const (
	KeySchedule         = "schedule"
	KeyIsTracking       = "isTracking"
	KeySessionStartedAt = "sessionStartedAt"
	KeyDailyStats       = "dailyStats"
	KeyWeeklyStats      = "weeklyStats"
)

// DailyStat holds the counters of one calendar day.
type DailyStat struct {
	Clicks      int `json:"clicks"`
	WorkMinutes int `json:"workMinutes"`
}

// DailyStats maps a date key to the day's counters.
type DailyStats map[string]DailyStat

// WeeklyStats maps a week key to the week's click total.
type WeeklyStats map[string]int

// Snapshot is the full stats view handed to observers and the HTTP API.
type Snapshot struct {
	DailyStats  DailyStats  `json:"dailyStats"`
	WeeklyStats WeeklyStats `json:"weeklyStats"`
}

// Clone returns a deep copy so callers can hand it out without sharing maps.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		DailyStats:  make(DailyStats, len(s.DailyStats)),
		WeeklyStats: make(WeeklyStats, len(s.WeeklyStats)),
	}
	for k, v := range s.DailyStats {
		out.DailyStats[k] = v
	}
	for k, v := range s.WeeklyStats {
		out.WeeklyStats[k] = v
	}
	return out
}

// TrackingState is the controller's persisted view of the current session.
// SessionStartedAt is set iff IsTracking is true.
type TrackingState struct {
	IsTracking       bool       `json:"isTracking"`
	SessionStartedAt *time.Time `json:"sessionStartedAt,omitempty"`
}
