// Package simulator drives observer agents against a running coordinator
// and checks that the accepted clicks show up in today's stats.
package simulator

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL       string        // Base URL of the coordinator
	Observers     int           // Number of concurrent observers
	Interactions  int           // Raw interactions per observer
	Timeout       time.Duration // HTTP request timeout
	VerifyTimeout time.Duration // How long to wait for clicks to be applied
	ForceStart    bool          // Force tracking on before interacting
	Verbose       bool          // Log every outcome
}

// Stats holds the totals of a simulation run.
type Stats struct {
	Observers    int
	Raw          int
	Ignored      int
	Throttled    int
	Sampled      int
	Forwarded    int
	Accepted     int
	Suppressed   int
	Failed       int
	ClicksBefore int
	ClicksAfter  int
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
}
