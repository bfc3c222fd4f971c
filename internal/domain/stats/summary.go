package stats

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/workpulse/internal/domain/model"
)

const minutesPerHour = 60

// Summary is the at-a-glance view of today's activity.
type Summary struct {
	Date          string `json:"date"`
	Clicks        int    `json:"clicks"`
	WorkMinutes   int    `json:"workMinutes"`
	WorkHours     string `json:"workHours"`
	ClicksPerHour int    `json:"clicksPerHour"`
	Week          string `json:"week"`
	WeekClicks    int    `json:"weekClicks"`
}

// Summarize derives today's summary from snap with now in the desired location.
func Summarize(snap model.Snapshot, now time.Time) Summary {
	date, week := model.DateKey(now), model.WeekKey(now)
	today := snap.DailyStats[date]

	out := Summary{
		Date:        date,
		Clicks:      today.Clicks,
		WorkMinutes: today.WorkMinutes,
		WorkHours:   FormatWorkHours(today.WorkMinutes),
		Week:        week,
		WeekClicks:  snap.WeeklyStats[week],
	}
	if today.WorkMinutes > 0 {
		out.ClicksPerHour = int(math.Floor(float64(today.Clicks)/float64(today.WorkMinutes)*minutesPerHour + 0.5))
	}
	return out
}

// FormatWorkHours renders minutes as "3h" or "2h55m".
func FormatWorkHours(minutes int) string {
	h, m := minutes/minutesPerHour, minutes%minutesPerHour
	if m > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dh", h)
}
