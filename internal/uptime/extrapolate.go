package uptime

import (
	"sort"
	"time"

	"store-uptime/internal/models"
)

// Trailing window lengths.
const (
	LastHour = time.Hour
	LastDay  = 24 * time.Hour
	LastWeek = 7 * 24 * time.Hour
)

type window struct {
	start    time.Time
	up, down time.Duration
}

// Extrapolate estimates uptime and downtime over the trailing hour, day and
// week ending at now. Each gap between consecutive observations takes the
// status of its earlier observation and counts in full toward every window
// that starts at or before the gap. Time after the last observation up to now
// counts as uptime. Observations later than now are ignored. The returned
// row has no StoreID.
func Extrapolate(obs []models.Observation, now time.Time) models.ReportRow {
	points := make([]models.Observation, 0, len(obs))
	for _, o := range obs {
		if !o.Timestamp.After(now) {
			points = append(points, o)
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	windows := [3]window{
		{start: now.Add(-LastHour)},
		{start: now.Add(-LastDay)},
		{start: now.Add(-LastWeek)},
	}

	for i := 0; i+1 < len(points); i++ {
		from, to := points[i].Timestamp, points[i+1].Timestamp
		span := to.Sub(from)
		for w := range windows {
			if windows[w].start.After(from) {
				continue
			}
			if points[i].Status == models.StatusActive {
				windows[w].up += span
			} else {
				windows[w].down += span
			}
		}
	}

	if n := len(points); n > 0 {
		last := points[n-1].Timestamp
		for w := range windows {
			if last.After(windows[w].start) {
				windows[w].up += now.Sub(last)
			}
		}
	}

	return models.ReportRow{
		UptimeLastHourMinutes:   windows[0].up.Minutes(),
		UptimeLastDayHours:      windows[1].up.Hours(),
		UptimeLastWeekHours:     windows[2].up.Hours(),
		DowntimeLastHourMinutes: windows[0].down.Minutes(),
		DowntimeLastDayHours:    windows[1].down.Hours(),
		DowntimeLastWeekHours:   windows[2].down.Hours(),
	}
}
