package models

import "strconv"

// ReportRow holds the uptime/downtime estimates for one store.
// The last-hour pair is in minutes; the last-day and last-week pairs are in hours.
type ReportRow struct {
	StoreID                 string  `json:"store_id"`
	UptimeLastHourMinutes   float64 `json:"uptime_last_hour"`
	UptimeLastDayHours      float64 `json:"uptime_last_day"`
	UptimeLastWeekHours     float64 `json:"uptime_last_week"`
	DowntimeLastHourMinutes float64 `json:"downtime_last_hour"`
	DowntimeLastDayHours    float64 `json:"downtime_last_day"`
	DowntimeLastWeekHours   float64 `json:"downtime_last_week"`
}

// ReportHeader is the column order of the report artifact.
var ReportHeader = []string{
	"store_id",
	"uptime_last_hour",
	"uptime_last_day",
	"uptime_last_week",
	"downtime_last_hour",
	"downtime_last_day",
	"downtime_last_week",
}

// Record renders the row in ReportHeader order.
func (r ReportRow) Record() []string {
	return []string{
		r.StoreID,
		formatFloat(r.UptimeLastHourMinutes),
		formatFloat(r.UptimeLastDayHours),
		formatFloat(r.UptimeLastWeekHours),
		formatFloat(r.DowntimeLastHourMinutes),
		formatFloat(r.DowntimeLastDayHours),
		formatFloat(r.DowntimeLastWeekHours),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
