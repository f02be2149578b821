package uptime

import (
	"math/rand"
	"testing"
	"time"

	"store-uptime/internal/models"
)

var refNow = time.Date(2023, 1, 21, 8, 4, 26, 177456000, time.UTC)

func obs(at time.Time, status models.StoreStatus) models.Observation {
	return models.Observation{StoreID: "s1", Timestamp: at, Status: status}
}

func TestExtrapolateEmpty(t *testing.T) {
	row := Extrapolate(nil, refNow)
	if row != (models.ReportRow{}) {
		t.Fatalf("expected zero row, got %+v", row)
	}
}

func TestExtrapolateTailOnly(t *testing.T) {
	row := Extrapolate([]models.Observation{obs(refNow.Add(-30*time.Minute), models.StatusActive)}, refNow)
	if row.UptimeLastHourMinutes != 30 {
		t.Fatalf("expected 30 minutes uptime in last hour, got %v", row.UptimeLastHourMinutes)
	}
	if row.DowntimeLastHourMinutes != 0 {
		t.Fatalf("expected no downtime, got %v", row.DowntimeLastHourMinutes)
	}
	if row.UptimeLastDayHours != 0.5 || row.UptimeLastWeekHours != 0.5 {
		t.Fatalf("expected 0.5h day/week uptime, got %v/%v", row.UptimeLastDayHours, row.UptimeLastWeekHours)
	}
}

func TestExtrapolateTailAfterInactiveIsUptime(t *testing.T) {
	row := Extrapolate([]models.Observation{obs(refNow.Add(-20*time.Minute), models.StatusInactive)}, refNow)
	if row.UptimeLastHourMinutes != 20 || row.DowntimeLastHourMinutes != 0 {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestExtrapolateScenario(t *testing.T) {
	t0 := refNow.Add(-40 * time.Minute)
	input := []models.Observation{
		obs(t0.Add(40*time.Minute), models.StatusActive),
		obs(t0, models.StatusActive),
		obs(t0.Add(10*time.Minute), models.StatusInactive),
	}
	row := Extrapolate(input, refNow)
	if row.UptimeLastHourMinutes != 10 {
		t.Fatalf("expected uptime_last_hour=10, got %v", row.UptimeLastHourMinutes)
	}
	if row.DowntimeLastHourMinutes != 30 {
		t.Fatalf("expected downtime_last_hour=30, got %v", row.DowntimeLastHourMinutes)
	}
	if row.DowntimeLastDayHours != 0.5 || row.DowntimeLastWeekHours != 0.5 {
		t.Fatalf("expected 0.5h downtime for day/week, got %v/%v", row.DowntimeLastDayHours, row.DowntimeLastWeekHours)
	}
}

func TestExtrapolateUnits(t *testing.T) {
	start := refNow.Add(-5 * time.Hour)
	input := []models.Observation{
		obs(start, models.StatusActive),
		obs(start.Add(2*time.Hour), models.StatusInactive),
		obs(refNow, models.StatusInactive),
	}
	row := Extrapolate(input, refNow)
	if row.UptimeLastDayHours != 2 {
		t.Fatalf("expected 2h uptime_last_day, got %v", row.UptimeLastDayHours)
	}
	if row.UptimeLastHourMinutes != 0 {
		t.Fatalf("interval outside last hour must not count, got %v", row.UptimeLastHourMinutes)
	}
	if row.DowntimeLastDayHours != 3 {
		t.Fatalf("expected 3h downtime_last_day, got %v", row.DowntimeLastDayHours)
	}
}

func TestExtrapolateIgnoresFutureObservations(t *testing.T) {
	input := []models.Observation{
		obs(refNow.Add(-10*time.Minute), models.StatusInactive),
		obs(refNow.Add(2*time.Hour), models.StatusActive),
	}
	row := Extrapolate(input, refNow)
	if row.DowntimeLastHourMinutes != 0 || row.UptimeLastHourMinutes != 10 {
		t.Fatalf("unexpected row %+v", row)
	}
}

func TestExtrapolateWithinWindowSpan(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		var input []models.Observation
		for i := 0; i < 200; i++ {
			offset := time.Duration(rng.Int63n(int64(9 * 24 * time.Hour)))
			status := models.StatusInactive
			if rng.Intn(3) > 0 {
				status = models.StatusActive
			}
			input = append(input, obs(refNow.Add(-offset), status))
		}
		row := Extrapolate(input, refNow)
		if got := row.UptimeLastHourMinutes + row.DowntimeLastHourMinutes; got > 60+1e-9 {
			t.Fatalf("trial %d: last hour total %v exceeds 60 minutes", trial, got)
		}
		if got := row.UptimeLastDayHours + row.DowntimeLastDayHours; got > 24+1e-9 {
			t.Fatalf("trial %d: last day total %v exceeds 24 hours", trial, got)
		}
		if got := row.UptimeLastWeekHours + row.DowntimeLastWeekHours; got > 168+1e-9 {
			t.Fatalf("trial %d: last week total %v exceeds 168 hours", trial, got)
		}
	}
}

func TestExtrapolateDeterministic(t *testing.T) {
	input := []models.Observation{
		obs(refNow.Add(-3*time.Hour), models.StatusActive),
		obs(refNow.Add(-90*time.Minute), models.StatusInactive),
		obs(refNow.Add(-17*time.Minute), models.StatusActive),
	}
	first := Extrapolate(input, refNow)
	second := Extrapolate(input, refNow)
	if first != second {
		t.Fatalf("expected identical rows, got %+v and %+v", first, second)
	}
	if input[0].Timestamp != refNow.Add(-3*time.Hour) {
		t.Fatalf("input slice must not be reordered")
	}
}
