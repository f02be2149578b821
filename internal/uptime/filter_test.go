package uptime

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"store-uptime/internal/models"
)

type fakeSources struct {
	observations map[string][]models.Observation
	hours        map[string][]models.BusinessHours
	zones        map[string]string
	obsErr       error
	hoursErr     error
	zoneErr      error
}

func (f *fakeSources) StoreObservations(_ context.Context, storeID string) ([]models.Observation, error) {
	if f.obsErr != nil {
		return nil, f.obsErr
	}
	return f.observations[storeID], nil
}

func (f *fakeSources) StoreBusinessHours(_ context.Context, storeID string) ([]models.BusinessHours, error) {
	if f.hoursErr != nil {
		return nil, f.hoursErr
	}
	return f.hours[storeID], nil
}

func (f *fakeSources) StoreTimezone(_ context.Context, storeID string) (string, bool, error) {
	if f.zoneErr != nil {
		return "", false, f.zoneErr
	}
	z, ok := f.zones[storeID]
	return z, ok, nil
}

func mustClock(t *testing.T, s string) models.Clock {
	t.Helper()
	c, err := models.ParseClock(s)
	if err != nil {
		t.Fatalf("parse clock %q: %v", s, err)
	}
	return c
}

func newFilter(t *testing.T, src *fakeSources) *Filter {
	t.Helper()
	log := zap.NewNop()
	zones, err := NewZoneResolver(src, "", log)
	if err != nil {
		t.Fatalf("zone resolver: %v", err)
	}
	return NewFilter(src, NewHoursResolver(src, log), zones)
}

func TestHoursResolverDefaults(t *testing.T) {
	src := &fakeSources{hours: map[string][]models.BusinessHours{
		"s1": {{StoreID: "s1", Day: 2, Window: models.Window{Start: mustClock(t, "08:00:00"), End: mustClock(t, "17:00:00")}}},
	}}
	week := NewHoursResolver(src, zap.NewNop()).Resolve(context.Background(), "s1")
	for d := models.Weekday(0); d < 7; d++ {
		if d == 2 {
			if week[d].Start != mustClock(t, "08:00:00") || week[d].End != mustClock(t, "17:00:00") {
				t.Fatalf("expected configured window for day 2, got %v-%v", week[d].Start, week[d].End)
			}
			continue
		}
		if week[d] != models.AllDay {
			t.Fatalf("expected all-day default for day %d, got %v-%v", d, week[d].Start, week[d].End)
		}
	}
	if models.AllDay.Start.String() != "00:00:00" || models.AllDay.End.String() != "23:59:59" {
		t.Fatalf("unexpected default window %v-%v", models.AllDay.Start, models.AllDay.End)
	}
}

func TestHoursResolverFirstRowWins(t *testing.T) {
	src := &fakeSources{hours: map[string][]models.BusinessHours{
		"s1": {
			{StoreID: "s1", Day: 0, Window: models.Window{Start: mustClock(t, "09:00:00"), End: mustClock(t, "10:00:00")}},
			{StoreID: "s1", Day: 0, Window: models.Window{Start: mustClock(t, "11:00:00"), End: mustClock(t, "12:00:00")}},
		},
	}}
	week := NewHoursResolver(src, zap.NewNop()).Resolve(context.Background(), "s1")
	if week[0].Start != mustClock(t, "09:00:00") {
		t.Fatalf("expected first row to win, got start %v", week[0].Start)
	}
}

func TestHoursResolverLookupFailure(t *testing.T) {
	src := &fakeSources{hoursErr: errors.New("db down")}
	week := NewHoursResolver(src, zap.NewNop()).Resolve(context.Background(), "s1")
	for d, w := range week {
		if w != models.AllDay {
			t.Fatalf("expected default for day %d after failure", d)
		}
	}
}

func TestZoneResolverFallbacks(t *testing.T) {
	ctx := context.Background()
	src := &fakeSources{zones: map[string]string{"known": "Asia/Kolkata", "bogus": "Mars/Olympus"}}
	r, err := NewZoneResolver(src, "", zap.NewNop())
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	if got := r.Resolve(ctx, "known").String(); got != "Asia/Kolkata" {
		t.Fatalf("expected Asia/Kolkata, got %s", got)
	}
	if got := r.Resolve(ctx, "missing").String(); got != models.DefaultTimezone {
		t.Fatalf("expected default for missing store, got %s", got)
	}
	if got := r.Resolve(ctx, "bogus").String(); got != models.DefaultTimezone {
		t.Fatalf("expected default for unknown zone, got %s", got)
	}

	src.zoneErr = errors.New("timeout")
	if got := r.Resolve(ctx, "known").String(); got != models.DefaultTimezone {
		t.Fatalf("expected default on lookup failure, got %s", got)
	}
}

func TestFilterBusinessHoursBounds(t *testing.T) {
	// 2023-01-21 is a Saturday (weekday 5); Chicago is UTC-6 in January.
	day := time.Date(2023, 1, 21, 0, 0, 0, 0, time.UTC)
	at := func(h, m, s, ns int) time.Time {
		return day.Add(time.Duration(h+6)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second + time.Duration(ns))
	}
	src := &fakeSources{
		observations: map[string][]models.Observation{"s1": {
			{StoreID: "s1", Timestamp: at(9, 0, 0, 0), Status: models.StatusActive},
			{StoreID: "s1", Timestamp: at(7, 59, 59, 0), Status: models.StatusActive},
			{StoreID: "s1", Timestamp: at(8, 0, 0, 0), Status: models.StatusInactive},
			{StoreID: "s1", Timestamp: at(17, 0, 0, 0), Status: models.StatusActive},
			{StoreID: "s1", Timestamp: at(17, 0, 0, 500), Status: models.StatusActive},
		}},
		hours: map[string][]models.BusinessHours{"s1": {
			{StoreID: "s1", Day: 5, Window: models.Window{Start: mustClock(t, "08:00:00"), End: mustClock(t, "17:00:00")}},
		}},
	}
	kept, err := newFilter(t, src).Observations(context.Background(), "s1")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	want := map[time.Time]bool{at(9, 0, 0, 0): true, at(8, 0, 0, 0): true, at(17, 0, 0, 0): true}
	if len(kept) != len(want) {
		t.Fatalf("expected %d observations kept, got %d: %+v", len(want), len(kept), kept)
	}
	for _, o := range kept {
		if !want[o.Timestamp] {
			t.Fatalf("unexpected observation kept at %s", o.Timestamp)
		}
	}
}

func TestFilterUsesLocalWeekday(t *testing.T) {
	// 03:00 UTC Sunday is still Saturday 21:00 in Chicago.
	ts := time.Date(2023, 1, 22, 3, 0, 0, 0, time.UTC)
	src := &fakeSources{
		observations: map[string][]models.Observation{"s1": {{StoreID: "s1", Timestamp: ts, Status: models.StatusActive}}},
		hours: map[string][]models.BusinessHours{"s1": {
			{StoreID: "s1", Day: 5, Window: models.Window{Start: mustClock(t, "08:00:00"), End: mustClock(t, "17:00:00")}},
		}},
	}
	kept, err := newFilter(t, src).Observations(context.Background(), "s1")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(kept) != 0 {
		t.Fatalf("expected observation outside Saturday hours to be dropped, kept %+v", kept)
	}
}

func TestFilterNoObservations(t *testing.T) {
	kept, err := newFilter(t, &fakeSources{}).Observations(context.Background(), "empty")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(kept) != 0 {
		t.Fatalf("expected nothing, got %+v", kept)
	}
}

func TestFilterObservationLookupError(t *testing.T) {
	_, err := newFilter(t, &fakeSources{obsErr: errors.New("boom")}).Observations(context.Background(), "s1")
	if err == nil {
		t.Fatalf("expected error from observation lookup")
	}
}
