package models

import (
	"fmt"
	"time"
)

// Clock is a local time-of-day expressed as the offset from midnight.
type Clock time.Duration

// ParseClock parses "HH:MM:SS" (or "HH:MM").
func ParseClock(s string) (Clock, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return ClockOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q (want HH:MM:SS)", s)
}

// ClockOf returns the wall-clock time of day of t in t's own location.
func ClockOf(t time.Time) Clock {
	h, m, s := t.Clock()
	return Clock(time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond()))
}

func (c Clock) String() string {
	d := time.Duration(c)
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// Weekday numbers days Monday=0 through Sunday=6.
type Weekday int

// WeekdayOf converts time.Weekday (Sunday=0) to Weekday (Monday=0).
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// Valid reports whether d is within Monday..Sunday.
func (d Weekday) Valid() bool { return d >= 0 && d <= 6 }

// Window is an inclusive local opening window.
type Window struct {
	Start Clock
	End   Clock
}

// AllDay is the window assumed for days without configured hours.
var AllDay = Window{Start: 0, End: Clock(23*time.Hour + 59*time.Minute + 59*time.Second)}

// Contains reports whether c falls within [Start, End].
func (w Window) Contains(c Clock) bool {
	return w.Start <= c && c <= w.End
}

// BusinessHours is one configured opening window for a store and weekday.
type BusinessHours struct {
	StoreID string
	Day     Weekday
	Window
}

// WeeklyHours holds one window per weekday, indexed by Weekday.
type WeeklyHours [7]Window
