package daytime

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-env-sync/internal/environment"
)

const minutesPerDay = 24 * 60

// The sunset window opens an hour before the configured sunset and closes
// thirty minutes after it.
const (
	SunsetLead  = 60 * time.Minute
	SunsetTrail = 30 * time.Minute
)

// Clock is a wall-clock time of day, in minutes after midnight.
type Clock int

// ParseClock parses an "HH:mm" string.
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q: want HH:mm", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock %q: hour must be 00-23", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid clock %q: minute must be 00-59", s)
	}
	return Clock(h*60 + m), nil
}

// MustClock is ParseClock for constants; it panics on bad input.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns the time of day of t in t's own location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c Clock) add(d time.Duration) Clock {
	m := (int(c) + int(d/time.Minute)) % minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return Clock(m)
}

// within reports whether c lies in [start, end), wrapping past midnight.
func (c Clock) within(start, end Clock) bool {
	if start <= end {
		return c >= start && c < end
	}
	return c >= start || c < end
}

// Schedule holds the sunrise and sunset boundaries used when no weather
// data is available.
type Schedule struct {
	Sunrise Clock
	Sunset  Clock
}

// Default matches the out-of-the-box configuration.
var Default = Schedule{Sunrise: MustClock("06:30"), Sunset: MustClock("18:30")}

// ParseSchedule builds a Schedule from two "HH:mm" strings.
func ParseSchedule(sunrise, sunset string) (Schedule, error) {
	rise, err := ParseClock(sunrise)
	if err != nil {
		return Schedule{}, fmt.Errorf("sunrise: %w", err)
	}
	set, err := ParseClock(sunset)
	if err != nil {
		return Schedule{}, fmt.Errorf("sunset: %w", err)
	}
	if rise == set {
		return Schedule{}, fmt.Errorf("sunrise and sunset are both %s", rise)
	}
	return Schedule{Sunrise: rise, Sunset: set}, nil
}

// FromSunTimes converts provider-reported sun times into a Schedule in loc.
func FromSunTimes(sunrise, sunset time.Time, loc *time.Location) Schedule {
	return Schedule{
		Sunrise: ClockOf(sunrise.In(loc)),
		Sunset:  ClockOf(sunset.In(loc)),
	}
}

// SunsetWindow returns the [start, end) clocks of the sunset window.
func (s Schedule) SunsetWindow() (Clock, Clock) {
	return s.Sunset.add(-SunsetLead), s.Sunset.add(SunsetTrail)
}

// IsDay reports whether now falls between sunrise and sunset.
func (s Schedule) IsDay(now time.Time) bool {
	return ClockOf(now).within(s.Sunrise, s.Sunset)
}

// BaseTimeAt picks the BaseTime member for now: Sunset inside the sunset
// window, Day from sunrise until the window opens, Night otherwise.
func (s Schedule) BaseTimeAt(now time.Time) environment.ID {
	c := ClockOf(now)
	start, end := s.SunsetWindow()
	switch {
	case c.within(start, end):
		return environment.Sunset
	case c.within(s.Sunrise, start):
		return environment.Day
	default:
		return environment.Night
	}
}

// TargetAt is the time-of-day fallback target: the BaseTime member for now
// and no precipitation.
func (s Schedule) TargetAt(now time.Time) environment.TargetState {
	return environment.TargetState{
		BaseTime:      s.BaseTimeAt(now),
		Precipitation: environment.None,
	}
}

func (s Schedule) String() string {
	return s.Sunrise.String() + "-" + s.Sunset.String()
}
