// Package availability describes recurring weekly working hours and expands
// them into concrete ranges.
package availability

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalidWindow indicates a window whose end is not after its start.
var ErrInvalidWindow = errors.New("availability: window end must be after start")

// ErrInvalidRange indicates an expansion range whose end is not after its start.
var ErrInvalidRange = errors.New("availability: range end must be after start")

// ClockTime is a time of day measured in minutes from midnight.
type ClockTime int

// Clock builds a ClockTime from hours and minutes.
func Clock(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClock parses "HH:MM".
func ParseClock(value string) (ClockTime, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("availability: parse clock %q: %w", value, err)
	}
	return Clock(parsed.Hour(), parsed.Minute()), nil
}

// String renders the clock as "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Window is a recurring range of working hours on one weekday.
type Window struct {
	Day   time.Weekday
	Start ClockTime
	End   ClockTime
}

// NewWindow validates and builds a window.
func NewWindow(day time.Weekday, start, end ClockTime) (Window, error) {
	if end <= start || start < 0 || end > Clock(24, 0) {
		return Window{}, fmt.Errorf("%w: %s %s-%s", ErrInvalidWindow, day, start, end)
	}
	return Window{Day: day, Start: start, End: end}, nil
}

// Occurrence is a window expanded onto a calendar date.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Schedule is a set of weekly windows interpreted in a fixed location.
// The zero value has no windows and is never available.
type Schedule struct {
	location *time.Location
	windows  []Window
}

// NewSchedule constructs a Schedule. If loc is nil, UTC is used.
func NewSchedule(loc *time.Location, windows ...Window) *Schedule {
	if loc == nil {
		loc = time.UTC
	}
	s := &Schedule{location: loc}
	for _, w := range windows {
		s.Add(w)
	}
	return s
}

// Add appends a window, keeping windows ordered by day then start.
func (s *Schedule) Add(w Window) {
	s.windows = append(s.windows, w)
	slices.SortFunc(s.windows, func(a, b Window) int {
		if a.Day != b.Day {
			return int(a.Day) - int(b.Day)
		}
		return int(a.Start) - int(b.Start)
	})
}

// Clear removes every window of the day.
func (s *Schedule) Clear(day time.Weekday) {
	s.windows = slices.DeleteFunc(s.windows, func(w Window) bool { return w.Day == day })
}

// Windows returns a copy of the configured windows.
func (s *Schedule) Windows() []Window {
	if s == nil {
		return nil
	}
	return slices.Clone(s.windows)
}

// Location returns the location windows are interpreted in.
func (s *Schedule) Location() *time.Location {
	if s == nil || s.location == nil {
		return time.UTC
	}
	return s.location
}

// Covers reports whether a single window of the start's weekday contains the
// whole range [start, start+minutes). Ranges crossing midnight are never covered.
func (s *Schedule) Covers(start time.Time, minutes int) bool {
	if s == nil || minutes <= 0 {
		return false
	}
	local := start.In(s.Location())
	from := Clock(local.Hour(), local.Minute())
	if local.Second() != 0 || local.Nanosecond() != 0 {
		// A start inside a minute still has to fit before the window ends.
		minutes++
	}
	to := from + ClockTime(minutes)
	for _, w := range s.windows {
		if w.Day != local.Weekday() {
			continue
		}
		if from >= w.Start && to <= w.End {
			return true
		}
	}
	return false
}

// Expand lists the occurrences of every window that starts within [from, to),
// in chronological order.
func (s *Schedule) Expand(from, to time.Time) ([]Occurrence, error) {
	if !to.After(from) {
		return nil, ErrInvalidRange
	}
	if s == nil || len(s.windows) == 0 {
		return nil, nil
	}

	loc := s.Location()
	from = from.In(loc)
	to = to.In(loc)

	y, m, d := from.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	occurrences := make([]Occurrence, 0)
	for day.Before(to) {
		for _, w := range s.windows {
			if w.Day != day.Weekday() {
				continue
			}
			dy, dm, dd := day.Date()
			start := time.Date(dy, dm, dd, 0, int(w.Start), 0, 0, loc)
			if start.Before(from) || !start.Before(to) {
				continue
			}
			occurrences = append(occurrences, Occurrence{
				Start: start,
				End:   time.Date(dy, dm, dd, 0, int(w.End), 0, 0, loc),
			})
		}
		day = day.AddDate(0, 0, 1)
	}
	return occurrences, nil
}
