package scheduler

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInterval is returned when an interval ends at or before its start.
	ErrInvalidInterval = errors.New("scheduler: invalid interval")
	// ErrDuplicateBooking is returned when a calendar already holds an interval for a reference.
	ErrDuplicateBooking = errors.New("scheduler: duplicate booking")
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	start time.Time
	end   time.Time
}

// NewInterval constructs an interval, rejecting ranges where end is not after start.
func NewInterval(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidInterval, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Interval{start: start, end: end}, nil
}

// IntervalFor builds the interval starting at start and lasting the given number of minutes.
func IntervalFor(start time.Time, minutes int) (Interval, error) {
	if minutes <= 0 {
		return Interval{}, fmt.Errorf("%w: duration must be positive, got %d minutes", ErrInvalidInterval, minutes)
	}
	return NewInterval(start, start.Add(time.Duration(minutes)*time.Minute))
}

// Start returns the inclusive lower bound.
func (i Interval) Start() time.Time { return i.start }

// End returns the exclusive upper bound.
func (i Interval) End() time.Time { return i.end }

// IsZero reports whether the interval was never initialised.
func (i Interval) IsZero() bool { return i.start.IsZero() && i.end.IsZero() }

// Overlaps reports whether the two intervals share any instant. Touching
// endpoints do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.start.Before(other.end) && i.end.After(other.start)
}

// Contains reports whether t falls inside the interval.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.start) && t.Before(i.end)
}

// DurationMinutes returns the length of the interval in whole minutes.
func (i Interval) DurationMinutes() int {
	return int(i.end.Sub(i.start) / time.Minute)
}

// Equal reports whether both bounds denote the same instants.
func (i Interval) Equal(other Interval) bool {
	return i.start.Equal(other.start) && i.end.Equal(other.end)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.start.Format(time.RFC3339), i.end.Format(time.RFC3339))
}
