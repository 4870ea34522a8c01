package scheduler

import (
	"fmt"
	"sort"
	"sync"
)

// ResourceKind identifies the class of bookable resource a calendar belongs to.
type ResourceKind string

const (
	// ResourceTeacher is the calendar of a teacher.
	ResourceTeacher ResourceKind = "teacher"
	// ResourceRoom is the calendar of a room.
	ResourceRoom ResourceKind = "room"
)

// ResourceKey identifies a single calendar.
type ResourceKey struct {
	Kind ResourceKind
	ID   string
}

func (k ResourceKey) String() string {
	return string(k.Kind) + ":" + k.ID
}

// Booking is a snapshot of one calendar entry.
type Booking struct {
	Reference string
	Interval  Interval
}

// Calendar holds the booked intervals of one resource. No two stored
// intervals overlap.
type Calendar struct {
	mu       sync.RWMutex
	key      ResourceKey
	bookings map[string]Interval
}

// NewCalendar returns an empty calendar for the resource.
func NewCalendar(key ResourceKey) *Calendar {
	return &Calendar{key: key, bookings: make(map[string]Interval)}
}

// Key returns the resource the calendar belongs to.
func (c *Calendar) Key() ResourceKey {
	return c.key
}

// IsAvailable reports whether no stored interval overlaps candidate.
func (c *Calendar) IsAvailable(candidate Interval) bool {
	return c.IsAvailableIgnoring(candidate, "")
}

// IsAvailableIgnoring behaves like IsAvailable but skips the booking held by
// reference, which lets a booking be checked against its own replacement slot.
func (c *Calendar) IsAvailableIgnoring(candidate Interval, reference string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.availableLocked(candidate, reference)
}

func (c *Calendar) availableLocked(candidate Interval, reference string) bool {
	for ref, booked := range c.bookings {
		if reference != "" && ref == reference {
			continue
		}
		if booked.Overlaps(candidate) {
			return false
		}
	}
	return true
}

// AddBooking stores interval under reference. It returns false without
// mutating the calendar when the interval overlaps an existing booking, and
// ErrDuplicateBooking when reference already holds an interval.
func (c *Calendar) AddBooking(reference string, interval Interval) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.bookings[reference]; ok {
		return false, fmt.Errorf("%w: %s already holds %s on %s", ErrDuplicateBooking, reference, existing, c.key)
	}
	if !c.availableLocked(interval, "") {
		return false, nil
	}
	c.bookings[reference] = interval
	return true, nil
}

// RemoveBooking deletes the booking held by reference. It returns false when
// nothing was stored.
func (c *Calendar) RemoveBooking(reference string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.bookings[reference]; !ok {
		return false
	}
	delete(c.bookings, reference)
	return true
}

// Lookup returns the interval held by reference.
func (c *Calendar) Lookup(reference string) (Interval, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	interval, ok := c.bookings[reference]
	return interval, ok
}

// Len returns the number of stored bookings.
func (c *Calendar) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bookings)
}

// Bookings returns a snapshot ordered by start time, then reference.
func (c *Calendar) Bookings() []Booking {
	c.mu.RLock()
	out := make([]Booking, 0, len(c.bookings))
	for ref, interval := range c.bookings {
		out = append(out, Booking{Reference: ref, Interval: interval})
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Interval.Start().Equal(out[j].Interval.Start()) {
			return out[i].Reference < out[j].Reference
		}
		return out[i].Interval.Start().Before(out[j].Interval.Start())
	})
	return out
}
