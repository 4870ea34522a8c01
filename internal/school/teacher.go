// Package school holds the in-memory directory of teachers, students, rooms and
// course packages consulted by the scheduling service.
package school

import (
	"slices"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/example/music-school-scheduler/internal/availability"
)

// fold normalizes names for case-insensitive comparison. A Caser is not safe
// for concurrent use, so one is built per call.
func fold(value string) string {
	return cases.Fold().String(value)
}

func containsFold(values []string, target string) bool {
	want := fold(target)
	return slices.ContainsFunc(values, func(v string) bool { return fold(v) == want })
}

// Teacher is a member of the teaching staff.
type Teacher struct {
	ID   string
	Name string

	mu              sync.RWMutex
	active          bool
	specializations []string
	availability    *availability.Schedule
}

// NewTeacher returns an active teacher with the given weekly working hours.
func NewTeacher(id, name string, specializations []string, schedule *availability.Schedule) *Teacher {
	if schedule == nil {
		schedule = availability.NewSchedule(nil)
	}
	return &Teacher{
		ID:              id,
		Name:            name,
		active:          true,
		specializations: slices.Clone(specializations),
		availability:    schedule,
	}
}

// IsActive reports whether the teacher can be scheduled.
func (t *Teacher) IsActive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

// SetActive toggles the active flag.
func (t *Teacher) SetActive(active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = active
}

// CanTeach reports whether the instrument is one of the specializations.
func (t *Teacher) CanTeach(instrument string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return containsFold(t.specializations, instrument)
}

// AddSpecialization records an instrument the teacher teaches.
func (t *Teacher) AddSpecialization(instrument string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !containsFold(t.specializations, instrument) {
		t.specializations = append(t.specializations, instrument)
	}
}

// Specializations returns a copy of the taught instruments.
func (t *Teacher) Specializations() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.specializations)
}

// SetAvailability replaces the windows of a weekday.
func (t *Teacher) SetAvailability(day time.Weekday, start, end availability.ClockTime) error {
	w, err := availability.NewWindow(day, start, end)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.availability.Add(w)
	return nil
}

// ClearAvailability removes the windows of a weekday.
func (t *Teacher) ClearAvailability(day time.Weekday) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.availability.Clear(day)
}

// IsAvailableAt reports whether one weekly window covers the slot.
func (t *Teacher) IsAvailableAt(start time.Time, minutes int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.availability.Covers(start, minutes)
}

// WorkingHours expands the weekly windows between from and to.
func (t *Teacher) WorkingHours(from, to time.Time) ([]availability.Occurrence, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.availability.Expand(from, to)
}
