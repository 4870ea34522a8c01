package application

import (
	"context"
	"fmt"

	"github.com/example/music-school-scheduler/internal/activity"
	"github.com/example/music-school-scheduler/internal/scheduler"
)

// holdsCalendar reports whether an activity in the status keeps its slot
// booked. Finalized activities release it.
func holdsCalendar(status activity.Status) bool {
	switch status {
	case activity.StatusScheduled, activity.StatusInProgress:
		return true
	default:
		return false
	}
}

// calendar returns the calendar of the resource, creating it on first use.
// Callers hold s.mu.
func (s *SchedulingService) calendar(key scheduler.ResourceKey) *scheduler.Calendar {
	cal, ok := s.calendars[key]
	if !ok {
		cal = scheduler.NewCalendar(key)
		s.calendars[key] = cal
	}
	return cal
}

// book reserves the interval on every calendar or on none of them.
func (s *SchedulingService) book(reference string, keys []scheduler.ResourceKey, interval scheduler.Interval) error {
	for i, key := range keys {
		added, err := s.calendar(key).AddBooking(reference, interval)
		if err == nil && added {
			continue
		}
		for _, booked := range keys[:i] {
			s.calendar(booked).RemoveBooking(reference)
		}
		if err != nil {
			return fmt.Errorf("%w: %s on %s", err, reference, key)
		}
		return fmt.Errorf("%w: %s is booked at %s", ErrResourceNotAvailable, key, interval)
	}
	return nil
}

func (s *SchedulingService) release(reference string, keys []scheduler.ResourceKey) {
	for _, key := range keys {
		if cal, ok := s.calendars[key]; ok {
			cal.RemoveBooking(reference)
		}
	}
}

// move swaps the booking held by reference from one interval to another. On
// failure the original booking is restored.
func (s *SchedulingService) move(reference string, keys []scheduler.ResourceKey, from, to scheduler.Interval) error {
	s.release(reference, keys)
	if err := s.book(reference, keys, to); err != nil {
		if restoreErr := s.book(reference, keys, from); restoreErr != nil {
			return fmt.Errorf("%w (restore failed: %v)", err, restoreErr)
		}
		return err
	}
	return nil
}

// occupantSource adapts the activity repository to the conflict detector.
// The first lookup error is kept and later lookups return nothing.
type occupantSource struct {
	ctx  context.Context
	repo ActivityRepository
	err  error
}

func (o *occupantSource) TeacherOccupants(teacherID string) []scheduler.Occupant {
	if o.err != nil {
		return nil
	}
	list, err := o.repo.ListActivitiesForTeacher(o.ctx, teacherID)
	return o.occupants(list, err, true)
}

func (o *occupantSource) StudentOccupants(studentID string) []scheduler.Occupant {
	if o.err != nil {
		return nil
	}
	list, err := o.repo.ListActivitiesForStudent(o.ctx, studentID)
	return o.occupants(list, err, true)
}

func (o *occupantSource) RoomOccupants(roomID string) []scheduler.Occupant {
	if o.err != nil {
		return nil
	}
	list, err := o.repo.ListActivitiesForRoom(o.ctx, roomID)
	return o.occupants(list, err, false)
}

func (o *occupantSource) occupants(list []activity.Activity, err error, lessonsOnly bool) []scheduler.Occupant {
	if err != nil {
		o.err = mapActivityRepoError(err)
		return nil
	}
	out := make([]scheduler.Occupant, 0, len(list))
	for _, a := range list {
		if lessonsOnly && a.Kind() != activity.KindLesson {
			continue
		}
		base := a.Base()
		out = append(out, scheduler.Occupant{
			ActivityID:  base.ID,
			ScheduledAt: base.ScheduledAt,
			Interval:    a.Interval(),
			Blocking:    base.Status == activity.StatusScheduled,
		})
	}
	return out
}

// detectConflicts runs the detector against the stored activities. Callers
// hold s.mu.
func (s *SchedulingService) detectConflicts(ctx context.Context, req scheduler.Request) ([]scheduler.Conflict, error) {
	src := &occupantSource{ctx: ctx, repo: s.activities}
	conflicts := scheduler.DetectConflicts(req, src)
	if src.err != nil {
		return nil, src.err
	}
	return conflicts, nil
}

func (s *SchedulingService) ensureNoConflicts(ctx context.Context, req scheduler.Request) error {
	conflicts, err := s.detectConflicts(ctx, req)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}
	return nil
}

// ensureSlotAvailable applies the availability gates after conflict
// detection: teacher working hours and calendar first, then the room. A nil
// teacher skips the teacher gate.
func (s *SchedulingService) ensureSlotAvailable(teacherID string, teacher Teacher, roomID string, room Room, interval scheduler.Interval, ignoreID string) error {
	minutes := interval.DurationMinutes()
	if teacher != nil {
		if !teacher.IsAvailableAt(interval.Start(), minutes) {
			return fmt.Errorf("%w: teacher %s does not work at %s", ErrResourceNotAvailable, teacherID, interval)
		}
		if !s.calendar(teacherKey(teacherID)).IsAvailableIgnoring(interval, ignoreID) {
			return fmt.Errorf("%w: teacher %s is booked at %s", ErrResourceNotAvailable, teacherID, interval)
		}
	}
	if room != nil {
		if !room.IsAvailableAt(interval.Start(), minutes) {
			return fmt.Errorf("%w: room %s cannot be used at %s", ErrResourceNotAvailable, roomID, interval)
		}
		if !s.calendar(roomKey(roomID)).IsAvailableIgnoring(interval, ignoreID) {
			return fmt.Errorf("%w: room %s is booked at %s", ErrResourceNotAvailable, roomID, interval)
		}
	}
	return nil
}

func teacherKey(id string) scheduler.ResourceKey {
	return scheduler.ResourceKey{Kind: scheduler.ResourceTeacher, ID: id}
}

func roomKey(id string) scheduler.ResourceKey {
	return scheduler.ResourceKey{Kind: scheduler.ResourceRoom, ID: id}
}
