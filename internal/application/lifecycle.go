package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/music-school-scheduler/internal/activity"
	"github.com/example/music-school-scheduler/internal/scheduler"
)

// CancelActivity cancels the activity and frees its slot. It reports whether
// the cancellation came early enough to be free; a late cancellation is
// recorded as a no-show and the lesson hours are charged.
func (s *SchedulingService) CancelActivity(ctx context.Context, id string) (withoutPenalty bool, err error) {
	if s == nil {
		return false, fmt.Errorf("SchedulingService is nil")
	}
	logger := s.loggerWith(ctx, "CancelActivity", "activity_id", id)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to cancel activity", err)
			return
		}
		logger.With("without_penalty", withoutPenalty).InfoContext(ctx, "activity cancelled")
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}

	now := s.now()
	updated := current.Clone()
	withoutPenalty, err = updated.Cancel(now)
	if err != nil {
		return false, err
	}
	if err = s.save(ctx, updated); err != nil {
		return false, err
	}

	s.release(id, current.Occupies())
	if !withoutPenalty {
		s.chargeHours(ctx, logger, updated, UsageReasonLateCancellation, now)
	}
	return withoutPenalty, nil
}

// CompleteActivity marks the activity completed, frees its slot and charges
// lesson hours to each student. A student without enough hours is logged, not rejected.
func (s *SchedulingService) CompleteActivity(ctx context.Context, id string) (err error) {
	if s == nil {
		return fmt.Errorf("SchedulingService is nil")
	}
	logger := s.loggerWith(ctx, "CompleteActivity", "activity_id", id)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to complete activity", err)
			return
		}
		logger.InfoContext(ctx, "activity completed")
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	updated := current.Clone()
	if err = updated.Complete(now); err != nil {
		return err
	}
	if err = s.save(ctx, updated); err != nil {
		return err
	}
	s.release(id, current.Occupies())
	s.chargeHours(ctx, logger, updated, UsageReasonCompleted, now)
	return nil
}

// StartActivity moves a scheduled activity into progress.
func (s *SchedulingService) StartActivity(ctx context.Context, id string) (err error) {
	if s == nil {
		return fmt.Errorf("SchedulingService is nil")
	}
	logger := s.loggerWith(ctx, "StartActivity", "activity_id", id)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to start activity", err)
			return
		}
		logger.InfoContext(ctx, "activity started")
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	updated := current.Clone()
	if err = updated.Begin(s.now()); err != nil {
		return err
	}
	return s.save(ctx, updated)
}

// RescheduleActivity moves a scheduled activity to a new start. The move is
// all or nothing: on any failure the activity keeps its original slot. It
// returns false with ErrInvalidStateTransition when the activity is no longer
// movable.
func (s *SchedulingService) RescheduleActivity(ctx context.Context, id string, newStart time.Time) (moved bool, err error) {
	if s == nil {
		return false, fmt.Errorf("SchedulingService is nil")
	}
	logger := s.loggerWith(ctx, "RescheduleActivity", "activity_id", id, "new_start", newStart)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to reschedule activity", err)
			return
		}
		logger.InfoContext(ctx, "activity rescheduled")
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}

	now := s.now()
	base := current.Base()
	if !current.CanReschedule(now) {
		return false, fmt.Errorf("%w: %s can no longer be rescheduled", ErrInvalidStateTransition, id)
	}

	interval, err := scheduler.IntervalFor(newStart, base.DurationMinutes)
	if err != nil {
		return false, err
	}

	teacherID, studentIDs := current.ConflictParties()
	if err = s.ensureNoConflicts(ctx, scheduler.Request{
		Interval:   interval,
		TeacherID:  teacherID,
		StudentIDs: studentIDs,
		RoomID:     base.RoomID,
		IgnoreID:   id,
	}); err != nil {
		return false, err
	}

	var teacher Teacher
	if teacherID != "" {
		found, ok := s.directory.GetTeacher(ctx, teacherID)
		if !ok {
			return false, fmt.Errorf("%w: teacher %s", ErrNotFound, teacherID)
		}
		teacher = found
	}
	var room Room
	if base.RoomID != "" {
		found, ok := s.directory.GetRoom(ctx, base.RoomID)
		if !ok {
			return false, fmt.Errorf("%w: room %s", ErrNotFound, base.RoomID)
		}
		room = found
	}
	if err = s.ensureSlotAvailable(teacherID, teacher, base.RoomID, room, interval, id); err != nil {
		return false, err
	}

	updated := current.Clone()
	if err = updated.Reschedule(now, newStart); err != nil {
		return false, err
	}

	keys := current.Occupies()
	if err = s.move(id, keys, current.Interval(), interval); err != nil {
		return false, err
	}
	if err = s.save(ctx, updated); err != nil {
		if restoreErr := s.move(id, keys, interval, current.Interval()); restoreErr != nil {
			logger.ErrorContext(ctx, "calendar restore failed after save error", "error", restoreErr)
		}
		return false, err
	}
	return true, nil
}

// LinkLessonToPackage records which purchased package a lesson draws from.
// The package must belong to one of the lesson's students and still be valid.
func (s *SchedulingService) LinkLessonToPackage(ctx context.Context, lessonID, packageID string) (err error) {
	if s == nil {
		return fmt.Errorf("SchedulingService is nil")
	}
	logger := s.loggerWith(ctx, "LinkLessonToPackage", "activity_id", lessonID, "package_id", packageID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to link lesson to package", err)
			return
		}
		logger.InfoContext(ctx, "lesson linked to package")
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx, lessonID)
	if err != nil {
		return err
	}
	lesson, ok := current.(*activity.Lesson)
	if !ok {
		vErr := &ValidationError{}
		vErr.add("activity_id", "must reference a lesson")
		return vErr
	}

	pkg, ok := s.directory.GetPackage(ctx, packageID)
	if !ok {
		return fmt.Errorf("%w: package %s", ErrNotFound, packageID)
	}
	if !lesson.HasStudent(pkg.StudentID()) {
		vErr := &ValidationError{}
		vErr.add("package_id", "belongs to a student outside the lesson")
		return vErr
	}
	now := s.now()
	if !pkg.IsValid(now) {
		return fmt.Errorf("%w: package %s is expired or inactive", ErrInactive, packageID)
	}

	updated := lesson.CloneLesson()
	updated.PackageID = packageID
	updated.UpdatedAt = now
	return s.save(ctx, updated)
}

// MarkBookingPaid records payment for a room booking. Paying twice is a no-op.
func (s *SchedulingService) MarkBookingPaid(ctx context.Context, bookingID string) (err error) {
	if s == nil {
		return fmt.Errorf("SchedulingService is nil")
	}
	logger := s.loggerWith(ctx, "MarkBookingPaid", "activity_id", bookingID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to mark booking paid", err)
			return
		}
		logger.InfoContext(ctx, "booking paid")
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx, bookingID)
	if err != nil {
		return err
	}
	booking, ok := current.(*activity.RoomBooking)
	if !ok {
		vErr := &ValidationError{}
		vErr.add("activity_id", "must reference a room booking")
		return vErr
	}
	if booking.Status == activity.StatusCancelled {
		return fmt.Errorf("%w: %s was cancelled", ErrInvalidStateTransition, bookingID)
	}
	if booking.Paid {
		return nil
	}

	updated := booking.CloneBooking()
	updated.MarkPaid(s.now())
	return s.save(ctx, updated)
}

func (s *SchedulingService) load(ctx context.Context, id string) (activity.Activity, error) {
	a, err := s.activities.GetActivity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("activity %s: %w", id, mapActivityRepoError(err))
	}
	return a, nil
}

func (s *SchedulingService) save(ctx context.Context, a activity.Activity) error {
	if err := s.activities.SaveActivity(ctx, a); err != nil {
		return mapActivityRepoError(err)
	}
	s.preview.Invalidate()
	return nil
}

// chargeHours consumes the hours of a billed activity from each student and
// reports the outcome to the usage sink.
func (s *SchedulingService) chargeHours(ctx context.Context, logger *slog.Logger, a activity.Activity, reason string, now time.Time) {
	studentIDs, hours := a.HourCharges()
	for _, studentID := range studentIDs {
		consumed := false
		if student, ok := s.directory.GetStudent(ctx, studentID); ok {
			consumed = student.ConsumeHours(hours)
		}
		if !consumed {
			logger.WarnContext(ctx, "lesson hours not consumed",
				"student_id", studentID,
				"hours", hours,
				"reason", reason,
			)
		}
		if s.usage != nil {
			s.usage.RecordUsage(ctx, UsageEvent{
				ActivityID: a.Base().ID,
				StudentID:  studentID,
				Hours:      hours,
				Consumed:   consumed,
				Reason:     reason,
				OccurredAt: now,
			})
		}
	}
}
