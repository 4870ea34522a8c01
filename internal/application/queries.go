package application

import (
	"context"
	"fmt"
	"time"

	"github.com/example/music-school-scheduler/internal/activity"
	"github.com/example/music-school-scheduler/internal/persistence"
)

// GetActivity returns a copy of the stored activity.
func (s *SchedulingService) GetActivity(ctx context.Context, id string) (activity.Activity, error) {
	if s == nil {
		return nil, fmt.Errorf("SchedulingService is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, id)
}

// GetTodayActivities lists the unfinished activities starting on the current
// day in the service location, ordered by start.
func (s *SchedulingService) GetTodayActivities(ctx context.Context) ([]activity.Activity, error) {
	now := s.now().In(s.location)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	return s.listActivities(ctx, "GetTodayActivities", persistence.ActivityFilter{
		StartsFrom:       startOfDay,
		StartsBefore:     startOfDay.AddDate(0, 0, 1),
		ExcludeFinalized: true,
	})
}

// GetUpcomingActivities lists the unfinished activities starting strictly
// after now, ordered by start.
func (s *SchedulingService) GetUpcomingActivities(ctx context.Context) ([]activity.Activity, error) {
	now := s.now()
	list, err := s.listActivities(ctx, "GetUpcomingActivities", persistence.ActivityFilter{
		StartsFrom:       now,
		ExcludeFinalized: true,
	})
	if err != nil {
		return nil, err
	}
	upcoming := list[:0]
	for _, a := range list {
		if a.Base().ScheduledAt.After(now) {
			upcoming = append(upcoming, a)
		}
	}
	return upcoming, nil
}

// ListActivitiesForTeacher lists every activity of the teacher.
func (s *SchedulingService) ListActivitiesForTeacher(ctx context.Context, teacherID string) ([]activity.Activity, error) {
	return s.listBy(ctx, "ListActivitiesForTeacher", "teacher_id", teacherID, s.activities.ListActivitiesForTeacher)
}

// ListActivitiesForStudent lists every lesson and booking of the student.
func (s *SchedulingService) ListActivitiesForStudent(ctx context.Context, studentID string) ([]activity.Activity, error) {
	return s.listBy(ctx, "ListActivitiesForStudent", "student_id", studentID, s.activities.ListActivitiesForStudent)
}

// ListActivitiesForRoom lists every activity held against the room.
func (s *SchedulingService) ListActivitiesForRoom(ctx context.Context, roomID string) ([]activity.Activity, error) {
	return s.listBy(ctx, "ListActivitiesForRoom", "room_id", roomID, s.activities.ListActivitiesForRoom)
}

func (s *SchedulingService) listActivities(ctx context.Context, operation string, filter persistence.ActivityFilter) (list []activity.Activity, err error) {
	if s == nil {
		return nil, fmt.Errorf("SchedulingService is nil")
	}
	logger := s.loggerWith(ctx, operation)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to list activities", err)
			return
		}
		logger.With("result_count", len(list)).DebugContext(ctx, "activities listed")
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err = s.activities.ListActivities(ctx, filter)
	if err != nil {
		return nil, mapActivityRepoError(err)
	}
	return list, nil
}

func (s *SchedulingService) listBy(ctx context.Context, operation, attr, id string, lookup func(context.Context, string) ([]activity.Activity, error)) (list []activity.Activity, err error) {
	if s == nil {
		return nil, fmt.Errorf("SchedulingService is nil")
	}
	logger := s.loggerWith(ctx, operation, attr, id)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to list activities", err)
			return
		}
		logger.With("result_count", len(list)).DebugContext(ctx, "activities listed")
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err = lookup(ctx, id)
	if err != nil {
		return nil, mapActivityRepoError(err)
	}
	return list, nil
}
