package persistence

import (
	"context"
	"time"

	"github.com/example/music-school-scheduler/internal/activity"
)

// ActivityFilter narrows activity listings. Zero bounds are open.
type ActivityFilter struct {
	StartsFrom   time.Time
	StartsBefore time.Time
	// ExcludeFinalized drops completed, cancelled and no-show activities.
	ExcludeFinalized bool
}

// Matches reports whether the activity passes the filter.
func (f ActivityFilter) Matches(a activity.Activity) bool {
	base := a.Base()
	if !f.StartsFrom.IsZero() && base.ScheduledAt.Before(f.StartsFrom) {
		return false
	}
	if !f.StartsBefore.IsZero() && !base.ScheduledAt.Before(f.StartsBefore) {
		return false
	}
	if f.ExcludeFinalized && base.Status.IsFinalized() {
		return false
	}
	return true
}

// ActivityRepository stores activities and answers the per-resource queries
// the scheduling service relies on. Returned activities are copies.
type ActivityRepository interface {
	SaveActivity(ctx context.Context, a activity.Activity) error
	GetActivity(ctx context.Context, id string) (activity.Activity, error)
	ListActivities(ctx context.Context, filter ActivityFilter) ([]activity.Activity, error)
	ListActivitiesForTeacher(ctx context.Context, teacherID string) ([]activity.Activity, error)
	ListActivitiesForStudent(ctx context.Context, studentID string) ([]activity.Activity, error)
	ListActivitiesForRoom(ctx context.Context, roomID string) ([]activity.Activity, error)
}

// ActivityBacking is a durable key-value store of activity records.
type ActivityBacking interface {
	Put(ctx context.Context, record ActivityRecord) error
	All(ctx context.Context) ([]ActivityRecord, error)
}
