package application

import (
	"context"
	"time"
)

// Teacher is the view of a teacher the scheduling service needs.
type Teacher interface {
	IsActive() bool
	// CanTeach matches the instrument case-insensitively against the specializations.
	CanTeach(instrument string) bool
	// IsAvailableAt reports whether the weekly working hours cover the whole slot.
	IsAvailableAt(start time.Time, minutes int) bool
}

// Student is the view of a student the scheduling service needs.
type Student interface {
	IsActive() bool
	// ConsumeHours deducts purchased hours and reports false, without change,
	// when the balance is insufficient.
	ConsumeHours(hours int) bool
}

// Room is the view of a room the scheduling service needs.
type Room interface {
	IsAvailable() bool
	// IsAvailableAt applies maintenance and opening rules to the slot. Calendar
	// occupancy is checked separately by the service.
	IsAvailableAt(start time.Time, minutes int) bool
}

// CoursePackage is a purchased bundle of lesson hours.
type CoursePackage interface {
	StudentID() string
	IsValid(now time.Time) bool
}

// Directory resolves the collaborators referenced by scheduling requests.
// Implementations must answer from memory; they are called while the service
// holds its lock.
type Directory interface {
	GetTeacher(ctx context.Context, id string) (Teacher, bool)
	GetStudent(ctx context.Context, id string) (Student, bool)
	GetRoom(ctx context.Context, id string) (Room, bool)
	GetPackage(ctx context.Context, id string) (CoursePackage, bool)
}

// UsageEvent reports hours charged to a student for an activity.
type UsageEvent struct {
	ActivityID string
	StudentID  string
	Hours      int
	// Consumed is false when the student's balance could not cover the hours.
	Consumed bool
	// Reason is "completed" or "late_cancellation".
	Reason     string
	OccurredAt time.Time
}

// Usage event reasons.
const (
	UsageReasonCompleted        = "completed"
	UsageReasonLateCancellation = "late_cancellation"
)

// UsageSink receives hour consumption events, typically a billing collaborator.
type UsageSink interface {
	RecordUsage(ctx context.Context, event UsageEvent)
}

// UsageSinkFunc adapts a function to UsageSink.
type UsageSinkFunc func(ctx context.Context, event UsageEvent)

// RecordUsage implements UsageSink.
func (f UsageSinkFunc) RecordUsage(ctx context.Context, event UsageEvent) {
	f(ctx, event)
}
