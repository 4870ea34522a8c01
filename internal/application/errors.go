package application

import (
	"errors"
	"sort"
	"strings"

	"github.com/example/music-school-scheduler/internal/activity"
	"github.com/example/music-school-scheduler/internal/scheduler"
)

var (
	// ErrNotFound is returned when a referenced teacher, student, room, package or activity does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrInactive is returned when a referenced entity exists but is deactivated.
	ErrInactive = errors.New("application: inactive")
	// ErrTeacherCannotTeachInstrument is returned on a specialization mismatch.
	ErrTeacherCannotTeachInstrument = errors.New("application: teacher cannot teach instrument")
	// ErrSchedulingConflict is matched by *ConflictError.
	ErrSchedulingConflict = errors.New("application: scheduling conflict")
	// ErrResourceNotAvailable is returned when a slot passes conflict detection
	// but fails availability or maintenance gating.
	ErrResourceNotAvailable = errors.New("application: resource not available")

	// ErrInvalidInterval is returned for malformed time ranges.
	ErrInvalidInterval = scheduler.ErrInvalidInterval
	// ErrInvalidStateTransition is returned for lifecycle operations the activity status forbids.
	ErrInvalidStateTransition = activity.ErrInvalidStateTransition
	// ErrDuplicateBooking signals calendars out of sync with the activity store.
	ErrDuplicateBooking = scheduler.ErrDuplicateBooking
)

// ConflictError carries the full, ordered list of conflicts that rejected a request.
type ConflictError struct {
	Conflicts []scheduler.Conflict
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil || len(e.Conflicts) == 0 {
		return "scheduling conflicts detected"
	}
	return "scheduling conflicts detected:\n" + strings.Join(e.Descriptions(), "\n")
}

// Is matches ErrSchedulingConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrSchedulingConflict
}

// Descriptions returns the displayable conflict lines.
func (e *ConflictError) Descriptions() []string {
	if e == nil {
		return nil
	}
	return scheduler.Descriptions(e.Conflicts)
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = field + ": " + v.FieldErrors[field]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
