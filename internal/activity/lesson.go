package activity

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/example/music-school-scheduler/internal/scheduler"
)

// ErrInvalidLesson is returned when lesson attributes break the lesson invariants.
var ErrInvalidLesson = errors.New("activity: invalid lesson")

// Lesson is a lesson given by one teacher to one or more students.
type Lesson struct {
	Common
	TeacherID  string
	StudentIDs []string
	Instrument string
	// PackageID links the lesson to a purchased course package.
	PackageID string
	// ServiceID links the lesson to a single-lesson purchase.
	ServiceID string
}

// LessonParams carries the attributes of a new lesson.
type LessonParams struct {
	ID              string
	TeacherID       string
	StudentIDs      []string
	RoomID          string
	Instrument      string
	Start           time.Time
	DurationMinutes int
	Now             time.Time
}

// NewLesson builds a scheduled lesson. Student IDs must be non-empty and unique.
func NewLesson(p LessonParams) (*Lesson, error) {
	if p.TeacherID == "" {
		return nil, fmt.Errorf("%w: teacher is required", ErrInvalidLesson)
	}
	if len(p.StudentIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one student is required", ErrInvalidLesson)
	}
	seen := make(map[string]struct{}, len(p.StudentIDs))
	for _, id := range p.StudentIDs {
		if id == "" {
			return nil, fmt.Errorf("%w: empty student id", ErrInvalidLesson)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: student %s listed twice", ErrInvalidLesson, id)
		}
		seen[id] = struct{}{}
	}
	if p.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", scheduler.ErrInvalidInterval)
	}

	id := p.ID
	if id == "" {
		id = NewID(KindLesson)
	}
	return &Lesson{
		Common:     newCommon(id, p.Start, p.DurationMinutes, p.RoomID, p.Now),
		TeacherID:  p.TeacherID,
		StudentIDs: slices.Clone(p.StudentIDs),
		Instrument: p.Instrument,
	}, nil
}

func (*Lesson) sealed() {}

// Kind implements Activity.
func (*Lesson) Kind() Kind { return KindLesson }

// Label implements Activity.
func (l *Lesson) Label() string {
	if l.IsGroup() {
		return "Group Lesson"
	}
	return "Individual Lesson"
}

// IsGroup reports whether more than one student attends.
func (l *Lesson) IsGroup() bool { return len(l.StudentIDs) > 1 }

// HasStudent reports whether the student attends the lesson.
func (l *Lesson) HasStudent(studentID string) bool {
	return slices.Contains(l.StudentIDs, studentID)
}

// HoursPerStudent is the number of purchased hours each student is charged:
// the duration rounded up to whole hours, applied to every student.
func (l *Lesson) HoursPerStudent() int {
	return (l.DurationMinutes + 59) / 60
}

// Occupies implements Activity.
func (l *Lesson) Occupies() []scheduler.ResourceKey {
	keys := []scheduler.ResourceKey{{Kind: scheduler.ResourceTeacher, ID: l.TeacherID}}
	if l.RoomID != "" {
		keys = append(keys, scheduler.ResourceKey{Kind: scheduler.ResourceRoom, ID: l.RoomID})
	}
	return keys
}

// ConflictParties implements Activity.
func (l *Lesson) ConflictParties() (string, []string) {
	return l.TeacherID, slices.Clone(l.StudentIDs)
}

// HourCharges implements Activity.
func (l *Lesson) HourCharges() ([]string, int) {
	return slices.Clone(l.StudentIDs), l.HoursPerStudent()
}

// Clone implements Activity.
func (l *Lesson) Clone() Activity {
	return l.CloneLesson()
}

// CloneLesson returns a deep copy with the concrete type.
func (l *Lesson) CloneLesson() *Lesson {
	cp := *l
	cp.StudentIDs = slices.Clone(l.StudentIDs)
	return &cp
}
