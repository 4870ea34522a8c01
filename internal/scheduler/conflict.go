package scheduler

import (
	"fmt"
	"time"
)

// ConflictType describes which dimension of a request is double-booked.
type ConflictType string

const (
	// ConflictTypeTeacher indicates the teacher already has a lesson.
	ConflictTypeTeacher ConflictType = "teacher"
	// ConflictTypeStudent indicates a student already has a lesson.
	ConflictTypeStudent ConflictType = "student"
	// ConflictTypeRoom indicates the room is already booked.
	ConflictTypeRoom ConflictType = "room"
)

// descriptionLayout renders scheduled times in conflict descriptions.
const descriptionLayout = "2006-01-02 15:04"

// Occupant is an existing activity as seen by the detector.
type Occupant struct {
	ActivityID  string
	ScheduledAt time.Time
	Interval    Interval
	// Blocking is true only for activities still in the scheduled state.
	Blocking bool
}

// Source resolves the existing activities referencing an entity. Teacher and
// student lookups return lessons only; room lookups return every activity
// held against the room.
type Source interface {
	TeacherOccupants(teacherID string) []Occupant
	StudentOccupants(studentID string) []Occupant
	RoomOccupants(roomID string) []Occupant
}

// Request is a proposed booking.
type Request struct {
	Interval   Interval
	TeacherID  string
	StudentIDs []string
	RoomID     string
	// IgnoreID skips the activity with this ID, used when moving an activity.
	IgnoreID string
}

// Conflict details an overlapping activity that callers can present to users.
type Conflict struct {
	Type          ConflictType
	ResourceID    string
	WithID        string
	WithStartTime time.Time
}

// Description renders the conflict for display.
func (c Conflict) Description() string {
	at := c.WithStartTime.Format(descriptionLayout)
	switch c.Type {
	case ConflictTypeTeacher:
		return fmt.Sprintf("Teacher has another lesson: %s at %s", c.WithID, at)
	case ConflictTypeStudent:
		return fmt.Sprintf("Student %s has another lesson: %s at %s", c.ResourceID, c.WithID, at)
	case ConflictTypeRoom:
		return fmt.Sprintf("Room has another booking: %s at %s", c.WithID, at)
	default:
		return fmt.Sprintf("Conflicts with %s at %s", c.WithID, at)
	}
}

// DetectConflicts lists every blocking activity overlapping the request, in
// teacher, student (request order), room order. It never mutates state.
func DetectConflicts(req Request, src Source) []Conflict {
	if src == nil {
		return nil
	}

	var conflicts []Conflict
	if req.TeacherID != "" {
		conflicts = appendOverlaps(conflicts, req, ConflictTypeTeacher, req.TeacherID, src.TeacherOccupants(req.TeacherID))
	}
	for _, studentID := range req.StudentIDs {
		conflicts = appendOverlaps(conflicts, req, ConflictTypeStudent, studentID, src.StudentOccupants(studentID))
	}
	if req.RoomID != "" {
		conflicts = appendOverlaps(conflicts, req, ConflictTypeRoom, req.RoomID, src.RoomOccupants(req.RoomID))
	}
	return conflicts
}

func appendOverlaps(dst []Conflict, req Request, kind ConflictType, resourceID string, occupants []Occupant) []Conflict {
	for _, occ := range occupants {
		if !occ.Blocking {
			continue
		}
		if req.IgnoreID != "" && occ.ActivityID == req.IgnoreID {
			continue
		}
		if !occ.Interval.Overlaps(req.Interval) {
			continue
		}
		dst = append(dst, Conflict{
			Type:          kind,
			ResourceID:    resourceID,
			WithID:        occ.ActivityID,
			WithStartTime: occ.ScheduledAt,
		})
	}
	return dst
}

// Descriptions renders each conflict for display, preserving order.
func Descriptions(conflicts []Conflict) []string {
	if len(conflicts) == 0 {
		return nil
	}
	out := make([]string, len(conflicts))
	for i, c := range conflicts {
		out[i] = c.Description()
	}
	return out
}
