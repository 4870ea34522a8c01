// Package memory provides the authoritative in-memory activity store with
// per-teacher, per-student and per-room indices.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/music-school-scheduler/internal/activity"
	"github.com/example/music-school-scheduler/internal/persistence"
)

// Storage keeps activities in memory. Saves are written through to the
// optional backing store before the in-memory state changes.
type Storage struct {
	mu         sync.RWMutex
	backing    persistence.ActivityBacking
	activities map[string]activity.Activity
	byTeacher  map[string]map[string]struct{}
	byStudent  map[string]map[string]struct{}
	byRoom     map[string]map[string]struct{}
}

var _ persistence.ActivityRepository = (*Storage)(nil)

// New returns an empty Storage. backing may be nil.
func New(backing persistence.ActivityBacking) *Storage {
	return &Storage{
		backing:    backing,
		activities: make(map[string]activity.Activity),
		byTeacher:  make(map[string]map[string]struct{}),
		byStudent:  make(map[string]map[string]struct{}),
		byRoom:     make(map[string]map[string]struct{}),
	}
}

// Load replaces the in-memory state with the contents of the backing store
// and returns the number of activities loaded.
func (s *Storage) Load(ctx context.Context) (int, error) {
	if s.backing == nil {
		return 0, nil
	}
	records, err := s.backing.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("memory: load activities: %w", err)
	}

	loaded := make([]activity.Activity, 0, len(records))
	for _, record := range records {
		a, err := record.Activity()
		if err != nil {
			return 0, err
		}
		loaded = append(loaded, a)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = make(map[string]activity.Activity, len(loaded))
	s.byTeacher = make(map[string]map[string]struct{})
	s.byStudent = make(map[string]map[string]struct{})
	s.byRoom = make(map[string]map[string]struct{})
	for _, a := range loaded {
		s.putLocked(a)
	}
	return len(loaded), nil
}

// SaveActivity inserts or replaces an activity. Changing the kind of an
// existing ID is rejected.
func (s *Storage) SaveActivity(ctx context.Context, a activity.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := a.Base().ID
	if existing, ok := s.activities[id]; ok && existing.Kind() != a.Kind() {
		return fmt.Errorf("%w: %s is a %s", persistence.ErrDuplicate, id, existing.Kind())
	}
	if s.backing != nil {
		if err := s.backing.Put(ctx, persistence.RecordFromActivity(a)); err != nil {
			return fmt.Errorf("memory: write through %s: %w", id, err)
		}
	}
	if existing, ok := s.activities[id]; ok {
		s.unindexLocked(existing)
	}
	s.putLocked(a.Clone())
	return nil
}

// GetActivity returns a copy of the activity.
func (s *Storage) GetActivity(_ context.Context, id string) (activity.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.activities[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return a.Clone(), nil
}

// ListActivities returns the matching activities ordered by start time.
func (s *Storage) ListActivities(_ context.Context, filter persistence.ActivityFilter) ([]activity.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]activity.Activity, 0, len(s.activities))
	for _, a := range s.activities {
		if filter.Matches(a) {
			out = append(out, a.Clone())
		}
	}
	sortByStart(out)
	return out, nil
}

// ListActivitiesForTeacher returns the teacher's lessons ordered by start time.
func (s *Storage) ListActivitiesForTeacher(_ context.Context, teacherID string) ([]activity.Activity, error) {
	return s.listIndexed(s.byTeacher, teacherID), nil
}

// ListActivitiesForStudent returns the student's lessons and room bookings.
func (s *Storage) ListActivitiesForStudent(_ context.Context, studentID string) ([]activity.Activity, error) {
	return s.listIndexed(s.byStudent, studentID), nil
}

// ListActivitiesForRoom returns every activity held against the room.
func (s *Storage) ListActivitiesForRoom(_ context.Context, roomID string) ([]activity.Activity, error) {
	return s.listIndexed(s.byRoom, roomID), nil
}

// Len returns the number of stored activities.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.activities)
}

func (s *Storage) listIndexed(index map[string]map[string]struct{}, key string) []activity.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := index[key]
	out := make([]activity.Activity, 0, len(ids))
	for id := range ids {
		out = append(out, s.activities[id].Clone())
	}
	sortByStart(out)
	return out
}

func (s *Storage) putLocked(a activity.Activity) {
	id := a.Base().ID
	s.activities[id] = a
	for _, ref := range references(a) {
		addIndex(ref.index(s), ref.key, id)
	}
}

func (s *Storage) unindexLocked(a activity.Activity) {
	id := a.Base().ID
	for _, ref := range references(a) {
		removeIndex(ref.index(s), ref.key, id)
	}
}

type indexKind int

const (
	indexTeacher indexKind = iota
	indexStudent
	indexRoom
)

type reference struct {
	kind indexKind
	key  string
}

func (r reference) index(s *Storage) map[string]map[string]struct{} {
	switch r.kind {
	case indexTeacher:
		return s.byTeacher
	case indexStudent:
		return s.byStudent
	default:
		return s.byRoom
	}
}

// references lists the index entries an activity belongs to. Teacher entries
// only ever hold lessons.
func references(a activity.Activity) []reference {
	var refs []reference
	if roomID := a.Base().RoomID; roomID != "" {
		refs = append(refs, reference{kind: indexRoom, key: roomID})
	}
	switch v := a.(type) {
	case *activity.Lesson:
		refs = append(refs, reference{kind: indexTeacher, key: v.TeacherID})
		for _, studentID := range v.StudentIDs {
			refs = append(refs, reference{kind: indexStudent, key: studentID})
		}
	case *activity.RoomBooking:
		refs = append(refs, reference{kind: indexStudent, key: v.StudentID})
	}
	return refs
}

func addIndex(index map[string]map[string]struct{}, key, id string) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[id] = struct{}{}
}

func removeIndex(index map[string]map[string]struct{}, key, id string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}

func sortByStart(activities []activity.Activity) {
	sort.Slice(activities, func(i, j int) bool {
		a, b := activities[i].Base(), activities[j].Base()
		if a.ScheduledAt.Equal(b.ScheduledAt) {
			return a.ID < b.ID
		}
		return a.ScheduledAt.Before(b.ScheduledAt)
	})
}
