package school

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/music-school-scheduler/internal/application"
)

// Registry is an in-memory directory of school members and resources.
type Registry struct {
	mu       sync.RWMutex
	teachers map[string]*Teacher
	students map[string]*Student
	rooms    map[string]*Room
	packages map[string]*CoursePackage
}

var _ application.Directory = (*Registry)(nil)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		teachers: make(map[string]*Teacher),
		students: make(map[string]*Student),
		rooms:    make(map[string]*Room),
		packages: make(map[string]*CoursePackage),
	}
}

// AddTeacher registers a teacher, replacing any teacher with the same ID.
func (r *Registry) AddTeacher(t *Teacher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teachers[t.ID] = t
}

// AddStudent registers a student.
func (r *Registry) AddStudent(s *Student) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.students[s.ID] = s
}

// AddRoom registers a room.
func (r *Registry) AddRoom(room *Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID] = room
}

// AddPackage registers a package and credits its hours to the owning student.
func (r *Registry) AddPackage(p *CoursePackage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	student, ok := r.students[p.Student]
	if !ok {
		return fmt.Errorf("school: package %s references unknown student %s", p.ID, p.Student)
	}
	if _, exists := r.packages[p.ID]; exists {
		return fmt.Errorf("school: package %s already registered", p.ID)
	}
	r.packages[p.ID] = p
	student.AddPackageHours(p.ID, p.TotalHours)
	return nil
}

// Teacher returns the concrete teacher.
func (r *Registry) Teacher(id string) (*Teacher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.teachers[id]
	return t, ok
}

// Student returns the concrete student.
func (r *Registry) Student(id string) (*Student, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.students[id]
	return s, ok
}

// Room returns the concrete room.
func (r *Registry) Room(id string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

// GetTeacher implements application.Directory.
func (r *Registry) GetTeacher(_ context.Context, id string) (application.Teacher, bool) {
	t, ok := r.Teacher(id)
	if !ok {
		return nil, false
	}
	return t, true
}

// GetStudent implements application.Directory.
func (r *Registry) GetStudent(_ context.Context, id string) (application.Student, bool) {
	s, ok := r.Student(id)
	if !ok {
		return nil, false
	}
	return s, true
}

// GetRoom implements application.Directory.
func (r *Registry) GetRoom(_ context.Context, id string) (application.Room, bool) {
	room, ok := r.Room(id)
	if !ok {
		return nil, false
	}
	return room, true
}

// GetPackage implements application.Directory.
func (r *Registry) GetPackage(_ context.Context, id string) (application.CoursePackage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.packages[id]
	if !ok {
		return nil, false
	}
	return p, true
}

// Counts reports the number of registered teachers, students and rooms.
func (r *Registry) Counts() (teachers, students, rooms int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.teachers), len(r.students), len(r.rooms)
}

// RoomIDs lists room identifiers in ascending order.
func (r *Registry) RoomIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
