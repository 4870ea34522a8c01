package testfixtures

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/music-school-scheduler/internal/availability"
	"github.com/example/music-school-scheduler/internal/school"
)

var (
	teacherCounter uint64
	studentCounter uint64
	roomCounter    uint64
	packageCounter uint64
)

// referenceTime is a Monday morning so weekday windows line up predictably.
var referenceTime = time.Date(2024, time.March, 11, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// At returns the reference week's date offset by days at the given time of day.
func At(days, hour, minute int) time.Time {
	base := referenceTime.AddDate(0, 0, days)
	return time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, time.UTC)
}

// ---------------------------- Teacher fixtures ----------------------------

// TeacherFixture describes a teacher to register in a test school.
type TeacherFixture struct {
	ID              string
	Name            string
	Specializations []string
	Inactive        bool
	Windows         []availability.Window
}

// TeacherOption configures the generated teacher fixture.
type TeacherOption func(*TeacherFixture)

// NewTeacherFixture returns a piano teacher working weekdays 09:00-18:00.
func NewTeacherFixture(opts ...TeacherOption) TeacherFixture {
	idx := atomic.AddUint64(&teacherCounter, 1)
	fixture := TeacherFixture{
		ID:              fmt.Sprintf("TCH-%03d", idx),
		Name:            fmt.Sprintf("Teacher %03d", idx),
		Specializations: []string{"Piano"},
		Windows:         weekdayWindows(availability.Clock(9, 0), availability.Clock(18, 0)),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithTeacherID(id string) TeacherOption {
	return func(f *TeacherFixture) { f.ID = id }
}

func WithSpecializations(instruments ...string) TeacherOption {
	return func(f *TeacherFixture) { f.Specializations = append([]string(nil), instruments...) }
}

func WithWindows(windows ...availability.Window) TeacherOption {
	return func(f *TeacherFixture) { f.Windows = append([]availability.Window(nil), windows...) }
}

func InactiveTeacher() TeacherOption {
	return func(f *TeacherFixture) { f.Inactive = true }
}

// Build materialises the fixture.
func (f TeacherFixture) Build() *school.Teacher {
	t := school.NewTeacher(f.ID, f.Name, f.Specializations, availability.NewSchedule(time.UTC, f.Windows...))
	t.SetActive(!f.Inactive)
	return t
}

func weekdayWindows(start, end availability.ClockTime) []availability.Window {
	windows := make([]availability.Window, 0, 5)
	for day := time.Monday; day <= time.Friday; day++ {
		windows = append(windows, availability.Window{Day: day, Start: start, End: end})
	}
	return windows
}

// ---------------------------- Student fixtures ----------------------------

// StudentFixture describes a student to register in a test school.
type StudentFixture struct {
	ID       string
	Name     string
	Inactive bool
}

// StudentOption configures the generated student fixture.
type StudentOption func(*StudentFixture)

// NewStudentFixture returns an active student without hours; hours come from
// packages.
func NewStudentFixture(opts ...StudentOption) StudentFixture {
	idx := atomic.AddUint64(&studentCounter, 1)
	fixture := StudentFixture{
		ID:   fmt.Sprintf("STU-%03d", idx),
		Name: fmt.Sprintf("Student %03d", idx),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithStudentID(id string) StudentOption {
	return func(f *StudentFixture) { f.ID = id }
}

func InactiveStudent() StudentOption {
	return func(f *StudentFixture) { f.Inactive = true }
}

// Build materialises the fixture.
func (f StudentFixture) Build() *school.Student {
	s := school.NewStudent(f.ID, f.Name)
	s.SetActive(!f.Inactive)
	return s
}

// ------------------------------ Room fixtures -----------------------------

// RoomFixture describes a practice or lesson room.
type RoomFixture struct {
	ID          string
	Name        string
	Capacity    int
	Instruments []string
	Closed      bool
	Maintenance bool
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns an open room suitable for any instrument.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	fixture := RoomFixture{
		ID:       fmt.Sprintf("ROOM-%03d", idx),
		Name:     fmt.Sprintf("Studio %03d", idx),
		Capacity: 4,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) { f.ID = id }
}

func UnderMaintenance() RoomOption {
	return func(f *RoomFixture) { f.Maintenance = true }
}

func ClosedRoom() RoomOption {
	return func(f *RoomFixture) { f.Closed = true }
}

// SuitableFor limits the instruments the room is meant for.
func SuitableFor(instruments ...string) RoomOption {
	return func(f *RoomFixture) { f.Instruments = append([]string(nil), instruments...) }
}

// Build materialises the fixture.
func (f RoomFixture) Build() *school.Room {
	r := school.NewRoom(f.ID, f.Name, f.Capacity, f.Instruments)
	r.SetAvailable(!f.Closed)
	r.SetUnderMaintenance(f.Maintenance)
	return r
}

// ---------------------------- Package fixtures ----------------------------

// PackageFixture describes hours purchased by a student.
type PackageFixture struct {
	ID         string
	StudentID  string
	Instrument string
	Hours      int
	Inactive   bool
	ExpiresAt  time.Time
}

// NewPackageFixture returns an active ten hour piano package for the student.
func NewPackageFixture(studentID string, hours int) PackageFixture {
	idx := atomic.AddUint64(&packageCounter, 1)
	if hours == 0 {
		hours = 10
	}
	return PackageFixture{
		ID:         fmt.Sprintf("PKG-%03d", idx),
		StudentID:  studentID,
		Instrument: "Piano",
		Hours:      hours,
	}
}

// Build materialises the fixture.
func (f PackageFixture) Build() *school.CoursePackage {
	return &school.CoursePackage{
		ID:         f.ID,
		Student:    f.StudentID,
		Instrument: f.Instrument,
		TotalHours: f.Hours,
		Active:     !f.Inactive,
		ExpiresAt:  f.ExpiresAt,
	}
}

// ----------------------------- School fixture -----------------------------

// SchoolFixture groups everything registered in a test school.
type SchoolFixture struct {
	Teachers []TeacherFixture
	Students []StudentFixture
	Rooms    []RoomFixture
	Packages []PackageFixture
}

// DefaultSchool returns a small school with fixed identifiers: a piano
// teacher (TCH-PIANO), a guitar teacher (TCH-GUITAR), three students with ten
// hours each and two rooms.
func DefaultSchool() SchoolFixture {
	students := []StudentFixture{
		NewStudentFixture(WithStudentID("STU-ALICE")),
		NewStudentFixture(WithStudentID("STU-BOB")),
		NewStudentFixture(WithStudentID("STU-CAROL")),
	}
	packages := make([]PackageFixture, 0, len(students))
	for _, s := range students {
		pkg := NewPackageFixture(s.ID, 10)
		pkg.ID = "PKG-" + s.ID[len("STU-"):]
		packages = append(packages, pkg)
	}
	return SchoolFixture{
		Teachers: []TeacherFixture{
			NewTeacherFixture(WithTeacherID("TCH-PIANO"), WithSpecializations("Piano", "Violin")),
			NewTeacherFixture(WithTeacherID("TCH-GUITAR"), WithSpecializations("Guitar")),
		},
		Students: students,
		Rooms: []RoomFixture{
			NewRoomFixture(WithRoomID("ROOM-A")),
			NewRoomFixture(WithRoomID("ROOM-B"), SuitableFor("Guitar", "Violin")),
		},
		Packages: packages,
	}
}

// Registry registers the fixture in a fresh school registry.
func (f SchoolFixture) Registry(tb testing.TB) *school.Registry {
	tb.Helper()
	registry := school.NewRegistry()
	for _, t := range f.Teachers {
		registry.AddTeacher(t.Build())
	}
	for _, s := range f.Students {
		registry.AddStudent(s.Build())
	}
	for _, r := range f.Rooms {
		registry.AddRoom(r.Build())
	}
	for _, p := range f.Packages {
		if err := registry.AddPackage(p.Build()); err != nil {
			tb.Fatalf("register package %s: %v", p.ID, err)
		}
	}
	return registry
}
