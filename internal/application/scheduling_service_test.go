package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/example/music-school-scheduler/internal/activity"
	"github.com/example/music-school-scheduler/internal/persistence/memory"
	"github.com/example/music-school-scheduler/internal/scheduler"
)

type teacherStub struct {
	active      bool
	instruments []string
	busy        func(start time.Time, minutes int) bool
}

func (t *teacherStub) IsActive() bool { return t.active }

func (t *teacherStub) CanTeach(instrument string) bool {
	for _, candidate := range t.instruments {
		if strings.EqualFold(candidate, instrument) {
			return true
		}
	}
	return false
}

func (t *teacherStub) IsAvailableAt(start time.Time, minutes int) bool {
	if t.busy != nil && t.busy(start, minutes) {
		return false
	}
	return minutes > 0
}

type studentStub struct {
	mu     sync.Mutex
	active bool
	hours  int
}

func (s *studentStub) IsActive() bool { return s.active }

func (s *studentStub) ConsumeHours(hours int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hours > s.hours {
		return false
	}
	s.hours -= hours
	return true
}

func (s *studentStub) remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hours
}

type roomStub struct {
	open        bool
	maintenance bool
}

func (r *roomStub) IsAvailable() bool { return r.open }

func (r *roomStub) IsAvailableAt(_ time.Time, minutes int) bool {
	return minutes > 0 && r.open && !r.maintenance
}

type packageStub struct {
	student string
	valid   bool
}

func (p *packageStub) StudentID() string { return p.student }

func (p *packageStub) IsValid(time.Time) bool { return p.valid }

type directoryStub struct {
	teachers map[string]*teacherStub
	students map[string]*studentStub
	rooms    map[string]*roomStub
	packages map[string]*packageStub
}

func (d *directoryStub) GetTeacher(_ context.Context, id string) (Teacher, bool) {
	t, ok := d.teachers[id]
	if !ok {
		return nil, false
	}
	return t, true
}

func (d *directoryStub) GetStudent(_ context.Context, id string) (Student, bool) {
	s, ok := d.students[id]
	if !ok {
		return nil, false
	}
	return s, true
}

func (d *directoryStub) GetRoom(_ context.Context, id string) (Room, bool) {
	r, ok := d.rooms[id]
	if !ok {
		return nil, false
	}
	return r, true
}

func (d *directoryStub) GetPackage(_ context.Context, id string) (CoursePackage, bool) {
	p, ok := d.packages[id]
	if !ok {
		return nil, false
	}
	return p, true
}

func newDirectoryStub() *directoryStub {
	return &directoryStub{
		teachers: map[string]*teacherStub{
			"TCH-1": {active: true, instruments: []string{"Piano", "Violin"}},
			"TCH-2": {active: true, instruments: []string{"Guitar"}},
		},
		students: map[string]*studentStub{
			"STU-1": {active: true, hours: 10},
			"STU-2": {active: true, hours: 10},
			"STU-3": {active: true, hours: 1},
		},
		rooms: map[string]*roomStub{
			"ROOM-1": {open: true},
			"ROOM-2": {open: true},
		},
		packages: map[string]*packageStub{},
	}
}

// failingRepo fails saves while failSaves is set.
type failingRepo struct {
	*memory.Storage
	failSaves bool
}

func (f *failingRepo) SaveActivity(ctx context.Context, a activity.Activity) error {
	if f.failSaves {
		return errors.New("disk full")
	}
	return f.Storage.SaveActivity(ctx, a)
}

var testNow = time.Date(2024, time.March, 11, 9, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%08d", n)
	}
}

type serviceHarness struct {
	svc    *SchedulingService
	dir    *directoryStub
	repo   *failingRepo
	now    time.Time
	usage  []UsageEvent
	usageM sync.Mutex
}

func newHarness(t *testing.T) *serviceHarness {
	t.Helper()
	h := &serviceHarness{dir: newDirectoryStub(), repo: &failingRepo{Storage: memory.New(nil)}, now: testNow}
	sink := UsageSinkFunc(func(_ context.Context, event UsageEvent) {
		h.usageM.Lock()
		defer h.usageM.Unlock()
		h.usage = append(h.usage, event)
	})
	h.svc = NewSchedulingService(h.repo, h.dir, sequentialIDs(), func() time.Time { return h.now }, WithUsageSink(sink))
	return h
}

func (h *serviceHarness) events() []UsageEvent {
	h.usageM.Lock()
	defer h.usageM.Unlock()
	return append([]UsageEvent(nil), h.usage...)
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, time.UTC)
}

func lessonRequest(teacher, room string, start time.Time, minutes int, students ...string) LessonRequest {
	return LessonRequest{
		TeacherID:       teacher,
		StudentIDs:      students,
		RoomID:          room,
		Instrument:      "Piano",
		Start:           start,
		DurationMinutes: minutes,
	}
}

func TestSchedulingService_LessonAndBookingScenario(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	lesson, err := h.svc.ScheduleIndividualLesson(ctx, "TCH-1", "STU-1", "ROOM-1", "Piano", at(12, 14, 0), 60)
	if err != nil {
		t.Fatalf("ScheduleIndividualLesson failed: %v", err)
	}
	if lesson.ID != "LES-00000001" || lesson.Status != activity.StatusScheduled {
		t.Fatalf("unexpected lesson %+v", lesson)
	}

	req := lessonRequest("TCH-1", "ROOM-2", at(12, 14, 30), 60, "STU-2")
	_, err = h.svc.ScheduleLesson(ctx, req)
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(conflictErr.Conflicts) != 1 || conflictErr.Conflicts[0].Type != scheduler.ConflictTypeTeacher || conflictErr.Conflicts[0].WithID != lesson.ID {
		t.Fatalf("unexpected conflicts %+v", conflictErr.Conflicts)
	}

	_, err = h.svc.BookRoom(ctx, BookingRequest{StudentID: "STU-2", RoomID: "ROOM-1", Start: at(12, 14, 30), DurationMinutes: 60, HourlyRate: decimal.NewFromInt(20)})
	if !errors.Is(err, ErrResourceNotAvailable) {
		t.Fatalf("expected ErrResourceNotAvailable for overlapping room booking, got %v", err)
	}

	booking, err := h.svc.BookRoom(ctx, BookingRequest{StudentID: "STU-2", RoomID: "ROOM-1", Start: at(12, 15, 0), DurationMinutes: 90, HourlyRate: decimal.NewFromInt(20)})
	if err != nil {
		t.Fatalf("back-to-back booking failed: %v", err)
	}
	if booking.ID != "BKG-00000002" || booking.Purpose != activity.DefaultPurpose {
		t.Fatalf("unexpected booking %+v", booking)
	}
	if !booking.Cost().Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected cost 30, got %s", booking.Cost())
	}

	if _, err := h.svc.ScheduleLesson(ctx, lessonRequest("TCH-1", "ROOM-1", at(12, 16, 0), 30, "STU-3")); err == nil {
		t.Fatalf("expected booking to block the room for lessons")
	} else if !errors.As(err, &conflictErr) || conflictErr.Conflicts[0].Type != scheduler.ConflictTypeRoom {
		t.Fatalf("expected room conflict, got %v", err)
	}

	roomActivities, err := h.svc.ListActivitiesForRoom(ctx, "ROOM-1")
	if err != nil {
		t.Fatalf("ListActivitiesForRoom failed: %v", err)
	}
	if len(roomActivities) != 2 || roomActivities[0].Base().ID != lesson.ID {
		t.Fatalf("expected lesson then booking, got %d activities", len(roomActivities))
	}
	studentActivities, err := h.svc.ListActivitiesForStudent(ctx, "STU-2")
	if err != nil {
		t.Fatalf("ListActivitiesForStudent failed: %v", err)
	}
	if len(studentActivities) != 1 || studentActivities[0].Kind() != activity.KindRoomBooking {
		t.Fatalf("expected the booking in the student's list, got %d", len(studentActivities))
	}
}

func TestSchedulingService_ScheduleLesson_PreconditionOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(d *directoryStub)
		req    LessonRequest
		want   error
	}{
		{
			name: "unknown teacher",
			req:  lessonRequest("TCH-9", "ROOM-1", at(12, 10, 0), 60, "STU-1"),
			want: ErrNotFound,
		},
		{
			name: "inactive teacher wins over missing student",
			mutate: func(d *directoryStub) {
				d.teachers["TCH-1"].active = false
			},
			req:  lessonRequest("TCH-1", "ROOM-1", at(12, 10, 0), 60, "STU-9"),
			want: ErrInactive,
		},
		{
			name: "unknown student",
			req:  lessonRequest("TCH-1", "ROOM-9", at(12, 10, 0), 60, "STU-1", "STU-9"),
			want: ErrNotFound,
		},
		{
			name: "inactive student",
			mutate: func(d *directoryStub) {
				d.students["STU-2"].active = false
			},
			req:  lessonRequest("TCH-1", "ROOM-1", at(12, 10, 0), 60, "STU-1", "STU-2"),
			want: ErrInactive,
		},
		{
			name: "unknown room",
			req:  lessonRequest("TCH-1", "ROOM-9", at(12, 10, 0), 60, "STU-1"),
			want: ErrNotFound,
		},
		{
			name: "closed room",
			mutate: func(d *directoryStub) {
				d.rooms["ROOM-1"].open = false
			},
			req:  lessonRequest("TCH-1", "ROOM-1", at(12, 10, 0), 60, "STU-1"),
			want: ErrResourceNotAvailable,
		},
		{
			name: "instrument mismatch",
			req:  lessonRequest("TCH-2", "ROOM-1", at(12, 10, 0), 60, "STU-1"),
			want: ErrTeacherCannotTeachInstrument,
		},
		{
			name: "instrument mismatch wins over unknown student",
			req:  lessonRequest("TCH-2", "ROOM-1", at(12, 10, 0), 60, "STU-9"),
			want: ErrTeacherCannotTeachInstrument,
		},
		{
			name: "instrument mismatch wins over closed room",
			mutate: func(d *directoryStub) {
				d.rooms["ROOM-1"].open = false
			},
			req:  lessonRequest("TCH-2", "ROOM-1", at(12, 10, 0), 60, "STU-1"),
			want: ErrTeacherCannotTeachInstrument,
		},
		{
			name: "instrument mismatch wins over unknown room",
			req:  lessonRequest("TCH-2", "ROOM-9", at(12, 10, 0), 60, "STU-1"),
			want: ErrTeacherCannotTeachInstrument,
		},
		{
			name: "outside working hours",
			mutate: func(d *directoryStub) {
				d.teachers["TCH-1"].busy = func(time.Time, int) bool { return true }
			},
			req:  lessonRequest("TCH-1", "ROOM-1", at(12, 10, 0), 60, "STU-1"),
			want: ErrResourceNotAvailable,
		},
		{
			name: "room under maintenance",
			mutate: func(d *directoryStub) {
				d.rooms["ROOM-1"].maintenance = true
			},
			req:  lessonRequest("TCH-1", "ROOM-1", at(12, 10, 0), 60, "STU-1"),
			want: ErrResourceNotAvailable,
		},
		{
			name: "zero duration",
			req:  lessonRequest("TCH-1", "ROOM-1", at(12, 10, 0), 0, "STU-1"),
			want: ErrInvalidInterval,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			if tt.mutate != nil {
				tt.mutate(h.dir)
			}
			lesson, err := h.svc.ScheduleLesson(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if lesson != nil {
				t.Fatalf("expected no lesson on failure")
			}
			if h.repo.Len() != 0 {
				t.Fatalf("expected nothing stored, got %d", h.repo.Len())
			}
		})
	}
}

func TestSchedulingService_ScheduleLesson_ValidatesInput(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.svc.ScheduleLesson(context.Background(), LessonRequest{
		TeacherID:       "TCH-1",
		StudentIDs:      []string{"STU-1", "STU-1"},
		Start:           at(12, 10, 0),
		DurationMinutes: 60,
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"student_ids", "room_id", "instrument"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("expected %s to be reported, got %v", field, vErr.FieldErrors)
		}
	}
}

func TestSchedulingService_ConflictOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	h.dir.teachers["TCH-2"].instruments = append(h.dir.teachers["TCH-2"].instruments, "Piano")

	first, err := h.svc.ScheduleLesson(ctx, lessonRequest("TCH-1", "ROOM-1", at(12, 10, 0), 60, "STU-1"))
	if err != nil {
		t.Fatalf("first lesson failed: %v", err)
	}
	second, err := h.svc.ScheduleLesson(ctx, lessonRequest("TCH-2", "ROOM-2", at(12, 10, 0), 60, "STU-2"))
	if err != nil {
		t.Fatalf("second lesson failed: %v", err)
	}

	req := lessonRequest("TCH-1", "ROOM-2", at(12, 10, 30), 60, "STU-2", "STU-1")
	conflicts, err := h.svc.CheckConflicts(ctx, req)
	if err != nil {
		t.Fatalf("CheckConflicts failed: %v", err)
	}
	want := []scheduler.Conflict{
		{Type: scheduler.ConflictTypeTeacher, ResourceID: "TCH-1", WithID: first.ID, WithStartTime: at(12, 10, 0)},
		{Type: scheduler.ConflictTypeStudent, ResourceID: "STU-2", WithID: second.ID, WithStartTime: at(12, 10, 0)},
		{Type: scheduler.ConflictTypeStudent, ResourceID: "STU-1", WithID: first.ID, WithStartTime: at(12, 10, 0)},
		{Type: scheduler.ConflictTypeRoom, ResourceID: "ROOM-2", WithID: second.ID, WithStartTime: at(12, 10, 0)},
	}
	if len(conflicts) != len(want) {
		t.Fatalf("expected %d conflicts, got %+v", len(want), conflicts)
	}
	for i := range want {
		if conflicts[i] != want[i] {
			t.Fatalf("conflict %d: expected %+v, got %+v", i, want[i], conflicts[i])
		}
	}

	if _, err := h.svc.CancelActivity(ctx, first.ID); err != nil {
		t.Fatalf("CancelActivity failed: %v", err)
	}
	conflicts, err = h.svc.CheckConflicts(ctx, req)
	if err != nil {
		t.Fatalf("CheckConflicts failed: %v", err)
	}
	if len(conflicts) != 2 {
		t.Fatalf("expected cancelled lesson to stop blocking, got %+v", conflicts)
	}
}

func TestSchedulingService_CheckConflicts_CachesUntilMutation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	req := lessonRequest("TCH-1", "ROOM-1", at(12, 10, 0), 60, "STU-1")

	conflicts, err := h.svc.CheckConflicts(ctx, req)
	if err != nil || len(conflicts) != 0 {
		t.Fatalf("expected empty preview, got %v / %v", conflicts, err)
	}
	if h.svc.preview.Len() != 1 {
		t.Fatalf("expected preview to be cached")
	}
	if h.repo.Len() != 0 {
		t.Fatalf("preview must not store anything")
	}

	if _, err := h.svc.ScheduleLesson(ctx, req); err != nil {
		t.Fatalf("ScheduleLesson failed: %v", err)
	}
	if h.svc.preview.Len() != 0 {
		t.Fatalf("expected mutation to flush previews")
	}
	conflicts, err = h.svc.CheckConflicts(ctx, req)
	if err != nil || len(conflicts) != 3 {
		t.Fatalf("expected teacher, student and room conflicts, got %v / %v", conflicts, err)
	}

	if _, err := h.svc.CheckConflicts(ctx, lessonRequest("TCH-1", "ROOM-1", at(12, 10, 0), -5, "STU-1")); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestSchedulingService_CancelActivity_PenaltyWindow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	early, err := h.svc.ScheduleLesson(ctx, lessonRequest("TCH-1", "ROOM-1", h.now.Add(48*time.Hour), 60, "STU-1"))
	if err != nil {
		t.Fatalf("ScheduleLesson failed: %v", err)
	}
	withoutPenalty, err := h.svc.CancelActivity(ctx, early.ID)
	if err != nil || !withoutPenalty {
		t.Fatalf("expected free cancellation, got %v / %v", withoutPenalty, err)
	}
	if got := h.dir.students["STU-1"].remaining(); got != 10 {
		t.Fatalf("expected no hours consumed, got %d left", got)
	}

	late, err := h.svc.ScheduleLesson(ctx, lessonRequest("TCH-1", "ROOM-1", h.now.Add(24*time.Hour), 90, "STU-1", "STU-2"))
	if err != nil {
		t.Fatalf("ScheduleLesson failed: %v", err)
	}
	withoutPenalty, err = h.svc.CancelActivity(ctx, late.ID)
	if err != nil || withoutPenalty {
		t.Fatalf("expected penalty at the 24h boundary, got %v / %v", withoutPenalty, err)
	}
	stored, err := h.svc.GetActivity(ctx, late.ID)
	if err != nil {
		t.Fatalf("GetActivity failed: %v", err)
	}
	if stored.Base().Status != activity.StatusNoShow {
		t.Fatalf("expected no-show, got %s", stored.Base().Status)
	}
	for _, id := range []string{"STU-1", "STU-2"} {
		if got := h.dir.students[id].remaining(); got != 8 {
			t.Fatalf("%s: expected 2 hours charged, got %d left", id, got)
		}
	}
	events := h.events()
	if len(events) != 2 || events[0].Reason != UsageReasonLateCancellation || !events[0].Consumed || events[0].Hours != 2 {
		t.Fatalf("unexpected usage events %+v", events)
	}

	if _, err := h.svc.CancelActivity(ctx, late.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition on second cancel, got %v", err)
	}
	if _, err := h.svc.ScheduleLesson(ctx, lessonRequest("TCH-1", "ROOM-1", h.now.Add(24*time.Hour), 60, "STU-1")); err != nil {
		t.Fatalf("expected cancelled slot to be free again: %v", err)
	}
	if _, err := h.svc.CancelActivity(ctx, "LES-MISSING"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSchedulingService_CompleteActivity_ChargesRoundedHours(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	lesson, err := h.svc.ScheduleLesson(ctx, lessonRequest("TCH-1", "ROOM-1", at(12, 10, 0), 90, "STU-1", "STU-3"))
	if err != nil {
		t.Fatalf("ScheduleLesson failed: %v", err)
	}
	if err := h.svc.StartActivity(ctx, lesson.ID); err != nil {
		t.Fatalf("StartActivity failed: %v", err)
	}
	if err := h.svc.CompleteActivity(ctx, lesson.ID); err != nil {
		t.Fatalf("CompleteActivity failed: %v", err)
	}

	if got := h.dir.students["STU-1"].remaining(); got != 8 {
		t.Fatalf("expected 2 hours consumed from STU-1, got %d left", got)
	}
	if got := h.dir.students["STU-3"].remaining(); got != 1 {
		t.Fatalf("expected STU-3 balance untouched on shortfall, got %d", got)
	}
	events := h.events()
	if len(events) != 2 || !events[0].Consumed || events[1].Consumed || events[1].Reason != UsageReasonCompleted {
		t.Fatalf("unexpected usage events %+v", events)
	}

	if err := h.svc.CompleteActivity(ctx, lesson.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}

	// Completion frees the rest of the slot.
	if _, err := h.svc.BookRoom(ctx, BookingRequest{StudentID: "STU-2", RoomID: "ROOM-1", Start: at(12, 10, 30), DurationMinutes: 30}); err != nil {
		t.Fatalf("expected the completed lesson's room to be free, got %v", err)
	}
	if _, err := h.svc.ScheduleLesson(ctx, lessonRequest("TCH-1", "ROOM-2", at(12, 11, 0), 30, "STU-2")); err != nil {
		t.Fatalf("expected the completed lesson's teacher to be free, got %v", err)
	}

	booking, err := h.svc.BookRoom(ctx, BookingRequest{StudentID: "STU-1", RoomID: "ROOM-2", Start: at(12, 10, 0), DurationMinutes: 60})
	if err != nil {
		t.Fatalf("BookRoom failed: %v", err)
	}
	if err := h.svc.CompleteActivity(ctx, booking.ID); err != nil {
		t.Fatalf("CompleteActivity booking failed: %v", err)
	}
	if got := h.dir.students["STU-1"].remaining(); got != 8 {
		t.Fatalf("room bookings must not consume hours, got %d left", got)
	}
}

func TestSchedulingService_RescheduleActivity(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	lesson, err := h.svc.ScheduleLesson(ctx, lessonRequest("TCH-1", "ROOM-1", at(13, 10, 0), 60, "STU-1"))
	if err != nil {
		t.Fatalf("ScheduleLesson failed: %v", err)
	}
	blocker, err := h.svc.ScheduleLesson(ctx, lessonRequest("TCH-1", "ROOM-2", at(13, 14, 0), 60, "STU-2"))
	if err != nil {
		t.Fatalf("ScheduleLesson failed: %v", err)
	}

	moved, err := h.svc.RescheduleActivity(ctx, lesson.ID, at(13, 10, 30))
	if err != nil || !moved {
		t.Fatalf("expected overlap with own slot to be allowed, got %v / %v", moved, err)
	}

	moved, err = h.svc.RescheduleActivity(ctx, lesson.ID, at(13, 14, 30))
	var conflictErr *ConflictError
	if moved || !errors.As(err, &conflictErr) || conflictErr.Conflicts[0].WithID != blocker.ID {
		t.Fatalf("expected conflict with %s, got %v / %v", blocker.ID, moved, err)
	}
	stored, err := h.svc.GetActivity(ctx, lesson.ID)
	if err != nil {
		t.Fatalf("GetActivity failed: %v", err)
	}
	if !stored.Base().ScheduledAt.Equal(at(13, 10, 30)) {
		t.Fatalf("expected failed move to keep the slot, got %v", stored.Base().ScheduledAt)
	}
	if _, err := h.svc.BookRoom(ctx, BookingRequest{StudentID: "STU-2", RoomID: "ROOM-1", Start: at(13, 11, 0), DurationMinutes: 30}); !errors.Is(err, ErrResourceNotAvailable) {
		t.Fatalf("expected the original slot to stay booked, got %v", err)
	}

	h.repo.failSaves = true
	if moved, err := h.svc.RescheduleActivity(ctx, lesson.ID, at(13, 16, 0)); moved || err == nil {
		t.Fatalf("expected save failure to abort the move")
	}
	h.repo.failSaves = false
	if _, err := h.svc.BookRoom(ctx, BookingRequest{StudentID: "STU-2", RoomID: "ROOM-1", Start: at(13, 16, 0), DurationMinutes: 30}); err != nil {
		t.Fatalf("expected aborted target slot to be free: %v", err)
	}

	soon, err := h.svc.ScheduleLesson(ctx, lessonRequest("TCH-1", "ROOM-1", h.now.Add(2*time.Hour), 60, "STU-1"))
	if err != nil {
		t.Fatalf("ScheduleLesson failed: %v", err)
	}
	moved, err = h.svc.RescheduleActivity(ctx, soon.ID, at(14, 10, 0))
	if moved || !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected lesson inside the penalty window to stay put, got %v / %v", moved, err)
	}
}

func TestSchedulingService_SaveFailureLeavesCalendarsClean(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	req := lessonRequest("TCH-1", "ROOM-1", at(12, 10, 0), 60, "STU-1")

	h.repo.failSaves = true
	if _, err := h.svc.ScheduleLesson(ctx, req); err == nil {
		t.Fatalf("expected save failure")
	}
	h.repo.failSaves = false
	if _, err := h.svc.ScheduleLesson(ctx, req); err != nil {
		t.Fatalf("expected slot to be free after failed save: %v", err)
	}
}

func TestSchedulingService_ConcurrentBookingsOfOneSlot(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		h.dir.students[fmt.Sprintf("BUSY-%d", i)] = &studentStub{active: true}
	}

	var mu sync.Mutex
	successes := 0
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		studentID := fmt.Sprintf("BUSY-%d", i)
		g.Go(func() error {
			_, err := h.svc.BookRoom(ctx, BookingRequest{StudentID: studentID, RoomID: "ROOM-1", Start: at(12, 18, 0), DurationMinutes: 60})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return nil
			}
			if !errors.Is(err, ErrResourceNotAvailable) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if successes != 1 {
		t.Fatalf("expected exactly one booking to win, got %d", successes)
	}
}

func TestSchedulingService_Restore(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.ScheduleLesson(ctx, lessonRequest("TCH-1", "ROOM-1", at(12, 10, 0), 60, "STU-1")); err != nil {
		t.Fatalf("ScheduleLesson failed: %v", err)
	}
	cancelled, err := h.svc.ScheduleLesson(ctx, lessonRequest("TCH-1", "ROOM-1", at(15, 10, 0), 60, "STU-1"))
	if err != nil {
		t.Fatalf("ScheduleLesson failed: %v", err)
	}
	if _, err := h.svc.CancelActivity(ctx, cancelled.ID); err != nil {
		t.Fatalf("CancelActivity failed: %v", err)
	}

	restarted := NewSchedulingService(h.repo, h.dir, sequentialIDs(), func() time.Time { return h.now })
	restored, err := restarted.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored != 1 {
		t.Fatalf("expected one live booking restored, got %d", restored)
	}
	if _, err := restarted.BookRoom(ctx, BookingRequest{StudentID: "STU-2", RoomID: "ROOM-1", Start: at(12, 10, 30), DurationMinutes: 30}); !errors.Is(err, ErrResourceNotAvailable) {
		t.Fatalf("expected restored calendar to block the room, got %v", err)
	}
	if _, err := restarted.BookRoom(ctx, BookingRequest{StudentID: "STU-2", RoomID: "ROOM-1", Start: at(15, 10, 0), DurationMinutes: 30}); err != nil {
		t.Fatalf("expected cancelled slot to stay free, got %v", err)
	}
}

func TestSchedulingService_LinkLessonToPackage(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	h.dir.packages["PKG-1"] = &packageStub{student: "STU-1", valid: true}
	h.dir.packages["PKG-2"] = &packageStub{student: "STU-2", valid: true}
	h.dir.packages["PKG-OLD"] = &packageStub{student: "STU-1"}

	lesson, err := h.svc.ScheduleLesson(ctx, lessonRequest("TCH-1", "ROOM-1", at(12, 10, 0), 60, "STU-1"))
	if err != nil {
		t.Fatalf("ScheduleLesson failed: %v", err)
	}

	if err := h.svc.LinkLessonToPackage(ctx, lesson.ID, "PKG-1"); err != nil {
		t.Fatalf("LinkLessonToPackage failed: %v", err)
	}
	stored, _ := h.svc.GetActivity(ctx, lesson.ID)
	if stored.(*activity.Lesson).PackageID != "PKG-1" {
		t.Fatalf("expected package to be linked")
	}

	var vErr *ValidationError
	if err := h.svc.LinkLessonToPackage(ctx, lesson.ID, "PKG-2"); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for foreign package, got %v", err)
	}
	if err := h.svc.LinkLessonToPackage(ctx, lesson.ID, "PKG-OLD"); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive for expired package, got %v", err)
	}
	if err := h.svc.LinkLessonToPackage(ctx, lesson.ID, "PKG-9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSchedulingService_MarkBookingPaid(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	booking, err := h.svc.BookRoom(ctx, BookingRequest{StudentID: "STU-1", RoomID: "ROOM-1", Start: at(14, 10, 0), DurationMinutes: 60, HourlyRate: decimal.NewFromInt(12)})
	if err != nil {
		t.Fatalf("BookRoom failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := h.svc.MarkBookingPaid(ctx, booking.ID); err != nil {
			t.Fatalf("MarkBookingPaid run %d failed: %v", i+1, err)
		}
	}
	stored, _ := h.svc.GetActivity(ctx, booking.ID)
	if !stored.(*activity.RoomBooking).Paid {
		t.Fatalf("expected booking to be paid")
	}

	lesson, err := h.svc.ScheduleLesson(ctx, lessonRequest("TCH-1", "ROOM-2", at(14, 10, 0), 60, "STU-2"))
	if err != nil {
		t.Fatalf("ScheduleLesson failed: %v", err)
	}
	var vErr *ValidationError
	if err := h.svc.MarkBookingPaid(ctx, lesson.ID); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for lesson, got %v", err)
	}
}

func TestSchedulingService_TodayAndUpcoming(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	past, err := h.svc.BookRoom(ctx, BookingRequest{StudentID: "STU-1", RoomID: "ROOM-1", Start: at(11, 7, 0), DurationMinutes: 60})
	if err != nil {
		t.Fatalf("BookRoom failed: %v", err)
	}
	later, err := h.svc.BookRoom(ctx, BookingRequest{StudentID: "STU-1", RoomID: "ROOM-1", Start: at(11, 18, 0), DurationMinutes: 60})
	if err != nil {
		t.Fatalf("BookRoom failed: %v", err)
	}
	tomorrow, err := h.svc.ScheduleLesson(ctx, lessonRequest("TCH-1", "ROOM-2", at(12, 9, 0), 60, "STU-2"))
	if err != nil {
		t.Fatalf("ScheduleLesson failed: %v", err)
	}
	done, err := h.svc.BookRoom(ctx, BookingRequest{StudentID: "STU-2", RoomID: "ROOM-2", Start: at(11, 20, 0), DurationMinutes: 30})
	if err != nil {
		t.Fatalf("BookRoom failed: %v", err)
	}
	if err := h.svc.CompleteActivity(ctx, done.ID); err != nil {
		t.Fatalf("CompleteActivity failed: %v", err)
	}

	today, err := h.svc.GetTodayActivities(ctx)
	if err != nil {
		t.Fatalf("GetTodayActivities failed: %v", err)
	}
	if len(today) != 2 || today[0].Base().ID != past.ID || today[1].Base().ID != later.ID {
		t.Fatalf("unexpected today list: %d entries", len(today))
	}

	upcoming, err := h.svc.GetUpcomingActivities(ctx)
	if err != nil {
		t.Fatalf("GetUpcomingActivities failed: %v", err)
	}
	if len(upcoming) != 2 || upcoming[0].Base().ID != later.ID || upcoming[1].Base().ID != tomorrow.ID {
		t.Fatalf("unexpected upcoming list: %d entries", len(upcoming))
	}
}
