package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/music-school-scheduler/internal/activity"
	"github.com/example/music-school-scheduler/internal/persistence"
	"github.com/example/music-school-scheduler/internal/scheduler"
)

// ActivityRepository captures the persistence interactions needed by the service.
type ActivityRepository interface {
	SaveActivity(ctx context.Context, a activity.Activity) error
	GetActivity(ctx context.Context, id string) (activity.Activity, error)
	ListActivities(ctx context.Context, filter persistence.ActivityFilter) ([]activity.Activity, error)
	ListActivitiesForTeacher(ctx context.Context, teacherID string) ([]activity.Activity, error)
	ListActivitiesForStudent(ctx context.Context, studentID string) ([]activity.Activity, error)
	ListActivitiesForRoom(ctx context.Context, roomID string) ([]activity.Activity, error)
}

// LessonRequest describes a lesson to place on the schedule.
type LessonRequest struct {
	TeacherID       string
	StudentIDs      []string
	RoomID          string
	Instrument      string
	Start           time.Time
	DurationMinutes int
	Notes           string
}

// BookingRequest describes a practice room reservation.
type BookingRequest struct {
	StudentID       string
	RoomID          string
	Start           time.Time
	DurationMinutes int
	HourlyRate      decimal.Decimal
	Purpose         string
	Notes           string
}

// Option customizes a SchedulingService.
type Option func(*SchedulingService)

// WithUsageSink reports hour consumption to sink.
func WithUsageSink(sink UsageSink) Option {
	return func(s *SchedulingService) {
		s.usage = sink
	}
}

// WithLocation sets the zone that defines "today". UTC is used by default.
func WithLocation(loc *time.Location) Option {
	return func(s *SchedulingService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithPreviewTTL bounds how long a conflict preview may be served from cache.
func WithPreviewTTL(ttl time.Duration) Option {
	return func(s *SchedulingService) {
		s.preview = newPreviewCache(ttl)
	}
}

// SchedulingService books lessons and rooms against the school directory.
// Every operation runs under one lock so a check and the write it guards
// are atomic with respect to other callers.
type SchedulingService struct {
	mu          sync.Mutex
	activities  ActivityRepository
	directory   Directory
	usage       UsageSink
	idGenerator func() string
	now         func() time.Time
	location    *time.Location
	logger      *slog.Logger
	calendars   map[scheduler.ResourceKey]*scheduler.Calendar
	preview     *previewCache
}

// NewSchedulingService wires dependencies for scheduling operations.
func NewSchedulingService(activities ActivityRepository, directory Directory, idGenerator func() string, now func() time.Time, opts ...Option) *SchedulingService {
	return NewSchedulingServiceWithLogger(activities, directory, idGenerator, now, nil, opts...)
}

// NewSchedulingServiceWithLogger constructs a scheduling service with a specified logger.
func NewSchedulingServiceWithLogger(activities ActivityRepository, directory Directory, idGenerator func() string, now func() time.Time, logger *slog.Logger, opts ...Option) *SchedulingService {
	if idGenerator == nil {
		idGenerator = activity.RandomSuffix
	}
	if now == nil {
		now = time.Now
	}
	s := &SchedulingService{
		activities:  activities,
		directory:   directory,
		idGenerator: idGenerator,
		now:         now,
		location:    time.UTC,
		logger:      defaultLogger(logger),
		calendars:   make(map[scheduler.ResourceKey]*scheduler.Calendar),
		preview:     newPreviewCache(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SchedulingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SchedulingService", operation, attrs...)
}

func logFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	attrs := []any{"error", err, "error_kind", ErrorKind(err)}
	var conflictErr *ConflictError
	if errors.As(err, &conflictErr) {
		attrs = append(attrs, "conflicts", conflictErr.Descriptions())
	}
	logger.ErrorContext(ctx, msg, attrs...)
}

// ScheduleLesson validates the request, checks conflicts and availability
// and stores a new lesson. No state changes unless it succeeds.
func (s *SchedulingService) ScheduleLesson(ctx context.Context, req LessonRequest) (lesson *activity.Lesson, err error) {
	if s == nil {
		return nil, fmt.Errorf("SchedulingService is nil")
	}
	logger := s.loggerWith(ctx, "ScheduleLesson",
		"teacher_id", req.TeacherID,
		"student_ids", req.StudentIDs,
		"room_id", req.RoomID,
		"start", req.Start,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to schedule lesson", err)
			return
		}
		logger.With("activity_id", lesson.ID).InfoContext(ctx, "lesson scheduled")
	}()

	interval, err := validateLessonRequest(req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	teacher, room, err := s.resolveLessonParties(ctx, req)
	if err != nil {
		return nil, err
	}

	if err = s.ensureNoConflicts(ctx, scheduler.Request{
		Interval:   interval,
		TeacherID:  req.TeacherID,
		StudentIDs: req.StudentIDs,
		RoomID:     req.RoomID,
	}); err != nil {
		return nil, err
	}

	if err = s.ensureSlotAvailable(req.TeacherID, teacher, req.RoomID, room, interval, ""); err != nil {
		return nil, err
	}

	id, err := s.nextID(ctx, activity.KindLesson)
	if err != nil {
		return nil, err
	}
	created, err := activity.NewLesson(activity.LessonParams{
		ID:              id,
		TeacherID:       req.TeacherID,
		StudentIDs:      req.StudentIDs,
		RoomID:          req.RoomID,
		Instrument:      strings.TrimSpace(req.Instrument),
		Start:           req.Start,
		DurationMinutes: req.DurationMinutes,
		Now:             s.now(),
	})
	if err != nil {
		return nil, err
	}
	created.Notes = req.Notes

	if err = s.commitNew(ctx, created); err != nil {
		return nil, err
	}
	return created.CloneLesson(), nil
}

// ScheduleIndividualLesson schedules a lesson with a single student.
func (s *SchedulingService) ScheduleIndividualLesson(ctx context.Context, teacherID, studentID, roomID, instrument string, start time.Time, minutes int) (*activity.Lesson, error) {
	return s.ScheduleLesson(ctx, LessonRequest{
		TeacherID:       teacherID,
		StudentIDs:      []string{studentID},
		RoomID:          roomID,
		Instrument:      instrument,
		Start:           start,
		DurationMinutes: minutes,
	})
}

// BookRoom reserves a room for a student. Only the room is checked; the
// student's lessons are not considered.
func (s *SchedulingService) BookRoom(ctx context.Context, req BookingRequest) (booking *activity.RoomBooking, err error) {
	if s == nil {
		return nil, fmt.Errorf("SchedulingService is nil")
	}
	logger := s.loggerWith(ctx, "BookRoom",
		"student_id", req.StudentID,
		"room_id", req.RoomID,
		"start", req.Start,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to book room", err)
			return
		}
		logger.With("activity_id", booking.ID, "cost", booking.Cost().StringFixed(2)).InfoContext(ctx, "room booked")
	}()

	interval, err := validateBookingRequest(req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	student, ok := s.directory.GetStudent(ctx, req.StudentID)
	if !ok {
		return nil, fmt.Errorf("%w: student %s", ErrNotFound, req.StudentID)
	}
	if !student.IsActive() {
		return nil, fmt.Errorf("%w: student %s", ErrInactive, req.StudentID)
	}
	room, ok := s.directory.GetRoom(ctx, req.RoomID)
	if !ok {
		return nil, fmt.Errorf("%w: room %s", ErrNotFound, req.RoomID)
	}
	if !room.IsAvailable() {
		return nil, fmt.Errorf("%w: room %s is closed", ErrResourceNotAvailable, req.RoomID)
	}

	if err = s.ensureSlotAvailable("", nil, req.RoomID, room, interval, ""); err != nil {
		return nil, err
	}

	id, err := s.nextID(ctx, activity.KindRoomBooking)
	if err != nil {
		return nil, err
	}
	created, err := activity.NewRoomBooking(activity.BookingParams{
		ID:              id,
		StudentID:       req.StudentID,
		RoomID:          req.RoomID,
		Start:           req.Start,
		DurationMinutes: req.DurationMinutes,
		HourlyRate:      req.HourlyRate,
		Purpose:         strings.TrimSpace(req.Purpose),
		Now:             s.now(),
	})
	if err != nil {
		return nil, err
	}
	created.Notes = req.Notes

	if err = s.commitNew(ctx, created); err != nil {
		return nil, err
	}
	return created.CloneBooking(), nil
}

// CheckConflicts previews the conflicts a lesson request would hit without
// changing any state. Identical previews are served from a short-lived cache
// that every successful mutation flushes.
func (s *SchedulingService) CheckConflicts(ctx context.Context, req LessonRequest) (conflicts []scheduler.Conflict, err error) {
	if s == nil {
		return nil, fmt.Errorf("SchedulingService is nil")
	}
	logger := s.loggerWith(ctx, "CheckConflicts",
		"teacher_id", req.TeacherID,
		"room_id", req.RoomID,
		"start", req.Start,
	)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to check conflicts", err)
			return
		}
		logger.With("conflict_count", len(conflicts)).DebugContext(ctx, "conflicts checked")
	}()

	interval, err := scheduler.IntervalFor(req.Start, req.DurationMinutes)
	if err != nil {
		return nil, err
	}

	key := buildPreviewKey(req)
	if cached, ok := s.preview.Get(key); ok {
		return cached, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conflicts, err = s.detectConflicts(ctx, scheduler.Request{
		Interval:   interval,
		TeacherID:  req.TeacherID,
		StudentIDs: req.StudentIDs,
		RoomID:     req.RoomID,
	})
	if err != nil {
		return nil, err
	}
	s.preview.Store(key, conflicts)
	return conflicts, nil
}

// Restore rebuilds the calendars from the stored activities. It is meant to
// run once at startup, before the service takes requests. Overlapping records
// are logged and skipped.
func (s *SchedulingService) Restore(ctx context.Context) (restored int, err error) {
	if s == nil {
		return 0, fmt.Errorf("SchedulingService is nil")
	}
	logger := s.loggerWith(ctx, "Restore")
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to restore calendars", err)
			return
		}
		logger.With("restored_count", restored).InfoContext(ctx, "calendars restored")
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.activities.ListActivities(ctx, persistence.ActivityFilter{})
	if err != nil {
		return 0, mapActivityRepoError(err)
	}

	s.calendars = make(map[scheduler.ResourceKey]*scheduler.Calendar)
	s.preview.Invalidate()
	for _, a := range list {
		base := a.Base()
		if !holdsCalendar(base.Status) {
			continue
		}
		if bookErr := s.book(base.ID, a.Occupies(), a.Interval()); bookErr != nil {
			logger.ErrorContext(ctx, "stored activity overlaps another booking",
				"activity_id", base.ID,
				"error", bookErr,
				"error_kind", ErrorKind(bookErr),
			)
			continue
		}
		restored++
	}
	return restored, nil
}

// resolveLessonParties enforces the domain preconditions of a lesson in
// order: teacher exists and is active, the teacher teaches the instrument,
// each student exists and is active, the room exists and is open.
func (s *SchedulingService) resolveLessonParties(ctx context.Context, req LessonRequest) (Teacher, Room, error) {
	teacher, ok := s.directory.GetTeacher(ctx, req.TeacherID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: teacher %s", ErrNotFound, req.TeacherID)
	}
	if !teacher.IsActive() {
		return nil, nil, fmt.Errorf("%w: teacher %s", ErrInactive, req.TeacherID)
	}

	if !teacher.CanTeach(req.Instrument) {
		return nil, nil, fmt.Errorf("%w: %s does not teach %s", ErrTeacherCannotTeachInstrument, req.TeacherID, req.Instrument)
	}

	for _, studentID := range req.StudentIDs {
		student, ok := s.directory.GetStudent(ctx, studentID)
		if !ok {
			return nil, nil, fmt.Errorf("%w: student %s", ErrNotFound, studentID)
		}
		if !student.IsActive() {
			return nil, nil, fmt.Errorf("%w: student %s", ErrInactive, studentID)
		}
	}

	room, ok := s.directory.GetRoom(ctx, req.RoomID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: room %s", ErrNotFound, req.RoomID)
	}
	if !room.IsAvailable() {
		return nil, nil, fmt.Errorf("%w: room %s is closed", ErrResourceNotAvailable, req.RoomID)
	}

	return teacher, room, nil
}

// nextID draws identifiers until one is not already stored.
func (s *SchedulingService) nextID(ctx context.Context, kind activity.Kind) (string, error) {
	const attempts = 3
	for i := 0; i < attempts; i++ {
		suffix := s.idGenerator()
		if suffix == "" {
			suffix = activity.RandomSuffix()
		}
		id := activity.FormatID(kind, suffix)
		_, err := s.activities.GetActivity(ctx, id)
		if errors.Is(err, persistence.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", mapActivityRepoError(err)
		}
	}
	return "", fmt.Errorf("%w: could not allocate a free %s id", ErrDuplicateBooking, kind)
}

// commitNew books the calendars and then persists. A failed save releases
// the calendars again.
func (s *SchedulingService) commitNew(ctx context.Context, a activity.Activity) error {
	id := a.Base().ID
	keys := a.Occupies()
	if err := s.book(id, keys, a.Interval()); err != nil {
		return err
	}
	if err := s.activities.SaveActivity(ctx, a); err != nil {
		s.release(id, keys)
		return mapActivityRepoError(err)
	}
	s.preview.Invalidate()
	return nil
}

func validateLessonRequest(req LessonRequest) (scheduler.Interval, error) {
	vErr := &ValidationError{}
	if strings.TrimSpace(req.TeacherID) == "" {
		vErr.add("teacher_id", "is required")
	}
	if len(req.StudentIDs) == 0 {
		vErr.add("student_ids", "at least one student is required")
	} else {
		seen := make(map[string]struct{}, len(req.StudentIDs))
		for _, id := range req.StudentIDs {
			if strings.TrimSpace(id) == "" {
				vErr.add("student_ids", "must not contain blank ids")
				break
			}
			if _, dup := seen[id]; dup {
				vErr.add("student_ids", "must be unique")
				break
			}
			seen[id] = struct{}{}
		}
	}
	if strings.TrimSpace(req.RoomID) == "" {
		vErr.add("room_id", "is required")
	}
	if strings.TrimSpace(req.Instrument) == "" {
		vErr.add("instrument", "is required")
	}
	if req.Start.IsZero() {
		vErr.add("start", "is required")
	}
	if vErr.HasErrors() {
		return scheduler.Interval{}, vErr
	}
	return scheduler.IntervalFor(req.Start, req.DurationMinutes)
}

func validateBookingRequest(req BookingRequest) (scheduler.Interval, error) {
	vErr := &ValidationError{}
	if strings.TrimSpace(req.StudentID) == "" {
		vErr.add("student_id", "is required")
	}
	if strings.TrimSpace(req.RoomID) == "" {
		vErr.add("room_id", "is required")
	}
	if req.Start.IsZero() {
		vErr.add("start", "is required")
	}
	if req.HourlyRate.IsNegative() {
		vErr.add("hourly_rate", "must not be negative")
	}
	if vErr.HasErrors() {
		return scheduler.Interval{}, vErr
	}
	return scheduler.IntervalFor(req.Start, req.DurationMinutes)
}

func mapActivityRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
