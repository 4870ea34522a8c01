package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/example/music-school-scheduler/internal/activity"
	"github.com/example/music-school-scheduler/internal/application"
	"github.com/example/music-school-scheduler/internal/scheduler"
)

const maxBodyBytes = 1 << 20

type schedulingService interface {
	ScheduleLesson(ctx context.Context, req application.LessonRequest) (*activity.Lesson, error)
	CheckConflicts(ctx context.Context, req application.LessonRequest) ([]scheduler.Conflict, error)
	BookRoom(ctx context.Context, req application.BookingRequest) (*activity.RoomBooking, error)
	GetActivity(ctx context.Context, id string) (activity.Activity, error)
	StartActivity(ctx context.Context, id string) error
	CompleteActivity(ctx context.Context, id string) error
	CancelActivity(ctx context.Context, id string) (bool, error)
	RescheduleActivity(ctx context.Context, id string, newStart time.Time) (bool, error)
	LinkLessonToPackage(ctx context.Context, lessonID, packageID string) error
	MarkBookingPaid(ctx context.Context, bookingID string) error
	GetTodayActivities(ctx context.Context) ([]activity.Activity, error)
	GetUpcomingActivities(ctx context.Context) ([]activity.Activity, error)
	ListActivitiesForTeacher(ctx context.Context, teacherID string) ([]activity.Activity, error)
	ListActivitiesForStudent(ctx context.Context, studentID string) ([]activity.Activity, error)
	ListActivitiesForRoom(ctx context.Context, roomID string) ([]activity.Activity, error)
}

// ActivityHandler exposes the scheduling service over HTTP.
type ActivityHandler struct {
	service   schedulingService
	responder responder
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewActivityHandler defaults a nil logger to slog.Default.
func NewActivityHandler(service schedulingService, logger *slog.Logger) *ActivityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityHandler{service: service, responder: newResponder(logger), validate: newValidator(), logger: logger}
}

func (h *ActivityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return activityLogger(ctx, h.logger, operation, attrs...)
}

// decode reads and validates a JSON body, writing the error response itself.
func (h *ActivityHandler) decode(w http.ResponseWriter, r *http.Request, operation string, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.log(r.Context(), operation, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.log(r.Context(), operation, "error_kind", "validation").InfoContext(r.Context(), "request failed validation", "error", err)
		h.responder.writeValidationError(r.Context(), w, err)
		return false
	}
	return true
}

func (h *ActivityHandler) fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, msg string, err error) {
	logger.ErrorContext(r.Context(), msg, "error", err, "error_kind", application.ErrorKind(err))
	h.responder.handleServiceError(r.Context(), w, err)
}

func (h *ActivityHandler) ScheduleLesson(w http.ResponseWriter, r *http.Request) {
	var req lessonRequest
	if !h.decode(w, r, "ScheduleLesson", &req) {
		return
	}
	logger := h.log(r.Context(), "ScheduleLesson", "teacher_id", req.TeacherID, "room_id", req.RoomID)

	lesson, err := h.service.ScheduleLesson(r.Context(), req.toRequest())
	if err != nil {
		h.fail(w, r, logger, "lesson scheduling failed", err)
		return
	}
	logger.With("activity_id", lesson.ID).InfoContext(r.Context(), "lesson scheduled")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, activityResponse{Activity: toActivityDTO(lesson)})
}

func (h *ActivityHandler) PreviewLesson(w http.ResponseWriter, r *http.Request) {
	var req lessonRequest
	if !h.decode(w, r, "PreviewLesson", &req) {
		return
	}
	logger := h.log(r.Context(), "PreviewLesson", "teacher_id", req.TeacherID, "room_id", req.RoomID)

	conflicts, err := h.service.CheckConflicts(r.Context(), req.toRequest())
	if err != nil {
		h.fail(w, r, logger, "conflict preview failed", err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, previewResponse{Conflicts: toConflictDTOs(conflicts)})
}

func (h *ActivityHandler) BookRoom(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if !h.decode(w, r, "BookRoom", &req) {
		return
	}
	logger := h.log(r.Context(), "BookRoom", "student_id", req.StudentID, "room_id", req.RoomID)

	booking, err := h.service.BookRoom(r.Context(), req.toRequest())
	if err != nil {
		h.fail(w, r, logger, "room booking failed", err)
		return
	}
	logger.With("activity_id", booking.ID).InfoContext(r.Context(), "room booked")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, activityResponse{Activity: toActivityDTO(booking)})
}

func (h *ActivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := h.service.GetActivity(r.Context(), id)
	if err != nil {
		h.fail(w, r, h.log(r.Context(), "Get", "activity_id", id), "activity lookup failed", err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, activityResponse{Activity: toActivityDTO(a)})
}

func (h *ActivityHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Start", h.service.StartActivity)
}

func (h *ActivityHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Complete", h.service.CompleteActivity)
}

func (h *ActivityHandler) transition(w http.ResponseWriter, r *http.Request, operation string, apply func(context.Context, string) error) {
	id := chi.URLParam(r, "id")
	logger := h.log(r.Context(), operation, "activity_id", id)
	if err := apply(r.Context(), id); err != nil {
		h.fail(w, r, logger, "activity transition failed", err)
		return
	}
	h.respondWithActivity(w, r, logger, id)
}

func (h *ActivityHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	logger := h.log(r.Context(), "Cancel", "activity_id", id)

	withoutPenalty, err := h.service.CancelActivity(r.Context(), id)
	if err != nil {
		h.fail(w, r, logger, "activity cancellation failed", err)
		return
	}
	a, err := h.service.GetActivity(r.Context(), id)
	if err != nil {
		h.fail(w, r, logger, "activity lookup failed", err)
		return
	}
	logger.With("without_penalty", withoutPenalty).InfoContext(r.Context(), "activity cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, cancelResponse{Activity: toActivityDTO(a), WithoutPenalty: withoutPenalty})
}

func (h *ActivityHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req rescheduleRequest
	if !h.decode(w, r, "Reschedule", &req) {
		return
	}
	logger := h.log(r.Context(), "Reschedule", "activity_id", id, "new_start", req.Start)

	if _, err := h.service.RescheduleActivity(r.Context(), id, req.Start); err != nil {
		h.fail(w, r, logger, "activity reschedule failed", err)
		return
	}
	h.respondWithActivity(w, r, logger, id)
}

func (h *ActivityHandler) LinkPackage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req packageLinkRequest
	if !h.decode(w, r, "LinkPackage", &req) {
		return
	}
	logger := h.log(r.Context(), "LinkPackage", "activity_id", id, "package_id", req.PackageID)

	if err := h.service.LinkLessonToPackage(r.Context(), id, strings.TrimSpace(req.PackageID)); err != nil {
		h.fail(w, r, logger, "package link failed", err)
		return
	}
	h.respondWithActivity(w, r, logger, id)
}

func (h *ActivityHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "MarkPaid", h.service.MarkBookingPaid)
}

func (h *ActivityHandler) Today(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "Today", func(ctx context.Context) ([]activity.Activity, error) {
		return h.service.GetTodayActivities(ctx)
	})
}

func (h *ActivityHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "Upcoming", func(ctx context.Context) ([]activity.Activity, error) {
		return h.service.GetUpcomingActivities(ctx)
	})
}

func (h *ActivityHandler) ForTeacher(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, "ForTeacher", h.service.ListActivitiesForTeacher)
}

func (h *ActivityHandler) ForStudent(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, "ForStudent", h.service.ListActivitiesForStudent)
}

func (h *ActivityHandler) ForRoom(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, "ForRoom", h.service.ListActivitiesForRoom)
}

func (h *ActivityHandler) listFor(w http.ResponseWriter, r *http.Request, operation string, lookup func(context.Context, string) ([]activity.Activity, error)) {
	id := chi.URLParam(r, "id")
	h.list(w, r, operation, func(ctx context.Context) ([]activity.Activity, error) {
		return lookup(ctx, id)
	})
}

func (h *ActivityHandler) list(w http.ResponseWriter, r *http.Request, operation string, fetch func(context.Context) ([]activity.Activity, error)) {
	logger := h.log(r.Context(), operation)
	list, err := fetch(r.Context())
	if err != nil {
		h.fail(w, r, logger, "activity listing failed", err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, activityListResponse{Activities: toActivityDTOs(list)})
}

func (h *ActivityHandler) respondWithActivity(w http.ResponseWriter, r *http.Request, logger *slog.Logger, id string) {
	a, err := h.service.GetActivity(r.Context(), id)
	if err != nil {
		h.fail(w, r, logger, "activity lookup failed", err)
		return
	}
	logger.InfoContext(r.Context(), "activity updated", "status", a.Base().Status)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, activityResponse{Activity: toActivityDTO(a)})
}
