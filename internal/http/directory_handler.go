package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/example/music-school-scheduler/internal/availability"
	"github.com/example/music-school-scheduler/internal/school"
)

const (
	defaultAvailabilitySpan = 7 * 24 * time.Hour
	maxAvailabilitySpan     = 31 * 24 * time.Hour
)

var errAvailabilitySpan = errors.New("availability range must end after it starts and span at most 31 days")

type schoolDirectory interface {
	Teacher(id string) (*school.Teacher, bool)
	Room(id string) (*school.Room, bool)
}

// DirectoryHandler serves read-only views of teachers and rooms that help a
// front desk pick a slot before scheduling.
type DirectoryHandler struct {
	directory schoolDirectory
	now       func() time.Time
	responder responder
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewDirectoryHandler defaults now to time.Now.
func NewDirectoryHandler(directory schoolDirectory, now func() time.Time, logger *slog.Logger) *DirectoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &DirectoryHandler{directory: directory, now: now, responder: newResponder(logger), validate: newValidator(), logger: logger}
}

type availabilityResponse struct {
	TeacherID string          `json:"teacher_id"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Windows   []occurrenceDTO `json:"windows"`
}

type occurrenceDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TeacherAvailability lists the working-hour windows that start in
// [from, to). Both bounds are optional RFC 3339 query parameters; the range
// defaults to the next seven days.
func (h *DirectoryHandler) TeacherAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	logger := directoryLogger(ctx, h.logger, "TeacherAvailability", "teacher_id", id)

	teacher, ok := h.directory.Teacher(id)
	if !ok {
		logger.InfoContext(ctx, "teacher not found")
		h.responder.writeError(ctx, w, http.StatusNotFound, "NOT_FOUND", errors.New("teacher "+id+" not found"))
		return
	}

	from, err := queryTime(r, "from", h.now())
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}
	to, err := queryTime(r, "to", from.Add(defaultAvailabilitySpan))
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}
	if to.Sub(from) > maxAvailabilitySpan {
		h.responder.writeError(ctx, w, http.StatusUnprocessableEntity, "INVALID_INTERVAL", errAvailabilitySpan)
		return
	}

	occurrences, err := teacher.WorkingHours(from, to)
	if errors.Is(err, availability.ErrInvalidRange) {
		h.responder.writeError(ctx, w, http.StatusUnprocessableEntity, "INVALID_INTERVAL", errAvailabilitySpan)
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to expand working hours", "error", err)
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	windows := make([]occurrenceDTO, 0, len(occurrences))
	for _, o := range occurrences {
		windows = append(windows, occurrenceDTO{Start: o.Start, End: o.End})
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, availabilityResponse{TeacherID: id, From: from, To: to, Windows: windows})
}

type suitabilityQuery struct {
	Instrument string `json:"instrument" validate:"required"`
}

type suitabilityResponse struct {
	RoomID     string `json:"room_id"`
	Instrument string `json:"instrument"`
	Suitable   bool   `json:"suitable"`
	Open       bool   `json:"open"`
}

// RoomSuitability reports whether an instrument can be played in the room.
// It is advisory; scheduling does not consult it.
func (h *DirectoryHandler) RoomSuitability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	query := suitabilityQuery{Instrument: strings.TrimSpace(r.URL.Query().Get("instrument"))}
	if err := h.validate.Struct(query); err != nil {
		h.responder.writeValidationError(ctx, w, err)
		return
	}

	room, ok := h.directory.Room(id)
	if !ok {
		directoryLogger(ctx, h.logger, "RoomSuitability", "room_id", id).InfoContext(ctx, "room not found")
		h.responder.writeError(ctx, w, http.StatusNotFound, "NOT_FOUND", errors.New("room "+id+" not found"))
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, suitabilityResponse{
		RoomID:     id,
		Instrument: query.Instrument,
		Suitable:   room.IsSuitableFor(query.Instrument),
		Open:       room.IsAvailable(),
	})
}

func queryTime(r *http.Request, key string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New(key + " must be an RFC 3339 timestamp")
	}
	return t, nil
}
