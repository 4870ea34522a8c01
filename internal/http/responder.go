package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/example/music-school-scheduler/internal/application"
)

var (
	errBadRequestBody  = errors.New("request body is not valid JSON")
	errMissingToken    = errors.New("an API token is required")
	errInvalidToken    = errors.New("the API token is not valid")
	errTooManyRequests = errors.New("too many requests, slow down")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

// handleServiceError maps the service error taxonomy onto status codes.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, "UNEXPECTED", errors.New("unknown error"))
		return
	}

	var conflictErr *application.ConflictError
	if errors.As(err, &conflictErr) {
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "SCHEDULING_CONFLICT",
			Message:   "the requested slot conflicts with existing activities",
			Conflicts: toConflictDTOs(conflictErr.Conflicts),
		})
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "request contains invalid fields",
			Errors:    vErr.FieldErrors,
		})
		return
	}

	switch {
	case errors.Is(err, application.ErrNotFound):
		r.writeError(ctx, w, http.StatusNotFound, "NOT_FOUND", err)
	case errors.Is(err, application.ErrInactive):
		r.writeError(ctx, w, http.StatusUnprocessableEntity, "INACTIVE", err)
	case errors.Is(err, application.ErrTeacherCannotTeachInstrument):
		r.writeError(ctx, w, http.StatusUnprocessableEntity, "TEACHER_CANNOT_TEACH_INSTRUMENT", err)
	case errors.Is(err, application.ErrInvalidInterval):
		r.writeError(ctx, w, http.StatusUnprocessableEntity, "INVALID_INTERVAL", err)
	case errors.Is(err, application.ErrResourceNotAvailable):
		r.writeError(ctx, w, http.StatusConflict, "RESOURCE_NOT_AVAILABLE", err)
	case errors.Is(err, application.ErrInvalidStateTransition):
		r.writeError(ctx, w, http.StatusConflict, "INVALID_STATE_TRANSITION", err)
	case errors.Is(err, application.ErrDuplicateBooking):
		r.writeError(ctx, w, http.StatusInternalServerError, "DUPLICATE_BOOKING", errors.New("calendar state is inconsistent"))
	default:
		r.writeError(ctx, w, http.StatusInternalServerError, "UNEXPECTED", errors.New("internal server error"))
	}
}

// writeValidationError renders request DTO validation failures keyed by the
// JSON field name.
func (r responder) writeValidationError(ctx context.Context, w http.ResponseWriter, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		r.writeError(ctx, w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = validationMessage(fe)
	}
	r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
		ErrorCode: "VALIDATION_FAILED",
		Message:   "request contains invalid fields",
		Errors:    details,
	})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "unique":
		return "must be unique"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts []conflictDTO     `json:"conflicts,omitempty"`
}
