package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/example/music-school-scheduler/internal/activity"
)

// RouterConfig collects the handlers and middleware mounted by NewRouter.
type RouterConfig struct {
	Activities *ActivityHandler
	// Directory serves teacher and room lookups. Nil leaves those routes out.
	Directory *DirectoryHandler
	// Auth guards every route except /health. Nil leaves the API open.
	Auth       func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
	Logger     *slog.Logger
}

// NewRouter builds the API routes documented on the package.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		newResponder(cfg.Logger).writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Activities == nil && cfg.Directory == nil {
		return r
	}

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}

		if h := cfg.Activities; h != nil {
			r.Post("/lessons", h.ScheduleLesson)
			r.Post("/lessons/preview", h.PreviewLesson)
			r.Post("/bookings", h.BookRoom)

			r.Route("/activities", func(r chi.Router) {
				r.Get("/today", h.Today)
				r.Get("/upcoming", h.Upcoming)
				r.Route("/{id}", func(r chi.Router) {
					r.Use(knownActivityID(cfg.Logger))
					r.Get("/", h.Get)
					r.Post("/start", h.Start)
					r.Post("/complete", h.Complete)
					r.Post("/cancel", h.Cancel)
					r.Post("/reschedule", h.Reschedule)
					r.Post("/package", h.LinkPackage)
					r.Post("/paid", h.MarkPaid)
				})
			})

			r.Get("/teachers/{id}/activities", h.ForTeacher)
			r.Get("/students/{id}/activities", h.ForStudent)
			r.Get("/rooms/{id}/activities", h.ForRoom)
		}

		if d := cfg.Directory; d != nil {
			r.Get("/teachers/{id}/availability", d.TeacherAvailability)
			r.Get("/rooms/{id}/suitability", d.RoomSuitability)
		}
	})

	return r
}

var errUnknownActivityID = errors.New("activity id has no known prefix")

// knownActivityID answers 404 for identifiers that cannot name a lesson or
// booking, without reaching the service.
func knownActivityID(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := activity.KindOf(chi.URLParam(r, "id")); !ok {
				responder.writeError(r.Context(), w, http.StatusNotFound, "NOT_FOUND", errUnknownActivityID)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
