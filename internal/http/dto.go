package http

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/example/music-school-scheduler/internal/activity"
	"github.com/example/music-school-scheduler/internal/application"
	"github.com/example/music-school-scheduler/internal/scheduler"
)

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type lessonRequest struct {
	TeacherID       string    `json:"teacher_id" validate:"required"`
	StudentIDs      []string  `json:"student_ids" validate:"required,min=1,unique,dive,required"`
	RoomID          string    `json:"room_id" validate:"required"`
	Instrument      string    `json:"instrument" validate:"required"`
	Start           time.Time `json:"start" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"gt=0"`
	Notes           string    `json:"notes" validate:"max=2000"`
}

func (r lessonRequest) toRequest() application.LessonRequest {
	return application.LessonRequest{
		TeacherID:       strings.TrimSpace(r.TeacherID),
		StudentIDs:      append([]string(nil), r.StudentIDs...),
		RoomID:          strings.TrimSpace(r.RoomID),
		Instrument:      r.Instrument,
		Start:           r.Start,
		DurationMinutes: r.DurationMinutes,
		Notes:           r.Notes,
	}
}

type bookingRequest struct {
	StudentID       string          `json:"student_id" validate:"required"`
	RoomID          string          `json:"room_id" validate:"required"`
	Start           time.Time       `json:"start" validate:"required"`
	DurationMinutes int             `json:"duration_minutes" validate:"gt=0"`
	HourlyRate      decimal.Decimal `json:"hourly_rate"`
	Purpose         string          `json:"purpose" validate:"max=200"`
	Notes           string          `json:"notes" validate:"max=2000"`
}

func (r bookingRequest) toRequest() application.BookingRequest {
	return application.BookingRequest{
		StudentID:       strings.TrimSpace(r.StudentID),
		RoomID:          strings.TrimSpace(r.RoomID),
		Start:           r.Start,
		DurationMinutes: r.DurationMinutes,
		HourlyRate:      r.HourlyRate,
		Purpose:         r.Purpose,
		Notes:           r.Notes,
	}
}

type rescheduleRequest struct {
	Start time.Time `json:"start" validate:"required"`
}

type packageLinkRequest struct {
	PackageID string `json:"package_id" validate:"required"`
}

type activityDTO struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	Label           string    `json:"label"`
	Status          string    `json:"status"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	EndsAt          time.Time `json:"ends_at"`
	DurationMinutes int       `json:"duration_minutes"`
	RoomID          string    `json:"room_id,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Summary         string    `json:"summary"`

	TeacherID       string   `json:"teacher_id,omitempty"`
	StudentIDs      []string `json:"student_ids,omitempty"`
	Instrument      string   `json:"instrument,omitempty"`
	PackageID       string   `json:"package_id,omitempty"`
	HoursPerStudent int      `json:"hours_per_student,omitempty"`

	StudentID  string           `json:"student_id,omitempty"`
	HourlyRate *decimal.Decimal `json:"hourly_rate,omitempty"`
	Cost       *decimal.Decimal `json:"cost,omitempty"`
	Purpose    string           `json:"purpose,omitempty"`
	Paid       *bool            `json:"paid,omitempty"`
}

func toActivityDTO(a activity.Activity) activityDTO {
	base := a.Base()
	dto := activityDTO{
		ID:              base.ID,
		Kind:            string(a.Kind()),
		Label:           a.Label(),
		Status:          string(base.Status),
		ScheduledAt:     base.ScheduledAt,
		EndsAt:          base.EndsAt(),
		DurationMinutes: base.DurationMinutes,
		RoomID:          base.RoomID,
		Notes:           base.Notes,
		Summary:         activity.Summary(a),
	}
	switch v := a.(type) {
	case *activity.Lesson:
		dto.TeacherID = v.TeacherID
		dto.StudentIDs = append([]string(nil), v.StudentIDs...)
		dto.Instrument = v.Instrument
		dto.PackageID = v.PackageID
		dto.HoursPerStudent = v.HoursPerStudent()
	case *activity.RoomBooking:
		rate := v.HourlyRate
		cost := v.Cost()
		paid := v.Paid
		dto.StudentID = v.StudentID
		dto.HourlyRate = &rate
		dto.Cost = &cost
		dto.Purpose = v.Purpose
		dto.Paid = &paid
	}
	return dto
}

func toActivityDTOs(list []activity.Activity) []activityDTO {
	out := make([]activityDTO, 0, len(list))
	for _, a := range list {
		out = append(out, toActivityDTO(a))
	}
	return out
}

type activityResponse struct {
	Activity activityDTO `json:"activity"`
}

type activityListResponse struct {
	Activities []activityDTO `json:"activities"`
}

type conflictDTO struct {
	Type          string    `json:"type"`
	ResourceID    string    `json:"resource_id"`
	WithID        string    `json:"with_id"`
	WithStartTime time.Time `json:"with_start_time"`
	Description   string    `json:"description"`
}

func toConflictDTOs(conflicts []scheduler.Conflict) []conflictDTO {
	out := make([]conflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, conflictDTO{
			Type:          string(c.Type),
			ResourceID:    c.ResourceID,
			WithID:        c.WithID,
			WithStartTime: c.WithStartTime,
			Description:   c.Description(),
		})
	}
	return out
}

type previewResponse struct {
	Conflicts []conflictDTO `json:"conflicts"`
}

type cancelResponse struct {
	Activity       activityDTO `json:"activity"`
	WithoutPenalty bool        `json:"without_penalty"`
}
