package persistence

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/music-school-scheduler/internal/activity"
)

// ActivityRecord is the storage form of a lesson or room booking. Variant
// specific fields are empty for the other kind.
type ActivityRecord struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	RoomID          string    `json:"room_id,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	TeacherID  string   `json:"teacher_id,omitempty"`
	StudentIDs []string `json:"student_ids,omitempty"`
	Instrument string   `json:"instrument,omitempty"`
	PackageID  string   `json:"package_id,omitempty"`
	ServiceID  string   `json:"service_id,omitempty"`

	StudentID  string           `json:"student_id,omitempty"`
	HourlyRate *decimal.Decimal `json:"hourly_rate,omitempty"`
	Purpose    string           `json:"purpose,omitempty"`
	Paid       bool             `json:"paid,omitempty"`
}

// RecordFromActivity converts an activity into its storage form.
func RecordFromActivity(a activity.Activity) ActivityRecord {
	base := a.Base()
	record := ActivityRecord{
		ID:              base.ID,
		Kind:            string(a.Kind()),
		ScheduledAt:     base.ScheduledAt,
		DurationMinutes: base.DurationMinutes,
		Status:          string(base.Status),
		RoomID:          base.RoomID,
		Notes:           base.Notes,
		CreatedAt:       base.CreatedAt,
		UpdatedAt:       base.UpdatedAt,
	}
	switch v := a.(type) {
	case *activity.Lesson:
		record.TeacherID = v.TeacherID
		record.StudentIDs = slices.Clone(v.StudentIDs)
		record.Instrument = v.Instrument
		record.PackageID = v.PackageID
		record.ServiceID = v.ServiceID
	case *activity.RoomBooking:
		rate := v.HourlyRate
		record.StudentID = v.StudentID
		record.HourlyRate = &rate
		record.Purpose = v.Purpose
		record.Paid = v.Paid
	}
	return record
}

// Activity converts the record back into a lesson or room booking.
func (r ActivityRecord) Activity() (activity.Activity, error) {
	status, err := activity.ParseStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, r.ID, err)
	}
	if r.ID == "" || r.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: missing id or duration", ErrCorruptRecord)
	}

	common := activity.Common{
		ID:              r.ID,
		ScheduledAt:     r.ScheduledAt,
		DurationMinutes: r.DurationMinutes,
		Status:          status,
		RoomID:          r.RoomID,
		Notes:           r.Notes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}

	switch activity.Kind(r.Kind) {
	case activity.KindLesson:
		if r.TeacherID == "" || len(r.StudentIDs) == 0 {
			return nil, fmt.Errorf("%w: lesson %s without teacher or students", ErrCorruptRecord, r.ID)
		}
		return &activity.Lesson{
			Common:     common,
			TeacherID:  r.TeacherID,
			StudentIDs: slices.Clone(r.StudentIDs),
			Instrument: r.Instrument,
			PackageID:  r.PackageID,
			ServiceID:  r.ServiceID,
		}, nil
	case activity.KindRoomBooking:
		booking := &activity.RoomBooking{
			Common:    common,
			StudentID: r.StudentID,
			Purpose:   r.Purpose,
			Paid:      r.Paid,
		}
		if r.HourlyRate != nil {
			booking.HourlyRate = *r.HourlyRate
		}
		return booking, nil
	default:
		return nil, fmt.Errorf("%w: %s has unknown kind %q", ErrCorruptRecord, r.ID, r.Kind)
	}
}
