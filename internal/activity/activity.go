// Package activity models the scheduled entities of the school (lessons and
// room bookings) and the lifecycle every one of them follows.
package activity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/music-school-scheduler/internal/scheduler"
)

// PenaltyWindow is how long before the start an activity can still be
// cancelled or moved for free.
const PenaltyWindow = 24 * time.Hour

// ErrInvalidStateTransition is returned when a lifecycle operation is not
// allowed from the activity's current status.
var ErrInvalidStateTransition = errors.New("activity: invalid state transition")

// Kind tags the concrete activity variant.
type Kind string

const (
	// KindLesson tags *Lesson values.
	KindLesson Kind = "lesson"
	// KindRoomBooking tags *RoomBooking values.
	KindRoomBooking Kind = "room_booking"
)

// Prefix returns the identifier prefix of the kind.
func (k Kind) Prefix() string {
	switch k {
	case KindLesson:
		return "LES"
	case KindRoomBooking:
		return "BKG"
	default:
		return "ACT"
	}
}

// Activity is implemented by *Lesson and *RoomBooking only.
type Activity interface {
	Kind() Kind
	// Label is the display name of the variant.
	Label() string
	Base() Common
	Interval() scheduler.Interval
	// Occupies lists the calendars the activity holds while scheduled.
	Occupies() []scheduler.ResourceKey
	// ConflictParties names the teacher and students whose other lessons
	// must not overlap the activity.
	ConflictParties() (teacherID string, studentIDs []string)
	// HourCharges lists the students billed when the activity consumes hours
	// and the whole hours charged to each of them.
	HourCharges() (studentIDs []string, hours int)
	Begin(now time.Time) error
	Complete(now time.Time) error
	Cancel(now time.Time) (withoutPenalty bool, err error)
	CanReschedule(now time.Time) bool
	Reschedule(now, start time.Time) error
	Clone() Activity

	sealed()
}

// NewID returns a fresh identifier such as "LES-1A2B3C4D".
func NewID(kind Kind) string {
	return FormatID(kind, RandomSuffix())
}

// FormatID joins the kind prefix and suffix.
func FormatID(kind Kind, suffix string) string {
	return kind.Prefix() + "-" + suffix
}

// RandomSuffix returns eight upper-case hex characters taken from a random UUID.
func RandomSuffix() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

// KindOf infers the variant from an identifier prefix.
func KindOf(id string) (Kind, bool) {
	switch {
	case strings.HasPrefix(id, KindLesson.Prefix()+"-"):
		return KindLesson, true
	case strings.HasPrefix(id, KindRoomBooking.Prefix()+"-"):
		return KindRoomBooking, true
	default:
		return "", false
	}
}

// Common holds the attributes and lifecycle shared by every activity.
type Common struct {
	ID              string
	ScheduledAt     time.Time
	DurationMinutes int
	Status          Status
	RoomID          string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func newCommon(id string, start time.Time, minutes int, roomID string, now time.Time) Common {
	return Common{
		ID:              id,
		ScheduledAt:     start,
		DurationMinutes: minutes,
		Status:          StatusScheduled,
		RoomID:          roomID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Base returns a copy of the shared attributes.
func (c Common) Base() Common { return c }

// EndsAt returns the exclusive end of the activity.
func (c Common) EndsAt() time.Time {
	return c.ScheduledAt.Add(time.Duration(c.DurationMinutes) * time.Minute)
}

// Interval returns the booked range. A zero interval is returned for
// records with a non-positive duration.
func (c Common) Interval() scheduler.Interval {
	interval, err := scheduler.IntervalFor(c.ScheduledAt, c.DurationMinutes)
	if err != nil {
		return scheduler.Interval{}
	}
	return interval
}

// CanCancelWithoutPenalty reports whether now is strictly more than the
// penalty window before the start. The boundary instant is billed.
func (c Common) CanCancelWithoutPenalty(now time.Time) bool {
	return now.Add(PenaltyWindow).Before(c.ScheduledAt)
}

// CanReschedule reports whether the activity may still be moved.
func (c Common) CanReschedule(now time.Time) bool {
	return c.Status == StatusScheduled && c.CanCancelWithoutPenalty(now)
}

// Begin moves a scheduled activity into progress.
func (c *Common) Begin(now time.Time) error {
	if c.Status != StatusScheduled {
		return c.transitionError("begin")
	}
	c.Status = StatusInProgress
	c.UpdatedAt = now
	return nil
}

// Complete marks a scheduled or in-progress activity as completed.
func (c *Common) Complete(now time.Time) error {
	if c.Status.IsFinalized() {
		return c.transitionError("complete")
	}
	c.Status = StatusCompleted
	c.UpdatedAt = now
	return nil
}

// Cancel finalizes the activity. Cancelling inside the penalty window records
// a no-show, which is billed like a completed activity.
func (c *Common) Cancel(now time.Time) (bool, error) {
	if c.Status.IsFinalized() {
		return false, c.transitionError("cancel")
	}
	withoutPenalty := c.CanCancelWithoutPenalty(now)
	if withoutPenalty {
		c.Status = StatusCancelled
	} else {
		c.Status = StatusNoShow
	}
	c.UpdatedAt = now
	return withoutPenalty, nil
}

// Reschedule moves the start time. It is only allowed while the activity is
// scheduled and outside the penalty window of its current start.
func (c *Common) Reschedule(now, start time.Time) error {
	if c.Status != StatusScheduled {
		return c.transitionError("reschedule")
	}
	if !c.CanCancelWithoutPenalty(now) {
		return fmt.Errorf("%w: %s starts within %s", ErrInvalidStateTransition, c.ID, PenaltyWindow)
	}
	c.ScheduledAt = start
	c.UpdatedAt = now
	return nil
}

func (c Common) transitionError(op string) error {
	return fmt.Errorf("%w: cannot %s %s in status %s", ErrInvalidStateTransition, op, c.ID, c.Status)
}

// Summary renders a one-line description used in logs and listings.
func Summary(a Activity) string {
	base := a.Base()
	return fmt.Sprintf("[%s] %s - %s (%s)", base.ID, a.Label(), base.ScheduledAt.Format("2006-01-02 15:04"), base.Status.DisplayName())
}
