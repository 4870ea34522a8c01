package activity

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/music-school-scheduler/internal/scheduler"
)

// ErrInvalidBooking is returned when room booking attributes are malformed.
var ErrInvalidBooking = errors.New("activity: invalid room booking")

// DefaultPurpose is used when a booking is created without a purpose.
const DefaultPurpose = "Practice"

// RoomBooking is a room rented by a student, for practice or rehearsal.
type RoomBooking struct {
	Common
	StudentID  string
	HourlyRate decimal.Decimal
	Purpose    string
	Paid       bool
}

// BookingParams carries the attributes of a new room booking.
type BookingParams struct {
	ID              string
	StudentID       string
	RoomID          string
	Start           time.Time
	DurationMinutes int
	HourlyRate      decimal.Decimal
	Purpose         string
	Now             time.Time
}

// NewRoomBooking builds a scheduled room booking.
func NewRoomBooking(p BookingParams) (*RoomBooking, error) {
	if p.StudentID == "" {
		return nil, fmt.Errorf("%w: student is required", ErrInvalidBooking)
	}
	if p.RoomID == "" {
		return nil, fmt.Errorf("%w: room is required", ErrInvalidBooking)
	}
	if p.HourlyRate.IsNegative() {
		return nil, fmt.Errorf("%w: hourly rate must not be negative", ErrInvalidBooking)
	}
	if p.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", scheduler.ErrInvalidInterval)
	}

	id := p.ID
	if id == "" {
		id = NewID(KindRoomBooking)
	}
	purpose := p.Purpose
	if purpose == "" {
		purpose = DefaultPurpose
	}
	return &RoomBooking{
		Common:     newCommon(id, p.Start, p.DurationMinutes, p.RoomID, p.Now),
		StudentID:  p.StudentID,
		HourlyRate: p.HourlyRate,
		Purpose:    purpose,
	}, nil
}

func (*RoomBooking) sealed() {}

// Kind implements Activity.
func (*RoomBooking) Kind() Kind { return KindRoomBooking }

// Label implements Activity.
func (*RoomBooking) Label() string { return "Room Booking" }

// Cost is the hourly rate prorated over the booked minutes.
func (b *RoomBooking) Cost() decimal.Decimal {
	return b.HourlyRate.Mul(decimal.NewFromInt(int64(b.DurationMinutes))).Div(decimal.NewFromInt(60)).Round(2)
}

// MarkPaid records payment of the booking.
func (b *RoomBooking) MarkPaid(now time.Time) {
	b.Paid = true
	b.UpdatedAt = now
}

// Occupies implements Activity.
func (b *RoomBooking) Occupies() []scheduler.ResourceKey {
	return []scheduler.ResourceKey{{Kind: scheduler.ResourceRoom, ID: b.RoomID}}
}

// ConflictParties implements Activity. Room bookings are only checked
// against the room.
func (b *RoomBooking) ConflictParties() (string, []string) {
	return "", nil
}

// HourCharges implements Activity. Room bookings are billed by rate, not
// against purchased hours.
func (b *RoomBooking) HourCharges() ([]string, int) {
	return nil, 0
}

// Clone implements Activity.
func (b *RoomBooking) Clone() Activity {
	return b.CloneBooking()
}

// CloneBooking returns a copy with the concrete type.
func (b *RoomBooking) CloneBooking() *RoomBooking {
	cp := *b
	return &cp
}
