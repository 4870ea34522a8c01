package school

import (
	"slices"
	"sync"
	"time"
)

// Room is a bookable practice or teaching room.
type Room struct {
	ID       string
	Name     string
	Capacity int

	mu                  sync.RWMutex
	available           bool
	underMaintenance    bool
	suitableInstruments []string
}

// NewRoom returns an available room.
func NewRoom(id, name string, capacity int, suitableInstruments []string) *Room {
	return &Room{
		ID:                  id,
		Name:                name,
		Capacity:            capacity,
		available:           true,
		suitableInstruments: slices.Clone(suitableInstruments),
	}
}

// IsAvailable reports the room's available flag.
func (r *Room) IsAvailable() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.available
}

// SetAvailable toggles the available flag.
func (r *Room) SetAvailable(available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.available = available
}

// IsUnderMaintenance reports whether the room is closed for maintenance.
func (r *Room) IsUnderMaintenance() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.underMaintenance
}

// SetUnderMaintenance toggles maintenance.
func (r *Room) SetUnderMaintenance(maintenance bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.underMaintenance = maintenance
}

// IsAvailableAt reports whether the room may be used for the slot. Bookings
// held against the room are not consulted here.
func (r *Room) IsAvailableAt(_ time.Time, minutes int) bool {
	if minutes <= 0 {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.available && !r.underMaintenance
}

// IsSuitableFor reports whether the instrument can be played in the room. A
// room without a list accepts every instrument.
func (r *Room) IsSuitableFor(instrument string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.suitableInstruments) == 0 {
		return true
	}
	return containsFold(r.suitableInstruments, instrument)
}
