package school

import "sync"

type packageHours struct {
	packageID string
	remaining int
}

// Student is an enrolled student together with the purchased hour ledger.
type Student struct {
	ID   string
	Name string

	mu       sync.Mutex
	active   bool
	ledger   []packageHours
	consumed int
}

// NewStudent returns an active student without purchased hours.
func NewStudent(id, name string) *Student {
	return &Student{ID: id, Name: name, active: true}
}

// IsActive reports whether the student can be scheduled.
func (s *Student) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActive toggles the active flag.
func (s *Student) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

// AddPackageHours credits hours purchased through a package. Hours for a
// package already in the ledger are added to its balance.
func (s *Student) AddPackageHours(packageID string, hours int) {
	if hours <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ledger {
		if s.ledger[i].packageID == packageID {
			s.ledger[i].remaining += hours
			return
		}
	}
	s.ledger = append(s.ledger, packageHours{packageID: packageID, remaining: hours})
}

// RemainingHours is the unconsumed balance across all packages.
func (s *Student) RemainingHours() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked()
}

// PackageHours returns the remaining balance of one package.
func (s *Student) PackageHours(packageID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.ledger {
		if entry.packageID == packageID {
			return entry.remaining
		}
	}
	return 0
}

// ConsumedHours is the total charged so far.
func (s *Student) ConsumedHours() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumed
}

// ConsumeHours deducts hours from the oldest packages first. It returns false
// and leaves the ledger untouched when the balance is insufficient.
func (s *Student) ConsumeHours(hours int) bool {
	if hours <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.remainingLocked() < hours {
		return false
	}
	left := hours
	for i := range s.ledger {
		if left == 0 {
			break
		}
		take := min(s.ledger[i].remaining, left)
		s.ledger[i].remaining -= take
		left -= take
	}
	s.consumed += hours
	return true
}

func (s *Student) remainingLocked() int {
	total := 0
	for _, entry := range s.ledger {
		total += entry.remaining
	}
	return total
}
