package school

import "time"

// CoursePackage is a bundle of lesson hours purchased by a student.
type CoursePackage struct {
	ID         string
	Student    string
	Instrument string
	TotalHours int
	Active     bool
	// ExpiresAt is the zero time for packages that never expire.
	ExpiresAt time.Time
}

// StudentID returns the owning student.
func (p *CoursePackage) StudentID() string { return p.Student }

// IsExpired reports whether the package expired before now.
func (p *CoursePackage) IsExpired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// IsValid reports whether lessons can still be linked to the package.
func (p *CoursePackage) IsValid(now time.Time) bool {
	return p.Active && !p.IsExpired(now)
}
