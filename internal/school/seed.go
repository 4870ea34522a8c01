package school

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/music-school-scheduler/internal/availability"
)

type seedDocument struct {
	Teachers []seedTeacher `yaml:"teachers"`
	Students []seedStudent `yaml:"students"`
	Rooms    []seedRoom    `yaml:"rooms"`
}

type seedTeacher struct {
	ID              string       `yaml:"id"`
	Name            string       `yaml:"name"`
	Active          *bool        `yaml:"active"`
	Specializations []string     `yaml:"specializations"`
	Availability    []seedWindow `yaml:"availability"`
}

type seedWindow struct {
	Day   string `yaml:"day"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type seedStudent struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Active   *bool         `yaml:"active"`
	Packages []seedPackage `yaml:"packages"`
}

type seedPackage struct {
	ID         string    `yaml:"id"`
	Instrument string    `yaml:"instrument"`
	Hours      int       `yaml:"hours"`
	ExpiresAt  time.Time `yaml:"expires_at"`
}

type seedRoom struct {
	ID               string   `yaml:"id"`
	Name             string   `yaml:"name"`
	Capacity         int      `yaml:"capacity"`
	Instruments      []string `yaml:"instruments"`
	Available        *bool    `yaml:"available"`
	UnderMaintenance bool     `yaml:"under_maintenance"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// LoadSeedFile reads a YAML seed document from disk.
func LoadSeedFile(path string, loc *time.Location) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("school: open seed: %w", err)
	}
	defer f.Close()
	return LoadSeed(f, loc)
}

// LoadSeed builds a registry from a YAML seed document. Availability windows
// are interpreted in loc. Every malformed entry is reported.
func LoadSeed(r io.Reader, loc *time.Location) (*Registry, error) {
	var doc seedDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("school: decode seed: %w", err)
	}

	reg := NewRegistry()
	var errs []error

	for i, st := range doc.Teachers {
		if st.ID == "" {
			errs = append(errs, fmt.Errorf("teachers[%d]: id is required", i))
			continue
		}
		schedule := availability.NewSchedule(loc)
		for j, sw := range st.Availability {
			w, err := parseWindow(sw)
			if err != nil {
				errs = append(errs, fmt.Errorf("teachers[%d].availability[%d]: %w", i, j, err))
				continue
			}
			schedule.Add(w)
		}
		teacher := NewTeacher(st.ID, st.Name, st.Specializations, schedule)
		if st.Active != nil {
			teacher.SetActive(*st.Active)
		}
		reg.AddTeacher(teacher)
	}

	for i, ss := range doc.Students {
		if ss.ID == "" {
			errs = append(errs, fmt.Errorf("students[%d]: id is required", i))
			continue
		}
		student := NewStudent(ss.ID, ss.Name)
		if ss.Active != nil {
			student.SetActive(*ss.Active)
		}
		reg.AddStudent(student)
		for j, sp := range ss.Packages {
			if sp.ID == "" || sp.Hours < 0 {
				errs = append(errs, fmt.Errorf("students[%d].packages[%d]: id and non-negative hours are required", i, j))
				continue
			}
			pkg := &CoursePackage{
				ID:         sp.ID,
				Student:    ss.ID,
				Instrument: sp.Instrument,
				TotalHours: sp.Hours,
				Active:     true,
				ExpiresAt:  sp.ExpiresAt,
			}
			if err := reg.AddPackage(pkg); err != nil {
				errs = append(errs, fmt.Errorf("students[%d].packages[%d]: %w", i, j, err))
			}
		}
	}

	for i, sr := range doc.Rooms {
		if sr.ID == "" {
			errs = append(errs, fmt.Errorf("rooms[%d]: id is required", i))
			continue
		}
		room := NewRoom(sr.ID, sr.Name, sr.Capacity, sr.Instruments)
		if sr.Available != nil {
			room.SetAvailable(*sr.Available)
		}
		room.SetUnderMaintenance(sr.UnderMaintenance)
		reg.AddRoom(room)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("school: invalid seed: %w", errors.Join(errs...))
	}
	return reg, nil
}

func parseWindow(sw seedWindow) (availability.Window, error) {
	day, ok := weekdays[fold(sw.Day)]
	if !ok {
		return availability.Window{}, fmt.Errorf("unknown weekday %q", sw.Day)
	}
	start, err := availability.ParseClock(sw.Start)
	if err != nil {
		return availability.Window{}, err
	}
	end, err := availability.ParseClock(sw.End)
	if err != nil {
		return availability.Window{}, err
	}
	return availability.NewWindow(day, start, end)
}
