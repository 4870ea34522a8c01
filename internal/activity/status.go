package activity

import "fmt"

// Status is the lifecycle state of a scheduled activity.
type Status string

const (
	// StatusScheduled is the initial state.
	StatusScheduled Status = "scheduled"
	// StatusInProgress marks an activity that has started.
	StatusInProgress Status = "in_progress"
	// StatusCompleted marks an activity that took place.
	StatusCompleted Status = "completed"
	// StatusCancelled marks an activity cancelled early enough to be free.
	StatusCancelled Status = "cancelled"
	// StatusNoShow marks a missed activity or a late cancellation; both are billed.
	StatusNoShow Status = "no_show"
)

// IsFinalized reports whether no further transitions are possible.
func (s Status) IsFinalized() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	default:
		return false
	}
}

// ConsumesHours reports whether the status is billed against purchased hours.
func (s Status) ConsumesHours() bool {
	return s == StatusCompleted || s == StatusNoShow
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	default:
		return false
	}
}

// DisplayName returns the human readable status label.
func (s Status) DisplayName() string {
	switch s {
	case StatusScheduled:
		return "Scheduled"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	case StatusNoShow:
		return "No Show"
	default:
		return string(s)
	}
}

// ParseStatus converts a stored value back into a Status.
func ParseStatus(value string) (Status, error) {
	s := Status(value)
	if !s.Valid() {
		return "", fmt.Errorf("activity: unknown status %q", value)
	}
	return s, nil
}
