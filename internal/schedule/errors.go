package schedule

import (
	"errors"
	"fmt"

	"timecast/internal/alarm"
)

var (
	// ErrConflict rejects an event overlapping another on the same day.
	ErrConflict = errors.New("time conflict with another event")
	// ErrNotFound is returned for an unknown event id.
	ErrNotFound = errors.New("event not found")
)

// ValidationError reports bad user input. No state is mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConflictError wraps ErrConflict with the event that was hit.
type ConflictError struct {
	With string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s (%s)", ErrConflict, e.With)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// AlarmError means the event was saved but its reminder could not be
// scheduled.
type AlarmError struct {
	EventID string
	Err     error
}

func (e *AlarmError) Error() string {
	return "event saved, but reminder not scheduled: " + e.Err.Error()
}

func (e *AlarmError) Unwrap() error { return e.Err }

// UserMessage turns any error from this package into the short message
// shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var ve *ValidationError
	var ae *AlarmError
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, ErrConflict):
		return "Time conflict with another event!"
	case errors.Is(err, ErrNotFound):
		return "Event not found"
	case errors.As(err, &ae):
		if errors.Is(ae.Err, alarm.ErrPermissionDenied) {
			return "Event saved. Cannot schedule exact alarms; enable the permission in settings."
		}
		return "Event saved, but the reminder could not be scheduled: " + ae.Err.Error()
	default:
		return "Error saving event: " + err.Error()
	}
}
