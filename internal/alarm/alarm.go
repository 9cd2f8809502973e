// Package alarm provides the one-shot exact alarm facility used for event
// reminders.
package alarm

import (
	"errors"
	"time"

	appLog "timecast/internal/log"
)

var (
	// ErrPermissionDenied means exact alarms are not allowed on this host.
	ErrPermissionDenied = errors.New("alarm: permission denied for exact alarms")
	// ErrSchedulingUnsupported means the facility cannot schedule at all,
	// e.g. it was never started or has been stopped.
	ErrSchedulingUnsupported = errors.New("alarm: exact alarm scheduling unsupported")
)

// Payload is delivered when the alarm fires. At is the fire time it was
// armed for.
type Payload struct {
	EventID     string
	Title       string
	Description string
	At          time.Time
}

// Same reports whether p and o would deliver the same reminder.
func (p Payload) Same(o Payload) bool {
	return p.EventID == o.EventID && p.Title == o.Title &&
		p.Description == o.Description && p.At.Equal(o.At)
}

// Scheduler schedules a single exact firing at an absolute time.
type Scheduler interface {
	ScheduleExactOneShot(at time.Time, p Payload) error
}

// Canceler is implemented by schedulers that can drop a pending alarm.
type Canceler interface {
	Cancel(eventID string)
}

// Lister is implemented by schedulers that can report what is armed,
// keyed by event id.
type Lister interface {
	Armed() map[string]Payload
}

// Disabled is a Scheduler that refuses every request.
type Disabled struct{}

func (Disabled) ScheduleExactOneShot(time.Time, Payload) error {
	return ErrSchedulingUnsupported
}

// Deferred accepts reminders without arming them. Short-lived commands use
// it; a running server picks the change up from the store on its next
// reminder sync.
type Deferred struct {
	Exact bool
}

func (d Deferred) ScheduleExactOneShot(at time.Time, p Payload) error {
	if !d.Exact {
		return ErrPermissionDenied
	}
	appLog.Debug("reminder deferred to server", "event_id", p.EventID, "at", at.Format(time.RFC3339))
	return nil
}
