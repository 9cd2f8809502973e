package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event is a titled, timed activity on a single calendar day.
//
// ID is assigned once at creation and never reassigned. Start and End are
// absolute timestamps on the same calendar day as Date, with End > Start.
type Event struct {
	ID          string
	Title       string
	Description string

	// Date is the calendar day the event belongs to. Some code paths carry
	// a time-of-day on it; use DayKey when comparing days.
	Date  time.Time
	Start time.Time
	End   time.Time

	Type     EventType
	Location string

	ReminderLead ReminderLead
}

// FormattedTimeRange renders "HH:MM - HH:MM" in 24-hour time.
func (e Event) FormattedTimeRange() string {
	return e.Start.Format("15:04") + " - " + e.End.Format("15:04")
}

// DurationMinutes is the truncated number of whole minutes from Start to End.
func (e Event) DurationMinutes() int {
	return int(e.End.Sub(e.Start) / time.Minute)
}

// StartOffsetMinutes is the number of minutes since local midnight of Start.
func (e Event) StartOffsetMinutes() int {
	return MinutesOfDay(e.Start)
}

// EndOffsetMinutes is the number of minutes since local midnight of End.
func (e Event) EndOffsetMinutes() int {
	return MinutesOfDay(e.End)
}

// MinutesOfDay returns hour*60 + minute of t in its own location.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// EventType is the category label from a fixed option set.
type EventType string

const (
	TypeWork     EventType = "Work"
	TypePersonal EventType = "Personal"
	TypeFamily   EventType = "Family"
	TypeOutdoor  EventType = "Outdoor"
	TypeOther    EventType = "Other"
)

// EventTypes lists the selectable categories in display order.
var EventTypes = []EventType{TypeWork, TypePersonal, TypeFamily, TypeOutdoor, TypeOther}

// ParseEventType matches case-insensitively against EventTypes.
// An empty string selects the first option, like an untouched picker.
func ParseEventType(s string) (EventType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return EventTypes[0], nil
	}
	for _, t := range EventTypes {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// ReminderLead is the number of minutes before Start at which a reminder fires.
type ReminderLead int

const (
	ReminderNone  ReminderLead = 0
	Reminder5Min  ReminderLead = 5
	Reminder10Min ReminderLead = 10
	Reminder30Min ReminderLead = 30
	Reminder1Hour ReminderLead = 60
)

// ReminderLeads lists the options in picker order.
var ReminderLeads = []ReminderLead{ReminderNone, Reminder5Min, Reminder10Min, Reminder30Min, Reminder1Hour}

var reminderLabels = map[ReminderLead]string{
	ReminderNone:  "None",
	Reminder5Min:  "5 minutes before",
	Reminder10Min: "10 minutes before",
	Reminder30Min: "30 minutes before",
	Reminder1Hour: "1 hour before",
}

func (r ReminderLead) Valid() bool {
	_, ok := reminderLabels[r]
	return ok
}

func (r ReminderLead) String() string {
	if l, ok := reminderLabels[r]; ok {
		return l
	}
	return strconv.Itoa(int(r)) + " minutes before"
}

// Duration converts the lead to a time.Duration.
func (r ReminderLead) Duration() time.Duration {
	return time.Duration(r) * time.Minute
}

// ParseReminderLead accepts either a picker label ("30 minutes before") or a
// bare minute count ("30"). Empty input means no reminder.
func ParseReminderLead(s string) (ReminderLead, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ReminderNone, nil
	}
	for lead, label := range reminderLabels {
		if strings.EqualFold(label, s) {
			return lead, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unknown reminder option %q", s)
	}
	lead := ReminderLead(n)
	if !lead.Valid() {
		return 0, fmt.Errorf("unsupported reminder lead %d minutes", n)
	}
	return lead, nil
}
