package schedule

import (
	"strings"
	"time"

	"timecast/internal/model"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Input is the raw text collected by a creation or edit form.
type Input struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Type        string `json:"type"`
	Location    string `json:"location"`
	Reminder    string `json:"reminder"`
}

// fields is the validated form of an Input.
type fields struct {
	title       string
	description string
	date        time.Time
	start       time.Time
	end         time.Time
	typ         model.EventType
	location    string
	lead        model.ReminderLead
}

// parse validates in and builds absolute times on the given day in loc.
func (in Input) parse(loc *time.Location) (fields, error) {
	var f fields

	f.title = strings.TrimSpace(in.Title)
	dateStr := strings.TrimSpace(in.Date)
	startStr := strings.TrimSpace(in.Start)
	endStr := strings.TrimSpace(in.End)
	if f.title == "" || dateStr == "" || startStr == "" || endStr == "" {
		return f, &ValidationError{Reason: "Please fill all required fields"}
	}

	date, err := time.ParseInLocation(DateLayout, dateStr, loc)
	if err != nil {
		return f, invalid("date", "invalid date %q, expected yyyy-MM-dd", dateStr)
	}
	startMin, err := ParseClock(startStr)
	if err != nil {
		return f, invalid("start", "%v", err)
	}
	endMin, err := ParseClock(endStr)
	if err != nil {
		return f, invalid("end", "%v", err)
	}

	f.date = date
	f.start = AtMinutes(date, startMin)
	f.end = AtMinutes(date, endMin)
	if !f.end.After(f.start) {
		return f, invalid("end", "End time must be after start time")
	}

	f.typ, err = model.ParseEventType(in.Type)
	if err != nil {
		return f, invalid("type", "%v", err)
	}
	f.lead, err = model.ParseReminderLead(in.Reminder)
	if err != nil {
		return f, invalid("reminder", "%v", err)
	}

	f.description = strings.TrimSpace(in.Description)
	f.location = strings.TrimSpace(in.Location)
	return f, nil
}

// InputFromEvent renders ev back into form fields, e.g. to prefill an edit.
func InputFromEvent(ev model.Event) Input {
	return Input{
		Title:       ev.Title,
		Description: ev.Description,
		Date:        ev.Date.Format(DateLayout),
		Start:       ev.Start.Format(TimeLayout),
		End:         ev.End.Format(TimeLayout),
		Type:        string(ev.Type),
		Location:    ev.Location,
		Reminder:    ev.ReminderLead.String(),
	}
}
