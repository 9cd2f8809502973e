package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "timecast/internal/log"
	"timecast/internal/model"
)

// ParsedEvent is one VEVENT before recurrence expansion.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary     string
	Description string
	Location    string
	Categories  []string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
	ExDates  []time.Time

	// RecurrenceID is set on overrides of a single recurring instance.
	RecurrenceID *time.Time

	// ReminderLead comes from the first VALARM whose trigger matches a
	// reminder option.
	ReminderLead model.ReminderLead
}

// IsOverride reports whether ev replaces one instance of a recurring event.
func (ev ParsedEvent) IsOverride() bool { return ev.RecurrenceID != nil }

// ParseICS parses a payload into VEVENTs. Broken VEVENTs are logged and
// skipped; a broken calendar fails as a whole.
//
// Floating times (no TZID, no Z suffix) are read in loc.
func ParseICS(src Source, body []byte, loc *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID)
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	var events []ParsedEvent
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(src, ve, loc)
		if err != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "reason", err.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	out.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	if out.UID == "" {
		return out, errors.New("missing UID")
	}
	if n, err := strconv.Atoi(propValue(ve, ical.ComponentPropertySequence)); err == nil {
		out.Seq = n
	}

	out.Summary = propValue(ve, ical.ComponentPropertySummary)
	out.Description = propValue(ve, ical.ComponentPropertyDescription)
	out.Location = propValue(ve, ical.ComponentPropertyLocation)
	for _, c := range strings.Split(propValue(ve, ical.ComponentPropertyCategories), ",") {
		if c = strings.TrimSpace(c); c != "" {
			out.Categories = append(out.Categories, c)
		}
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, allDay, err := propTime(dtStart, loc)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start
	out.AllDay = allDay

	switch {
	case ve.GetProperty(ical.ComponentPropertyDtEnd) != nil:
		end, _, err := propTime(ve.GetProperty(ical.ComponentPropertyDtEnd), loc)
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		out.End = end
	case allDay:
		out.End = start.AddDate(0, 0, 1)
	default:
		// RFC 5545: a timed event without DTEND or DURATION is instantaneous.
		out.End = start
	}
	if out.End.Before(out.Start) {
		return out, errors.New("DTEND before DTSTART")
	}

	out.RawRRule = propValue(ve, ical.ComponentPropertyRrule)

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, tzLocation(p, loc)); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); rid != nil {
		if t, _, err := propTime(rid, loc); err == nil {
			out.RecurrenceID = &t
		}
	}

	out.ReminderLead = reminderLead(ve)
	return out, nil
}

// reminderLead reads VALARM triggers relative to the start. Absolute
// triggers, triggers relative to the end and leads that are not a reminder
// option are ignored.
func reminderLead(ve *ical.VEvent) model.ReminderLead {
	for _, c := range ve.Components {
		a, ok := c.(*ical.VAlarm)
		if !ok {
			continue
		}
		p := a.GetProperty(ical.ComponentPropertyTrigger)
		if p == nil {
			continue
		}
		if rel := p.ICalParameters["RELATED"]; len(rel) > 0 && strings.EqualFold(rel[0], "END") {
			continue
		}
		before, err := parseTriggerBefore(p.Value)
		if err != nil {
			appLog.Debug("ics valarm ignored", "trigger", p.Value, "reason", err.Error())
			continue
		}
		for _, lead := range model.ReminderLeads {
			if lead > 0 && lead.Duration() == before {
				return lead
			}
		}
	}
	return model.ReminderNone
}

// parseTriggerBefore decodes a negative duration such as -PT30M, -PT1H or
// -P1DT2H into how long before the start the alarm fires.
func parseTriggerBefore(v string) (time.Duration, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if !strings.HasPrefix(v, "-P") {
		return 0, fmt.Errorf("trigger %q does not fire before the start", v)
	}

	var d time.Duration
	inTime := false
	num := ""
	parts := 0
	for _, r := range v[2:] {
		if r >= '0' && r <= '9' {
			num += string(r)
			continue
		}
		if r == 'T' && num == "" && !inTime {
			inTime = true
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return 0, fmt.Errorf("malformed duration %q", v)
		}
		num = ""
		var unit time.Duration
		switch {
		case !inTime && r == 'W':
			unit = 7 * 24 * time.Hour
		case !inTime && r == 'D':
			unit = 24 * time.Hour
		case inTime && r == 'H':
			unit = time.Hour
		case inTime && r == 'M':
			unit = time.Minute
		case inTime && r == 'S':
			unit = time.Second
		default:
			return 0, fmt.Errorf("malformed duration %q", v)
		}
		d += time.Duration(n) * unit
		parts++
	}
	if num != "" || parts == 0 {
		return 0, fmt.Errorf("malformed duration %q", v)
	}
	return d, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

// propTime decodes a DATE or DATE-TIME property, honoring its TZID.
func propTime(p *ical.IANAProperty, loc *time.Location) (time.Time, bool, error) {
	allDay := !strings.Contains(p.Value, "T")
	if vs := p.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		allDay = true
	}
	t, err := parseICSTime(p.Value, tzLocation(p, loc))
	return t, allDay, err
}

func tzLocation(p *ical.IANAProperty, fallback *time.Location) *time.Location {
	if tz := p.ICalParameters["TZID"]; len(tz) > 0 {
		if l, err := time.LoadLocation(strings.Trim(tz[0], `"`)); err == nil {
			return l
		}
	}
	return fallback
}

// parseICSTime handles the three basic forms: UTC date-time, floating
// date-time and date.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
