package ics

import (
	"strings"
	"testing"
	"time"

	"timecast/internal/model"
)

const feed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:weekly@test
DTSTAMP:20240101T000000Z
DTSTART:20240101T090000Z
DTEND:20240101T100000Z
RRULE:FREQ=WEEKLY;COUNT=4
EXDATE:20240108T090000Z
SUMMARY:Weekly sync
CATEGORIES:Work
END:VEVENT
BEGIN:VEVENT
UID:weekly@test
DTSTAMP:20240101T000000Z
RECURRENCE-ID:20240115T090000Z
DTSTART:20240115T140000Z
DTEND:20240115T150000Z
SUMMARY:Weekly sync (moved)
END:VEVENT
BEGIN:VEVENT
UID:holiday@test
DTSTAMP:20240101T000000Z
DTSTART;VALUE=DATE:20240102
DTEND;VALUE=DATE:20240103
SUMMARY:Holiday
END:VEVENT
BEGIN:VEVENT
UID:late@test
DTSTAMP:20240101T000000Z
DTSTART:20240103T230000Z
DTEND:20240104T010000Z
SUMMARY:Overnight
END:VEVENT
END:VCALENDAR
`

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func januaryRange() ExpandConfig {
	return ExpandConfig{
		Location:   time.UTC,
		RangeStart: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestParseICS(t *testing.T) {
	events, err := ParseICS(Source{ID: "t"}, crlf(feed), time.UTC)
	if err != nil {
		t.Fatalf("ParseICS error: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}

	base := events[0]
	if base.RawRRule == "" || len(base.ExDates) != 1 || base.IsOverride() {
		t.Fatalf("unexpected base event %+v", base)
	}
	if len(base.Categories) != 1 || base.Categories[0] != "Work" {
		t.Fatalf("categories = %v", base.Categories)
	}
	if !events[1].IsOverride() {
		t.Fatalf("second VEVENT should be an override")
	}
	if !events[2].AllDay || events[3].AllDay {
		t.Fatalf("all-day detection wrong: %v %v", events[2].AllDay, events[3].AllDay)
	}
}

func TestParseICSRejectsEmpty(t *testing.T) {
	if _, err := ParseICS(Source{}, nil, time.UTC); err == nil {
		t.Fatalf("expected error for empty body")
	}
}

func TestExpandOccurrences(t *testing.T) {
	events, err := ParseICS(Source{ID: "t"}, crlf(feed), time.UTC)
	if err != nil {
		t.Fatalf("ParseICS error: %v", err)
	}
	res, err := ExpandOccurrences(events, januaryRange())
	if err != nil {
		t.Fatalf("ExpandOccurrences error: %v", err)
	}

	var weekly []Occurrence
	for _, o := range res.Occurrences {
		if o.UID == "weekly@test" {
			weekly = append(weekly, o)
		}
	}
	// COUNT=4 minus one EXDATE.
	if len(weekly) != 3 {
		t.Fatalf("got %d weekly occurrences, want 3", len(weekly))
	}
	moved := weekly[1]
	if moved.Summary != "Weekly sync (moved)" || moved.Start.Hour() != 14 {
		t.Fatalf("override not applied: %+v", moved)
	}
	if moved.InstanceKey != "2024-01-15T09:00:00Z" {
		t.Fatalf("override instance key = %q", moved.InstanceKey)
	}
	if len(res.Truncated) != 0 {
		t.Fatalf("unexpected truncation %v", res.Truncated)
	}
}

func TestExpandCap(t *testing.T) {
	events, _ := ParseICS(Source{ID: "t"}, crlf(feed), time.UTC)
	cfg := januaryRange()
	cfg.MaxOccurrences = 1
	res, err := ExpandOccurrences(events, cfg)
	if err != nil {
		t.Fatalf("ExpandOccurrences error: %v", err)
	}
	if len(res.Truncated) != 1 || res.Truncated[0] != "weekly@test" {
		t.Fatalf("Truncated = %v", res.Truncated)
	}
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	cfg := januaryRange()
	cfg.RangeStart, cfg.RangeEnd = cfg.RangeEnd, cfg.RangeStart
	if _, err := ExpandOccurrences(nil, cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestReadEventsSkipsAllDayAndOvernight(t *testing.T) {
	events, err := ReadEvents(Source{ID: "t"}, crlf(feed), januaryRange())
	if err != nil {
		t.Fatalf("ReadEvents error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for _, ev := range events {
		if ev.Title == "Holiday" || ev.Title == "Overnight" {
			t.Fatalf("%q should have been skipped", ev.Title)
		}
	}
	if events[0].Type != model.TypeWork || events[1].Type != model.TypeOther {
		t.Fatalf("types = %s, %s", events[0].Type, events[1].Type)
	}
	if want := EventID("weekly@test", "2024-01-15T09:00:00Z"); events[1].ID != want {
		t.Fatalf("override id = %s, want %s", events[1].ID, want)
	}

	again, _ := ReadEvents(Source{ID: "t"}, crlf(feed), januaryRange())
	if again[0].ID != events[0].ID {
		t.Fatalf("ids must be stable across imports")
	}
}

func TestParseICSHonorsTZID(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	body := crlf(`BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:tz@test
DTSTAMP:20240101T000000Z
DTSTART;TZID=Europe/Berlin:20240601T100000
DTEND;TZID=Europe/Berlin:20240601T110000
SUMMARY:Berlin
END:VEVENT
END:VCALENDAR
`)
	events, err := ParseICS(Source{}, body, time.UTC)
	if err != nil {
		t.Fatalf("ParseICS error: %v", err)
	}
	want := time.Date(2024, time.June, 1, 10, 0, 0, 0, berlin)
	if !events[0].Start.Equal(want) {
		t.Fatalf("Start = %v, want %v", events[0].Start, want)
	}
}

func TestExportRoundTrip(t *testing.T) {
	day := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	events := []model.Event{{
		ID:           "ev-1",
		Title:        "Standup",
		Description:  "daily",
		Date:         day,
		Start:        day.Add(9 * time.Hour),
		End:          day.Add(9*time.Hour + 15*time.Minute),
		Type:         model.TypeFamily,
		Location:     "Kitchen",
		ReminderLead: model.Reminder30Min,
	}}

	out := Export(events, day)
	for _, want := range []string{"BEGIN:VEVENT", "UID:ev-1", "SUMMARY:Standup", "CATEGORIES:Family", "TRIGGER:-PT30M"} {
		if !strings.Contains(out, want) {
			t.Fatalf("export missing %q:\n%s", want, out)
		}
	}

	cfg := ExpandConfig{Location: time.UTC, RangeStart: day, RangeEnd: day.AddDate(0, 0, 1)}
	back, err := ReadEvents(Source{ID: "export"}, []byte(out), cfg)
	if err != nil {
		t.Fatalf("ReadEvents error: %v", err)
	}
	if len(back) != 1 {
		t.Fatalf("got %d events back", len(back))
	}
	got := back[0]
	if got.Title != "Standup" || got.Location != "Kitchen" || got.Type != model.TypeFamily {
		t.Fatalf("unexpected round trip %+v", got)
	}
	if got.ReminderLead != model.Reminder30Min {
		t.Fatalf("reminder lead = %v, want %v", got.ReminderLead, model.Reminder30Min)
	}
	if !got.Start.Equal(events[0].Start) || !got.End.Equal(events[0].End) {
		t.Fatalf("times changed: %v-%v", got.Start, got.End)
	}
}

func TestParseTriggerBefore(t *testing.T) {
	for in, want := range map[string]time.Duration{
		"-PT30M":   30 * time.Minute,
		"-PT1H":    time.Hour,
		"-pt5m":    5 * time.Minute,
		"-P1DT2H":  26 * time.Hour,
		"-PT0S":    0,
		"-PT1H10M": 70 * time.Minute,
	} {
		got, err := parseTriggerBefore(in)
		if err != nil || got != want {
			t.Fatalf("parseTriggerBefore(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, in := range []string{"PT15M", "-P1H", "-PT", "-PTM", "20240101T090000Z"} {
		if _, err := parseTriggerBefore(in); err == nil {
			t.Fatalf("parseTriggerBefore(%q) should fail", in)
		}
	}
}

func TestValarmLeadOnImport(t *testing.T) {
	body := crlf(`BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:hour@test
DTSTAMP:20240101T000000Z
DTSTART:20240102T090000Z
DTEND:20240102T100000Z
SUMMARY:Hour ahead
BEGIN:VALARM
ACTION:DISPLAY
TRIGGER:-PT1H
END:VALARM
END:VEVENT
BEGIN:VEVENT
UID:odd@test
DTSTAMP:20240101T000000Z
DTSTART:20240102T110000Z
DTEND:20240102T120000Z
SUMMARY:Odd lead
BEGIN:VALARM
ACTION:DISPLAY
TRIGGER;RELATED=END:-PT10M
END:VALARM
BEGIN:VALARM
ACTION:DISPLAY
TRIGGER:-PT7M
END:VALARM
END:VEVENT
END:VCALENDAR
`)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	cfg := ExpandConfig{Location: time.UTC, RangeStart: day, RangeEnd: day.AddDate(0, 0, 1)}
	events, err := ReadEvents(Source{ID: "alarms"}, body, cfg)
	if err != nil {
		t.Fatalf("ReadEvents error: %v", err)
	}
	leads := map[string]model.ReminderLead{}
	for _, ev := range events {
		leads[ev.Title] = ev.ReminderLead
	}
	if leads["Hour ahead"] != model.Reminder1Hour || leads["Odd lead"] != model.ReminderNone || len(leads) != 2 {
		t.Fatalf("unexpected leads %v", leads)
	}
}
