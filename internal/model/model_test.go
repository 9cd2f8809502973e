package model

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2024, time.March, 5, h, m, 0, 0, time.UTC)
}

func TestDerivedAccessors(t *testing.T) {
	ev := Event{Start: at(9, 5), End: at(10, 40)}

	if got := ev.FormattedTimeRange(); got != "09:05 - 10:40" {
		t.Fatalf("FormattedTimeRange = %q", got)
	}
	if got := ev.DurationMinutes(); got != 95 {
		t.Fatalf("DurationMinutes = %d, want 95", got)
	}
	if got := ev.StartOffsetMinutes(); got != 9*60+5 {
		t.Fatalf("StartOffsetMinutes = %d", got)
	}
}

func TestDurationTruncatesSeconds(t *testing.T) {
	ev := Event{Start: at(9, 0), End: at(9, 30).Add(59 * time.Second)}
	if got := ev.DurationMinutes(); got != 30 {
		t.Fatalf("DurationMinutes = %d, want 30", got)
	}
}

func TestParseReminderLead(t *testing.T) {
	cases := []struct {
		in   string
		want ReminderLead
	}{
		{"", ReminderNone},
		{"None", ReminderNone},
		{"5 minutes before", Reminder5Min},
		{"1 hour before", Reminder1Hour},
		{"30", Reminder30Min},
	}
	for _, c := range cases {
		got, err := ParseReminderLead(c.in)
		if err != nil {
			t.Fatalf("ParseReminderLead(%q) error: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseReminderLead(%q) = %d, want %d", c.in, got, c.want)
		}
	}

	for _, bad := range []string{"15", "tomorrow", "-5"} {
		if _, err := ParseReminderLead(bad); err == nil {
			t.Fatalf("ParseReminderLead(%q) expected error", bad)
		}
	}
}

func TestParseEventType(t *testing.T) {
	got, err := ParseEventType("outdoor")
	if err != nil || got != TypeOutdoor {
		t.Fatalf("ParseEventType(outdoor) = %q, %v", got, err)
	}
	got, err = ParseEventType("")
	if err != nil || got != TypeWork {
		t.Fatalf("ParseEventType(\"\") = %q, %v", got, err)
	}
	if _, err := ParseEventType("Gym"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
