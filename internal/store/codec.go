package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"timecast/internal/model"
)

// legacyLayout is the default Date rendering of the original persisted
// format ("Jan 2, 2024 10:00:00 AM" in the device zone).
const legacyLayout = "Jan 2, 2006 3:04:05 PM"

// Newer runtimes emit a comma after the year and a narrow no-break space
// before the meridiem; both are accepted on read.
var legacyReadLayouts = []string{
	legacyLayout,
	"Jan 2, 2006, 3:04:05 PM",
	time.RFC3339Nano,
}

// wireEvent is the JSON shape of one element of the persisted array.
type wireEvent struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	Description         string `json:"description"`
	Date                string `json:"date"`
	StartTime           string `json:"startTime"`
	EndTime             string `json:"endTime"`
	Type                string `json:"type"`
	Location            string `json:"location"`
	ReminderLeadMinutes int    `json:"reminderLeadMinutes"`
}

func formatLegacyTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(legacyLayout)
}

func parseLegacyTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\u202f", " "))
	for _, layout := range legacyReadLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Encode renders the collection as a JSON array.
func Encode(events []model.Event, loc *time.Location) ([]byte, error) {
	wire := make([]wireEvent, 0, len(events))
	for _, ev := range events {
		wire = append(wire, wireEvent{
			ID:                  ev.ID,
			Title:               ev.Title,
			Description:         ev.Description,
			Date:                formatLegacyTime(ev.Date, loc),
			StartTime:           formatLegacyTime(ev.Start, loc),
			EndTime:             formatLegacyTime(ev.End, loc),
			Type:                string(ev.Type),
			Location:            ev.Location,
			ReminderLeadMinutes: int(ev.ReminderLead),
		})
	}
	return json.Marshal(wire)
}

// Decode parses a persisted JSON array. Any malformed element fails the
// whole collection, like the original reader did.
func Decode(data []byte, loc *time.Location) ([]model.Event, error) {
	var wire []wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("store: decode events: %w", err)
	}

	events := make([]model.Event, 0, len(wire))
	for i, w := range wire {
		date, err := parseLegacyTime(w.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("store: event %d date: %w", i, err)
		}
		start, err := parseLegacyTime(w.StartTime, loc)
		if err != nil {
			return nil, fmt.Errorf("store: event %d startTime: %w", i, err)
		}
		end, err := parseLegacyTime(w.EndTime, loc)
		if err != nil {
			return nil, fmt.Errorf("store: event %d endTime: %w", i, err)
		}
		events = append(events, model.Event{
			ID:           w.ID,
			Title:        w.Title,
			Description:  w.Description,
			Date:         date,
			Start:        start,
			End:          end,
			Type:         model.EventType(w.Type),
			Location:     w.Location,
			ReminderLead: model.ReminderLead(w.ReminderLeadMinutes),
		})
	}
	return events, nil
}
