package ics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	appLog "timecast/internal/log"
	"timecast/internal/model"
)

// eventNamespace seeds deterministic ids so re-importing a feed replaces
// earlier copies instead of duplicating them.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("timecast:ics"))

// EventID is the stable store id for one feed instance.
func EventID(uid, instanceKey string) string {
	return uuid.NewSHA1(eventNamespace, []byte(uid+"\x00"+instanceKey)).String()
}

// ToEvents converts occurrences into store events in loc. All-day entries
// and entries spanning midnight cannot be represented and are skipped.
func ToEvents(occs []Occurrence, loc *time.Location) []model.Event {
	if loc == nil {
		loc = time.Local
	}
	out := make([]model.Event, 0, len(occs))
	for _, o := range occs {
		start, end := o.Start.In(loc), o.End.In(loc)
		if o.AllDay || !end.After(start) {
			continue
		}
		if sy, sd := start.Year(), start.YearDay(); sy != end.Year() || sd != end.YearDay() {
			appLog.Debug("ics import: skipping multi-day occurrence", "uid", o.UID, "start", start.Format(time.RFC3339))
			continue
		}
		title := o.Summary
		if title == "" {
			title = "(untitled)"
		}
		out = append(out, model.Event{
			ID:          EventID(o.UID, o.InstanceKey),
			Title:       title,
			Description: o.Description,
			Date:        time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc),
			Start:       start,
			End:         end,
			Type:        categoryType(o.Categories),
			Location:    o.Location,

			ReminderLead: o.ReminderLead,
		})
	}
	return out
}

func categoryType(categories []string) model.EventType {
	for _, c := range categories {
		if t, err := model.ParseEventType(c); err == nil {
			return t
		}
	}
	return model.TypeOther
}

// ReadEvents parses one payload and expands it over cfg's range.
func ReadEvents(src Source, body []byte, cfg ExpandConfig) ([]model.Event, error) {
	parsed, err := ParseICS(src, body, cfg.Location)
	if err != nil {
		return nil, err
	}
	res, err := ExpandOccurrences(parsed, cfg)
	if err != nil {
		return nil, err
	}
	return ToEvents(res.Occurrences, cfg.Location), nil
}

// ReadFile is ReadEvents over a local .ics file.
func ReadFile(path string, cfg ExpandConfig) ([]model.Event, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ReadEvents(Source{ID: "file", URL: "file://" + path}, body, cfg)
}

// Sync fetches every source and returns the merged events. A source that
// fails to fetch or parse is reported in the joined error; the others still
// contribute.
func Sync(ctx context.Context, f *Fetcher, sources []Source, cfg ExpandConfig) ([]model.Event, error) {
	results, errs := f.FetchAll(ctx, sources)

	var events []model.Event
	for _, r := range results {
		evs, err := ReadEvents(r.Source, r.Body, cfg)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", r.Source.ID, err))
			continue
		}
		events = append(events, evs...)
	}
	return events, errors.Join(errs...)
}
