package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "timecast/internal/log"
	"timecast/internal/model"
)

const defaultMaxOccurrences = 5000

// Occurrence is one concrete instance of a feed event.
type Occurrence struct {
	SourceID string
	UID      string

	// InstanceKey identifies the instance within its UID (original start,
	// RFC3339 in UTC). Overrides keep the key of the instance they replace.
	InstanceKey string

	Summary     string
	Description string
	Location    string
	Categories  []string

	Start  time.Time
	End    time.Time
	AllDay bool

	ReminderLead model.ReminderLead
}

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// Location is the zone occurrences are converted to; nil means time.Local.
	Location *time.Location

	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrences caps a single UID. Zero means 5000.
	MaxOccurrences int
}

// ExpandResult lists occurrences sorted by start.
type ExpandResult struct {
	Occurrences []Occurrence
	// Truncated holds UIDs that hit the cap.
	Truncated []string
}

// ExpandOccurrences turns parsed events into occurrences intersecting
// [RangeStart, RangeEnd]. RRULE and EXDATE are applied; RECURRENCE-ID
// overrides replace the instance they name.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var res ExpandResult
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return res, errors.New("expand: range end before range start")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = defaultMaxOccurrences
	}

	bases := make(map[string][]ParsedEvent)
	overrides := make(map[string][]ParsedEvent)
	var uids []string
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := bases[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}

	for _, uid := range uids {
		capped := false
		for _, ev := range bases[uid] {
			occ, hit := expandEvent(ev, overrides[uid], cfg)
			capped = capped || hit
			res.Occurrences = append(res.Occurrences, occ...)
		}
		if capped {
			res.Truncated = append(res.Truncated, uid)
			appLog.Warn("expand: occurrence cap reached", "uid", uid, "cap", cfg.MaxOccurrences)
		}
	}

	sort.SliceStable(res.Occurrences, func(i, j int) bool {
		return res.Occurrences[i].Start.Before(res.Occurrences[j].Start)
	})
	return res, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Occurrence, bool) {
	if ev.RawRRule == "" {
		if !intersects(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false
		}
		return []Occurrence{instance(ev, ev.Start, overrides, cfg.Location)}, false
	}

	opt, err := rrule.StrToROption(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	opt.Dtstart = ev.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		appLog.Error("expand: bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}

	set := &rrule.Set{}
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the duration so instances already in progress
	// at RangeStart are kept.
	dur := ev.End.Sub(ev.Start)
	from := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	to := cfg.RangeEnd.In(ev.Start.Location())
	starts := set.Between(from, to, true)

	hit := false
	if len(starts) > cfg.MaxOccurrences {
		starts = starts[:cfg.MaxOccurrences]
		hit = true
	}

	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		out = append(out, instance(ev, s, overrides, cfg.Location))
	}
	return out, hit
}

// instance builds the occurrence starting at start, swapping in an override
// when one names this instance.
func instance(base ParsedEvent, start time.Time, overrides []ParsedEvent, loc *time.Location) Occurrence {
	key := start.UTC().Format(time.RFC3339)
	ev := base
	end := start.Add(base.End.Sub(base.Start))
	for _, ov := range overrides {
		if ov.RecurrenceID.Equal(start) {
			ev = ov
			start, end = ov.Start, ov.End
			break
		}
	}
	return Occurrence{
		SourceID:    base.Source.ID,
		UID:         base.UID,
		InstanceKey: key,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Categories:  ev.Categories,
		Start:       start.In(loc),
		End:         end.In(loc),
		AllDay:      ev.AllDay,

		ReminderLead: ev.ReminderLead,
	}
}

func intersects(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
