package schedule

import (
	"time"

	"timecast/internal/model"
)

// IsConflicting reports whether [start, end) overlaps any event on the same
// calendar day as date. Days are compared by year and day-of-year because
// stored dates may carry a time of day.
func IsConflicting(date, start, end time.Time, existing []model.Event) bool {
	_, found := FindConflict(date, start, end, existing, "")
	return found
}

// FindConflict is IsConflicting that also returns the first overlapping
// event. Events whose ID equals ignoreID are skipped, which lets an edited
// event be checked against everything but itself.
func FindConflict(date, start, end time.Time, existing []model.Event, ignoreID string) (model.Event, bool) {
	for _, ev := range existing {
		if ignoreID != "" && ev.ID == ignoreID {
			continue
		}
		if !SameDay(date, ev.Date) {
			continue
		}
		if overlaps(start, end, ev.Start, ev.End) {
			return ev, true
		}
	}
	return model.Event{}, false
}

// overlaps is the half-open interval test: aStart < bEnd && aEnd > bStart.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
