package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"timecast/internal/model"
)

const productID = "-//timecast//calendar export//EN"

// Export renders the event collection as a VCALENDAR. Event type becomes
// CATEGORIES and a reminder lead becomes a DISPLAY VALARM.
func Export(events []model.Event, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(ev.End)
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Type != "" {
			ve.SetProperty(ical.ComponentPropertyCategories, string(ev.Type))
		}
		if ev.ReminderLead > 0 {
			a := ve.AddAlarm()
			a.SetAction(ical.ActionDisplay)
			a.SetTrigger(fmt.Sprintf("-PT%dM", int(ev.ReminderLead)))
		}
	}
	return cal.Serialize()
}
