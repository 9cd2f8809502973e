package schedule

import (
	"time"

	"timecast/internal/model"
)

// ComputeFireTime is eventStart minus the lead time.
func ComputeFireTime(eventStart time.Time, lead model.ReminderLead) time.Time {
	return eventStart.Add(-lead.Duration())
}
