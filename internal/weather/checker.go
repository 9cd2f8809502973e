package weather

import (
	"context"
	"fmt"
	"time"

	appLog "timecast/internal/log"
	"timecast/internal/model"
)

// Alert warns that an outdoor event is forecast to have poor conditions.
type Alert struct {
	EventID    string
	EventTitle string
	Slot       Slot
}

// Title is the notification heading.
func (a Alert) Title() string { return "Weather alert" }

// Message is the notification body.
func (a Alert) Message() string {
	return fmt.Sprintf("Forecast for %s: %s, %.1f°C, %d%% chance of precipitation",
		a.EventTitle, Description(a.Slot.WeatherCode), a.Slot.Temperature, a.Slot.PrecipitationProbability)
}

// CheckEvent judges ev against an already fetched forecast. Only outdoor
// events are checked, and only when a slot lies within MaxSlotDistance of
// the start.
func CheckEvent(f *Forecast, ev model.Event, loc *time.Location) (Alert, bool) {
	if f == nil || ev.Type != model.TypeOutdoor {
		return Alert{}, false
	}
	slot, ok := f.ClosestSlot(ev.Start, loc)
	if !ok || slot.Suitable() {
		return Alert{}, false
	}
	return Alert{EventID: ev.ID, EventTitle: ev.Title, Slot: slot}, true
}

// Checker fetches a forecast for fixed coordinates and reports alerts.
type Checker struct {
	Forecaster Forecaster
	Latitude   float64
	Longitude  float64
	Location   *time.Location

	// Notify is called for each alert; nil only returns them.
	Notify func(Alert) error
}

// Check fetches the forecast once and checks every event. Notification
// failures are logged and do not stop the remaining events.
func (c *Checker) Check(ctx context.Context, events []model.Event) ([]Alert, error) {
	outdoor := false
	for _, ev := range events {
		if ev.Type == model.TypeOutdoor {
			outdoor = true
			break
		}
	}
	if !outdoor {
		return nil, nil
	}

	f, err := c.Forecaster.Forecast(ctx, c.Latitude, c.Longitude)
	if err != nil {
		return nil, err
	}

	var alerts []Alert
	for _, ev := range events {
		a, ok := CheckEvent(f, ev, c.Location)
		if !ok {
			continue
		}
		alerts = append(alerts, a)
		if c.Notify == nil {
			continue
		}
		if err := c.Notify(a); err != nil {
			appLog.Error("weather alert delivery failed", err, "id", ev.ID)
		}
	}
	return alerts, nil
}
