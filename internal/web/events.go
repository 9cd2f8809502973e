package web

import (
	"errors"
	"net/http"
	"time"

	appLog "timecast/internal/log"
	"timecast/internal/model"
	"timecast/internal/schedule"
	"timecast/internal/weather"
)

// eventDTO is the JSON view of a stored event.
type eventDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        string    `json:"date"`
	Start       string    `json:"start"`
	End         string    `json:"end"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	TimeRange   string    `json:"time_range"`
	Type        string    `json:"type"`
	Location    string    `json:"location,omitempty"`
	Reminder    string    `json:"reminder"`
	ReminderMin int       `json:"reminder_minutes"`
}

func toEventDTO(ev model.Event) eventDTO {
	return eventDTO{
		ID:          ev.ID,
		Title:       ev.Title,
		Description: ev.Description,
		Date:        ev.Date.Format(schedule.DateLayout),
		Start:       ev.Start.Format(schedule.TimeLayout),
		End:         ev.End.Format(schedule.TimeLayout),
		StartAt:     ev.Start,
		EndAt:       ev.End,
		TimeRange:   ev.FormattedTimeRange(),
		Type:        string(ev.Type),
		Location:    ev.Location,
		Reminder:    ev.ReminderLead.String(),
		ReminderMin: int(ev.ReminderLead),
	}
}

func toEventDTOs(events []model.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventDTO(ev))
	}
	return out
}

// eventResponse is returned by every write. Warning carries a reminder
// scheduling failure; Alert a poor forecast for an outdoor event.
type eventResponse struct {
	Event   eventDTO  `json:"event"`
	Warning string    `json:"warning,omitempty"`
	Alert   *alertDTO `json:"weather_alert,omitempty"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toEventDTOs(s.svc.List()))
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.svc.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(ev))
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in schedule.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.writeMu.Lock()
	ev, err := s.svc.Create(in)
	s.writeMu.Unlock()
	s.respondWrite(w, http.StatusCreated, ev, err)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var in schedule.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.writeMu.Lock()
	ev, err := s.svc.Update(r.PathValue("id"), in)
	s.writeMu.Unlock()
	s.respondWrite(w, http.StatusOK, ev, err)
}

// moveRequest is a drop on the timeline. Either OffsetMinutes or
// OffsetPixels must be set; pixels are converted with the configured
// scale. An empty Date keeps the event on its own day.
type moveRequest struct {
	Date          string   `json:"date"`
	OffsetMinutes *int     `json:"offset_minutes"`
	OffsetPixels  *float64 `json:"offset_pixels"`
}

func (s *Server) handleMoveEvent(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var offset int
	switch {
	case req.OffsetMinutes != nil:
		offset = *req.OffsetMinutes
	case req.OffsetPixels != nil:
		offset = s.scale.Minutes(*req.OffsetPixels)
	default:
		writeError(w, http.StatusBadRequest, "offset_minutes or offset_pixels is required")
		return
	}

	var day time.Time
	if req.Date != "" {
		d, err := time.ParseInLocation(schedule.DateLayout, req.Date, s.svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected yyyy-MM-dd")
			return
		}
		day = d
	}

	s.writeMu.Lock()
	ev, err := s.svc.Move(r.PathValue("id"), day, offset)
	s.writeMu.Unlock()
	s.respondWrite(w, http.StatusOK, ev, err)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	s.writeMu.Lock()
	err := s.svc.Delete(r.PathValue("id"))
	s.writeMu.Unlock()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

// respondWrite renders the outcome of create / update / move. A reminder
// failure still reports success since the event was saved.
func (s *Server) respondWrite(w http.ResponseWriter, status int, ev model.Event, err error) {
	var ae *schedule.AlarmError
	if err != nil && !errors.As(err, &ae) {
		writeServiceError(w, err)
		return
	}
	s.invalidate()

	resp := eventResponse{Event: toEventDTO(ev)}
	if ae != nil {
		resp.Warning = schedule.UserMessage(ae)
	}
	if a, ok := s.alertFor(ev); ok {
		resp.Alert = &a
	}
	writeJSON(w, status, resp)
}

// alertFor checks ev against the last fetched forecast, if any. No fetch
// happens on the request path.
func (s *Server) alertFor(ev model.Event) (alertDTO, bool) {
	if s.watcher == nil {
		return alertDTO{}, false
	}
	latest, ok := s.watcher.Latest()
	if !ok || latest.Forecast == nil {
		return alertDTO{}, false
	}
	a, ok := weather.CheckEvent(latest.Forecast, ev, s.svc.Location())
	if !ok {
		return alertDTO{}, false
	}
	appLog.Info("weather alert for new event", "id", ev.ID, "code", a.Slot.WeatherCode)
	return toAlertDTO(a), true
}
