package web

import (
	"net/http"
	"time"

	"timecast/internal/schedule"
	"timecast/internal/weather"
)

type alertDTO struct {
	EventID string `json:"event_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

func toAlertDTO(a weather.Alert) alertDTO {
	return alertDTO{EventID: a.EventID, Title: a.Title(), Message: a.Message()}
}

type forecastDayDTO struct {
	Date        string  `json:"date"`
	Code        int     `json:"weather_code"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	TempMax     float64 `json:"temperature_max"`
	TempMin     float64 `json:"temperature_min"`
	Precip      int     `json:"precipitation_probability_max"`
}

type weatherResponse struct {
	FetchedAt time.Time        `json:"fetched_at"`
	Timezone  string           `json:"timezone"`
	Days      []forecastDayDTO `json:"days"`
	Alerts    []alertDTO       `json:"alerts"`
}

// GET /api/weather[?refresh=1]
//
// Serves the newest forecast. A refresh, or the very first request, waits
// for a fetch; otherwise the cached result is returned.
func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	if s.watcher == nil || !s.cfg.Weather.Enabled() {
		writeError(w, http.StatusNotFound, "weather is not configured")
		return
	}

	latest, ok := s.watcher.Latest()
	if !ok || r.URL.Query().Get("refresh") == "1" {
		select {
		case latest = <-s.watcher.Refresh(r.Context(), s.cfg.Weather.Latitude, s.cfg.Weather.Longitude):
		case <-r.Context().Done():
			return
		}
	}
	if latest.Err != nil || latest.Forecast == nil {
		writeError(w, http.StatusBadGateway, "Failed to fetch weather data")
		return
	}

	f := latest.Forecast
	loc := s.svc.Location()
	days := make([]forecastDayDTO, 0, len(f.Daily.Time))
	for _, d := range f.Days(loc) {
		days = append(days, forecastDayDTO{
			Date:        d.Date.Format(schedule.DateLayout),
			Code:        d.WeatherCode,
			Description: weather.Description(d.WeatherCode),
			Icon:        weather.Icon(d.WeatherCode),
			TempMax:     d.TemperatureMax,
			TempMin:     d.TemperatureMin,
			Precip:      d.PrecipitationProbabilityMax,
		})
	}

	now := s.svc.Now()
	alerts := make([]alertDTO, 0)
	for _, ev := range s.svc.List() {
		if ev.End.Before(now) {
			continue
		}
		if a, ok := weather.CheckEvent(f, ev, loc); ok {
			alerts = append(alerts, toAlertDTO(a))
		}
	}

	writeJSON(w, http.StatusOK, weatherResponse{
		FetchedAt: latest.FetchedAt,
		Timezone:  f.Timezone,
		Days:      days,
		Alerts:    alerts,
	})
}
