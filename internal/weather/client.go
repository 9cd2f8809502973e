// Package weather talks to the open-meteo forecast API and decides whether
// the forecast suits an outdoor event.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	appLog "timecast/internal/log"
)

const (
	DefaultBaseURL = "https://api.open-meteo.com/v1/"

	hourlyParams = "temperature_2m,weathercode,precipitation_probability"
	dailyParams  = "weathercode,temperature_2m_max,temperature_2m_min,precipitation_probability_max"

	// HourlyLayout is the format of hourly.time entries.
	HourlyLayout = "2006-01-02T15:04"
	// DailyLayout is the format of daily.time entries.
	DailyLayout = "2006-01-02"
)

// Hourly holds parallel per-hour series.
type Hourly struct {
	Time                     []string  `json:"time"`
	Temperature              []float64 `json:"temperature_2m"`
	WeatherCode              []int     `json:"weathercode"`
	PrecipitationProbability []int     `json:"precipitation_probability"`
}

// Daily holds parallel per-day series.
type Daily struct {
	Time                        []string  `json:"time"`
	WeatherCode                 []int     `json:"weathercode"`
	TemperatureMax              []float64 `json:"temperature_2m_max"`
	TemperatureMin              []float64 `json:"temperature_2m_min"`
	PrecipitationProbabilityMax []int     `json:"precipitation_probability_max"`
}

// Forecast is the decoded API response.
type Forecast struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Hourly    Hourly  `json:"hourly"`
	Daily     Daily   `json:"daily"`
}

// Location resolves the zone the hourly times are expressed in. open-meteo
// answers in the coordinates' zone when asked for timezone=auto.
func (f *Forecast) Location(fallback *time.Location) *time.Location {
	if f.Timezone != "" {
		if loc, err := time.LoadLocation(f.Timezone); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.Local
	}
	return fallback
}

//go:generate mockgen -destination=mock_weather/forecaster.go -package=mock_weather timecast/internal/weather Forecaster

// Forecaster is the weather facility: one forecast per call.
type Forecaster interface {
	Forecast(ctx context.Context, lat, lon float64) (*Forecast, error)
}

// Client is the HTTP Forecaster.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client. Empty baseURL selects the public endpoint.
func NewClient(baseURL string, hc *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, http: hc}
}

// Forecast fetches hourly and daily series for the coordinates.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("hourly", hourlyParams)
	q.Set("daily", dailyParams)
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"forecast?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather: fetch forecast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("weather: failed to fetch weather data: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var f Forecast
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("weather: decode forecast: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}

	appLog.Debug("weather forecast fetched", "lat", lat, "lon", lon, "hours", len(f.Hourly.Time), "elapsed", time.Since(start).String())
	return &f, nil
}

func (f *Forecast) validate() error {
	n := len(f.Hourly.Time)
	if len(f.Hourly.Temperature) != n || len(f.Hourly.WeatherCode) != n || len(f.Hourly.PrecipitationProbability) != n {
		return fmt.Errorf("weather: hourly series length mismatch")
	}
	d := len(f.Daily.Time)
	if len(f.Daily.WeatherCode) != d || len(f.Daily.TemperatureMax) != d || len(f.Daily.TemperatureMin) != d || len(f.Daily.PrecipitationProbabilityMax) != d {
		return fmt.Errorf("weather: daily series length mismatch")
	}
	return nil
}
