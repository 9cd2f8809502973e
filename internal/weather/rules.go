package weather

import (
	"time"
)

// MaxSlotDistance is how far the nearest hourly slot may be from the event
// start before the forecast is considered too coarse to judge.
const MaxSlotDistance = 3 * time.Hour

// IsSuitable is the outdoor-activity rule: anything from drizzle up (WMO
// code 51+), below 10°C, above 35°C or with more than 50% chance of
// precipitation is unsuitable.
func IsSuitable(code int, temperature float64, precipitationProbability int) bool {
	return code < 51 && temperature >= 10.0 && temperature <= 35.0 && precipitationProbability <= 50
}

var descriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Freezing drizzle",
	57: "Freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Freezing rain",
	67: "Freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Snow showers",
	86: "Snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with hail",
	99: "Thunderstorm with hail",
}

// Description names a WMO weather interpretation code.
func Description(code int) string {
	if d, ok := descriptions[code]; ok {
		return d
	}
	return "Unknown"
}

// Icon groups codes into a coarse icon name.
func Icon(code int) string {
	switch {
	case code == 0:
		return "sunny"
	case code <= 2:
		return "partly-cloudy"
	case code == 3:
		return "cloudy"
	case code <= 48:
		return "fog"
	case code <= 67:
		return "rain"
	case code <= 77:
		return "snow"
	case code <= 82:
		return "rain"
	case code <= 86:
		return "snow"
	case code <= 99:
		return "thunderstorm"
	default:
		return "unknown"
	}
}

// Slot is one hourly forecast entry.
type Slot struct {
	Time                     time.Time
	Temperature              float64
	WeatherCode              int
	PrecipitationProbability int
}

// Suitable applies IsSuitable to the slot.
func (s Slot) Suitable() bool {
	return IsSuitable(s.WeatherCode, s.Temperature, s.PrecipitationProbability)
}

// ClosestSlot returns the hourly entry nearest to at, provided it lies
// within MaxSlotDistance. Unparseable time entries are ignored.
func (f *Forecast) ClosestSlot(at time.Time, loc *time.Location) (Slot, bool) {
	loc = f.Location(loc)
	best := -1
	var bestDiff time.Duration
	var bestTime time.Time

	for i, raw := range f.Hourly.Time {
		t, err := time.ParseInLocation(HourlyLayout, raw, loc)
		if err != nil {
			continue
		}
		diff := t.Sub(at)
		if diff < 0 {
			diff = -diff
		}
		if best < 0 || diff < bestDiff {
			best, bestDiff, bestTime = i, diff, t
		}
	}
	if best < 0 || bestDiff > MaxSlotDistance {
		return Slot{}, false
	}
	return Slot{
		Time:                     bestTime,
		Temperature:              f.Hourly.Temperature[best],
		WeatherCode:              f.Hourly.WeatherCode[best],
		PrecipitationProbability: f.Hourly.PrecipitationProbability[best],
	}, true
}

// Day is one daily summary row.
type Day struct {
	Date                        time.Time
	WeatherCode                 int
	TemperatureMax              float64
	TemperatureMin              float64
	PrecipitationProbabilityMax int
}

// Days returns the daily series as rows, skipping unparseable dates.
func (f *Forecast) Days(loc *time.Location) []Day {
	loc = f.Location(loc)
	out := make([]Day, 0, len(f.Daily.Time))
	for i, raw := range f.Daily.Time {
		d, err := time.ParseInLocation(DailyLayout, raw, loc)
		if err != nil {
			continue
		}
		out = append(out, Day{
			Date:                        d,
			WeatherCode:                 f.Daily.WeatherCode[i],
			TemperatureMax:              f.Daily.TemperatureMax[i],
			TemperatureMin:              f.Daily.TemperatureMin[i],
			PrecipitationProbabilityMax: f.Daily.PrecipitationProbabilityMax[i],
		})
	}
	return out
}
