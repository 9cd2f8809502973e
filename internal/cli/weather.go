package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"timecast/internal/model"
	"timecast/internal/weather"
)

// upcoming keeps events that have not ended yet.
func upcoming(a *app) []model.Event {
	now := a.svc.Now()
	var out []model.Event
	for _, ev := range a.svc.List() {
		if ev.End.After(now) {
			out = append(out, ev)
		}
	}
	return out
}

func newWeatherCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "weather",
		Short: "Show the forecast and check upcoming outdoor events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if !a.cfg.Weather.Enabled() {
					return errors.New("weather is not configured: set weather.latitude and weather.longitude")
				}
				client := weather.NewClient(a.cfg.Weather.BaseURL, nil)
				f, err := client.Forecast(cmd.Context(), a.cfg.Weather.Latitude, a.cfg.Weather.Longitude)
				if err != nil {
					return fmt.Errorf("fetch weather data: %w", err)
				}

				var alerts []weather.Alert
				for _, ev := range upcoming(a) {
					if alert, ok := weather.CheckEvent(f, ev, a.loc); ok {
						alerts = append(alerts, alert)
					}
				}
				fmt.Fprint(cmd.OutOrStdout(), renderForecast(f, a.loc, alerts))
				return nil
			})
		},
	}
}
