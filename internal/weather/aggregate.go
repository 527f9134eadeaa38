package weather

import "time"

// Dashboard is the combined weather view served to the UI.
type Dashboard struct {
	Location   Location    `json:"location"`
	Forecast   *Forecast   `json:"forecast"`
	AirQuality *AirQuality `json:"airQuality"`
	Warnings   []string    `json:"warnings,omitempty"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// AssembleDashboard combines the independently fetched slices. Errors and
// missing slices become warnings; present slices are kept as they are.
func AssembleDashboard(loc Location, forecast *Forecast, aq *AirQuality, forecastErr, aqErr error, now time.Time) Dashboard {
	d := Dashboard{
		Location:   loc,
		Forecast:   forecast,
		AirQuality: aq,
		UpdatedAt:  now.UTC(),
	}

	switch {
	case forecastErr != nil:
		d.Forecast = nil
		d.Warnings = append(d.Warnings, "forecast: "+forecastErr.Error())
	case forecast == nil:
		d.Warnings = append(d.Warnings, "forecast: data unavailable")
	}

	switch {
	case aqErr != nil:
		d.AirQuality = nil
		d.Warnings = append(d.Warnings, "air quality: "+aqErr.Error())
	case aq == nil:
		d.Warnings = append(d.Warnings, "air quality: data unavailable")
	}

	return d
}
