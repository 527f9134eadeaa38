package weather

import (
	"fmt"
	"strings"
	"time"
)

// Provider identifies an upstream weather or air-quality source.
type Provider string

const (
	ProviderOpenMeteo   Provider = "openmeteo"
	ProviderAccuWeather Provider = "accuweather"
	ProviderIQAir       Provider = "iqair"
)

// ParseProvider accepts provider names case-insensitively.
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderOpenMeteo:
		return ProviderOpenMeteo, nil
	case ProviderAccuWeather:
		return ProviderAccuWeather, nil
	case ProviderIQAir:
		return ProviderIQAir, nil
	default:
		return "", fmt.Errorf("%w: unknown provider %q", ErrConfiguration, s)
	}
}

// Location is the resolved place a forecast is fetched for.
// It is created once per adapter initialization and never mutated afterwards.
type Location struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode,omitempty"`
	State       string  `json:"state,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone,omitempty"`

	// ProviderLocationKey is the provider's own identifier (AccuWeather's numeric key).
	ProviderLocationKey string `json:"providerLocationKey,omitempty"`
}

// Current holds the observed conditions.
type Current struct {
	Time        time.Time `json:"time"`
	Temperature float64   `json:"temperature"`
	WindSpeed   float64   `json:"windSpeed"`
	Humidity    float64   `json:"humidity"`
	WeatherCode int       `json:"weatherCode"`
	Icon        string    `json:"icon,omitempty"`
	Text        string    `json:"text,omitempty"`
}

// Hourly is one hourly forecast slot.
type Hourly struct {
	Time        time.Time `json:"time"`
	Temperature float64   `json:"temperature"`
	WindSpeed   float64   `json:"windSpeed"`
	Humidity    float64   `json:"humidity"`
	WeatherCode int       `json:"weatherCode"`
	Icon        string    `json:"icon,omitempty"`
	Text        string    `json:"text,omitempty"`
}

// Daily is one day of the forecast. Date is YYYY-MM-DD in the location's calendar.
type Daily struct {
	Date        string  `json:"date"`
	TempMin     float64 `json:"tempMin"`
	TempMax     float64 `json:"tempMax"`
	WeatherCode int     `json:"weatherCode"`
	Icon        string  `json:"icon,omitempty"`
	Text        string  `json:"text,omitempty"`
}

// Forecast is the normalized weather shape shared by all providers.
// Weather codes stay in the numbering of Provider.
type Forecast struct {
	Current  Current  `json:"current"`
	Hourly   []Hourly `json:"hourly"`
	Daily    []Daily  `json:"daily"`
	Provider Provider `json:"provider"`
}

// Decorate returns a copy of f with icon and text filled in from the provider's tables.
func (f Forecast) Decorate() Forecast {
	out := f

	out.Current.Icon = WeatherIcon(f.Current.WeatherCode, f.Provider, f.Current.Time)
	out.Current.Text = WeatherText(f.Current.WeatherCode, f.Provider)

	out.Hourly = make([]Hourly, len(f.Hourly))
	for i, h := range f.Hourly {
		h.Icon = WeatherIcon(h.WeatherCode, f.Provider, h.Time)
		h.Text = WeatherText(h.WeatherCode, f.Provider)
		out.Hourly[i] = h
	}

	out.Daily = make([]Daily, len(f.Daily))
	for i, d := range f.Daily {
		// Daily summaries always use the daytime icon.
		noon, err := time.Parse("2006-01-02 15:04", d.Date+" 12:00")
		if err != nil {
			noon = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
		}
		d.Icon = WeatherIcon(d.WeatherCode, f.Provider, noon)
		d.Text = WeatherText(d.WeatherCode, f.Provider)
		out.Daily[i] = d
	}

	return out
}

// AirQuality is the normalized air-quality reading.
type AirQuality struct {
	AQI      float64  `json:"aqi"`
	Category string   `json:"category"`
	Color    string   `json:"color,omitempty"`
	I18nKey  string   `json:"i18nKey,omitempty"`
	Scheme   Scheme   `json:"scheme,omitempty"`
	Source   Provider `json:"source"`
	PM25     *float64 `json:"pm25,omitempty"`
	PM10     *float64 `json:"pm10,omitempty"`
}

// Settings are the user choices an adapter is built from.
type Settings struct {
	City               string   `json:"city" toml:"city" validate:"required,max=100"`
	Provider           Provider `json:"provider" toml:"provider" validate:"required,oneof=openmeteo accuweather"`
	AirQualityProvider Provider `json:"airQualityProvider,omitempty" toml:"air_quality_provider" validate:"omitempty,oneof=openmeteo iqair"`
	Language           string   `json:"language,omitempty" toml:"language" validate:"omitempty,max=16"`
}

// Normalized trims the settings and fills defaults.
func (s Settings) Normalized() Settings {
	s.City = strings.TrimSpace(s.City)
	s.Provider = Provider(strings.ToLower(strings.TrimSpace(string(s.Provider))))
	s.AirQualityProvider = Provider(strings.ToLower(strings.TrimSpace(string(s.AirQualityProvider))))
	if s.AirQualityProvider == "" {
		s.AirQualityProvider = ProviderOpenMeteo
	}
	s.Language = strings.ToLower(strings.TrimSpace(s.Language))
	if s.Language == "" {
		s.Language = DefaultLanguage
	}
	return s
}

// Validate reports configuration problems without touching the network.
func (s Settings) Validate() error {
	if s.City == "" {
		return fmt.Errorf("%w: city name is required", ErrConfiguration)
	}
	switch s.Provider {
	case "":
		return fmt.Errorf("%w: weather provider must be selected", ErrConfiguration)
	case ProviderOpenMeteo, ProviderAccuWeather:
	default:
		return fmt.Errorf("%w: %q cannot provide forecasts", ErrConfiguration, s.Provider)
	}
	switch s.AirQualityProvider {
	case ProviderOpenMeteo, ProviderIQAir:
	default:
		return fmt.Errorf("%w: %q cannot provide air quality", ErrConfiguration, s.AirQualityProvider)
	}
	return nil
}

// Key identifies the settings for adapter reuse.
func (s Settings) Key() string {
	n := s.Normalized()
	return strings.Join([]string{string(n.Provider), string(n.AirQualityProvider), n.Language, strings.ToLower(n.City)}, "|")
}

// DefaultLanguage is used for geocoding when settings carry none.
const DefaultLanguage = "en"
