package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/daily-dashboard/internal/weather"
)

const (
	openMeteoForecastURL   = "https://api.open-meteo.com/v1/forecast"
	openMeteoGeocodingURL  = "https://geocoding-api.open-meteo.com/v1/search"
	openMeteoAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"

	openMeteoVariables = "temperature_2m,wind_speed_10m,relative_humidity_2m,weather_code"
)

// OpenMeteoOptions configures the Open-Meteo client. Zero values use the public endpoints.
type OpenMeteoOptions struct {
	ForecastURL   string
	GeocodingURL  string
	AirQualityURL string
	ForecastDays  int
	ForecastHours int
	Backoff       BackoffConfig
}

// OpenMeteoProvider geocodes, forecasts and reports European AQI. It needs no API key.
type OpenMeteoProvider struct {
	opts    OpenMeteoOptions
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, opts OpenMeteoOptions) *OpenMeteoProvider {
	if opts.ForecastURL == "" {
		opts.ForecastURL = openMeteoForecastURL
	}
	if opts.GeocodingURL == "" {
		opts.GeocodingURL = openMeteoGeocodingURL
	}
	if opts.AirQualityURL == "" {
		opts.AirQualityURL = openMeteoAirQualityURL
	}
	if opts.ForecastDays <= 0 {
		opts.ForecastDays = 5
	}
	if opts.ForecastHours <= 0 {
		opts.ForecastHours = 12
	}

	return &OpenMeteoProvider{
		opts: opts,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: opts.Backoff.orDefault(),
		},
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) ID() weather.Provider {
	return weather.ProviderOpenMeteo
}

func (p *OpenMeteoProvider) Geocode(ctx context.Context, city, language string) (weather.Location, error) {
	values := url.Values{}
	values.Set("name", city)
	values.Set("count", "1")
	values.Set("language", language)
	values.Set("format", "json")

	var payload struct {
		Results []struct {
			ID          int64   `json:"id"`
			Name        string  `json:"name"`
			Latitude    float64 `json:"latitude"`
			Longitude   float64 `json:"longitude"`
			Country     string  `json:"country"`
			CountryCode string  `json:"country_code"`
			Admin1      string  `json:"admin1"`
			Timezone    string  `json:"timezone"`
		} `json:"results"`
	}

	if err := getJSON(ctx, p.httpCfg, p.circuit, p.opts.GeocodingURL+"?"+values.Encode(), &payload); err != nil {
		return weather.Location{}, fmt.Errorf("openmeteo geocoding: %w", err)
	}
	if len(payload.Results) == 0 {
		return weather.Location{}, fmt.Errorf("%w: %s", weather.ErrLocationNotFound, city)
	}

	r := payload.Results[0]
	return weather.Location{
		ID:          strconv.FormatInt(r.ID, 10),
		Name:        r.Name,
		Country:     r.Country,
		CountryCode: r.CountryCode,
		State:       r.Admin1,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Timezone:    r.Timezone,
	}, nil
}

type openMeteoForecastResponse struct {
	UTCOffsetSeconds     int    `json:"utc_offset_seconds"`
	TimezoneAbbreviation string `json:"timezone_abbreviation"`
	Current              struct {
		Time             string  `json:"time"`
		Temperature      float64 `json:"temperature_2m"`
		WindSpeed        float64 `json:"wind_speed_10m"`
		RelativeHumidity float64 `json:"relative_humidity_2m"`
		WeatherCode      int     `json:"weather_code"`
	} `json:"current"`
	Hourly struct {
		Time             []string  `json:"time"`
		Temperature      []float64 `json:"temperature_2m"`
		WindSpeed        []float64 `json:"wind_speed_10m"`
		RelativeHumidity []float64 `json:"relative_humidity_2m"`
		WeatherCode      []int     `json:"weather_code"`
	} `json:"hourly"`
	Daily struct {
		Time           []string  `json:"time"`
		WeatherCode    []int     `json:"weather_code"`
		TemperatureMax []float64 `json:"temperature_2m_max"`
		TemperatureMin []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

func (p *OpenMeteoProvider) Forecast(ctx context.Context, loc weather.Location) (weather.Forecast, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
	values.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))
	values.Set("current", openMeteoVariables)
	values.Set("hourly", openMeteoVariables)
	values.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min")
	values.Set("forecast_days", strconv.Itoa(p.opts.ForecastDays))
	values.Set("forecast_hours", strconv.Itoa(p.opts.ForecastHours))
	values.Set("timezone", "auto")

	var payload openMeteoForecastResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.opts.ForecastURL+"?"+values.Encode(), &payload); err != nil {
		return weather.Forecast{}, fmt.Errorf("openmeteo forecast: %w", err)
	}

	// Times come back as local wall clock without an offset.
	zone := time.FixedZone(payload.TimezoneAbbreviation, payload.UTCOffsetSeconds)

	current, err := weather.ParseLocalTime(payload.Current.Time, zone)
	if err != nil {
		return weather.Forecast{}, fmt.Errorf("openmeteo forecast: current time: %w", err)
	}

	f := weather.Forecast{
		Provider: weather.ProviderOpenMeteo,
		Current: weather.Current{
			Time:        current,
			Temperature: payload.Current.Temperature,
			WindSpeed:   payload.Current.WindSpeed,
			Humidity:    payload.Current.RelativeHumidity,
			WeatherCode: payload.Current.WeatherCode,
		},
		Hourly: make([]weather.Hourly, 0, len(payload.Hourly.Time)),
		Daily:  make([]weather.Daily, 0, len(payload.Daily.Time)),
	}

	for i, ts := range payload.Hourly.Time {
		t, err := weather.ParseLocalTime(ts, zone)
		if err != nil {
			continue
		}
		f.Hourly = append(f.Hourly, weather.Hourly{
			Time:        t,
			Temperature: valueAt(payload.Hourly.Temperature, i),
			WindSpeed:   valueAt(payload.Hourly.WindSpeed, i),
			Humidity:    valueAt(payload.Hourly.RelativeHumidity, i),
			WeatherCode: intAt(payload.Hourly.WeatherCode, i),
		})
	}

	for i, day := range payload.Daily.Time {
		f.Daily = append(f.Daily, weather.Daily{
			Date:        day,
			TempMin:     valueAt(payload.Daily.TemperatureMin, i),
			TempMax:     valueAt(payload.Daily.TemperatureMax, i),
			WeatherCode: intAt(payload.Daily.WeatherCode, i),
		})
	}

	return f, nil
}

var errNoAirQualityData = errors.New("no air quality data in response")

func (p *OpenMeteoProvider) AirQuality(ctx context.Context, loc weather.Location) (weather.AirQuality, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
	values.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))
	values.Set("current", "pm10,pm2_5,european_aqi")
	values.Set("timezone", "auto")

	var payload struct {
		Current struct {
			Time        string   `json:"time"`
			PM10        *float64 `json:"pm10"`
			PM25        *float64 `json:"pm2_5"`
			EuropeanAQI *float64 `json:"european_aqi"`
		} `json:"current"`
	}

	if err := getJSON(ctx, p.httpCfg, p.circuit, p.opts.AirQualityURL+"?"+values.Encode(), &payload); err != nil {
		return weather.AirQuality{}, fmt.Errorf("openmeteo air quality: %w", err)
	}

	c := payload.Current
	var aqi float64
	switch {
	case c.EuropeanAQI != nil:
		aqi = *c.EuropeanAQI
	case c.PM25 != nil:
		aqi = weather.EstimateEuropeanAQI(*c.PM25)
	default:
		return weather.AirQuality{}, fmt.Errorf("openmeteo air quality: %w", errNoAirQualityData)
	}

	aq := weather.NewAirQuality(aqi, weather.ProviderOpenMeteo)
	aq.PM25 = c.PM25
	aq.PM10 = c.PM10
	return aq, nil
}
