package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/daily-dashboard/internal/weather"
)

const accuWeatherBaseURL = "https://dataservice.accuweather.com"

// AccuWeatherOptions configures the AccuWeather client.
type AccuWeatherOptions struct {
	BaseURL string
	APIKey  string
	Backoff BackoffConfig
}

// AccuWeatherProvider resolves cities to AccuWeather location keys and
// fetches current conditions, a 5-day daily and a 12-hour hourly forecast.
type AccuWeatherProvider struct {
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewAccuWeatherProvider(client *http.Client, opts AccuWeatherOptions) *AccuWeatherProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = accuWeatherBaseURL
	}
	return &AccuWeatherProvider{
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: opts.Backoff.orDefault(),
		},
		circuit: newCircuitBreaker("accuweather"),
	}
}

func (p *AccuWeatherProvider) ID() weather.Provider {
	return weather.ProviderAccuWeather
}

func (p *AccuWeatherProvider) HasAPIKey() bool {
	return p.apiKey != ""
}

func (p *AccuWeatherProvider) endpoint(path string, values url.Values) string {
	if values == nil {
		values = url.Values{}
	}
	values.Set("apikey", p.apiKey)
	return p.baseURL + path + "?" + values.Encode()
}

// get maps rejected credentials to a configuration error.
func (p *AccuWeatherProvider) get(ctx context.Context, u string, out any) error {
	err := getJSON(ctx, p.httpCfg, p.circuit, u, out)
	var se *StatusError
	if errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden) {
		return fmt.Errorf("%w: accuweather rejected the api key (%d)", weather.ErrConfiguration, se.Code)
	}
	return err
}

func (p *AccuWeatherProvider) Geocode(ctx context.Context, city, language string) (weather.Location, error) {
	if !p.HasAPIKey() {
		return weather.Location{}, weather.ErrMissingAPIKey
	}

	values := url.Values{}
	values.Set("q", city)
	values.Set("language", language)

	var results []struct {
		Key           string `json:"Key"`
		LocalizedName string `json:"LocalizedName"`
		Country       struct {
			ID            string `json:"ID"`
			LocalizedName string `json:"LocalizedName"`
		} `json:"Country"`
		AdministrativeArea struct {
			LocalizedName string `json:"LocalizedName"`
		} `json:"AdministrativeArea"`
		TimeZone struct {
			Name string `json:"Name"`
		} `json:"TimeZone"`
		GeoPosition struct {
			Latitude  float64 `json:"Latitude"`
			Longitude float64 `json:"Longitude"`
		} `json:"GeoPosition"`
	}

	if err := p.get(ctx, p.endpoint("/locations/v1/cities/search", values), &results); err != nil {
		return weather.Location{}, fmt.Errorf("accuweather location search: %w", err)
	}
	if len(results) == 0 {
		return weather.Location{}, fmt.Errorf("%w: %s", weather.ErrLocationNotFound, city)
	}

	r := results[0]
	return weather.Location{
		ID:                  r.Key,
		Name:                r.LocalizedName,
		Country:             r.Country.LocalizedName,
		CountryCode:         r.Country.ID,
		State:               r.AdministrativeArea.LocalizedName,
		Latitude:            r.GeoPosition.Latitude,
		Longitude:           r.GeoPosition.Longitude,
		Timezone:            r.TimeZone.Name,
		ProviderLocationKey: r.Key,
	}, nil
}

// validLocationKey requires a finite number; the key is interpolated into
// request paths.
func validLocationKey(key string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(key), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return fmt.Errorf("%w: %q", weather.ErrInvalidLocationKey, key)
	}
	return nil
}

type accuCurrent struct {
	LocalObservationDateTime string  `json:"LocalObservationDateTime"`
	WeatherIcon              int     `json:"WeatherIcon"`
	WeatherText              string  `json:"WeatherText"`
	RelativeHumidity         float64 `json:"RelativeHumidity"`
	Temperature              struct {
		Metric struct {
			Value float64 `json:"Value"`
		} `json:"Metric"`
	} `json:"Temperature"`
	Wind struct {
		Speed struct {
			Metric struct {
				Value float64 `json:"Value"`
			} `json:"Metric"`
		} `json:"Speed"`
	} `json:"Wind"`
}

type accuDaily struct {
	DailyForecasts []struct {
		Date        string `json:"Date"`
		Temperature struct {
			Minimum struct {
				Value float64 `json:"Value"`
			} `json:"Minimum"`
			Maximum struct {
				Value float64 `json:"Value"`
			} `json:"Maximum"`
		} `json:"Temperature"`
		Day struct {
			Icon int `json:"Icon"`
		} `json:"Day"`
	} `json:"DailyForecasts"`
}

type accuHourly struct {
	DateTime         string  `json:"DateTime"`
	WeatherIcon      int     `json:"WeatherIcon"`
	IconPhrase       string  `json:"IconPhrase"`
	RelativeHumidity float64 `json:"RelativeHumidity"`
	Temperature      struct {
		Value float64 `json:"Value"`
	} `json:"Temperature"`
	Wind struct {
		Speed struct {
			Value float64 `json:"Value"`
		} `json:"Speed"`
	} `json:"Wind"`
}

func (p *AccuWeatherProvider) Forecast(ctx context.Context, loc weather.Location) (weather.Forecast, error) {
	key := loc.ProviderLocationKey
	if err := validLocationKey(key); err != nil {
		return weather.Forecast{}, err
	}
	if !p.HasAPIKey() {
		return weather.Forecast{}, weather.ErrMissingAPIKey
	}
	key = url.PathEscape(strings.TrimSpace(key))

	var current []accuCurrent
	currentValues := url.Values{}
	currentValues.Set("details", "true")
	if err := p.get(ctx, p.endpoint("/currentconditions/v1/"+key, currentValues), &current); err != nil {
		return weather.Forecast{}, fmt.Errorf("accuweather current conditions: %w", err)
	}
	if len(current) == 0 {
		return weather.Forecast{}, errors.New("accuweather current conditions: empty response")
	}

	metric := url.Values{}
	metric.Set("metric", "true")

	var daily accuDaily
	if err := p.get(ctx, p.endpoint("/forecasts/v1/daily/5day/"+key, metric), &daily); err != nil {
		return weather.Forecast{}, fmt.Errorf("accuweather daily forecast: %w", err)
	}

	metric = url.Values{}
	metric.Set("metric", "true")

	var hourly []accuHourly
	if err := p.get(ctx, p.endpoint("/forecasts/v1/hourly/12hour/"+key, metric), &hourly); err != nil {
		return weather.Forecast{}, fmt.Errorf("accuweather hourly forecast: %w", err)
	}

	c := current[0]
	observed, err := time.Parse(time.RFC3339, c.LocalObservationDateTime)
	if err != nil {
		return weather.Forecast{}, fmt.Errorf("accuweather current conditions: observation time: %w", err)
	}

	f := weather.Forecast{
		Provider: weather.ProviderAccuWeather,
		Current: weather.Current{
			Time:        observed,
			Temperature: c.Temperature.Metric.Value,
			WindSpeed:   c.Wind.Speed.Metric.Value,
			Humidity:    c.RelativeHumidity,
			WeatherCode: c.WeatherIcon,
		},
		Hourly: make([]weather.Hourly, 0, len(hourly)),
		Daily:  make([]weather.Daily, 0, len(daily.DailyForecasts)),
	}

	for _, h := range hourly {
		t, err := time.Parse(time.RFC3339, h.DateTime)
		if err != nil {
			continue
		}
		f.Hourly = append(f.Hourly, weather.Hourly{
			Time:        t,
			Temperature: h.Temperature.Value,
			WindSpeed:   h.Wind.Speed.Value,
			Humidity:    h.RelativeHumidity,
			WeatherCode: h.WeatherIcon,
		})
	}

	for _, d := range daily.DailyForecasts {
		t, err := time.Parse(time.RFC3339, d.Date)
		if err != nil {
			continue
		}
		f.Daily = append(f.Daily, weather.Daily{
			// The date in the location's own calendar.
			Date:        t.Format("2006-01-02"),
			TempMin:     d.Temperature.Minimum.Value,
			TempMax:     d.Temperature.Maximum.Value,
			WeatherCode: d.Day.Icon,
		})
	}

	return f, nil
}
