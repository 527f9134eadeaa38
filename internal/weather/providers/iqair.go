package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/daily-dashboard/internal/weather"
)

const iqAirBaseURL = "https://api.airvisual.com"

// IQAirOptions configures the IQAir (AirVisual) client.
type IQAirOptions struct {
	BaseURL string
	APIKey  string
	Backoff BackoffConfig
}

// IQAirProvider reports US EPA AQI. Without an API key it answers with the
// Unknown sentinel instead of failing.
type IQAirProvider struct {
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewIQAirProvider(client *http.Client, opts IQAirOptions) *IQAirProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = iqAirBaseURL
	}
	return &IQAirProvider{
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: opts.Backoff.orDefault(),
		},
		circuit: newCircuitBreaker("iqair"),
	}
}

func (p *IQAirProvider) ID() weather.Provider {
	return weather.ProviderIQAir
}

func (p *IQAirProvider) HasAPIKey() bool {
	return p.apiKey != ""
}

// AirQuality looks the city up by name when state and country are known,
// otherwise by the nearest station to the coordinates. IQAir only knows
// English names, so a rejected name lookup is retried by coordinates.
func (p *IQAirProvider) AirQuality(ctx context.Context, loc weather.Location) (weather.AirQuality, error) {
	if !p.HasAPIKey() {
		return weather.UnknownAirQuality(weather.ProviderIQAir), nil
	}

	if loc.Name != "" && loc.State != "" && loc.Country != "" {
		values := url.Values{}
		values.Set("city", loc.Name)
		values.Set("state", loc.State)
		values.Set("country", loc.Country)

		aq, err := p.lookup(ctx, "/v2/city", values)
		if err == nil || !rejected(err) || !hasCoordinates(loc) {
			return aq, err
		}
	}

	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
	values.Set("lon", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))
	return p.lookup(ctx, "/v2/nearest_city", values)
}

func (p *IQAirProvider) lookup(ctx context.Context, path string, values url.Values) (weather.AirQuality, error) {
	values.Set("key", p.apiKey)

	var payload struct {
		Status string `json:"status"`
		Data   struct {
			Message string `json:"message"`
			Current struct {
				Pollution struct {
					AQIUS  float64 `json:"aqius"`
					MainUS string  `json:"mainus"`
				} `json:"pollution"`
			} `json:"current"`
		} `json:"data"`
	}

	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+path+"?"+values.Encode(), &payload); err != nil {
		return weather.AirQuality{}, fmt.Errorf("iqair %s: %w", path, err)
	}
	if payload.Status != "success" {
		return weather.AirQuality{}, &iqAirFailure{path: path, status: payload.Status, message: payload.Data.Message}
	}

	return weather.NewAirQuality(payload.Data.Current.Pollution.AQIUS, weather.ProviderIQAir), nil
}

// iqAirFailure is a 2xx answer whose status is not "success".
type iqAirFailure struct {
	path    string
	status  string
	message string
}

func (e *iqAirFailure) Error() string {
	return fmt.Sprintf("iqair %s: status %q: %s", e.path, e.status, e.message)
}

// rejected reports whether IQAir refused the request itself, as opposed to
// being unreachable or overloaded.
func rejected(err error) bool {
	var failure *iqAirFailure
	if errors.As(err, &failure) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
}

func hasCoordinates(loc weather.Location) bool {
	return loc.Latitude != 0 || loc.Longitude != 0
}
