package weather

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks user-correctable problems detected before any network call.
	ErrConfiguration = errors.New("weather configuration error")

	// ErrLocationNotFound is returned when geocoding yields no match.
	ErrLocationNotFound = errors.New("location not found")

	// ErrInvalidLocationKey is returned when a provider key is not a finite number.
	ErrInvalidLocationKey = fmt.Errorf("%w: invalid location key", ErrConfiguration)

	// ErrMissingAPIKey is returned by providers that need a key and have none.
	ErrMissingAPIKey = fmt.Errorf("%w: api key is not configured", ErrConfiguration)
)

// Upstream is any weather or air-quality data source.
type Upstream interface {
	ID() Provider
}

// Geocoder resolves a city name to a Location.
type Geocoder interface {
	Geocode(ctx context.Context, city, language string) (Location, error)
}

// ForecastProvider geocodes in its own terms and returns normalized forecasts.
type ForecastProvider interface {
	Upstream
	Geocoder
	Forecast(ctx context.Context, loc Location) (Forecast, error)
}

// AirQualityProvider returns the current air quality for a resolved location.
type AirQualityProvider interface {
	Upstream
	AirQuality(ctx context.Context, loc Location) (AirQuality, error)
}

// KeyedProvider is implemented by providers that need an API key.
type KeyedProvider interface {
	HasAPIKey() bool
}
