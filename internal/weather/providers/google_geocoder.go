package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/daily-dashboard/internal/weather"
)

// geocoder keeps its key in a package variable.
var googleKeyMu sync.Mutex

// GoogleGeocoder resolves city names through the Google Geocoding API.
// It is a fallback for coordinate-based providers only.
type GoogleGeocoder struct {
	apiKey string

	lookup  func(geocoder.Address) (geocoder.Location, error)
	reverse func(geocoder.Location) ([]geocoder.Address, error)
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{
		apiKey:  apiKey,
		lookup:  geocoder.Geocoding,
		reverse: geocoder.GeocodingReverse,
	}
}

func (g *GoogleGeocoder) HasAPIKey() bool {
	return g.apiKey != ""
}

type googleResult struct {
	loc weather.Location
	err error
}

// Geocode runs the blocking client call in a goroutine so ctx still bounds it.
func (g *GoogleGeocoder) Geocode(ctx context.Context, city, language string) (weather.Location, error) {
	if !g.HasAPIKey() {
		return weather.Location{}, weather.ErrMissingAPIKey
	}

	done := make(chan googleResult, 1)
	go func() {
		loc, err := g.geocode(city)
		done <- googleResult{loc, err}
	}()

	select {
	case <-ctx.Done():
		return weather.Location{}, ctx.Err()
	case r := <-done:
		return r.loc, r.err
	}
}

func (g *GoogleGeocoder) geocode(city string) (weather.Location, error) {
	googleKeyMu.Lock()
	defer googleKeyMu.Unlock()
	geocoder.ApiKey = g.apiKey

	point, err := g.lookup(geocoder.Address{City: city})
	if err != nil {
		return weather.Location{}, fmt.Errorf("%w: google geocoding %q: %v", weather.ErrLocationNotFound, city, err)
	}
	if point.Latitude == 0 && point.Longitude == 0 {
		return weather.Location{}, fmt.Errorf("%w: %s", weather.ErrLocationNotFound, city)
	}

	loc := weather.Location{
		ID:        fmt.Sprintf("google:%.4f,%.4f", point.Latitude, point.Longitude),
		Name:      city,
		Latitude:  point.Latitude,
		Longitude: point.Longitude,
	}

	// Reverse lookup only enriches the names; coordinates are enough to proceed.
	addresses, err := g.reverse(point)
	if err == nil && len(addresses) > 0 {
		a := addresses[0]
		if strings.TrimSpace(a.City) != "" {
			loc.Name = a.City
		}
		loc.State = a.State
		loc.Country = a.Country
	}

	return loc, nil
}
