package weather

import (
	"fmt"

	"github.com/i474232898/daily-dashboard/internal/common"
)

const (
	locationKeyPrefix   = "weather_location"
	forecastKeyPrefix   = "weather_forecast"
	airQualityKeyPrefix = "weather_air_quality"
)

func coords(loc Location) string {
	return fmt.Sprintf("%.4f,%.4f", loc.Latitude, loc.Longitude)
}

func locationCacheKey(s Settings) string {
	return common.CacheKey(locationKeyPrefix, string(s.Provider), s.Language, s.City)
}

// Forecasts are keyed by the provider's own location handle.
func forecastCacheKey(p Provider, loc Location) string {
	if p == ProviderAccuWeather {
		return common.CacheKey(forecastKeyPrefix, string(p), loc.ProviderLocationKey)
	}
	return common.CacheKey(forecastKeyPrefix, string(p), coords(loc))
}

func airQualityCacheKey(p Provider, loc Location) string {
	if p == ProviderIQAir {
		return common.CacheKey(airQualityKeyPrefix, string(p), loc.Name, loc.State, loc.Country)
	}
	return common.CacheKey(airQualityKeyPrefix, string(p), coords(loc))
}
