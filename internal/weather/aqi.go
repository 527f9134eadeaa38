package weather

import "math"

// Scheme is an AQI breakpoint table.
type Scheme string

const (
	// SchemeEuropean is the European AQI (0-20-40-60-80-100+), reported by Open-Meteo.
	SchemeEuropean Scheme = "european"
	// SchemeUSEPA is the US EPA AQI (0-50-100-150-200-300+), reported by IQAir as aqius.
	SchemeUSEPA Scheme = "us-epa"
)

// AQICategory describes one AQI bucket.
type AQICategory struct {
	Text    string `json:"text"`
	Color   string `json:"color"`
	I18nKey string `json:"i18nKey"`
}

// CategoryUnknown is used when no reading is available.
var CategoryUnknown = AQICategory{Text: "Unknown", Color: "#9E9E9E", I18nKey: "weather.airQualityLevels.unknown"}

type breakpoint struct {
	upper float64 // inclusive
	cat   AQICategory
}

type breakpointTable struct {
	steps []breakpoint
	above AQICategory
}

var schemes = map[Scheme]breakpointTable{
	SchemeEuropean: {
		steps: []breakpoint{
			{20, AQICategory{"Good", "#50F0E6", "weather.airQualityLevels.good"}},
			{40, AQICategory{"Fair", "#50CCAA", "weather.airQualityLevels.fair"}},
			{60, AQICategory{"Moderate", "#F0E641", "weather.airQualityLevels.moderate"}},
			{80, AQICategory{"Poor", "#FF5050", "weather.airQualityLevels.poor"}},
			{100, AQICategory{"Very Poor", "#960032", "weather.airQualityLevels.veryPoor"}},
		},
		above: AQICategory{"Extremely Poor", "#7D2181", "weather.airQualityLevels.extremelyPoor"},
	},
	SchemeUSEPA: {
		steps: []breakpoint{
			{50, AQICategory{"Good", "#00E400", "weather.airQualityLevels.good"}},
			{100, AQICategory{"Moderate", "#FFFF00", "weather.airQualityLevels.moderate"}},
			{150, AQICategory{"Unhealthy for Sensitive Groups", "#FF7E00", "weather.airQualityLevels.unhealthySensitive"}},
			{200, AQICategory{"Unhealthy", "#FF0000", "weather.airQualityLevels.unhealthy"}},
			{300, AQICategory{"Very Unhealthy", "#99004C", "weather.airQualityLevels.veryUnhealthy"}},
		},
		above: AQICategory{"Hazardous", "#7E0023", "weather.airQualityLevels.hazardous"},
	},
}

// CategoryOf buckets aqi with the given scheme's ascending breakpoints.
func CategoryOf(aqi float64, scheme Scheme) AQICategory {
	table, ok := schemes[scheme]
	if !ok || math.IsNaN(aqi) || aqi < 0 {
		return CategoryUnknown
	}
	for _, bp := range table.steps {
		if aqi <= bp.upper {
			return bp.cat
		}
	}
	return table.above
}

// SchemeFor is the single place an air-quality source is paired with its scale.
func SchemeFor(source Provider) (Scheme, bool) {
	switch source {
	case ProviderOpenMeteo:
		return SchemeEuropean, true
	case ProviderIQAir:
		return SchemeUSEPA, true
	default:
		return "", false
	}
}

// NewAirQuality builds a reading categorized with the source's scheme.
func NewAirQuality(aqi float64, source Provider) AirQuality {
	scheme, ok := SchemeFor(source)
	if !ok {
		return UnknownAirQuality(source)
	}
	cat := CategoryOf(aqi, scheme)
	return AirQuality{
		AQI:      aqi,
		Category: cat.Text,
		Color:    cat.Color,
		I18nKey:  cat.I18nKey,
		Scheme:   scheme,
		Source:   source,
	}
}

// UnknownAirQuality is the sentinel for missing air-quality data.
func UnknownAirQuality(source Provider) AirQuality {
	return AirQuality{
		AQI:      0,
		Category: CategoryUnknown.Text,
		Color:    CategoryUnknown.Color,
		I18nKey:  CategoryUnknown.I18nKey,
		Source:   source,
	}
}

// EstimateEuropeanAQI approximates the European AQI from PM2.5 (µg/m³)
// for responses that omit european_aqi.
func EstimateEuropeanAQI(pm25 float64) float64 {
	var aqi float64
	switch {
	case pm25 <= 10:
		aqi = pm25 * 2
	case pm25 <= 20:
		aqi = 20 + (pm25-10)*2
	case pm25 <= 25:
		aqi = 40 + (pm25-20)*4
	case pm25 <= 50:
		aqi = 60 + (pm25-25)*0.8
	case pm25 <= 75:
		aqi = 80 + (pm25-50)*0.8
	default:
		aqi = 100 + (pm25-75)*0.5
	}
	return math.Round(aqi)
}
