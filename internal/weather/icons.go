package weather

import "time"

// IconNotAvailable is returned for codes a provider table does not know.
const IconNotAvailable = "wi:na"

// TextUnknown is returned for codes without a description.
const TextUnknown = "Unknown"

type iconPair struct {
	day   string
	night string
}

// Open-Meteo WMO weather codes.
var openMeteoIcons = map[int]iconPair{
	0:  {"wi:day-sunny", "wi:night-clear"},
	1:  {"wi:day-cloudy", "wi:night-alt-cloudy"},
	2:  {"wi:cloud", "wi:cloud"},
	3:  {"wi:cloudy", "wi:cloudy"},
	45: {"wi:fog", "wi:fog"},
	48: {"wi:fog", "wi:fog"},
	51: {"wi:day-showers", "wi:night-alt-showers"},
	53: {"wi:showers", "wi:showers"},
	55: {"wi:showers", "wi:showers"},
	56: {"wi:sleet", "wi:sleet"},
	57: {"wi:sleet", "wi:sleet"},
	61: {"wi:day-rain", "wi:night-alt-rain"},
	63: {"wi:rain", "wi:rain"},
	65: {"wi:rain", "wi:rain"},
	66: {"wi:rain-mix", "wi:rain-mix"},
	67: {"wi:rain-mix", "wi:rain-mix"},
	71: {"wi:day-snow", "wi:night-alt-snow"},
	73: {"wi:snow", "wi:snow"},
	75: {"wi:snow", "wi:snow"},
	77: {"wi:snowflake-cold", "wi:snowflake-cold"},
	80: {"wi:day-showers", "wi:night-alt-showers"},
	81: {"wi:showers", "wi:showers"},
	82: {"wi:showers", "wi:showers"},
	85: {"wi:day-snow", "wi:night-alt-snow"},
	86: {"wi:snow", "wi:snow"},
	95: {"wi:day-thunderstorm", "wi:night-alt-thunderstorm"},
	96: {"wi:day-thunderstorm", "wi:night-alt-thunderstorm"},
	99: {"wi:thunderstorm", "wi:thunderstorm"},
}

var openMeteoText = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// AccuWeather icon numbers, https://developer.accuweather.com/weather-icons.
// Codes 33-44 are the provider's own night variants.
var accuWeatherIcons = map[int]iconPair{
	1:  {"wi:day-sunny", "wi:night-clear"},
	2:  {"wi:day-sunny", "wi:night-clear"},
	3:  {"wi:day-cloudy", "wi:night-alt-cloudy"},
	4:  {"wi:day-cloudy", "wi:night-alt-cloudy"},
	5:  {"wi:day-haze", "wi:night-fog"},
	6:  {"wi:day-cloudy", "wi:night-alt-cloudy"},
	7:  {"wi:cloudy", "wi:cloudy"},
	8:  {"wi:cloudy", "wi:cloudy"},
	11: {"wi:fog", "wi:fog"},
	12: {"wi:showers", "wi:showers"},
	13: {"wi:day-showers", "wi:night-alt-showers"},
	14: {"wi:day-showers", "wi:night-alt-showers"},
	15: {"wi:thunderstorm", "wi:thunderstorm"},
	16: {"wi:day-thunderstorm", "wi:night-alt-thunderstorm"},
	17: {"wi:day-thunderstorm", "wi:night-alt-thunderstorm"},
	18: {"wi:rain", "wi:rain"},
	19: {"wi:snow", "wi:snow"},
	20: {"wi:day-snow", "wi:night-alt-snow"},
	21: {"wi:day-snow", "wi:night-alt-snow"},
	22: {"wi:snow", "wi:snow"},
	23: {"wi:day-snow", "wi:night-alt-snow"},
	24: {"wi:snowflake-cold", "wi:snowflake-cold"},
	25: {"wi:sleet", "wi:sleet"},
	26: {"wi:rain-mix", "wi:rain-mix"},
	29: {"wi:rain-mix", "wi:rain-mix"},
	30: {"wi:hot", "wi:hot"},
	31: {"wi:snowflake-cold", "wi:snowflake-cold"},
	32: {"wi:strong-wind", "wi:strong-wind"},
	33: {"wi:day-sunny", "wi:night-clear"},
	34: {"wi:day-sunny", "wi:night-clear"},
	35: {"wi:day-cloudy", "wi:night-alt-cloudy"},
	36: {"wi:day-cloudy", "wi:night-alt-cloudy"},
	37: {"wi:day-haze", "wi:night-alt-cloudy"},
	38: {"wi:day-cloudy", "wi:night-alt-cloudy"},
	39: {"wi:day-showers", "wi:night-alt-showers"},
	40: {"wi:day-showers", "wi:night-alt-showers"},
	41: {"wi:day-thunderstorm", "wi:night-alt-thunderstorm"},
	42: {"wi:day-thunderstorm", "wi:night-alt-thunderstorm"},
	43: {"wi:day-snow", "wi:night-alt-snow"},
	44: {"wi:day-snow", "wi:night-alt-snow"},
}

var accuWeatherText = map[int]string{
	1:  "Sunny",
	2:  "Mostly sunny",
	3:  "Partly sunny",
	4:  "Intermittent clouds",
	5:  "Hazy sunshine",
	6:  "Mostly cloudy",
	7:  "Cloudy",
	8:  "Dreary",
	11: "Fog",
	12: "Showers",
	13: "Mostly cloudy with showers",
	14: "Partly sunny with showers",
	15: "Thunderstorms",
	16: "Mostly cloudy with thunderstorms",
	17: "Partly sunny with thunderstorms",
	18: "Rain",
	19: "Flurries",
	20: "Mostly cloudy with flurries",
	21: "Partly sunny with flurries",
	22: "Snow",
	23: "Mostly cloudy with snow",
	24: "Ice",
	25: "Sleet",
	26: "Freezing rain",
	29: "Rain and snow",
	30: "Hot",
	31: "Cold",
	32: "Windy",
	33: "Clear",
	34: "Mostly clear",
	35: "Partly cloudy",
	36: "Intermittent clouds",
	37: "Hazy moonlight",
	38: "Mostly cloudy",
	39: "Partly cloudy with showers",
	40: "Mostly cloudy with showers",
	41: "Partly cloudy with thunderstorms",
	42: "Mostly cloudy with thunderstorms",
	43: "Mostly cloudy with flurries",
	44: "Mostly cloudy with snow",
}

// IsDaytime reports whether t falls in [06:00, 20:00) on its own wall clock.
func IsDaytime(t time.Time) bool {
	h := t.Hour()
	return h >= 6 && h < 20
}

// WeatherIcon maps a provider's weather code to an icon identifier for the
// time of day at t. Codes are never looked up in another provider's table.
func WeatherIcon(code int, provider Provider, t time.Time) string {
	var table map[int]iconPair
	switch provider {
	case ProviderOpenMeteo:
		table = openMeteoIcons
	case ProviderAccuWeather:
		table = accuWeatherIcons
	default:
		return IconNotAvailable
	}

	pair, ok := table[code]
	if !ok {
		return IconNotAvailable
	}
	if IsDaytime(t) {
		return pair.day
	}
	return pair.night
}

// WeatherText returns the English description of a provider's weather code.
func WeatherText(code int, provider Provider) string {
	var table map[int]string
	switch provider {
	case ProviderOpenMeteo:
		table = openMeteoText
	case ProviderAccuWeather:
		table = accuWeatherText
	default:
		return TextUnknown
	}
	if text, ok := table[code]; ok {
		return text
	}
	return TextUnknown
}

// ParseLocalTime parses upstream timestamps. Values without an offset
// ("2025-08-13T11:00") are read as wall-clock time in loc.
func ParseLocalTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	var lastErr error
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
