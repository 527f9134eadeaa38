package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/daily-dashboard/internal/weather"
)

// isolate clears variables a developer's shell may carry and runs the test
// from an empty directory so no .env is picked up.
func isolate(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "LOG_LEVEL", "LOG_FORMAT", "HTTP_TIMEOUT", "INIT_TIMEOUT", "CACHE_TTL",
		"STORE_BACKEND", "SQLITE_PATH", "REDIS_ADDR", "REDIS_DB", "STORE_MAX_ENTRIES",
		"ACCUWEATHER_API_KEY", "IQAIR_API_KEY", "GOOGLE_GEOCODING_API_KEY", "STATIC_DIR",
		"WARM_INTERVAL", "WARM_TARGETS", "FORECAST_DAYS", "FORECAST_HOURS",
		"DEFAULT_CITY", "DEFAULT_PROVIDER", "DEFAULT_LANGUAGE",
	} {
		t.Setenv(key, "")
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, weather.DefaultInitTimeout, cfg.InitTimeout)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 5, cfg.ForecastDays)
	assert.Equal(t, 12, cfg.ForecastHours)
	assert.Equal(t, weather.ProviderOpenMeteo, cfg.DefaultWeather.Provider)
	assert.Empty(t, cfg.WarmTargets)
	assert.False(t, cfg.EnvFileLoaded)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_TTL", "15m")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("DEFAULT_CITY", "Warsaw")
	t.Setenv("DEFAULT_PROVIDER", "AccuWeather")
	t.Setenv("WARM_TARGETS", "Warsaw:openmeteo, Kraków:accuweather:iqair")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "Warsaw", cfg.DefaultWeather.City)
	assert.Equal(t, weather.ProviderAccuWeather, cfg.DefaultWeather.Provider)

	require.Len(t, cfg.WarmTargets, 2)
	assert.Equal(t, "Kraków", cfg.WarmTargets[1].City)
	assert.Equal(t, weather.ProviderIQAir, cfg.WarmTargets[1].AirQualityProvider)
	assert.Equal(t, weather.ProviderOpenMeteo, cfg.WarmTargets[0].AirQualityProvider)
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)
	// godotenv never overrides a variable that is already set, even to "".
	require.NoError(t, os.Unsetenv("IQAIR_API_KEY"))
	require.NoError(t, os.WriteFile(".env", []byte("IQAIR_API_KEY=from-dotenv\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.EnvFileLoaded)
	assert.Equal(t, "from-dotenv", cfg.IQAirAPIKey)
}

func TestLoadTOMLFileWithEnvPrecedence(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
port = "7000"
log_format = "console"
cache_ttl = "30m"
forecast_days = 3

[store]
backend = "sqlite"
sqlite_path = "/tmp/dash.db"

[defaults]
city = "Gdansk"
provider = "openmeteo"

[[warm]]
city = "Gdansk"
provider = "openmeteo"
air_quality_provider = "iqair"
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7001", cfg.Port)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 3, cfg.ForecastDays)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/tmp/dash.db", cfg.Store.SQLitePath)
	assert.Equal(t, "Gdansk", cfg.DefaultWeather.City)

	require.Len(t, cfg.WarmTargets, 1)
	assert.Equal(t, weather.DefaultLanguage, cfg.WarmTargets[0].Language)
	assert.Equal(t, weather.ProviderIQAir, cfg.WarmTargets[0].AirQualityProvider)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"bad duration":   {"CACHE_TTL", "soon"},
		"bad backend":    {"STORE_BACKEND", "mongo"},
		"redis no addr":  {"STORE_BACKEND", "redis"},
		"bad level":      {"LOG_LEVEL", "loud"},
		"bad provider":   {"DEFAULT_PROVIDER", "yahoo"},
		"bad warm list":  {"WARM_TARGETS", "Warsaw"},
		"forecast range": {"FORECAST_DAYS", "30"},
	}

	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			isolate(t)
			t.Setenv(kv[0], kv[1])

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	isolate(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.toml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestParseWarmTargets(t *testing.T) {
	targets, err := ParseWarmTargets("Warsaw:openmeteo,,Oslo:accuweather:openmeteo", "pl")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "pl", targets[0].Language)
	assert.Equal(t, weather.ProviderAccuWeather, targets[1].Provider)

	_, err = ParseWarmTargets("Warsaw:iqair", "en")
	assert.ErrorIs(t, err, weather.ErrConfiguration)

	_, err = ParseWarmTargets(":openmeteo", "en")
	assert.Error(t, err)

	_, err = ParseWarmTargets("a:b:c:d", "en")
	assert.Error(t, err)
}
